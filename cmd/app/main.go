package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"time"

	"vet-clinic-manager/internal/adapters/authprovider/gotrue"
	"vet-clinic-manager/internal/adapters/backend/rest"
	"vet-clinic-manager/internal/adapters/storage/file"
	"vet-clinic-manager/internal/adapters/storage/postgres"
	"vet-clinic-manager/internal/auth"
	"vet-clinic-manager/internal/cache"
	"vet-clinic-manager/internal/domain/appointments"
	"vet-clinic-manager/internal/domain/cart"
	"vet-clinic-manager/internal/domain/medicalrecords"
	"vet-clinic-manager/internal/domain/orders"
	"vet-clinic-manager/internal/domain/pets"
	"vet-clinic-manager/internal/domain/products"
	"vet-clinic-manager/internal/domain/profile"
	"vet-clinic-manager/internal/domain/qrcodes"
	"vet-clinic-manager/internal/platform/config"
	"vet-clinic-manager/internal/platform/logger"
	"vet-clinic-manager/internal/platform/metrics"
	"vet-clinic-manager/internal/router"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(logger.Options{
		Level:  logger.ParseLevel(cfg.LogLevel),
		Format: logger.ParseFormat(cfg.LogFormat),
		App:    "vet-clinic-manager",
	})

	m := metrics.New()

	// Proveedor externo de auth + holder de sesión del proceso.
	provider := gotrue.NewClient(gotrue.Config{
		BaseURL: cfg.AuthURL,
		APIKey:  cfg.AuthAPIKey,
	})
	sessions := auth.NewHolder(provider, log)

	// El holder firma todos los requests al backend.
	api, err := rest.New(cfg.APIBaseURL, sessions)
	if err != nil {
		log.Error("backend client", map[string]any{"err": err.Error()})
		os.Exit(1)
	}

	// Stores por entidad; todos se limpian solos ante cambios de sesión.
	profileStore := profile.New(api, sessions, log)
	petsStore := pets.New(api, sessions, log)
	apptsStore := appointments.New(api, sessions, log)
	recordsStore := medicalrecords.New(api, sessions, log)
	ordersStore := orders.New(api, sessions, log)
	productsStore := products.New(api, sessions, log)
	qrStore := qrcodes.New(api, sessions, log)

	profileStore.BindTo(sessions)
	petsStore.BindTo(sessions)
	apptsStore.BindTo(sessions)
	recordsStore.BindTo(sessions)
	ordersStore.BindTo(sessions)
	productsStore.BindTo(sessions)
	qrStore.BindTo(sessions)

	profileStore.Metrics = m
	petsStore.Metrics = m
	apptsStore.Metrics = m
	recordsStore.Metrics = m
	ordersStore.Metrics = m
	productsStore.Metrics = m
	qrStore.Metrics = m

	// Carrito: Postgres si hay DSN, si no archivo local.
	var kv cart.Storage
	if cfg.CartDSN != "" {
		db, err := postgres.Open(cfg.CartDSN)
		if err != nil {
			log.Error("cart storage", map[string]any{"err": err.Error()})
			os.Exit(1)
		}
		defer db.Close()
		kv = postgres.NewKV(db)
	} else {
		kv = file.NewKV(cfg.CartFile)
	}
	cartStore := cart.New(context.Background(), kv, log)

	guard := router.NewGuard(sessions, profileStore, log)
	guard.Metrics = m

	// La inicialización de auth corre en paralelo; el guard suspende las
	// navegaciones hasta que termine.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = sessions.Initialize(ctx)
	}()

	h := pageHandlers{
		sessions: sessions,
		profiles: profileStore,
		pets:     petsStore,
		appts:    apptsStore,
		records:  recordsStore,
		orders:   ordersStore,
		products: productsStore,
		qr:       qrStore,
		cart:     cartStore,
	}

	r := router.NewRouter(router.Options{
		Guard:          guard,
		Routes:         h.routes(),
		Log:            log,
		MetricsHandler: m.Handler(),
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	log.Info("starting app", map[string]any{"addr": addr, "api": cfg.APIBaseURL})
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", map[string]any{"err": err.Error()})
		os.Exit(1)
	}
}

// pageHandlers materializa las lecturas de los stores como páginas JSON.
// El rendering de verdad queda fuera de alcance; esto alcanza para que
// cada vista ejercite su store.
type pageHandlers struct {
	sessions *auth.Holder
	profiles *profile.Store
	pets     *pets.Store
	appts    *appointments.Store
	records  *medicalrecords.Store
	orders   *orders.Store
	products *products.Store
	qr       *qrcodes.Store
	cart     *cart.Store
}

func (h pageHandlers) routes() []router.Route {
	vetOrAdmin := []profile.Role{profile.RoleVeterinarian, profile.RoleAdmin}

	return []router.Route{
		{Path: router.PathLanding, Name: "landing", Handler: h.landing},
		{Path: router.PathLogin, Name: "login", RequiresGuest: true, Handler: h.login},
		{Path: router.PathSignup, Name: "signup", RequiresGuest: true, Handler: h.login},
		{Path: router.PathDashboard, Name: "dashboard", RequiresAuth: true, Handler: h.dashboard},
		{Path: router.PathSetupProfile, Name: "setup-profile", RequiresAuth: true, Handler: h.setupProfile},
		{Path: "/pets", Name: "pets", RequiresAuth: true, Handler: h.petsPage},
		{Path: "/appointments", Name: "appointments", RequiresAuth: true, Handler: h.appointmentsPage},
		{Path: "/products", Name: "products", RequiresAuth: true, Handler: h.productsPage},
		{Path: "/cart", Name: "cart", RequiresAuth: true, AllowedRoles: []profile.Role{profile.RoleClient}, Handler: h.cartPage},
		{Path: "/orders", Name: "orders", RequiresAuth: true, AllowedRoles: vetOrAdmin, Handler: h.ordersPage},
		{Path: "/patients", Name: "patients", RequiresAuth: true, AllowedRoles: vetOrAdmin, Handler: h.patientsPage},
	}
}

func (h pageHandlers) landing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"page": "landing"})
}

func (h pageHandlers) login(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"page": "login"})
}

func (h pageHandlers) dashboard(w http.ResponseWriter, r *http.Request) {
	appts, _ := h.appts.Fetch(r.Context(), cache.Options{})
	writeJSON(w, http.StatusOK, map[string]any{
		"page":      "dashboard",
		"user":      h.profiles.FullDisplayName(),
		"upcoming":  appointments.UpcomingOf(appts, time.Now()),
		"today":     h.appts.Today(),
		"cartItems": h.cart.ItemCount(),
	})
}

func (h pageHandlers) setupProfile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"page":       "setup-profile",
		"hasProfile": h.profiles.HasProfile(),
	})
}

func (h pageHandlers) petsPage(w http.ResponseWriter, r *http.Request) {
	owned, err := h.pets.Fetch(r.Context(), cache.Options{})
	writeJSON(w, http.StatusOK, map[string]any{
		"page":  "pets",
		"pets":  owned,
		"error": errString(err),
	})
}

func (h pageHandlers) appointmentsPage(w http.ResponseWriter, r *http.Request) {
	_, err := h.appts.Fetch(r.Context(), cache.Options{})
	writeJSON(w, http.StatusOK, map[string]any{
		"page":     "appointments",
		"upcoming": h.appts.Upcoming(),
		"past":     h.appts.Past(),
		"error":    errString(err),
	})
}

func (h pageHandlers) productsPage(w http.ResponseWriter, r *http.Request) {
	f := products.Filter{
		VeterinarianID: r.URL.Query().Get("veterinarian_id"),
		Category:       r.URL.Query().Get("category"),
		Search:         r.URL.Query().Get("search"),
	}
	list, err := h.products.Fetch(r.Context(), f, cache.Options{})
	writeJSON(w, http.StatusOK, map[string]any{
		"page":     "products",
		"products": list,
		"error":    errString(err),
	})
}

func (h pageHandlers) cartPage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"page":     "cart",
		"items":    h.cart.Items(),
		"subtotal": h.cart.Subtotal(),
	})
}

func (h pageHandlers) ordersPage(w http.ResponseWriter, r *http.Request) {
	list, err := h.orders.Fetch(r.Context(), cache.Options{})
	writeJSON(w, http.StatusOK, map[string]any{
		"page":           "orders",
		"orders":         list,
		"monthlyRevenue": h.orders.MonthlyRevenue(),
		"error":          errString(err),
	})
}

func (h pageHandlers) patientsPage(w http.ResponseWriter, r *http.Request) {
	_, err := h.appts.Fetch(r.Context(), cache.Options{})
	writeJSON(w, http.StatusOK, map[string]any{
		"page":     "patients",
		"patients": h.pets.Patients(r.Context(), h.appts),
		"error":    errString(err),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
