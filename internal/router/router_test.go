package router_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"vet-clinic-manager/internal/adapters/backend/rest"
	"vet-clinic-manager/internal/auth"
	"vet-clinic-manager/internal/backendtest"
	"vet-clinic-manager/internal/domain/profile"
	"vet-clinic-manager/internal/ports/authprovider"
	"vet-clinic-manager/internal/router"
)

// stubProvider entrega una sesión fija (o ninguna) al inicializar.
type stubProvider struct {
	session authprovider.Session
	ok      bool
}

func (p *stubProvider) SignUp(ctx context.Context, email, password string) (authprovider.Session, error) {
	return p.session, nil
}

func (p *stubProvider) SignIn(ctx context.Context, email, password string) (authprovider.Session, error) {
	return p.session, nil
}

func (p *stubProvider) SignOut(ctx context.Context, accessToken string) error { return nil }

func (p *stubProvider) CurrentSession(ctx context.Context) (authprovider.Session, bool, error) {
	return p.session, p.ok, nil
}

// noRedirectGet pega un GET sin seguir redirects y devuelve status+Location.
func noRedirectGet(t *testing.T, baseURL, path string) (int, string) {
	t.Helper()

	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	res, err := client.Get(baseURL + path)
	if err != nil {
		t.Fatalf("get %s: %v", path, err)
	}
	defer res.Body.Close()
	return res.StatusCode, res.Header.Get("Location")
}

func expectRedirect(t *testing.T, baseURL, path, wantLocation string) {
	t.Helper()
	st, loc := noRedirectGet(t, baseURL, path)
	if st != http.StatusSeeOther || loc != wantLocation {
		t.Fatalf("GET %s: expected 303 -> %s, got %d -> %q", path, wantLocation, st, loc)
	}
}

func expectOK(t *testing.T, baseURL, path string) {
	t.Helper()
	st, _ := noRedirectGet(t, baseURL, path)
	if st != http.StatusOK {
		t.Fatalf("GET %s: expected 200, got %d", path, st)
	}
}

func routeTable() []router.Route {
	ok := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }
	return []router.Route{
		{Path: router.PathLanding, Name: "landing", Handler: ok},
		{Path: router.PathLogin, Name: "login", RequiresGuest: true, Handler: ok},
		{Path: router.PathDashboard, Name: "dashboard", RequiresAuth: true, Handler: ok},
		{Path: router.PathSetupProfile, Name: "setup-profile", RequiresAuth: true, Handler: ok},
		{Path: "/orders", Name: "orders", RequiresAuth: true, AllowedRoles: []profile.Role{profile.RoleVeterinarian, profile.RoleAdmin}, Handler: ok},
	}
}

func TestHTTP_EndToEnd_AuthenticatedNavigation(t *testing.T) {
	ctx := context.Background()

	// Backend falso con un token registrado para u1.
	backend := backendtest.New()
	backend.AddToken("tok-u1", "u1")
	bts := httptest.NewServer(backend)
	defer bts.Close()

	// Sesión restaurada al arrancar.
	sessions := auth.NewHolder(&stubProvider{
		session: authprovider.Session{AccessToken: "tok-u1", UserID: "u1"},
		ok:      true,
	}, nil)
	if err := sessions.Initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	api, err := rest.New(bts.URL, sessions)
	if err != nil {
		t.Fatalf("rest client: %v", err)
	}
	profiles := profile.New(api, sessions, nil)
	profiles.BindTo(sessions)

	guard := router.NewGuard(sessions, profiles, nil)
	app := httptest.NewServer(router.NewRouter(router.Options{
		Guard:  guard,
		Routes: routeTable(),
	}))
	defer app.Close()

	// 1) Autenticado pero sin perfil: toda ruta protegida manda al alta
	expectRedirect(t, app.URL, "/dashboard", "/setup-profile")

	// 2) /setup-profile sí es accesible (si no, loop de redirects)
	expectOK(t, app.URL, "/setup-profile")

	// 3) El alta de perfil destraba el dashboard
	if _, err := profiles.Create(ctx, profile.CreateInput{Name: "Ana", Email: "ana@example.com", Role: profile.RoleClient}); err != nil {
		t.Fatalf("create profile: %v", err)
	}
	expectOK(t, app.URL, "/dashboard")

	// 4) Autenticado no ve landing ni login
	expectRedirect(t, app.URL, "/", "/dashboard")
	expectRedirect(t, app.URL, "/login", "/dashboard")

	// 5) Cliente no entra a la ruta de vets: sale por el gate de rol
	expectRedirect(t, app.URL, "/orders", "/dashboard")

	// 6) Sign-out limpia el perfil y vuelve todo a /login
	if err := sessions.SignOut(ctx); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if profiles.Current() != nil {
		t.Fatal("sign-out must clear the cached profile")
	}
	expectRedirect(t, app.URL, "/dashboard", "/login")

	// 7) Invitado de nuevo: login accesible, landing también
	expectOK(t, app.URL, "/login")
	expectOK(t, app.URL, "/")
}

func TestHTTP_EndToEnd_GuestNavigation(t *testing.T) {
	sessions := auth.NewHolder(&stubProvider{ok: false}, nil)
	if err := sessions.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	guard := router.NewGuard(sessions, &fakeProfiles{}, nil)
	app := httptest.NewServer(router.NewRouter(router.Options{
		Guard:  guard,
		Routes: routeTable(),
	}))
	defer app.Close()

	expectRedirect(t, app.URL, "/dashboard", "/login")
	expectRedirect(t, app.URL, "/orders", "/login")
	expectOK(t, app.URL, "/login")
	expectOK(t, app.URL, "/")
	expectOK(t, app.URL, "/health")
}
