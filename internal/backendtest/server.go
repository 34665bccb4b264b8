// Package backendtest es un doble en memoria del backend REST de la
// clínica, para tests de integración. Responde con el envelope
// { "data": ... } y exige bearer token, igual que el backend real.
package backendtest

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"vet-clinic-manager/internal/domain/appointments"
	"vet-clinic-manager/internal/domain/medicalrecords"
	"vet-clinic-manager/internal/domain/orders"
	"vet-clinic-manager/internal/domain/pets"
	"vet-clinic-manager/internal/domain/products"
	"vet-clinic-manager/internal/domain/profile"
	"vet-clinic-manager/internal/domain/qrcodes"
)

type ctxKey string

const userKey ctxKey = "user"

// Server simula el backend. Estado mutable protegido por mu; los tests
// siembran datos vía los helpers Seed* y registran tokens con AddToken.
type Server struct {
	mu sync.Mutex

	tokens     map[string]string // token -> user id
	profiles   map[string]profile.Profile
	pets       map[string]pets.Pet
	records    map[string]medicalrecords.MedicalRecord
	appts      map[string]appointments.Appointment
	orders     map[string]orders.Order
	orderItems map[string][]orders.OrderItem
	products   map[string]products.Product
	qrs        map[string]qrcodes.QRCodeRecord // por pet id

	calls []string

	handler http.Handler
}

func New() *Server {
	s := &Server{
		tokens:     map[string]string{},
		profiles:   map[string]profile.Profile{},
		pets:       map[string]pets.Pet{},
		records:    map[string]medicalrecords.MedicalRecord{},
		appts:      map[string]appointments.Appointment{},
		orders:     map[string]orders.Order{},
		orderItems: map[string][]orders.OrderItem{},
		products:   map[string]products.Product{},
		qrs:        map[string]qrcodes.QRCodeRecord{},
	}
	s.handler = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.calls = append(s.calls, r.Method+" "+r.URL.Path)
	s.mu.Unlock()
	s.handler.ServeHTTP(w, r)
}

// Calls cuenta cuántos requests llegaron con ese método y prefijo de path.
func (s *Server) Calls(method, pathPrefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if strings.HasPrefix(c, method+" "+pathPrefix) {
			n++
		}
	}
	return n
}

// AddToken registra un bearer token válido para ese usuario.
func (s *Server) AddToken(token, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = userID
}

func (s *Server) SeedProfile(p profile.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ID] = p
}

func (s *Server) SeedPet(p pets.Pet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pets[p.ID] = p
}

func (s *Server) SeedAppointment(a appointments.Appointment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appts[a.ID] = a
}

func (s *Server) SeedOrder(o orders.Order, items []orders.OrderItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = o
	s.orderItems[o.ID] = items
}

func (s *Server) SeedProduct(p products.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.requireAuth)

		r.Get("/profile", s.getProfile)
		r.Post("/users", s.createUser)
		r.Get("/users/{id}", s.getUser)
		r.Put("/users/{id}", s.updateUser)
		r.Get("/owners/{id}/label", s.ownerLabel)

		r.Get("/clients/{id}/pets", s.listClientPets)
		r.Post("/pets", s.createPet)
		r.Get("/pets/{id}", s.getPet)
		r.Put("/pets/{id}", s.updatePet)
		r.Delete("/pets/{id}", s.deletePet)

		r.Get("/pets/{id}/qr-code", s.getQR)
		r.Post("/pets/{id}/qr-code", s.createQR)

		r.Get("/pets/{id}/medical-records", s.listRecords)
		r.Post("/pets/{id}/medical-records", s.createRecord)
		r.Put("/medical-records/{id}", s.updateRecord)
		r.Delete("/medical-records/{id}", s.deleteRecord)

		r.Get("/appointments", s.listAppointments)
		r.Post("/appointments", s.createAppointment)
		r.Put("/appointments/{id}", s.updateAppointment)
		r.Delete("/appointments/{id}", s.deleteAppointment)

		r.Get("/veterinarians", s.listVeterinarians)
		r.Get("/veterinarians/{id}/availability", s.availability)
		r.Post("/veterinarians/{id}/availability", s.publishAvailability)

		r.Get("/orders", s.listOrders)
		r.Get("/orders/{id}", s.getOrder)

		r.Get("/products", s.listProducts)
		r.Post("/products", s.createProduct)
		r.Put("/products/{id}", s.updateProduct)
		r.Put("/products/{id}/stock", s.updateStock)
		r.Delete("/products/{id}", s.deleteProduct)
	})

	return r
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		s.mu.Lock()
		userID, ok := s.tokens[raw]
		s.mu.Unlock()
		if !ok {
			writeErr(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, withUser(r, userID))
	})
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	p, ok := s.profiles[currentUser(r)]
	s.mu.Unlock()
	if !ok {
		writeErr(w, http.StatusNotFound, "profile not found")
		return
	}
	writeData(w, http.StatusOK, p)
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var in profile.Profile
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeErr(w, http.StatusBadRequest, "bad json")
		return
	}
	in.ID = currentUser(r)
	s.mu.Lock()
	s.profiles[in.ID] = in
	s.mu.Unlock()
	writeData(w, http.StatusCreated, in)
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	p, ok := s.profiles[chi.URLParam(r, "id")]
	s.mu.Unlock()
	if !ok {
		writeErr(w, http.StatusNotFound, "user not found")
		return
	}
	writeData(w, http.StatusOK, p)
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	p, ok := s.profiles[id]
	s.mu.Unlock()
	if !ok {
		writeErr(w, http.StatusNotFound, "user not found")
		return
	}

	var in struct {
		Name          *string `json:"name"`
		Phone         *string `json:"phone"`
		Address       *string `json:"address"`
		ClinicAddress *string `json:"clinic_address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeErr(w, http.StatusBadRequest, "bad json")
		return
	}
	if in.Name != nil {
		p.Name = *in.Name
	}
	if in.Phone != nil {
		p.Phone = *in.Phone
	}
	if in.Address != nil {
		p.Address = *in.Address
	}
	if in.ClinicAddress != nil {
		p.ClinicAddress = *in.ClinicAddress
	}

	s.mu.Lock()
	s.profiles[id] = p
	s.mu.Unlock()
	writeData(w, http.StatusOK, p)
}

func (s *Server) ownerLabel(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	p, ok := s.profiles[chi.URLParam(r, "id")]
	s.mu.Unlock()
	if !ok {
		writeErr(w, http.StatusNotFound, "owner not found")
		return
	}
	writeData(w, http.StatusOK, map[string]string{"label": p.Name})
}

func (s *Server) listClientPets(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "id")
	s.mu.Lock()
	_, hasProfile := s.profiles[ownerID]
	out := []pets.Pet{}
	for _, p := range s.pets {
		if p.OwnerID == ownerID {
			out = append(out, p)
		}
	}
	s.mu.Unlock()
	if !hasProfile {
		writeErr(w, http.StatusNotFound, "client not found")
		return
	}
	writeData(w, http.StatusOK, out)
}

func (s *Server) createPet(w http.ResponseWriter, r *http.Request) {
	var in pets.Pet
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeErr(w, http.StatusBadRequest, "bad json")
		return
	}
	in.ID = uuid.NewString()
	if in.OwnerID == "" {
		in.OwnerID = currentUser(r)
	}
	in.CreatedAt = time.Now()
	s.mu.Lock()
	s.pets[in.ID] = in
	s.mu.Unlock()
	writeData(w, http.StatusCreated, in)
}

func (s *Server) getPet(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	p, ok := s.pets[chi.URLParam(r, "id")]
	s.mu.Unlock()
	if !ok {
		writeErr(w, http.StatusNotFound, "pet not found")
		return
	}
	writeData(w, http.StatusOK, p)
}

func (s *Server) updatePet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	p, ok := s.pets[id]
	s.mu.Unlock()
	if !ok {
		writeErr(w, http.StatusNotFound, "pet not found")
		return
	}

	var in struct {
		Name   *string  `json:"name"`
		Breed  *string  `json:"breed"`
		Weight *float64 `json:"weight"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeErr(w, http.StatusBadRequest, "bad json")
		return
	}
	if in.Name != nil {
		p.Name = *in.Name
	}
	if in.Breed != nil {
		p.Breed = *in.Breed
	}
	if in.Weight != nil {
		p.Weight = *in.Weight
	}
	p.UpdatedAt = time.Now()

	s.mu.Lock()
	s.pets[id] = p
	s.mu.Unlock()
	writeData(w, http.StatusOK, p)
}

func (s *Server) deletePet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	delete(s.pets, id)
	delete(s.qrs, id)
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getQR(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	rec, ok := s.qrs[chi.URLParam(r, "id")]
	s.mu.Unlock()
	if !ok {
		writeErr(w, http.StatusNotFound, "qr not found")
		return
	}
	writeData(w, http.StatusOK, rec)
}

func (s *Server) createQR(w http.ResponseWriter, r *http.Request) {
	petID := chi.URLParam(r, "id")
	s.mu.Lock()
	p, ok := s.pets[petID]
	s.mu.Unlock()
	if !ok {
		writeErr(w, http.StatusNotFound, "pet not found")
		return
	}

	rec := qrcodes.QRCodeRecord{
		ID:         uuid.NewString(),
		PetID:      petID,
		QRCodeData: "iVBORw0KGgo=",
		PublicURL:  "https://tags.example/p/" + petID,
		IsActive:   true,
		CreatedAt:  time.Now(),
	}
	rec.EncodedContent.PetName = p.Name
	rec.EncodedContent.PetType = p.Type
	rec.EncodedContent.PublicProfileURL = rec.PublicURL

	s.mu.Lock()
	s.qrs[petID] = rec
	s.mu.Unlock()
	writeData(w, http.StatusCreated, rec)
}

func (s *Server) listRecords(w http.ResponseWriter, r *http.Request) {
	petID := chi.URLParam(r, "id")
	s.mu.Lock()
	out := []medicalrecords.MedicalRecord{}
	for _, rec := range s.records {
		if rec.PetID == petID {
			out = append(out, rec)
		}
	}
	s.mu.Unlock()
	writeData(w, http.StatusOK, out)
}

func (s *Server) createRecord(w http.ResponseWriter, r *http.Request) {
	var in medicalrecords.MedicalRecord
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeErr(w, http.StatusBadRequest, "bad json")
		return
	}
	in.ID = uuid.NewString()
	in.PetID = chi.URLParam(r, "id")
	in.VeterinarianID = currentUser(r)
	if in.DateOfVisit.IsZero() {
		in.DateOfVisit = time.Now()
	}
	in.CreatedAt = time.Now()
	s.mu.Lock()
	s.records[in.ID] = in
	s.mu.Unlock()
	writeData(w, http.StatusCreated, in)
}

func (s *Server) updateRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	rec, ok := s.records[id]
	s.mu.Unlock()
	if !ok {
		writeErr(w, http.StatusNotFound, "record not found")
		return
	}

	var in struct {
		ReasonForVisit *string `json:"reason_for_visit"`
		Diagnosis      *string `json:"diagnosis"`
		Notes          *string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeErr(w, http.StatusBadRequest, "bad json")
		return
	}
	if in.ReasonForVisit != nil {
		rec.ReasonForVisit = *in.ReasonForVisit
	}
	if in.Diagnosis != nil {
		rec.Diagnosis = *in.Diagnosis
	}
	if in.Notes != nil {
		rec.Notes = *in.Notes
	}
	rec.UpdatedAt = time.Now()

	s.mu.Lock()
	s.records[id] = rec
	s.mu.Unlock()
	writeData(w, http.StatusOK, rec)
}

func (s *Server) deleteRecord(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	delete(s.records, chi.URLParam(r, "id"))
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listAppointments(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	s.mu.Lock()
	out := []appointments.Appointment{}
	for _, a := range s.appts {
		if a.ClientID == user || a.VeterinarianID == user {
			out = append(out, a)
		}
	}
	s.mu.Unlock()
	writeData(w, http.StatusOK, out)
}

func (s *Server) createAppointment(w http.ResponseWriter, r *http.Request) {
	var in appointments.Appointment
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeErr(w, http.StatusBadRequest, "bad json")
		return
	}
	in.ID = uuid.NewString()
	in.ClientID = currentUser(r)
	in.Status = appointments.StatusScheduled
	in.CreatedAt = time.Now()
	s.mu.Lock()
	s.appts[in.ID] = in
	s.mu.Unlock()
	writeData(w, http.StatusCreated, in)
}

func (s *Server) updateAppointment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	a, ok := s.appts[id]
	s.mu.Unlock()
	if !ok {
		writeErr(w, http.StatusNotFound, "appointment not found")
		return
	}

	var in struct {
		Status          *appointments.Status `json:"status"`
		AppointmentDate *time.Time           `json:"appointment_date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeErr(w, http.StatusBadRequest, "bad json")
		return
	}
	if in.Status != nil {
		a.Status = *in.Status
	}
	if in.AppointmentDate != nil {
		a.AppointmentDate = *in.AppointmentDate
	}
	a.UpdatedAt = time.Now()

	s.mu.Lock()
	s.appts[id] = a
	s.mu.Unlock()
	writeData(w, http.StatusOK, a)
}

func (s *Server) deleteAppointment(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	delete(s.appts, chi.URLParam(r, "id"))
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listVeterinarians(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := []appointments.VeterinarianListItem{}
	for _, p := range s.profiles {
		if p.Role == profile.RoleVeterinarian {
			out = append(out, appointments.VeterinarianListItem{
				ID:            p.ID,
				Name:          p.Name,
				Email:         p.Email,
				Phone:         p.Phone,
				ClinicAddress: p.ClinicAddress,
			})
		}
	}
	s.mu.Unlock()
	writeData(w, http.StatusOK, out)
}

func (s *Server) availability(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("date") == "" {
		writeErr(w, http.StatusBadRequest, "missing date")
		return
	}
	writeData(w, http.StatusOK, []appointments.TimeSlot{
		{StartTime: "09:00", EndTime: "09:30", Available: true},
		{StartTime: "09:30", EndTime: "10:00", Available: false},
	})
}

func (s *Server) publishAvailability(w http.ResponseWriter, r *http.Request) {
	var in appointments.AvailabilityInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Date == "" {
		writeErr(w, http.StatusBadRequest, "bad availability")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	s.mu.Lock()
	out := []orders.Order{}
	for _, o := range s.orders {
		if o.ClientID == user || o.VeterinarianID == user {
			out = append(out, o)
		}
	}
	s.mu.Unlock()
	writeData(w, http.StatusOK, out)
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	o, ok := s.orders[id]
	items := s.orderItems[id]
	s.mu.Unlock()
	if !ok {
		writeErr(w, http.StatusNotFound, "order not found")
		return
	}

	writeData(w, http.StatusOK, struct {
		orders.Order
		Items []orders.OrderItem `json:"items"`
	}{Order: o, Items: items})
}

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	vet, cat, search := q.Get("veterinarian_id"), q.Get("category"), strings.ToLower(q.Get("search"))

	s.mu.Lock()
	out := []products.Product{}
	for _, p := range s.products {
		if vet != "" && p.VeterinarianID != vet {
			continue
		}
		if cat != "" && p.Category != cat {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Name), search) {
			continue
		}
		out = append(out, p)
	}
	s.mu.Unlock()
	writeData(w, http.StatusOK, out)
}

func (s *Server) createProduct(w http.ResponseWriter, r *http.Request) {
	var in products.Product
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeErr(w, http.StatusBadRequest, "bad json")
		return
	}
	in.ID = uuid.NewString()
	in.VeterinarianID = currentUser(r)
	in.CreatedAt = time.Now()
	s.mu.Lock()
	s.products[in.ID] = in
	s.mu.Unlock()
	writeData(w, http.StatusCreated, in)
}

func (s *Server) updateProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	p, ok := s.products[id]
	s.mu.Unlock()
	if !ok {
		writeErr(w, http.StatusNotFound, "product not found")
		return
	}

	var in struct {
		Name     *string  `json:"name"`
		Price    *float64 `json:"price"`
		IsActive *bool    `json:"is_active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeErr(w, http.StatusBadRequest, "bad json")
		return
	}
	if in.Name != nil {
		p.Name = *in.Name
	}
	if in.Price != nil {
		p.Price = *in.Price
	}
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
	p.UpdatedAt = time.Now()

	s.mu.Lock()
	s.products[id] = p
	s.mu.Unlock()
	writeData(w, http.StatusOK, p)
}

func (s *Server) updateStock(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	p, ok := s.products[id]
	s.mu.Unlock()
	if !ok {
		writeErr(w, http.StatusNotFound, "product not found")
		return
	}

	var in struct {
		StockQuantity int `json:"stock_quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeErr(w, http.StatusBadRequest, "bad json")
		return
	}
	p.StockQuantity = in.StockQuantity
	p.UpdatedAt = time.Now()

	s.mu.Lock()
	s.products[id] = p
	s.mu.Unlock()
	writeData(w, http.StatusOK, p)
}

func (s *Server) deleteProduct(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	delete(s.products, chi.URLParam(r, "id"))
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func withUser(r *http.Request, userID string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), userKey, userID))
}

func currentUser(r *http.Request) string {
	id, _ := r.Context().Value(userKey).(string)
	return id
}

func writeData(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"data": v})
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
