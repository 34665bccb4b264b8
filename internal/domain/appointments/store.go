package appointments

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"vet-clinic-manager/internal/auth"
	"vet-clinic-manager/internal/cache"
	"vet-clinic-manager/internal/platform/logger"
	"vet-clinic-manager/internal/platform/metrics"
	"vet-clinic-manager/internal/ports/backend"
)

var ErrInvalidInput = errors.New("invalid input")

const DefaultTTL = 60 * time.Second

type Sessions interface {
	UserID() string
}

type SessionBus interface {
	Subscribe(fn func(auth.Change)) (cancel func())
}

// Store cachea los turnos como una colección plana (las vistas re-ordenan).
type Store struct {
	api      backend.Client
	sessions Sessions
	log      logger.Logger
	now      func() time.Time

	Metrics *metrics.Metrics

	mu           sync.Mutex
	appointments []Appointment
	meta         cache.Meta
	lastErr      error
}

func New(api backend.Client, sessions Sessions, log logger.Logger) *Store {
	if log == nil {
		log = logger.Nop()
	}
	return &Store{
		api:      api,
		sessions: sessions,
		log:      log,
		now:      time.Now,
	}
}

func (s *Store) BindTo(bus SessionBus) (cancel func()) {
	return bus.Subscribe(func(ch auth.Change) {
		s.Clear()
	})
}

// Fetch trae los turnos del usuario actual, sirviendo cache dentro del TTL.
// En fallas deja el cache previo intacto y lo devuelve junto con el error.
func (s *Store) Fetch(ctx context.Context, opts cache.Options) ([]Appointment, error) {
	owner := s.sessions.UserID()

	s.mu.Lock()
	if !s.meta.NeedsFetch(opts, DefaultTTL, s.now(), owner) {
		out := append([]Appointment(nil), s.appointments...)
		s.mu.Unlock()
		s.Metrics.CacheLookup("appointments", "hit")
		return out, nil
	}
	s.mu.Unlock()
	s.Metrics.CacheLookup("appointments", metrics.MissOutcome(opts.Force))

	if owner == "" {
		return nil, s.fail(auth.ErrNoSession)
	}

	var fetched []Appointment
	if err := s.api.Get(ctx, "/appointments", &fetched); err != nil {
		s.Metrics.Fetch("appointments", "error")
		return s.All(), s.fail(err)
	}

	s.mu.Lock()
	s.appointments = fetched
	s.meta.Stamp(s.now(), owner)
	s.lastErr = nil
	s.mu.Unlock()
	s.Metrics.Fetch("appointments", "ok")
	return append([]Appointment(nil), fetched...), nil
}

// Create reserva un turno y lo agrega a la colección local.
func (s *Store) Create(ctx context.Context, in CreateInput) (Appointment, error) {
	if s.sessions.UserID() == "" {
		return Appointment{}, s.fail(auth.ErrNoSession)
	}
	if strings.TrimSpace(in.VeterinarianID) == "" || strings.TrimSpace(in.PetID) == "" || in.AppointmentDate.IsZero() {
		return Appointment{}, ErrInvalidInput
	}

	var created Appointment
	if err := s.api.Post(ctx, "/appointments", in, &created); err != nil {
		return Appointment{}, s.fail(err)
	}

	s.mu.Lock()
	s.appointments = append(s.appointments, created)
	s.lastErr = nil
	s.mu.Unlock()
	return created, nil
}

// Cancel marca el turno como cancelado. El parche local recién se aplica
// cuando el backend confirmó; nada de optimismo antes del 2xx.
func (s *Store) Cancel(ctx context.Context, id string) (Appointment, error) {
	return s.put(ctx, id, map[string]any{"status": StatusCancelled})
}

// Reschedule mueve el turno a una nueva fecha.
func (s *Store) Reschedule(ctx context.Context, id string, newDate time.Time) (Appointment, error) {
	if newDate.IsZero() {
		return Appointment{}, ErrInvalidInput
	}
	return s.put(ctx, id, map[string]any{
		"status":           StatusRescheduled,
		"appointment_date": newDate,
	})
}

func (s *Store) put(ctx context.Context, id string, body map[string]any) (Appointment, error) {
	if s.sessions.UserID() == "" {
		return Appointment{}, s.fail(auth.ErrNoSession)
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return Appointment{}, ErrInvalidInput
	}

	var updated Appointment
	if err := s.api.Put(ctx, "/appointments/"+id, body, &updated); err != nil {
		return Appointment{}, s.fail(err)
	}

	s.mu.Lock()
	for i := range s.appointments {
		if s.appointments[i].ID == id {
			s.appointments[i] = updated
			break
		}
	}
	s.lastErr = nil
	s.mu.Unlock()
	return updated, nil
}

// Delete elimina el turno en el backend y lo remueve localmente.
func (s *Store) Delete(ctx context.Context, id string) error {
	if s.sessions.UserID() == "" {
		return s.fail(auth.ErrNoSession)
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrInvalidInput
	}

	if err := s.api.Delete(ctx, "/appointments/"+id); err != nil {
		return s.fail(err)
	}

	s.mu.Lock()
	kept := s.appointments[:0]
	for _, a := range s.appointments {
		if a.ID != id {
			kept = append(kept, a)
		}
	}
	s.appointments = kept
	s.lastErr = nil
	s.mu.Unlock()
	return nil
}

// AvailableSlots consulta disponibilidad de un vet para una fecha
// (YYYY-MM-DD). Pass-through sin cache: la disponibilidad envejece mal.
func (s *Store) AvailableSlots(ctx context.Context, veterinarianID, date string) ([]TimeSlot, error) {
	if s.sessions.UserID() == "" {
		return nil, s.fail(auth.ErrNoSession)
	}
	if strings.TrimSpace(veterinarianID) == "" || strings.TrimSpace(date) == "" {
		return nil, ErrInvalidInput
	}

	path := fmt.Sprintf("/veterinarians/%s/availability?date=%s",
		url.PathEscape(veterinarianID), url.QueryEscape(date))

	var slots []TimeSlot
	if err := s.api.Get(ctx, path, &slots); err != nil {
		return nil, s.fail(err)
	}
	return slots, nil
}

// PublishAvailability publica franjas de atención del vet autenticado.
func (s *Store) PublishAvailability(ctx context.Context, veterinarianID string, in AvailabilityInput) error {
	if s.sessions.UserID() == "" {
		return s.fail(auth.ErrNoSession)
	}
	if strings.TrimSpace(veterinarianID) == "" || strings.TrimSpace(in.Date) == "" {
		return ErrInvalidInput
	}
	if err := s.api.Post(ctx, "/veterinarians/"+url.PathEscape(veterinarianID)+"/availability", in, nil); err != nil {
		return s.fail(err)
	}
	return nil
}

// ListVeterinarians lista vets para la UI de reserva. Sin cache.
func (s *Store) ListVeterinarians(ctx context.Context, limit, offset int) ([]VeterinarianListItem, error) {
	if s.sessions.UserID() == "" {
		return nil, s.fail(auth.ErrNoSession)
	}
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	var vets []VeterinarianListItem
	path := fmt.Sprintf("/veterinarians?limit=%d&offset=%d", limit, offset)
	if err := s.api.Get(ctx, path, &vets); err != nil {
		return nil, s.fail(err)
	}
	return vets, nil
}

// All devuelve la colección cacheada sin tocar la red.
func (s *Store) All() []Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Appointment(nil), s.appointments...)
}

// PetIDs expone los pet ids presentes en los turnos cacheados.
// Es el accessor que usa el store de mascotas para derivar el caseload
// de un veterinario (lectura cruzada vía accessor, nunca al estado interno).
func (s *Store) PetIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := map[string]bool{}
	out := make([]string, 0, len(s.appointments))
	for _, a := range s.appointments {
		if a.PetID == "" || seen[a.PetID] {
			continue
		}
		seen[a.PetID] = true
		out = append(out, a.PetID)
	}
	return out
}

func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appointments = nil
	s.meta.Reset()
	s.lastErr = nil
}

func (s *Store) fail(err error) error {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	s.log.Error("appointments store", map[string]any{"err": err.Error()})
	return err
}
