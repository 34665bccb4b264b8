package profile

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"vet-clinic-manager/internal/auth"
	"vet-clinic-manager/internal/cache"
	"vet-clinic-manager/internal/platform/httpclient"
	"vet-clinic-manager/internal/platform/logger"
	"vet-clinic-manager/internal/platform/metrics"
	"vet-clinic-manager/internal/ports/backend"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNoProfile    = errors.New("no profile loaded")
)

const DefaultTTL = 5 * time.Minute

// Sessions es lo único que el store necesita saber de la sesión.
type Sessions interface {
	UserID() string
}

// SessionBus permite suscribirse a cambios de sesión.
type SessionBus interface {
	Subscribe(fn func(auth.Change)) (cancel func())
}

// Store cachea el perfil del usuario autenticado (read-through con TTL).
type Store struct {
	api      backend.Client
	sessions Sessions
	log      logger.Logger
	now      func() time.Time

	// Metrics es opcional; nil no registra nada.
	Metrics *metrics.Metrics

	mu      sync.Mutex
	profile *Profile
	meta    cache.Meta
	lastErr error
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

// BindTo suscribe el store al bus de sesión: cualquier cambio de identidad
// descarta el perfil cacheado. Devuelve el cancel de la suscripción.
func (s *Store) BindTo(bus SessionBus) (cancel func()) {
	return bus.Subscribe(func(ch auth.Change) {
		s.Clear()
	})
}

// Fetch devuelve el perfil, sirviendo cache si está fresco.
// (nil, nil) significa "autenticado pero sin perfil creado todavía":
// el backend respondió 404 y eso es un estado válido, no un error.
// En fallas de red/HTTP devuelve el perfil previo junto con el error.
func (s *Store) Fetch(ctx context.Context, opts cache.Options) (*Profile, error) {
	owner := s.sessions.UserID()

	s.mu.Lock()
	if !s.meta.NeedsFetch(opts, DefaultTTL, s.now(), owner) {
		p := s.profile
		s.mu.Unlock()
		s.Metrics.CacheLookup("profile", "hit")
		return p, nil
	}
	s.mu.Unlock()
	s.Metrics.CacheLookup("profile", metrics.MissOutcome(opts.Force))

	if owner == "" {
		return nil, s.fail(auth.ErrNoSession)
	}

	// El payload puede ser el perfil completo o solo {user_id} cuando el
	// backend todavía no materializó el perfil extendido.
	var payload struct {
		Profile
		UserID string `json:"user_id"`
	}
	if err := s.api.Get(ctx, "/profile", &payload); err != nil {
		if httpclient.IsStatus(err, 404) {
			// Sin perfil: cacheable igual, para no martillar el backend.
			s.mu.Lock()
			s.profile = nil
			s.meta.Stamp(s.now(), owner)
			s.lastErr = nil
			s.mu.Unlock()
			s.Metrics.Fetch("profile", "ok")
			return nil, nil
		}
		s.Metrics.Fetch("profile", "error")
		return s.Current(), s.fail(err)
	}

	p := payload.Profile
	if strings.TrimSpace(p.Name) == "" && strings.TrimSpace(payload.UserID) != "" {
		// Solo vino la referencia: buscar el perfil completo.
		if err := s.api.Get(ctx, "/users/"+payload.UserID, &p); err != nil {
			s.Metrics.Fetch("profile", "error")
			return s.Current(), s.fail(err)
		}
	}

	s.mu.Lock()
	s.profile = &p
	s.meta.Stamp(s.now(), owner)
	s.lastErr = nil
	s.mu.Unlock()
	s.Metrics.Fetch("profile", "ok")
	return &p, nil
}

type CreateInput struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
	Role  Role   `json:"role"`

	Address        string         `json:"address,omitempty"`
	ClinicAddress  string         `json:"clinic_address,omitempty"`
	AvailableHours []WorkingHours `json:"available_hours,omitempty"`
}

// Create registra el perfil. Escritura: siempre va a la red, el parche
// local recién se aplica con la respuesta del backend.
func (s *Store) Create(ctx context.Context, in CreateInput) (Profile, error) {
	if s.sessions.UserID() == "" {
		return Profile{}, s.fail(auth.ErrNoSession)
	}
	if strings.TrimSpace(in.Name) == "" || !in.Role.Valid() {
		return Profile{}, ErrInvalidInput
	}

	var created Profile
	if err := s.api.Post(ctx, "/users", in, &created); err != nil {
		return Profile{}, s.fail(err)
	}

	s.mu.Lock()
	s.profile = &created
	s.lastErr = nil
	s.mu.Unlock()
	return created, nil
}

type UpdateInput struct {
	Name  *string `json:"name,omitempty"`
	Phone *string `json:"phone,omitempty"`

	Address        *string         `json:"address,omitempty"`
	ClinicAddress  *string         `json:"clinic_address,omitempty"`
	AvailableHours *[]WorkingHours `json:"available_hours,omitempty"`
}

func (s *Store) Update(ctx context.Context, in UpdateInput) (Profile, error) {
	if s.sessions.UserID() == "" {
		return Profile{}, s.fail(auth.ErrNoSession)
	}

	s.mu.Lock()
	cur := s.profile
	s.mu.Unlock()
	if cur == nil {
		return Profile{}, ErrNoProfile
	}

	var updated Profile
	if err := s.api.Put(ctx, "/users/"+cur.ID, in, &updated); err != nil {
		return Profile{}, s.fail(err)
	}

	s.mu.Lock()
	s.profile = &updated
	s.lastErr = nil
	s.mu.Unlock()
	return updated, nil
}

// OwnerLabel busca la etiqueta pública de un dueño (para tags QR).
// Pass-through sin cache.
func (s *Store) OwnerLabel(ctx context.Context, ownerID string) (string, error) {
	if s.sessions.UserID() == "" {
		return "", s.fail(auth.ErrNoSession)
	}
	var out struct {
		Label string `json:"label"`
	}
	if err := s.api.Get(ctx, "/owners/"+ownerID+"/label", &out); err != nil {
		return "", s.fail(err)
	}
	return out.Label, nil
}

// Current devuelve el perfil cacheado sin tocar la red.
func (s *Store) Current() *Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile
}

// Loaded reporta si hubo un fetch exitoso (aunque el resultado fuera
// "sin perfil").
func (s *Store) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meta.Populated()
}

func (s *Store) HasProfile() bool {
	return s.Current() != nil
}

func (s *Store) Role() Role {
	if p := s.Current(); p != nil {
		return p.Role
	}
	return ""
}

func (s *Store) IsClient() bool       { return s.Role() == RoleClient }
func (s *Store) IsVeterinarian() bool { return s.Role() == RoleVeterinarian }
func (s *Store) IsAdmin() bool        { return s.Role() == RoleAdmin }

func (s *Store) DisplayName() string {
	p := s.Current()
	if p == nil || strings.TrimSpace(p.Name) == "" {
		return "User"
	}
	return p.Name
}

func (s *Store) RoleDisplayName() string {
	switch s.Role() {
	case RoleClient:
		return "Pet Owner"
	case RoleVeterinarian:
		return "Doctor"
	case RoleAdmin:
		return "Admin"
	default:
		return ""
	}
}

func (s *Store) FullDisplayName() string {
	role := s.RoleDisplayName()
	name := s.DisplayName()
	if role == "" {
		return name
	}
	return role + " " + name
}

// Err devuelve el último error registrado (lecturas lo dejan acá).
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Clear descarta perfil, frescura y error.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = nil
	s.meta.Reset()
	s.lastErr = nil
}

func (s *Store) fail(err error) error {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	s.log.Error("profile store", map[string]any{"err": err.Error()})
	return err
}
