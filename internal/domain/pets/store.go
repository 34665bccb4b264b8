package pets

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

var ErrInvalidInput = errors.New("invalid input")

const DefaultTTL = 2 * time.Minute

type Sessions interface {
	UserID() string
}

type SessionBus interface {
	Subscribe(fn func(auth.Change)) (cancel func())
}

// AppointmentIndex es el accessor hacia el store de turnos: los pet ids
// visibles para el usuario actual. El caseload de un veterinario se deriva
// de ahí, no de un endpoint propio.
type AppointmentIndex interface {
	PetIDs() []string
}

// Store cachea mascotas de tres maneras: la lista propia del dueño, un
// lookup por id (acceso cruzado, p.ej. un vet mirando un paciente) y el
// caseload derivado de turnos. Cada una con su frescura independiente.
type Store struct {
	api      backend.Client
	sessions Sessions
	log      logger.Logger
	now      func() time.Time

	Metrics *metrics.Metrics

	mu       sync.Mutex
	owned    []Pet
	meta     cache.Meta
	byID     map[string]Pet
	byIDMeta *cache.Keyed
	lastErr  error
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
		byID:     map[string]Pet{},
		byIDMeta: cache.NewKeyed(),
	}
}

// BindTo limpia todo ante cualquier cambio de sesión.
func (s *Store) BindTo(bus SessionBus) (cancel func()) {
	return bus.Subscribe(func(ch auth.Change) {
		s.Clear()
	})
}

// Fetch trae la lista de mascotas del usuario actual, sirviendo cache
// dentro del TTL. 404 del backend significa "sin perfil todavía": lista
// vacía, cacheada igual. En fallas devuelve la lista previa con el error.
func (s *Store) Fetch(ctx context.Context, opts cache.Options) ([]Pet, error) {
	owner := s.sessions.UserID()

	s.mu.Lock()
	if !s.meta.NeedsFetch(opts, DefaultTTL, s.now(), owner) {
		out := append([]Pet(nil), s.owned...)
		s.mu.Unlock()
		s.Metrics.CacheLookup("pets", "hit")
		return out, nil
	}
	s.mu.Unlock()
	s.Metrics.CacheLookup("pets", metrics.MissOutcome(opts.Force))

	if owner == "" {
		return nil, s.fail(auth.ErrNoSession)
	}

	var fetched []Pet
	if err := s.api.Get(ctx, "/clients/"+owner+"/pets", &fetched); err != nil {
		if !httpclient.IsStatus(err, 404) {
			s.Metrics.Fetch("pets", "error")
			return s.Owned(), s.fail(err)
		}
		fetched = []Pet{}
	}

	s.mu.Lock()
	s.owned = fetched
	s.meta.Stamp(s.now(), owner)
	s.lastErr = nil
	s.mu.Unlock()
	s.Metrics.Fetch("pets", "ok")
	return append([]Pet(nil), fetched...), nil
}

// Get busca una mascota por id con cache por clave (TTL propio por pet).
// Lectura con error re-devuelto porque el caller suele necesitar saber si
// el pet existe; el cache previo no se toca.
func (s *Store) Get(ctx context.Context, petID string, opts cache.Options) (Pet, error) {
	petID = strings.TrimSpace(petID)
	if petID == "" {
		return Pet{}, ErrInvalidInput
	}
	owner := s.sessions.UserID()

	s.mu.Lock()
	if !s.byIDMeta.NeedsFetch(petID, opts, DefaultTTL, s.now(), owner) {
		p := s.byID[petID]
		s.mu.Unlock()
		s.Metrics.CacheLookup("pets_by_id", "hit")
		return p, nil
	}
	s.mu.Unlock()
	s.Metrics.CacheLookup("pets_by_id", metrics.MissOutcome(opts.Force))

	if owner == "" {
		return Pet{}, s.fail(auth.ErrNoSession)
	}

	var p Pet
	if err := s.api.Get(ctx, "/pets/"+petID, &p); err != nil {
		s.Metrics.Fetch("pets_by_id", "error")
		return Pet{}, s.fail(err)
	}

	s.mu.Lock()
	s.byID[petID] = p
	s.byIDMeta.Stamp(petID, s.now(), owner)
	s.lastErr = nil
	s.mu.Unlock()
	s.Metrics.Fetch("pets_by_id", "ok")
	return p, nil
}

// Create registra una mascota y la agrega a la lista local con el id que
// devolvió el backend. Nunca dispara un refetch completo.
func (s *Store) Create(ctx context.Context, in CreateInput) (Pet, error) {
	if s.sessions.UserID() == "" {
		return Pet{}, s.fail(auth.ErrNoSession)
	}
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Type) == "" {
		return Pet{}, ErrInvalidInput
	}

	var created Pet
	if err := s.api.Post(ctx, "/pets", in, &created); err != nil {
		return Pet{}, s.fail(err)
	}

	s.mu.Lock()
	s.owned = append(s.owned, created)
	s.byID[created.ID] = created
	s.byIDMeta.Stamp(created.ID, s.now(), s.sessions.UserID())
	s.lastErr = nil
	s.mu.Unlock()
	return created, nil
}

// Update parchea el registro afectado en lista y lookup.
func (s *Store) Update(ctx context.Context, petID string, in UpdateInput) (Pet, error) {
	if s.sessions.UserID() == "" {
		return Pet{}, s.fail(auth.ErrNoSession)
	}
	petID = strings.TrimSpace(petID)
	if petID == "" {
		return Pet{}, ErrInvalidInput
	}

	var updated Pet
	if err := s.api.Put(ctx, "/pets/"+petID, in, &updated); err != nil {
		return Pet{}, s.fail(err)
	}

	s.mu.Lock()
	for i := range s.owned {
		if s.owned[i].ID == petID {
			s.owned[i] = updated
			break
		}
	}
	if _, ok := s.byID[petID]; ok {
		s.byID[petID] = updated
	}
	s.lastErr = nil
	s.mu.Unlock()
	return updated, nil
}

// Delete borra en el backend y remueve el registro local.
func (s *Store) Delete(ctx context.Context, petID string) error {
	if s.sessions.UserID() == "" {
		return s.fail(auth.ErrNoSession)
	}
	petID = strings.TrimSpace(petID)
	if petID == "" {
		return ErrInvalidInput
	}

	if err := s.api.Delete(ctx, "/pets/"+petID); err != nil {
		return s.fail(err)
	}

	s.mu.Lock()
	kept := s.owned[:0]
	for _, p := range s.owned {
		if p.ID != petID {
			kept = append(kept, p)
		}
	}
	s.owned = kept
	delete(s.byID, petID)
	s.byIDMeta.Reset(petID)
	s.lastErr = nil
	s.mu.Unlock()
	return nil
}

// Patients arma el caseload del veterinario: pet ids que aparecen en sus
// turnos, resueltos vía el lookup cacheado. Un pet que falla se saltea
// (lectura degradada, no corta el resto).
func (s *Store) Patients(ctx context.Context, idx AppointmentIndex) []Pet {
	seen := map[string]bool{}
	out := make([]Pet, 0)
	for _, id := range idx.PetIDs() {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		p, err := s.Get(ctx, id, cache.Options{})
		if err != nil {
			s.log.Warn("patients: skipping pet", map[string]any{"pet_id": id, "err": err.Error()})
			continue
		}
		out = append(out, p)
	}
	return out
}

// Owned devuelve la lista cacheada sin tocar la red.
func (s *Store) Owned() []Pet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Pet(nil), s.owned...)
}

func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.owned)
}

func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owned = nil
	s.meta.Reset()
	s.byID = map[string]Pet{}
	s.byIDMeta.ResetAll()
	s.lastErr = nil
}

func (s *Store) fail(err error) error {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	s.log.Error("pets store", map[string]any{"err": err.Error()})
	return err
}
