package medicalrecords

import (
	"context"
	"errors"
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

const DefaultTTL = 2 * time.Minute

type Sessions interface {
	UserID() string
}

type SessionBus interface {
	Subscribe(fn func(auth.Change)) (cancel func())
}

// Store cachea historiales clínicos por mascota. Cada bucket (pet id)
// tiene su propia frescura: invalidar o refrescar uno jamás toca otro.
type Store struct {
	api      backend.Client
	sessions Sessions
	log      logger.Logger
	now      func() time.Time

	Metrics *metrics.Metrics

	mu      sync.Mutex
	byPet   map[string][]MedicalRecord
	metas   *cache.Keyed
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
		byPet:    map[string][]MedicalRecord{},
		metas:    cache.NewKeyed(),
	}
}

func (s *Store) BindTo(bus SessionBus) (cancel func()) {
	return bus.Subscribe(func(ch auth.Change) {
		s.Clear()
	})
}

// FetchForPet trae el historial de una mascota, sirviendo el bucket
// cacheado dentro de su TTL. En fallas devuelve el bucket previo con el
// error; la frescura de los demás buckets no se toca.
func (s *Store) FetchForPet(ctx context.Context, petID string, opts cache.Options) ([]MedicalRecord, error) {
	petID = strings.TrimSpace(petID)
	if petID == "" {
		return nil, ErrInvalidInput
	}
	owner := s.sessions.UserID()

	s.mu.Lock()
	if !s.metas.NeedsFetch(petID, opts, DefaultTTL, s.now(), owner) {
		out := append([]MedicalRecord(nil), s.byPet[petID]...)
		s.mu.Unlock()
		s.Metrics.CacheLookup("medical_records", "hit")
		return out, nil
	}
	s.mu.Unlock()
	s.Metrics.CacheLookup("medical_records", metrics.MissOutcome(opts.Force))

	if owner == "" {
		return nil, s.fail(auth.ErrNoSession)
	}

	var records []MedicalRecord
	if err := s.api.Get(ctx, "/pets/"+petID+"/medical-records", &records); err != nil {
		s.Metrics.Fetch("medical_records", "error")
		return s.CachedForPet(petID), s.fail(err)
	}

	s.mu.Lock()
	s.byPet[petID] = records
	s.metas.Stamp(petID, s.now(), owner)
	s.lastErr = nil
	s.mu.Unlock()
	s.Metrics.Fetch("medical_records", "ok")
	return append([]MedicalRecord(nil), records...), nil
}

// Create registra una visita y la antepone al bucket de esa mascota.
func (s *Store) Create(ctx context.Context, petID string, in CreateInput) (MedicalRecord, error) {
	if s.sessions.UserID() == "" {
		return MedicalRecord{}, s.fail(auth.ErrNoSession)
	}
	petID = strings.TrimSpace(petID)
	if petID == "" || strings.TrimSpace(in.ReasonForVisit) == "" {
		return MedicalRecord{}, ErrInvalidInput
	}

	var created MedicalRecord
	if err := s.api.Post(ctx, "/pets/"+petID+"/medical-records", in, &created); err != nil {
		return MedicalRecord{}, s.fail(err)
	}

	s.mu.Lock()
	s.byPet[petID] = append([]MedicalRecord{created}, s.byPet[petID]...)
	s.lastErr = nil
	s.mu.Unlock()
	return created, nil
}

// Update reemplaza el registro dentro del bucket de su mascota (el pet id
// sale de la respuesta del backend).
func (s *Store) Update(ctx context.Context, recordID string, in UpdateInput) (MedicalRecord, error) {
	if s.sessions.UserID() == "" {
		return MedicalRecord{}, s.fail(auth.ErrNoSession)
	}
	recordID = strings.TrimSpace(recordID)
	if recordID == "" {
		return MedicalRecord{}, ErrInvalidInput
	}

	var updated MedicalRecord
	if err := s.api.Put(ctx, "/medical-records/"+recordID, in, &updated); err != nil {
		return MedicalRecord{}, s.fail(err)
	}

	s.mu.Lock()
	if bucket, ok := s.byPet[updated.PetID]; ok {
		for i := range bucket {
			if bucket[i].ID == updated.ID {
				bucket[i] = updated
				break
			}
		}
	}
	s.lastErr = nil
	s.mu.Unlock()
	return updated, nil
}

// Delete borra el registro y lo remueve del bucket indicado. Re-estampa
// la frescura de ese bucket (quedó consistente con el backend recién).
func (s *Store) Delete(ctx context.Context, recordID, petID string) error {
	if s.sessions.UserID() == "" {
		return s.fail(auth.ErrNoSession)
	}
	recordID = strings.TrimSpace(recordID)
	petID = strings.TrimSpace(petID)
	if recordID == "" || petID == "" {
		return ErrInvalidInput
	}

	if err := s.api.Delete(ctx, "/medical-records/"+recordID); err != nil {
		return s.fail(err)
	}

	s.mu.Lock()
	bucket := s.byPet[petID]
	kept := bucket[:0]
	for _, r := range bucket {
		if r.ID != recordID {
			kept = append(kept, r)
		}
	}
	s.byPet[petID] = kept
	s.metas.Stamp(petID, s.now(), s.sessions.UserID())
	s.lastErr = nil
	s.mu.Unlock()
	return nil
}

// CachedForPet devuelve el bucket cacheado, o vacío si nunca se cargó.
func (s *Store) CachedForPet(petID string) []MedicalRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]MedicalRecord(nil), s.byPet[petID]...)
}

// LastFetchedAt expone la frescura de un bucket (para tests/diagnóstico).
func (s *Store) LastFetchedAt(petID string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metas.Meta(petID).LastFetchedAt()
}

func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byPet = map[string][]MedicalRecord{}
	s.metas.ResetAll()
	s.lastErr = nil
}

func (s *Store) fail(err error) error {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	s.log.Error("medical records store", map[string]any{"err": err.Error()})
	return err
}
