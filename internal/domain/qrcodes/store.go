package qrcodes

import (
	"context"
	"errors"
	"strings"
	"sync"

	"vet-clinic-manager/internal/auth"
	"vet-clinic-manager/internal/platform/httpclient"
	"vet-clinic-manager/internal/platform/logger"
	"vet-clinic-manager/internal/platform/metrics"
	"vet-clinic-manager/internal/ports/backend"
)

var ErrInvalidInput = errors.New("invalid input")

type Sessions interface {
	UserID() string
}

type SessionBus interface {
	Subscribe(fn func(auth.Change)) (cancel func())
}

// Store cachea el QR por mascota, sin TTL: una vez cargado vale por toda
// la sesión. Semántica get-or-create: si el backend no tiene QR para la
// mascota, se genera ahí mismo.
type Store struct {
	api      backend.Client
	sessions Sessions
	log      logger.Logger

	Metrics *metrics.Metrics

	mu      sync.Mutex
	byPet   map[string]QRCodeRecord
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
		byPet:    map[string]QRCodeRecord{},
	}
}

func (s *Store) BindTo(bus SessionBus) (cancel func()) {
	return bus.Subscribe(func(ch auth.Change) {
		s.Clear()
	})
}

// GetOrCreateForPet devuelve el QR de la mascota: cache si está, si no
// lo busca, y si el backend responde 404 lo genera.
func (s *Store) GetOrCreateForPet(ctx context.Context, petID string) (QRCodeRecord, error) {
	petID = strings.TrimSpace(petID)
	if petID == "" {
		return QRCodeRecord{}, ErrInvalidInput
	}

	s.mu.Lock()
	if rec, ok := s.byPet[petID]; ok {
		s.mu.Unlock()
		s.Metrics.CacheLookup("qr_codes", "hit")
		return rec, nil
	}
	s.mu.Unlock()
	s.Metrics.CacheLookup("qr_codes", "miss")

	if s.sessions.UserID() == "" {
		return QRCodeRecord{}, s.fail(auth.ErrNoSession)
	}

	rec, err := s.fetch(ctx, petID)
	if err != nil {
		if !httpclient.IsStatus(err, 404) {
			s.Metrics.Fetch("qr_codes", "error")
			return QRCodeRecord{}, s.fail(err)
		}
		// Sin QR todavía: generar.
		rec, err = s.generate(ctx, petID)
		if err != nil {
			s.Metrics.Fetch("qr_codes", "error")
			return QRCodeRecord{}, s.fail(err)
		}
	}

	s.mu.Lock()
	s.byPet[petID] = rec
	s.lastErr = nil
	s.mu.Unlock()
	s.Metrics.Fetch("qr_codes", "ok")
	return rec, nil
}

func (s *Store) fetch(ctx context.Context, petID string) (QRCodeRecord, error) {
	var rec QRCodeRecord
	err := s.api.Get(ctx, "/pets/"+petID+"/qr-code", &rec)
	return rec, err
}

func (s *Store) generate(ctx context.Context, petID string) (QRCodeRecord, error) {
	var rec QRCodeRecord
	err := s.api.Post(ctx, "/pets/"+petID+"/qr-code", nil, &rec)
	return rec, err
}

// Cached devuelve el QR cacheado para una mascota, si existe.
func (s *Store) Cached(petID string) (QRCodeRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byPet[petID]
	return rec, ok
}

func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byPet = map[string]QRCodeRecord{}
	s.lastErr = nil
}

func (s *Store) fail(err error) error {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	s.log.Error("qr codes store", map[string]any{"err": err.Error()})
	return err
}
