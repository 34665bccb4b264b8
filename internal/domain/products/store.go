package products

import (
	"context"
	"errors"
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

// Filter acota un fetch de catálogo. El cache se indexa por la tupla
// completa: dos filtros distintos viven en buckets distintos y no se
// pisan entre sí (antes compartían una sola colección y el último fetch
// en completar sobreescribía al resto).
type Filter struct {
	VeterinarianID string
	Category       string
	Search         string
}

// Key serializa la tupla de filtro como clave de bucket.
func (f Filter) Key() string {
	return f.VeterinarianID + "|" + f.Category + "|" + f.Search
}

func (f Filter) query() string {
	q := url.Values{}
	if f.VeterinarianID != "" {
		q.Set("veterinarian_id", f.VeterinarianID)
	}
	if f.Category != "" {
		q.Set("category", f.Category)
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// Store cachea el catálogo por tupla de filtro, con TTL por bucket.
type Store struct {
	api      backend.Client
	sessions Sessions
	log      logger.Logger
	now      func() time.Time

	Metrics *metrics.Metrics

	mu       sync.Mutex
	byFilter map[string][]Product
	metas    *cache.Keyed
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
		byFilter: map[string][]Product{},
		metas:    cache.NewKeyed(),
	}
}

func (s *Store) BindTo(bus SessionBus) (cancel func()) {
	return bus.Subscribe(func(ch auth.Change) {
		s.Clear()
	})
}

// Fetch trae el catálogo para un filtro, sirviendo su bucket dentro del
// TTL. En fallas devuelve el bucket previo junto con el error.
func (s *Store) Fetch(ctx context.Context, f Filter, opts cache.Options) ([]Product, error) {
	owner := s.sessions.UserID()
	key := f.Key()

	s.mu.Lock()
	if !s.metas.NeedsFetch(key, opts, DefaultTTL, s.now(), owner) {
		out := append([]Product(nil), s.byFilter[key]...)
		s.mu.Unlock()
		s.Metrics.CacheLookup("products", "hit")
		return out, nil
	}
	s.mu.Unlock()
	s.Metrics.CacheLookup("products", metrics.MissOutcome(opts.Force))

	if owner == "" {
		return nil, s.fail(auth.ErrNoSession)
	}

	var fetched []Product
	if err := s.api.Get(ctx, "/products"+f.query(), &fetched); err != nil {
		s.Metrics.Fetch("products", "error")
		return s.Cached(f), s.fail(err)
	}

	s.mu.Lock()
	s.byFilter[key] = fetched
	s.metas.Stamp(key, s.now(), owner)
	s.lastErr = nil
	s.mu.Unlock()
	s.Metrics.Fetch("products", "ok")
	return append([]Product(nil), fetched...), nil
}

// Create publica un producto del vet autenticado y lo suma a los buckets
// cacheados donde aplique (sin refetch completo).
func (s *Store) Create(ctx context.Context, in CreateInput) (Product, error) {
	if s.sessions.UserID() == "" {
		return Product{}, s.fail(auth.ErrNoSession)
	}
	if strings.TrimSpace(in.Name) == "" || in.Price < 0 {
		return Product{}, ErrInvalidInput
	}

	var created Product
	if err := s.api.Post(ctx, "/products", in, &created); err != nil {
		return Product{}, s.fail(err)
	}

	s.mu.Lock()
	for key, bucket := range s.byFilter {
		if bucketMatches(key, created) {
			s.byFilter[key] = append(bucket, created)
		}
	}
	s.lastErr = nil
	s.mu.Unlock()
	return created, nil
}

// Update parchea el producto en todos los buckets que lo contengan.
func (s *Store) Update(ctx context.Context, productID string, in UpdateInput) (Product, error) {
	if s.sessions.UserID() == "" {
		return Product{}, s.fail(auth.ErrNoSession)
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return Product{}, ErrInvalidInput
	}

	var updated Product
	if err := s.api.Put(ctx, "/products/"+productID, in, &updated); err != nil {
		return Product{}, s.fail(err)
	}

	s.patch(updated)
	return updated, nil
}

// UpdateStock ajusta stock vía el endpoint dedicado.
func (s *Store) UpdateStock(ctx context.Context, productID string, quantity int) (Product, error) {
	if s.sessions.UserID() == "" {
		return Product{}, s.fail(auth.ErrNoSession)
	}
	productID = strings.TrimSpace(productID)
	if productID == "" || quantity < 0 {
		return Product{}, ErrInvalidInput
	}

	in := map[string]int{"stock_quantity": quantity}
	var updated Product
	if err := s.api.Put(ctx, "/products/"+productID+"/stock", in, &updated); err != nil {
		return Product{}, s.fail(err)
	}

	s.patch(updated)
	return updated, nil
}

// Delete borra el producto y lo saca de todos los buckets.
func (s *Store) Delete(ctx context.Context, productID string) error {
	if s.sessions.UserID() == "" {
		return s.fail(auth.ErrNoSession)
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return ErrInvalidInput
	}

	if err := s.api.Delete(ctx, "/products/"+productID); err != nil {
		return s.fail(err)
	}

	s.mu.Lock()
	for key, bucket := range s.byFilter {
		kept := bucket[:0]
		for _, p := range bucket {
			if p.ID != productID {
				kept = append(kept, p)
			}
		}
		s.byFilter[key] = kept
	}
	s.lastErr = nil
	s.mu.Unlock()
	return nil
}

// Cached devuelve el bucket de un filtro sin tocar la red.
func (s *Store) Cached(f Filter) []Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Product(nil), s.byFilter[f.Key()]...)
}

// Active filtra los productos activos del bucket de un filtro.
func (s *Store) Active(f Filter) []Product {
	all := s.Cached(f)
	out := make([]Product, 0, len(all))
	for _, p := range all {
		if p.IsActive {
			out = append(out, p)
		}
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
	s.byFilter = map[string][]Product{}
	s.metas.ResetAll()
	s.lastErr = nil
}

func (s *Store) patch(updated Product) {
	s.mu.Lock()
	for _, bucket := range s.byFilter {
		for i := range bucket {
			if bucket[i].ID == updated.ID {
				bucket[i] = updated
			}
		}
	}
	s.lastErr = nil
	s.mu.Unlock()
}

// bucketMatches decide si un producto recién creado pertenece a un bucket.
// Conservador: solo agrega al bucket sin filtro y al del vet dueño sin
// category/search (los demás se refrescarán por TTL).
func bucketMatches(key string, p Product) bool {
	if key == (Filter{}).Key() {
		return true
	}
	return key == (Filter{VeterinarianID: p.VeterinarianID}).Key()
}

func (s *Store) fail(err error) error {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	s.log.Error("products store", map[string]any{"err": err.Error()})
	return err
}
