package orders

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

const DefaultTTL = 60 * time.Second

type Sessions interface {
	UserID() string
}

type SessionBus interface {
	Subscribe(fn func(auth.Change)) (cancel func())
}

// Store cachea las órdenes como colección plana (TTL corto) y las líneas
// por orden, cargadas lazy y retenidas por el resto de la sesión.
type Store struct {
	api      backend.Client
	sessions Sessions
	log      logger.Logger
	now      func() time.Time

	Metrics *metrics.Metrics

	mu        sync.Mutex
	orders    []Order
	meta      cache.Meta
	itemsByID map[string][]OrderItem
	lastErr   error
}

func New(api backend.Client, sessions Sessions, log logger.Logger) *Store {
	if log == nil {
		log = logger.Nop()
	}
	return &Store{
		api:       api,
		sessions:  sessions,
		log:       log,
		now:       time.Now,
		itemsByID: map[string][]OrderItem{},
	}
}

func (s *Store) BindTo(bus SessionBus) (cancel func()) {
	return bus.Subscribe(func(ch auth.Change) {
		s.Clear()
	})
}

// Fetch trae las órdenes visibles para el usuario actual.
func (s *Store) Fetch(ctx context.Context, opts cache.Options) ([]Order, error) {
	owner := s.sessions.UserID()

	s.mu.Lock()
	if !s.meta.NeedsFetch(opts, DefaultTTL, s.now(), owner) {
		out := append([]Order(nil), s.orders...)
		s.mu.Unlock()
		s.Metrics.CacheLookup("orders", "hit")
		return out, nil
	}
	s.mu.Unlock()
	s.Metrics.CacheLookup("orders", metrics.MissOutcome(opts.Force))

	if owner == "" {
		return nil, s.fail(auth.ErrNoSession)
	}

	var fetched []Order
	if err := s.api.Get(ctx, "/orders", &fetched); err != nil {
		s.Metrics.Fetch("orders", "error")
		return s.All(), s.fail(err)
	}

	s.mu.Lock()
	s.orders = fetched
	s.meta.Stamp(s.now(), owner)
	s.lastErr = nil
	s.mu.Unlock()
	s.Metrics.Fetch("orders", "ok")
	return append([]Order(nil), fetched...), nil
}

// FetchItems trae las líneas de una orden. Una vez cargadas quedan
// cacheadas sin TTL: las órdenes históricas no cambian.
func (s *Store) FetchItems(ctx context.Context, orderID string) ([]OrderItem, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, ErrInvalidInput
	}
	if s.sessions.UserID() == "" {
		return nil, s.fail(auth.ErrNoSession)
	}

	s.mu.Lock()
	if items, ok := s.itemsByID[orderID]; ok {
		out := append([]OrderItem(nil), items...)
		s.mu.Unlock()
		s.Metrics.CacheLookup("order_items", "hit")
		return out, nil
	}
	s.mu.Unlock()
	s.Metrics.CacheLookup("order_items", "miss")

	// El detalle de la orden viene con items embebidos.
	var detail struct {
		Order
		Items []OrderItem `json:"items"`
	}
	if err := s.api.Get(ctx, "/orders/"+orderID, &detail); err != nil {
		s.Metrics.Fetch("order_items", "error")
		return nil, s.fail(err)
	}

	items := detail.Items
	if items == nil {
		items = []OrderItem{}
	}

	s.mu.Lock()
	s.itemsByID[orderID] = items
	s.lastErr = nil
	s.mu.Unlock()
	s.Metrics.Fetch("order_items", "ok")
	return append([]OrderItem(nil), items...), nil
}

// RevenueForMonth suma total_amount de las órdenes creadas en ese mes
// calendario (hora local), excluyendo canceladas.
func (s *Store) RevenueForMonth(ref time.Time) float64 {
	y, m, _ := ref.Date()

	s.mu.Lock()
	defer s.mu.Unlock()

	var sum float64
	for _, o := range s.orders {
		if o.Status == StatusCancelled {
			continue
		}
		oy, om, _ := o.CreatedAt.In(ref.Location()).Date()
		if oy == y && om == m {
			sum += o.TotalAmount
		}
	}
	return sum
}

// MonthlyRevenue es RevenueForMonth sobre el mes en curso.
func (s *Store) MonthlyRevenue() float64 {
	return s.RevenueForMonth(s.now())
}

// AggregateItemsBetween acumula cantidad e ingreso por producto para las
// órdenes no canceladas creadas en [start, end]. Las líneas se cargan lazy
// (y quedan cacheadas); una orden cuyo detalle falla se saltea.
func (s *Store) AggregateItemsBetween(ctx context.Context, start, end time.Time) map[string]ProductSales {
	s.mu.Lock()
	relevant := make([]Order, 0)
	for _, o := range s.orders {
		if o.Status == StatusCancelled {
			continue
		}
		if o.CreatedAt.Before(start) || o.CreatedAt.After(end) {
			continue
		}
		relevant = append(relevant, o)
	}
	s.mu.Unlock()

	totals := map[string]ProductSales{}
	for _, o := range relevant {
		items, err := s.FetchItems(ctx, o.ID)
		if err != nil {
			s.log.Warn("aggregate: skipping order", map[string]any{"order_id": o.ID, "err": err.Error()})
			continue
		}
		for _, it := range items {
			bucket := totals[it.ProductID]
			bucket.Quantity += it.Quantity
			bucket.Revenue += it.TotalPrice
			totals[it.ProductID] = bucket
		}
	}
	return totals
}

// All devuelve las órdenes cacheadas sin tocar la red.
func (s *Store) All() []Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Order(nil), s.orders...)
}

func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = nil
	s.meta.Reset()
	s.itemsByID = map[string][]OrderItem{}
	s.lastErr = nil
}

func (s *Store) fail(err error) error {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	s.log.Error("orders store", map[string]any{"err": err.Error()})
	return err
}
