package cart

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"vet-clinic-manager/internal/platform/logger"
)

// Store es el carrito del dueño de mascota. Independiente del estado de
// autenticación: vive en storage durable, no en la sesión.
//
// Cada mutación persiste write-through. JSON corrupto en storage degrada
// a carrito vacío en vez de propagar el error de parseo.
type Store struct {
	storage Storage
	log     logger.Logger

	mu    sync.Mutex
	items []Item
}

func New(ctx context.Context, storage Storage, log logger.Logger) *Store {
	if log == nil {
		log = logger.Nop()
	}
	s := &Store{storage: storage, log: log}
	s.load(ctx)
	return s
}

func (s *Store) load(ctx context.Context) {
	raw, ok, err := s.storage.Get(ctx, StorageKey)
	if err != nil {
		s.log.Warn("cart: load failed, starting empty", map[string]any{"err": err.Error()})
		return
	}
	if !ok {
		return
	}

	var items []Item
	if err := json.Unmarshal(raw, &items); err != nil {
		s.log.Warn("cart: corrupt stored data, starting empty", map[string]any{"err": err.Error()})
		return
	}
	s.items = items
}

// Add suma cantidad a una línea existente o agrega una nueva.
// qty <= 0 se normaliza a 1.
func (s *Store) Add(ctx context.Context, item Item) error {
	if strings.TrimSpace(item.ProductID) == "" {
		return nil
	}
	if item.Quantity <= 0 {
		item.Quantity = 1
	}

	s.mu.Lock()
	found := false
	for i := range s.items {
		if s.items[i].ProductID == item.ProductID {
			s.items[i].Quantity += item.Quantity
			found = true
			break
		}
	}
	if !found {
		s.items = append(s.items, item)
	}
	s.mu.Unlock()

	return s.persist(ctx)
}

// SetQuantity fija la cantidad de una línea; <= 0 la elimina.
func (s *Store) SetQuantity(ctx context.Context, productID string, quantity int) error {
	s.mu.Lock()
	idx := -1
	for i := range s.items {
		if s.items[i].ProductID == productID {
			idx = i
			break
		}
	}
	if idx == -1 {
		s.mu.Unlock()
		return nil
	}
	if quantity <= 0 {
		s.items = append(s.items[:idx], s.items[idx+1:]...)
	} else {
		s.items[idx].Quantity = quantity
	}
	s.mu.Unlock()

	return s.persist(ctx)
}

// Remove saca la línea de ese producto.
func (s *Store) Remove(ctx context.Context, productID string) error {
	s.mu.Lock()
	kept := s.items[:0]
	for _, it := range s.items {
		if it.ProductID != productID {
			kept = append(kept, it)
		}
	}
	s.items = kept
	s.mu.Unlock()

	return s.persist(ctx)
}

// Clear vacía el carrito.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.items = nil
	s.mu.Unlock()

	return s.persist(ctx)
}

// Items devuelve copia de las líneas.
func (s *Store) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Item(nil), s.items...)
}

// ItemCount es la suma de cantidades.
func (s *Store) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, it := range s.items {
		n += it.Quantity
	}
	return n
}

// DistinctCount es la cantidad de líneas.
func (s *Store) DistinctCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Subtotal es sum(precio * cantidad).
func (s *Store) Subtotal() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum float64
	for _, it := range s.items {
		sum += it.Price * float64(it.Quantity)
	}
	return sum
}

func (s *Store) persist(ctx context.Context) error {
	s.mu.Lock()
	raw, err := json.Marshal(s.items)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if err := s.storage.Put(ctx, StorageKey, raw); err != nil {
		s.log.Error("cart: persist failed", map[string]any{"err": err.Error()})
		return err
	}
	return nil
}
