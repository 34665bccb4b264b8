package cart_test

import (
	"context"
	"testing"

	"vet-clinic-manager/internal/adapters/storage/memory"
	"vet-clinic-manager/internal/domain/cart"
)

func TestAdd_BumpsExistingLine(t *testing.T) {
	ctx := context.Background()
	s := cart.New(ctx, memory.NewKV(), nil)

	// 1) Alta nueva; qty <= 0 se normaliza a 1
	if err := s.Add(ctx, cart.Item{ProductID: "p1", Name: "Shampoo", Price: 10}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if s.ItemCount() != 1 {
		t.Fatalf("expected qty 1, got %d", s.ItemCount())
	}

	// 2) Mismo producto: suma cantidades, no duplica línea
	if err := s.Add(ctx, cart.Item{ProductID: "p1", Quantity: 2}); err != nil {
		t.Fatalf("add again: %v", err)
	}
	if s.DistinctCount() != 1 || s.ItemCount() != 3 {
		t.Fatalf("expected 1 line qty 3, got %d/%d", s.DistinctCount(), s.ItemCount())
	}

	// 3) Producto sin id se ignora
	if err := s.Add(ctx, cart.Item{ProductID: "  "}); err != nil {
		t.Fatalf("blank add: %v", err)
	}
	if s.DistinctCount() != 1 {
		t.Fatal("blank product id must be ignored")
	}
}

func TestSetQuantity_ZeroRemovesLine(t *testing.T) {
	ctx := context.Background()
	s := cart.New(ctx, memory.NewKV(), nil)
	s.Add(ctx, cart.Item{ProductID: "p1", Quantity: 2})
	s.Add(ctx, cart.Item{ProductID: "p2", Quantity: 1})

	if err := s.SetQuantity(ctx, "p1", 5); err != nil {
		t.Fatalf("set qty: %v", err)
	}
	if s.ItemCount() != 6 {
		t.Fatalf("expected total 6, got %d", s.ItemCount())
	}

	// <= 0 elimina la línea
	if err := s.SetQuantity(ctx, "p1", 0); err != nil {
		t.Fatalf("set zero: %v", err)
	}
	if s.DistinctCount() != 1 || s.Items()[0].ProductID != "p2" {
		t.Fatalf("zero quantity must remove the line, got %v", s.Items())
	}

	// Producto inexistente: no-op
	if err := s.SetQuantity(ctx, "ghost", 4); err != nil {
		t.Fatalf("ghost set: %v", err)
	}
	if s.DistinctCount() != 1 {
		t.Fatal("unknown product must be a no-op")
	}
}

func TestSubtotal(t *testing.T) {
	ctx := context.Background()
	s := cart.New(ctx, memory.NewKV(), nil)
	s.Add(ctx, cart.Item{ProductID: "p1", Price: 10.5, Quantity: 2})
	s.Add(ctx, cart.Item{ProductID: "p2", Price: 3, Quantity: 1})

	if got := s.Subtotal(); got != 24 {
		t.Fatalf("expected subtotal 24, got %v", got)
	}
}

func TestPersistence_SurvivesReload(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKV()

	s := cart.New(ctx, kv, nil)
	s.Add(ctx, cart.Item{ProductID: "p1", Name: "Shampoo", Price: 10, Quantity: 2})
	s.Remove(ctx, "ghost")

	// Un store nuevo sobre el mismo storage ve el carrito.
	reloaded := cart.New(ctx, kv, nil)
	items := reloaded.Items()
	if len(items) != 1 || items[0].ProductID != "p1" || items[0].Quantity != 2 {
		t.Fatalf("reloaded cart mismatch: %v", items)
	}

	// Clear también persiste.
	if err := reloaded.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if got := cart.New(ctx, kv, nil).DistinctCount(); got != 0 {
		t.Fatalf("cleared cart must persist empty, got %d lines", got)
	}
}

func TestCorruptStorageDegradesToEmpty(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKV()
	if err := kv.Put(ctx, cart.StorageKey, []byte(`{not json`)); err != nil {
		t.Fatalf("seed corrupt: %v", err)
	}

	s := cart.New(ctx, kv, nil)
	if s.DistinctCount() != 0 {
		t.Fatal("corrupt storage must yield an empty cart")
	}

	// El carrito sigue operable y la próxima escritura pisa lo corrupto.
	if err := s.Add(ctx, cart.Item{ProductID: "p1", Quantity: 1}); err != nil {
		t.Fatalf("add after corrupt: %v", err)
	}
	if got := cart.New(ctx, kv, nil).DistinctCount(); got != 1 {
		t.Fatalf("recovered cart must persist, got %d lines", got)
	}
}
