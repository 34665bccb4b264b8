package cache_test

import (
	"testing"
	"time"

	"vet-clinic-manager/internal/cache"
)

var base = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func TestMeta_FreshInsideTTL(t *testing.T) {
	var m cache.Meta
	m.Stamp(base, "user-1")

	// 1) A los 30s de un TTL de 60s: fresco
	if !m.Fresh(base.Add(30*time.Second), 60*time.Second, "user-1") {
		t.Fatal("expected fresh at T+30s with ttl=60s")
	}

	// 2) Justo al vencer (estrictamente <): ya no
	if m.Fresh(base.Add(60*time.Second), 60*time.Second, "user-1") {
		t.Fatal("expected stale exactly at ttl boundary")
	}

	// 3) Pasado el TTL: tampoco
	if m.Fresh(base.Add(61*time.Second), 60*time.Second, "user-1") {
		t.Fatal("expected stale at T+61s")
	}
}

func TestMeta_NeverPopulatedIsStale(t *testing.T) {
	var m cache.Meta
	if m.Fresh(base, time.Hour, "") {
		t.Fatal("zero Meta must never be fresh")
	}
	if m.Populated() {
		t.Fatal("zero Meta must not report populated")
	}
}

func TestMeta_OwnerMismatchInvalidates(t *testing.T) {
	var m cache.Meta
	m.Stamp(base, "user-1")

	// Mismo instante, otro usuario: el cache no vale.
	if m.Fresh(base.Add(time.Second), 60*time.Second, "user-2") {
		t.Fatal("cache stamped for user-1 must be stale for user-2")
	}
	if !m.Fresh(base.Add(time.Second), 60*time.Second, "user-1") {
		t.Fatal("cache must remain fresh for its owner")
	}
}

func TestMeta_NeedsFetch(t *testing.T) {
	var m cache.Meta
	m.Stamp(base, "u")
	now := base.Add(10 * time.Second)

	// 1) Fresco sin force: no va a la red
	if m.NeedsFetch(cache.Options{}, time.Minute, now, "u") {
		t.Fatal("fresh cache without force must not need fetch")
	}

	// 2) Force saltea la frescura incondicionalmente
	if !m.NeedsFetch(cache.Options{Force: true}, time.Minute, now, "u") {
		t.Fatal("force must always need fetch")
	}

	// 3) TTL por llamada le gana al default
	if !m.NeedsFetch(cache.Options{TTL: 5 * time.Second}, time.Minute, now, "u") {
		t.Fatal("per-call ttl=5s must override the 1m default")
	}
}

func TestMeta_ResetForgetsEverything(t *testing.T) {
	var m cache.Meta
	m.Stamp(base, "u")
	m.Reset()

	if m.Populated() {
		t.Fatal("reset Meta must not be populated")
	}
	if !m.LastFetchedAt().IsZero() {
		t.Fatal("reset Meta must have zero timestamp")
	}
}

func TestKeyed_IndependentFreshnessPerKey(t *testing.T) {
	k := cache.NewKeyed()
	k.Stamp("pet-a", base, "u")

	now := base.Add(time.Second)

	// 1) La clave estampada está fresca; la otra no existe
	if k.NeedsFetch("pet-a", cache.Options{}, time.Minute, now, "u") {
		t.Fatal("pet-a just stamped must be fresh")
	}
	if !k.NeedsFetch("pet-b", cache.Options{}, time.Minute, now, "u") {
		t.Fatal("pet-b never stamped must need fetch")
	}

	// 2) Resetear pet-a no toca pet-b
	k.Stamp("pet-b", base, "u")
	k.Reset("pet-a")
	if !k.NeedsFetch("pet-a", cache.Options{}, time.Minute, now, "u") {
		t.Fatal("pet-a reset must need fetch")
	}
	if k.NeedsFetch("pet-b", cache.Options{}, time.Minute, now, "u") {
		t.Fatal("resetting pet-a must not invalidate pet-b")
	}

	// 3) ResetAll sí barre todo
	k.ResetAll()
	if k.Meta("pet-b").Populated() {
		t.Fatal("ResetAll must clear every key")
	}
}
