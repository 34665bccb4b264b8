// Package cache implementa la política de frescura TTL de los stores.
//
// Un dato cacheado se sirve sin red sii: hubo un fetch exitoso previo,
// todavía no venció el TTL, y el dueño del cache coincide con el usuario
// autenticado actual (cambiar de usuario invalida todo lo cacheado bajo
// el anterior). Los fallos nunca tocan el timestamp ni el contenido previo.
package cache

import "time"

// Options son los overrides por llamada de un fetch.
// Force saltea el chequeo de frescura incondicionalmente.
// TTL cero usa el default del store.
type Options struct {
	Force bool
	TTL   time.Duration
}

func (o Options) ttlOr(def time.Duration) time.Duration {
	if o.TTL > 0 {
		return o.TTL
	}
	return def
}

// Meta es la metadata de frescura de un bucket de cache.
// El valor cero representa "nunca poblado".
type Meta struct {
	lastFetchedAt time.Time
	owner         string
}

// Fresh reporta si el bucket puede servirse sin red.
func (m Meta) Fresh(now time.Time, ttl time.Duration, owner string) bool {
	if m.lastFetchedAt.IsZero() {
		return false
	}
	if m.owner != owner {
		return false
	}
	return now.Sub(m.lastFetchedAt) < ttl
}

// NeedsFetch combina Force + frescura: true si corresponde ir a la red.
func (m Meta) NeedsFetch(opts Options, def time.Duration, now time.Time, owner string) bool {
	if opts.Force {
		return true
	}
	return !m.Fresh(now, opts.ttlOr(def), owner)
}

// Stamp marca un fetch exitoso ahora, bajo ese dueño.
// Solo se llama tras éxito: un fetch fallido deja la Meta como estaba.
func (m *Meta) Stamp(now time.Time, owner string) {
	m.lastFetchedAt = now
	m.owner = owner
}

// Reset vuelve la Meta a "nunca poblado".
func (m *Meta) Reset() {
	*m = Meta{}
}

// Populated reporta si hubo algún fetch exitoso.
func (m Meta) Populated() bool {
	return !m.lastFetchedAt.IsZero()
}

// LastFetchedAt expone el timestamp del último fetch exitoso.
func (m Meta) LastFetchedAt() time.Time {
	return m.lastFetchedAt
}

// Keyed aplica la misma política de frescura por clave independiente
// (por mascota, por orden, por tupla de filtro). Tocar una clave jamás
// altera la frescura de otra.
type Keyed struct {
	metas map[string]Meta
}

func NewKeyed() *Keyed {
	return &Keyed{metas: map[string]Meta{}}
}

func (k *Keyed) Meta(key string) Meta {
	return k.metas[key]
}

func (k *Keyed) NeedsFetch(key string, opts Options, def time.Duration, now time.Time, owner string) bool {
	return k.metas[key].NeedsFetch(opts, def, now, owner)
}

func (k *Keyed) Stamp(key string, now time.Time, owner string) {
	m := k.metas[key]
	m.Stamp(now, owner)
	k.metas[key] = m
}

func (k *Keyed) Reset(key string) {
	delete(k.metas, key)
}

func (k *Keyed) ResetAll() {
	k.metas = map[string]Meta{}
}
