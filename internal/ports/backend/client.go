// Package backend define el puerto hacia el backend REST de la clínica.
// Los stores dependen de esta interfaz, nunca de http directamente.
package backend

import "context"

// Client emite requests JSON autorizados contra el backend.
// Paths relativos a /api/v1 (p.ej. "/pets/123").
type Client interface {
	Get(ctx context.Context, path string, out any) error
	Post(ctx context.Context, path string, in, out any) error
	Put(ctx context.Context, path string, in, out any) error
	Delete(ctx context.Context, path string) error
}
