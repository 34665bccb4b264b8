// Package file: storage clave-valor durable en un archivo JSON local.
// Es el equivalente del localStorage del navegador para este proceso.
package file

import (
	"context"
	"encoding/json"
	"os"
	"sync"

	"vet-clinic-manager/internal/domain/cart"
)

type KV struct {
	path string

	mu   sync.Mutex
	data map[string]json.RawMessage
}

var _ cart.Storage = (*KV)(nil)

// NewKV abre (o crea) el archivo. Contenido ilegible arranca vacío:
// preferimos perder el carrito antes que no arrancar.
func NewKV(path string) *KV {
	k := &KV{path: path, data: map[string]json.RawMessage{}}

	raw, err := os.ReadFile(path)
	if err == nil {
		var data map[string]json.RawMessage
		if json.Unmarshal(raw, &data) == nil && data != nil {
			k.data = data
		}
	}
	return k
}

func (k *KV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	v, ok := k.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (k *KV) Put(ctx context.Context, key string, value []byte) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if !json.Valid(value) {
		// Se guarda como string JSON para no corromper el archivo.
		b, err := json.Marshal(string(value))
		if err != nil {
			return err
		}
		value = b
	}
	k.data[key] = append(json.RawMessage(nil), value...)
	return k.flush()
}

func (k *KV) Delete(ctx context.Context, key string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.data, key)
	return k.flush()
}

// flush escribe a un temporal y renombra (write atómico en el mismo fs).
func (k *KV) flush() error {
	raw, err := json.MarshalIndent(k.data, "", "  ")
	if err != nil {
		return err
	}

	tmp := k.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, k.path)
}
