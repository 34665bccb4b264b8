// Package memory: storage clave-valor en memoria (dev/tests).
package memory

import (
	"context"
	"sync"

	"vet-clinic-manager/internal/domain/cart"
)

type KV struct {
	mu   sync.RWMutex
	data map[string][]byte
}

var _ cart.Storage = (*KV)(nil)

func NewKV() *KV {
	return &KV{data: map[string][]byte{}}
}

func (k *KV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	v, ok := k.data[key]
	if !ok {
		return nil, false, nil
	}
	out := append([]byte(nil), v...)
	return out, true, nil
}

func (k *KV) Put(ctx context.Context, key string, value []byte) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.data[key] = append([]byte(nil), value...)
	return nil
}

func (k *KV) Delete(ctx context.Context, key string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.data, key)
	return nil
}
