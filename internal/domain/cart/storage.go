package cart

import "context"

// Storage es el put/get durable donde persiste el carrito.
// Es la única pieza del data layer que sobrevive al reinicio del proceso;
// el resto de los caches son memoria pura.
type Storage interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// StorageKey es la clave bajo la que se guarda el carrito serializado.
const StorageKey = "petmgt:cart"
