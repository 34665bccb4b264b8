package postgres

import (
	"context"
	"database/sql"
	"errors"

	"vet-clinic-manager/internal/domain/cart"
)

type KV struct {
	db *sql.DB
}

var _ cart.Storage = (*KV)(nil)

// NewKV asume la tabla:
//
//	CREATE TABLE IF NOT EXISTS client_kv (
//	    key        text PRIMARY KEY,
//	    value      bytea NOT NULL,
//	    updated_at timestamptz NOT NULL DEFAULT now()
//	);
func NewKV(db *sql.DB) *KV {
	return &KV{db: db}
}

func (k *KV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	row := k.db.QueryRowContext(ctx, `
		SELECT value FROM client_kv WHERE key = $1
	`, key)

	var value []byte
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return value, true, nil
}

func (k *KV) Put(ctx context.Context, key string, value []byte) error {
	_, err := k.db.ExecContext(ctx, `
		INSERT INTO client_kv (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = now()
	`, key, value)
	return err
}

func (k *KV) Delete(ctx context.Context, key string) error {
	_, err := k.db.ExecContext(ctx, `
		DELETE FROM client_kv WHERE key = $1
	`, key)
	return err
}
