package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// KVStore is a durable session slot store backed by the kv_entries table.
// Each profile gets its own namespace.
type KVStore struct {
	pool      *pgxpool.Pool
	namespace string
}

func NewKVStore(pool *pgxpool.Pool, namespace string) *KVStore {
	return &KVStore{pool: pool, namespace: namespace}
}

// Scoped returns a store for a nested namespace.
func (s *KVStore) Scoped(namespace string) *KVStore {
	if s.namespace == "" {
		return NewKVStore(s.pool, namespace)
	}
	return NewKVStore(s.pool, s.namespace+":"+namespace)
}

func (s *KVStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.pool.QueryRow(ctx, `SELECT value FROM kv_entries WHERE namespace=$1 AND key=$2`, s.namespace, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load %s: %w", key, err)
	}
	return value, true, nil
}

func (s *KVStore) Set(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO kv_entries (namespace, key, value, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		s.namespace, key, value)
	if err != nil {
		return fmt.Errorf("store %s: %w", key, err)
	}
	return nil
}

func (s *KVStore) Remove(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM kv_entries WHERE namespace=$1 AND key=$2`, s.namespace, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}
