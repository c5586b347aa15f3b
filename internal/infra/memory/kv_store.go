package memory

import (
	"context"
	"strings"
	"sync"
)

// KVStore is an in-memory key/value store usable as either the volatile or
// the durable session backend.
type KVStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewKVStore() *KVStore {
	return &KVStore{values: make(map[string]string)}
}

func (s *KVStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *KVStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *KVStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// Reset drops every key, like a browser clearing a storage partition.
func (s *KVStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = make(map[string]string)
}

// Namespace scopes a store to keys prefixed with prefix + ":".
type Namespace struct {
	store  *KVStore
	prefix string
}

// Scoped returns a view of s whose keys live under prefix.
func (s *KVStore) Scoped(prefix string) *Namespace {
	return &Namespace{store: s, prefix: prefix + ":"}
}

func (n *Namespace) Get(ctx context.Context, key string) (string, bool, error) {
	return n.store.Get(ctx, n.prefix+key)
}

func (n *Namespace) Set(ctx context.Context, key, value string) error {
	return n.store.Set(ctx, n.prefix+key, value)
}

func (n *Namespace) Remove(ctx context.Context, key string) error {
	return n.store.Remove(ctx, n.prefix+key)
}

// Drop removes every key in the namespace.
func (n *Namespace) Drop() {
	n.store.mu.Lock()
	defer n.store.mu.Unlock()
	for k := range n.store.values {
		if strings.HasPrefix(k, n.prefix) {
			delete(n.store.values, k)
		}
	}
}
