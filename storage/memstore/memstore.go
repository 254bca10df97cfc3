// Package memstore is an in-memory Store, for tests and single-process
// deployments.
package memstore

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"sync"

	"odinprotocol.io/odin/storage"
)

type Store struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{objects: make(map[string][]byte)}
}

func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	_ = ctx
	if !storage.ValidKey(key) {
		return storage.ErrInvalidKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.objects[key]; ok {
		if !bytes.Equal(existing, data) {
			return storage.ErrImmutable
		}
		return nil
	}
	s.objects[key] = bytes.Clone(data)
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	_ = ctx
	if !storage.ValidKey(key) {
		return nil, storage.ErrInvalidKey
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return bytes.Clone(data), nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_ = ctx
	if !storage.ValidKey(key) {
		return false, storage.ErrInvalidKey
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[key]
	return ok, nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}
