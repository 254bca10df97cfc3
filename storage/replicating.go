package storage

import (
	"context"
	"fmt"
)

// NamedStore associates a Store with a stable backend name, for
// multi-backend orchestration where callers need per-backend reporting.
type NamedStore struct {
	Name  string
	Store Store
}

// Replicating writes every object to all configured backends.
//
// Reads fall back in order. A write that fails on any backend fails the
// whole Put; partially written backends hold the same immutable bytes, so
// a retry converges.
type Replicating struct {
	Backends []NamedStore
}

var _ Store = Replicating{}

func (r Replicating) Put(ctx context.Context, key string, data []byte) error {
	if len(r.Backends) == 0 {
		return fmt.Errorf("storage: Replicating has no backends")
	}
	for _, b := range r.Backends {
		if b.Store == nil {
			return fmt.Errorf("storage: nil store for backend %q", b.Name)
		}
		if err := b.Store.Put(ctx, key, data); err != nil {
			return fmt.Errorf("storage: backend %q: %w", b.Name, err)
		}
	}
	return nil
}

func (r Replicating) Get(ctx context.Context, key string) ([]byte, error) {
	for _, b := range r.Backends {
		if b.Store == nil {
			continue
		}
		out, err := b.Store.Get(ctx, key)
		if err == nil {
			return out, nil
		}
		if IsNotFound(err) {
			continue
		}
		return nil, err
	}
	return nil, ErrNotFound
}

func (r Replicating) Exists(ctx context.Context, key string) (bool, error) {
	for _, b := range r.Backends {
		if b.Store == nil {
			continue
		}
		ok, err := b.Store.Exists(ctx, key)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (r Replicating) List(ctx context.Context, prefix string) ([]string, error) {
	m := Multi{}
	for _, b := range r.Backends {
		if b.Store != nil {
			m.Backends = append(m.Backends, b.Store)
		}
	}
	return m.List(ctx, prefix)
}
