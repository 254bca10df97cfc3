package storage

import (
	"context"
	"errors"
	"sort"
)

// Multi provides deterministic, ordered fallback across multiple stores.
//
// Read order is the slice order in Backends; callers MUST supply a fixed
// order. This avoids map-iteration nondeterminism and makes the retrieval
// strategy explicit.
//
// Put writes only to the first backend.
type Multi struct {
	Backends []Store
}

var _ Store = Multi{}

func (m Multi) Put(ctx context.Context, key string, data []byte) error {
	if len(m.Backends) == 0 {
		return errors.New("storage: Multi has no backends")
	}
	return m.Backends[0].Put(ctx, key, data)
}

func (m Multi) Get(ctx context.Context, key string) ([]byte, error) {
	for _, s := range m.Backends {
		b, err := s.Get(ctx, key)
		if err == nil {
			return b, nil
		}
		if IsNotFound(err) {
			continue
		}
		return nil, err
	}
	return nil, ErrNotFound
}

func (m Multi) Exists(ctx context.Context, key string) (bool, error) {
	for _, s := range m.Backends {
		ok, err := s.Exists(ctx, key)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// List merges the listings of every backend, deduplicated and sorted.
func (m Multi) List(ctx context.Context, prefix string) ([]string, error) {
	seen := make(map[string]struct{})
	for _, s := range m.Backends {
		keys, err := s.List(ctx, prefix)
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			seen[k] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}
