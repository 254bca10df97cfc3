// Package storage defines the byte-oriented key/value store the higher
// protocol layers persist envelopes and receipts into.
//
// Contract:
//   - Stored objects are immutable: re-Put of an existing key with the
//     same bytes is an idempotent no-op, with different bytes it fails
//     with ErrImmutable.
//   - Get returns ErrNotFound for absent keys.
//   - List returns keys sorted lexicographically.
package storage

import "context"

// Store is the minimal collaborator interface.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

// ValidKey reports whether key is acceptable to every backend: non-empty
// and limited to characters that are safe as file and wire identifiers.
// CID strings always satisfy it.
func ValidKey(key string) bool {
	if key == "" || len(key) > 512 {
		return false
	}
	// Leading dots would let keys alias filesystem dot-entries.
	if key[0] == '.' {
		return false
	}
	for _, c := range key {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_' || c == '.':
		default:
			return false
		}
	}
	return true
}
