package storage

import (
	"context"

	"odinprotocol.io/odin/cidutil"
)

// PutContent stores data under its own CID and returns the key. Callers
// are responsible for supplying canonical bytes; the CID is derived from
// exactly what is written.
func PutContent(ctx context.Context, s Store, data []byte) (string, error) {
	key := cidutil.Sum(data)
	if key == "" {
		return "", ErrInvalidKey
	}
	if err := s.Put(ctx, key, data); err != nil {
		return "", err
	}
	return key, nil
}

// GetContent fetches the bytes for a CID key and verifies them against
// it, so a corrupted or substituted object can never be returned as if
// it were the named content.
func GetContent(ctx context.Context, s Store, key string) ([]byte, error) {
	if err := cidutil.Validate(key); err != nil {
		return nil, ErrInvalidKey
	}
	data, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !cidutil.Matches(key, data) {
		return nil, ErrCIDMismatch
	}
	return data, nil
}
