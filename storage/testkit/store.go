// Package testkit holds the conformance suite every Store backend runs.
package testkit

import (
	"bytes"
	"context"
	"testing"

	"odinprotocol.io/odin/cidutil"
	"odinprotocol.io/odin/storage"
)

// NewStore constructs a fresh, empty Store instance for a test. The
// returned Store MUST be isolated from other tests.
type NewStore func(t *testing.T) storage.Store

func RunStoreConformance(t *testing.T, newStore NewStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("PutGetRoundTrip", func(t *testing.T) {
		s := newStore(t)
		want := []byte("hello, odin storage")
		key := cidutil.Sum(want)

		if err := s.Put(ctx, key, want); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		got, err := s.Get(ctx, key)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("Get bytes mismatch")
		}
	})

	t.Run("PutIdempotent", func(t *testing.T) {
		s := newStore(t)
		b := []byte("same bytes")
		key := cidutil.Sum(b)

		if err := s.Put(ctx, key, b); err != nil {
			t.Fatalf("Put(1) failed: %v", err)
		}
		if err := s.Put(ctx, key, b); err != nil {
			t.Fatalf("Put(2) not idempotent: %v", err)
		}
	})

	t.Run("Immutable", func(t *testing.T) {
		s := newStore(t)
		key := cidutil.Sum([]byte("original"))

		if err := s.Put(ctx, key, []byte("original")); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		err := s.Put(ctx, key, []byte("different"))
		if err == nil {
			t.Fatalf("overwrite with different bytes succeeded")
		}
	})

	t.Run("ExistsAndNotFound", func(t *testing.T) {
		s := newStore(t)
		b := []byte("missing")
		key := cidutil.Sum(b)

		ok, err := s.Exists(ctx, key)
		if err != nil {
			t.Fatalf("Exists failed: %v", err)
		}
		if ok {
			t.Fatalf("Exists returned true for missing key")
		}
		if _, err := s.Get(ctx, key); !storage.IsNotFound(err) {
			t.Fatalf("Get missing: got err=%v want ErrNotFound", err)
		}

		if err := s.Put(ctx, key, b); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		ok, err = s.Exists(ctx, key)
		if err != nil {
			t.Fatalf("Exists failed: %v", err)
		}
		if !ok {
			t.Fatalf("Exists returned false after Put")
		}
	})

	t.Run("List", func(t *testing.T) {
		s := newStore(t)
		var keys []string
		for _, content := range []string{"one", "two", "three"} {
			b := []byte(content)
			key := cidutil.Sum(b)
			keys = append(keys, key)
			if err := s.Put(ctx, key, b); err != nil {
				t.Fatalf("Put failed: %v", err)
			}
		}

		// Every CID key shares the "b" multibase marker.
		listed, err := s.List(ctx, "b")
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(listed) != len(keys) {
			t.Fatalf("List returned %d keys, want %d", len(listed), len(keys))
		}
		for i := 1; i < len(listed); i++ {
			if listed[i-1] >= listed[i] {
				t.Fatalf("List not sorted: %v", listed)
			}
		}

		none, err := s.List(ctx, "zzz")
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(none) != 0 {
			t.Fatalf("List with unmatched prefix returned %v", none)
		}
	})

	t.Run("RejectInvalidKey", func(t *testing.T) {
		s := newStore(t)
		for _, key := range []string{"", "../escape", "a/b", "spa ce"} {
			if err := s.Put(ctx, key, []byte("x")); err == nil {
				t.Fatalf("Put(%q) accepted invalid key", key)
			}
			if _, err := s.Get(ctx, key); err == nil {
				t.Fatalf("Get(%q) accepted invalid key", key)
			}
		}
	})
}
