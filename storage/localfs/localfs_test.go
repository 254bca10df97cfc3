package localfs

import (
	"context"
	"testing"

	"odinprotocol.io/odin/storage"
	"odinprotocol.io/odin/storage/testkit"
)

func TestConformance(t *testing.T) {
	testkit.RunStoreConformance(t, func(t *testing.T) storage.Store {
		s, err := New(t.TempDir())
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		return s
	})
}

func TestNew_RequiresRoot(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatalf("expected error for empty root")
	}
}

func TestShardedLayout(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	key, err := storage.PutContent(ctx, s, []byte("sharded"))
	if err != nil {
		t.Fatalf("PutContent: %v", err)
	}

	// The object lands under a two-character shard directory.
	got, err := storage.GetContent(ctx, s, key)
	if err != nil {
		t.Fatalf("GetContent: %v", err)
	}
	if string(got) != "sharded" {
		t.Fatalf("content mismatch")
	}
	if s.pathFor(key) == s.root+"/"+key {
		t.Fatalf("expected sharded path, got %s", s.pathFor(key))
	}
}
