package grpcstore

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"odinprotocol.io/odin/cidutil"
	"odinprotocol.io/odin/storage"
	"odinprotocol.io/odin/storage/memstore"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer()
	RegisterStoreServer(srv, &Server{Store: memstore.New()})

	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)

	dialer := func(ctx context.Context, s string) (net.Conn, error) { return lis.Dial() }
	cc, err := grpc.DialContext(
		context.Background(),
		"bufnet",
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("DialContext: %v", err)
	}
	t.Cleanup(func() { _ = cc.Close() })

	return &Client{cc: cc, client: NewStoreClient(cc), Timeout: 2 * time.Second}
}

func TestGRPCStore_RoundTrip(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	payload := []byte("hello grpcstore")
	key, err := storage.PutContent(ctx, client, payload)
	if err != nil {
		t.Fatalf("PutContent: %v", err)
	}
	if key != cidutil.Sum(payload) {
		t.Fatalf("key mismatch: %s", key)
	}

	ok, err := client.Exists(ctx, key)
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if !ok {
		t.Fatalf("Exists: expected true")
	}

	got, err := client.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("payload mismatch")
	}

	keys, err := client.List(ctx, "b")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(keys) != 1 || keys[0] != key {
		t.Fatalf("List: got %v", keys)
	}
}

func TestGRPCStore_Errors(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	// Arbitrary keys are rejected: the remote service is content-addressed.
	if err := client.Put(ctx, "custom-key", []byte("x")); err != storage.ErrInvalidKey {
		t.Fatalf("Put arbitrary key: got %v want ErrInvalidKey", err)
	}

	missing := cidutil.Sum([]byte("never stored"))
	if _, err := client.Get(ctx, missing); !storage.IsNotFound(err) {
		t.Fatalf("Get missing: got %v want ErrNotFound", err)
	}

	if _, err := client.Get(ctx, "not a cid"); err != storage.ErrInvalidKey {
		t.Fatalf("Get invalid key: got %v want ErrInvalidKey", err)
	}
}
