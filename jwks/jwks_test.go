package jwks

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func testDoc(t *testing.T, kids ...string) (*Document, map[string]ed25519.PublicKey) {
	t.Helper()
	doc := &Document{}
	pubs := make(map[string]ed25519.PublicKey, len(kids))
	for i, kid := range kids {
		seed := make([]byte, ed25519.SeedSize)
		for j := range seed {
			seed[j] = byte(i*31 + j)
		}
		priv := ed25519.NewKeyFromSeed(seed)
		pub := priv.Public().(ed25519.PublicKey)
		pubs[kid] = pub
		doc.Keys = append(doc.Keys, Key{
			KeyType:   "OKP",
			Curve:     "Ed25519",
			KeyID:     kid,
			PublicKey: base64.RawURLEncoding.EncodeToString(pub),
		})
	}
	return doc, pubs
}

func marshalDoc(t *testing.T, doc *Document) []byte {
	t.Helper()
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal doc: %v", err)
	}
	return raw
}

func TestResolveDocument(t *testing.T) {
	doc, pubs := testDoc(t, "k1", "k2")
	r := NewResolver(Options{})

	pub, err := r.ResolveDocument(doc, "k2")
	if err != nil {
		t.Fatalf("ResolveDocument: %v", err)
	}
	if !pub.Equal(pubs["k2"]) {
		t.Fatalf("wrong key returned")
	}

	_, err = r.ResolveDocument(doc, "absent")
	if !errors.Is(err, ErrUnknownKeyID) {
		t.Fatalf("expected ErrUnknownKeyID, got %v", err)
	}
}

func TestResolveInline(t *testing.T) {
	doc, pubs := testDoc(t, "k1")
	r := NewResolver(Options{})

	pub, err := r.ResolveInline(marshalDoc(t, doc), "k1")
	if err != nil {
		t.Fatalf("ResolveInline: %v", err)
	}
	if !pub.Equal(pubs["k1"]) {
		t.Fatalf("wrong key returned")
	}

	if _, err := r.ResolveInline([]byte("not json"), "k1"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLookup_UnsupportedKeyType(t *testing.T) {
	doc := &Document{Keys: []Key{
		{KeyType: "RSA", KeyID: "rsa-1", PublicKey: "xxxx"},
		{KeyType: "OKP", Curve: "Ed25519", KeyID: "short-x", PublicKey: "AAAA"},
	}}
	r := NewResolver(Options{})

	_, err := r.ResolveDocument(doc, "rsa-1")
	if !errors.Is(err, ErrUnsupportedKeyType) {
		t.Fatalf("expected ErrUnsupportedKeyType, got %v", err)
	}
	_, err = r.ResolveDocument(doc, "short-x")
	if !errors.Is(err, ErrUnsupportedKeyType) {
		t.Fatalf("expected ErrUnsupportedKeyType for malformed material, got %v", err)
	}
}

// fakeSource is an injectable clock plus fetch function.
type fakeSource struct {
	now     time.Time
	docs    map[string][]byte
	fails   map[string]error
	fetches int
}

func (f *fakeSource) clock() time.Time { return f.now }

func (f *fakeSource) fetch(_ context.Context, url string) ([]byte, error) {
	f.fetches++
	if err := f.fails[url]; err != nil {
		return nil, err
	}
	raw, ok := f.docs[url]
	if !ok {
		return nil, errors.New("no such document")
	}
	return raw, nil
}

func newFakeResolver(src *fakeSource) *Resolver {
	return NewResolver(Options{
		TTL:           5 * time.Minute,
		RotationGrace: 10 * time.Minute,
		Now:           src.clock,
		Fetch:         src.fetch,
	})
}

func TestResolveURL_CachesWithinTTL(t *testing.T) {
	doc, _ := testDoc(t, "k1")
	src := &fakeSource{
		now:  time.Unix(1_700_000_000, 0),
		docs: map[string][]byte{"https://x/jwks": marshalDoc(t, doc)},
	}
	r := newFakeResolver(src)

	for i := 0; i < 3; i++ {
		if _, err := r.ResolveURL(context.Background(), "https://x/jwks", "k1"); err != nil {
			t.Fatalf("ResolveURL(%d): %v", i, err)
		}
		src.now = src.now.Add(time.Minute)
	}
	if src.fetches != 1 {
		t.Fatalf("fetches within TTL: got %d want 1", src.fetches)
	}

	src.now = src.now.Add(5 * time.Minute)
	if _, err := r.ResolveURL(context.Background(), "https://x/jwks", "k1"); err != nil {
		t.Fatalf("ResolveURL after TTL: %v", err)
	}
	if src.fetches != 2 {
		t.Fatalf("fetches after TTL: got %d want 2", src.fetches)
	}
}

func TestResolveURL_RotationGrace(t *testing.T) {
	const url = "https://x/jwks"
	docA, pubsA := testDoc(t, "kid-a")
	docB, _ := testDoc(t, "kid-b")

	src := &fakeSource{
		now:  time.Unix(1_700_000_000, 0),
		docs: map[string][]byte{url: marshalDoc(t, docA)},
	}
	r := newFakeResolver(src)

	if _, err := r.ResolveURL(context.Background(), url, "kid-a"); err != nil {
		t.Fatalf("initial resolve: %v", err)
	}

	// Rotate: the served document now only lists kid-b.
	src.docs[url] = marshalDoc(t, docB)
	src.now = src.now.Add(6 * time.Minute) // past TTL, forces refetch

	pub, err := r.ResolveURL(context.Background(), url, "kid-a")
	if err != nil {
		t.Fatalf("kid-a within grace: %v", err)
	}
	if !pub.Equal(pubsA["kid-a"]) {
		t.Fatalf("grace lookup returned wrong key")
	}
	if _, err := r.ResolveURL(context.Background(), url, "kid-b"); err != nil {
		t.Fatalf("kid-b after rotation: %v", err)
	}

	// Grace elapses (measured from demotion).
	src.now = src.now.Add(11 * time.Minute)
	_, err = r.ResolveURL(context.Background(), url, "kid-a")
	if !errors.Is(err, ErrUnknownKeyID) {
		t.Fatalf("kid-a after grace: got %v want ErrUnknownKeyID", err)
	}
}

func TestResolveURL_FetchFailureSurfaced(t *testing.T) {
	const url = "https://x/jwks"
	doc, _ := testDoc(t, "k1")
	src := &fakeSource{
		now:  time.Unix(1_700_000_000, 0),
		docs: map[string][]byte{url: marshalDoc(t, doc)},
	}
	r := newFakeResolver(src)

	if _, err := r.ResolveURL(context.Background(), url, "k1"); err != nil {
		t.Fatalf("initial resolve: %v", err)
	}

	// TTL expires and the key service goes down: fail closed, do not serve
	// the stale cache.
	src.fails = map[string]error{url: errors.New("boom")}
	src.now = src.now.Add(6 * time.Minute)

	_, err := r.ResolveURL(context.Background(), url, "k1")
	if !errors.Is(err, ErrFetchFailed) {
		t.Fatalf("expected ErrFetchFailed, got %v", err)
	}

	// Within TTL the cache still serves.
	src.now = src.now.Add(-6 * time.Minute).Add(time.Minute)
	if _, err := r.ResolveURL(context.Background(), url, "k1"); err != nil {
		t.Fatalf("within-TTL resolve during outage: %v", err)
	}
}

func TestResolveURL_MalformedDocumentIsFetchFailure(t *testing.T) {
	const url = "https://x/jwks"
	src := &fakeSource{
		now:  time.Unix(1_700_000_000, 0),
		docs: map[string][]byte{url: []byte("not a jwks")},
	}
	r := newFakeResolver(src)

	_, err := r.ResolveURL(context.Background(), url, "k1")
	if !errors.Is(err, ErrFetchFailed) {
		t.Fatalf("expected ErrFetchFailed, got %v", err)
	}
}
