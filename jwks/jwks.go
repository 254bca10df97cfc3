// Package jwks resolves key ids to Ed25519 verification keys from JWKS
// documents, with TTL caching and rotation grace.
//
// A Resolver is an explicit, constructible object owning its own cache
// and lock; there is no package-level singleton. The clock and the fetch
// function are injectable so tests can drive rotation deterministically.
package jwks

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

var (
	// ErrUnknownKeyID means the key id is absent from the current document
	// and from any previous document still within rotation grace.
	ErrUnknownKeyID = errors.New("jwks: unknown key id")

	// ErrFetchFailed means a URL-sourced document could not be retrieved.
	// Fetch failures are always surfaced, never cached as an empty key set.
	ErrFetchFailed = errors.New("jwks: fetch failed")

	// ErrUnsupportedKeyType means the key id matched an entry that is not
	// an OKP/Ed25519 key.
	ErrUnsupportedKeyType = errors.New("jwks: unsupported key type")
)

// Key is one entry of a JWKS document.
type Key struct {
	KeyType   string `json:"kty"`
	Curve     string `json:"crv"`
	KeyID     string `json:"kid"`
	PublicKey string `json:"x"` // base64url, unpadded
}

// Document is a JWKS document. Read-only to the resolver.
type Document struct {
	Keys []Key `json:"keys"`
}

// ParseDocument parses a JWKS document from JSON.
func ParseDocument(raw []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("jwks: malformed document: %w", err)
	}
	return &doc, nil
}

// Options configures a Resolver. The zero value gets defaults.
type Options struct {
	// TTL is how long a fetched document is treated as fresh.
	TTL time.Duration

	// RotationGrace is how long a superseded document is still consulted
	// after demotion. Lets in-flight signatures issued just before a
	// rotation verify, at the cost of a bounded extended trust window for
	// the retired key.
	RotationGrace time.Duration

	// FetchTimeout bounds a single URL fetch.
	FetchTimeout time.Duration

	// Now overrides the clock.
	Now func() time.Time

	// Fetch overrides document retrieval. The default uses HTTPClient.
	Fetch func(ctx context.Context, url string) ([]byte, error)

	// HTTPClient is used by the default fetch.
	HTTPClient *http.Client
}

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = 5 * time.Minute
	}
	if o.RotationGrace <= 0 {
		o.RotationGrace = 10 * time.Minute
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 5 * time.Second
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.HTTPClient == nil {
		o.HTTPClient = http.DefaultClient
	}
	return o
}

// entry is the per-source cache state: the current document plus the one
// it superseded. Superseded documents are demoted, not discarded, until
// the grace window elapses.
type entry struct {
	currentRaw []byte
	current    *Document
	fetchedAt  time.Time

	previous  *Document
	demotedAt time.Time
}

// Resolver maps (source, key id) to raw Ed25519 public keys.
type Resolver struct {
	opts Options

	mu      sync.Mutex
	entries map[string]*entry
}

// NewResolver constructs a resolver with its own isolated cache.
func NewResolver(opts Options) *Resolver {
	return &Resolver{
		opts:    opts.withDefaults(),
		entries: make(map[string]*entry),
	}
}

// ResolveDocument looks up kid in a literal document. No caching.
func (r *Resolver) ResolveDocument(doc *Document, kid string) (ed25519.PublicKey, error) {
	if doc == nil {
		return nil, ErrUnknownKeyID
	}
	return lookup(doc, kid)
}

// ResolveInline parses raw JSON and looks up kid. No caching.
func (r *Resolver) ResolveInline(raw []byte, kid string) (ed25519.PublicKey, error) {
	doc, err := ParseDocument(raw)
	if err != nil {
		return nil, err
	}
	return lookup(doc, kid)
}

// ResolveURL looks up kid in the document at url, refreshing the cached
// copy when the TTL has elapsed. A changed document demotes the old one
// into the previous slot; a kid absent from the current document is still
// honored from the previous document within the rotation grace window.
func (r *Resolver) ResolveURL(ctx context.Context, url, kid string) (ed25519.PublicKey, error) {
	now := r.opts.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.entries[url]
	if e == nil || now.Sub(e.fetchedAt) >= r.opts.TTL {
		raw, err := r.fetch(ctx, url)
		if err != nil {
			// Fail closed: a stale cache never substitutes for a fetch.
			return nil, fmt.Errorf("%w: %s: %v", ErrFetchFailed, url, err)
		}
		doc, err := ParseDocument(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrFetchFailed, url, err)
		}
		if e == nil {
			e = &entry{}
			r.entries[url] = e
		} else if !bytes.Equal(raw, e.currentRaw) {
			e.previous = e.current
			e.demotedAt = now
		}
		e.currentRaw = raw
		e.current = doc
		e.fetchedAt = now
	}

	pub, err := lookup(e.current, kid)
	if err == nil {
		return pub, nil
	}
	if !errors.Is(err, ErrUnknownKeyID) {
		return nil, err
	}
	if e.previous != nil && now.Sub(e.demotedAt) <= r.opts.RotationGrace {
		return lookup(e.previous, kid)
	}
	return nil, err
}

// Keyfunc adapts a document source into the kid-to-key callback the HTTP
// signature verifier takes.
func (r *Resolver) Keyfunc(ctx context.Context, url string) func(kid string) (ed25519.PublicKey, error) {
	return func(kid string) (ed25519.PublicKey, error) {
		return r.ResolveURL(ctx, url, kid)
	}
}

// DocumentKeyfunc adapts a literal document into the same callback shape.
func DocumentKeyfunc(doc *Document) func(kid string) (ed25519.PublicKey, error) {
	return func(kid string) (ed25519.PublicKey, error) {
		return lookup(doc, kid)
	}
}

func (r *Resolver) fetch(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opts.FetchTimeout)
	defer cancel()

	if r.opts.Fetch != nil {
		return r.opts.Fetch(ctx, url)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
}

// lookup scans doc for kid. The shape stays generic (linear scan over
// typed entries) even though only OKP/Ed25519 is functionally required.
func lookup(doc *Document, kid string) (ed25519.PublicKey, error) {
	if doc == nil {
		return nil, ErrUnknownKeyID
	}
	for _, k := range doc.Keys {
		if k.KeyID != kid {
			continue
		}
		if k.KeyType != "OKP" || k.Curve != "Ed25519" {
			return nil, fmt.Errorf("%w: kty=%q crv=%q", ErrUnsupportedKeyType, k.KeyType, k.Curve)
		}
		raw, err := base64.RawURLEncoding.DecodeString(k.PublicKey)
		if err != nil || len(raw) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("%w: kid %q has malformed key material", ErrUnsupportedKeyType, kid)
		}
		return ed25519.PublicKey(raw), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKeyID, kid)
}
