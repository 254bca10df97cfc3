// Package verify is the single entry point for proof verification. It
// accepts the heterogeneous shapes proofs travel in (raw parts, receipt
// bundles, HTTP headers, portable envelopes), normalizes each into one
// internal request, and runs one shared pipeline.
//
// The pipeline recomputes the content CID, runs envelope verification,
// and, when a key set source is available, independently resolves the
// declared key id and requires the resolved key to match the key embedded
// in the envelope. Self-consistency alone is not proof of provenance:
// the Result's UsedJWKS field tells callers whether they got a full-trust
// pass or a tamper-detection-only pass.
package verify

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"odinprotocol.io/odin/cidutil"
	"odinprotocol.io/odin/envelope"
	"odinprotocol.io/odin/jwks"
	"odinprotocol.io/odin/ope"
)

// Header names for proofs carried on HTTP responses.
const (
	// ProofHeader carries a base64url-encoded OPE JSON document.
	ProofHeader = "X-ODIN-OPE"

	// ContentIDHeader optionally declares the expected content id.
	ContentIDHeader = "X-ODIN-CID"
)

var b64 = base64.RawURLEncoding

// Input is the closed set of accepted shapes.
type Input interface {
	normalize() (*request, error)
}

// RawParts presents content bytes and their proof envelope directly.
type RawParts struct {
	Content []byte
	Proof   *ope.Envelope
}

// Receipt is the persisted bundle of content and proof, as written by
// producers into receipt files and object stores.
type Receipt struct {
	ContentB64 string        `json:"content_b64"`
	Proof      *ope.Envelope `json:"proof"`
}

// ParseReceipt parses a receipt bundle from JSON.
func ParseReceipt(raw []byte) (*Receipt, error) {
	var r Receipt
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("verify: malformed receipt: %w", err)
	}
	return &r, nil
}

// Headers presents content bytes plus HTTP response headers carrying an
// encoded proof.
type Headers struct {
	Header  http.Header
	Content []byte
}

// PortableInput presents a portable envelope. Content may ride inline in
// the envelope; explicit Content takes precedence when both are present.
type PortableInput struct {
	Envelope *envelope.Portable
	Content  []byte
}

// request is the one internal shape every input normalizes into.
type request struct {
	content     []byte
	proof       *ope.Envelope
	expectedCID string // declared by the input itself, "" if none

	// key set hints carried by the input
	jwksInline []byte
	jwksURL    string
}

func (in RawParts) normalize() (*request, error) {
	if in.Proof == nil {
		return nil, errors.New("verify: raw parts without proof")
	}
	return &request{content: in.Content, proof: in.Proof}, nil
}

func (in *Receipt) normalize() (*request, error) {
	if in == nil || in.Proof == nil {
		return nil, errors.New("verify: receipt without proof")
	}
	content, err := b64.DecodeString(in.ContentB64)
	if err != nil {
		return nil, errors.New("verify: receipt content_b64 is not valid base64url")
	}
	return &request{content: content, proof: in.Proof}, nil
}

func (in Headers) normalize() (*request, error) {
	raw := in.Header.Get(ProofHeader)
	if raw == "" {
		return nil, fmt.Errorf("verify: missing %s header", ProofHeader)
	}
	proofJSON, err := b64.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("verify: %s is not valid base64url", ProofHeader)
	}
	proof, err := ope.Unmarshal(proofJSON)
	if err != nil {
		return nil, err
	}
	return &request{
		content:     in.Content,
		proof:       proof,
		expectedCID: in.Header.Get(ContentIDHeader),
	}, nil
}

func (in PortableInput) normalize() (*request, error) {
	if in.Envelope == nil {
		return nil, errors.New("verify: nil portable envelope")
	}
	proofJSON, err := in.Envelope.ProofBytes()
	if err != nil {
		return nil, err
	}
	proof, err := ope.Unmarshal(proofJSON)
	if err != nil {
		return nil, err
	}
	content := in.Content
	if content == nil {
		content, err = in.Envelope.ContentBytes()
		if err != nil {
			return nil, err
		}
	}
	if content == nil {
		return nil, errors.New("verify: portable envelope carries no content and none was supplied")
	}
	return &request{
		content:     content,
		proof:       proof,
		expectedCID: in.Envelope.ContentID,
		jwksInline:  in.Envelope.JWKSInline,
		jwksURL:     in.Envelope.JWKSURL,
	}, nil
}

// Options configures a single verification.
type Options struct {
	// ExpectedCID overrides/augments any content id declared by the input.
	ExpectedCID string

	// JWKS supplies a key set document for independent key resolution.
	JWKS *jwks.Document

	// JWKSURL supplies a key set source URL. Requires Resolver.
	JWKSURL string

	// Resolver resolves URL sources (the input's jwks_url hint included).
	// Nil disables URL resolution.
	Resolver *jwks.Resolver

	// Verify options passed through to the envelope check.
	OPE ope.VerifyOptions
}

// Result is the façade's verification outcome.
type Result struct {
	OK            bool
	Reason        ope.Reason
	Detail        string
	ResolvedKeyID string
	ComputedCID   string
	UsedJWKS      bool
}

// Verify normalizes input and runs the shared pipeline.
func Verify(ctx context.Context, input Input, opts Options) Result {
	req, err := input.normalize()
	if err != nil {
		return Result{Reason: ope.ReasonMalformedEnvelope, Detail: err.Error()}
	}

	res := Result{ComputedCID: cidutil.Sum(req.content)}

	expected := req.expectedCID
	if opts.ExpectedCID != "" {
		expected = opts.ExpectedCID
	}
	if expected != "" && expected != res.ComputedCID {
		res.Reason = ope.ReasonContentIDMismatch
		res.Detail = fmt.Sprintf("computed %s, expected %s", res.ComputedCID, expected)
		return res
	}

	opeOpts := opts.OPE
	if opeOpts.ExpectedContentID == "" && expected != "" {
		opeOpts.ExpectedContentID = expected
	}
	inner := ope.Verify(req.proof, req.content, opeOpts)
	if !inner.OK {
		res.Reason = inner.Reason
		res.Detail = inner.Detail
		return res
	}

	resolved, used, err := resolveKey(ctx, req, opts)
	if err != nil {
		res.Reason = keyReason(err)
		res.Detail = err.Error()
		res.UsedJWKS = used
		return res
	}
	res.UsedJWKS = used
	if used {
		// Defense in depth: the independently resolved key must equal the
		// key the envelope declared for itself.
		declared, err := b64.DecodeString(req.proof.PublicKey)
		if err != nil || !resolved.Equal(ed25519.PublicKey(declared)) {
			res.Reason = ope.ReasonResolvedKeyMismatch
			res.Detail = fmt.Sprintf("resolved key for %q differs from embedded key", req.proof.KeyID)
			return res
		}
		res.ResolvedKeyID = req.proof.KeyID
	}

	res.OK = true
	return res
}

// resolveKey picks the strongest available key source: caller-supplied
// document, caller-supplied URL, then the input's inline/URL hints. A
// missing source is not an error; verification then passes on embedded
// key self-consistency alone, with UsedJWKS=false.
func resolveKey(ctx context.Context, req *request, opts Options) (ed25519.PublicKey, bool, error) {
	kid := req.proof.KeyID

	if opts.JWKS != nil {
		pub, err := jwks.DocumentKeyfunc(opts.JWKS)(kid)
		return pub, true, err
	}
	if opts.JWKSURL != "" && opts.Resolver != nil {
		pub, err := opts.Resolver.ResolveURL(ctx, opts.JWKSURL, kid)
		return pub, true, err
	}
	if len(req.jwksInline) > 0 {
		doc, err := jwks.ParseDocument(req.jwksInline)
		if err != nil {
			return nil, true, errors.Join(jwks.ErrFetchFailed, err)
		}
		pub, err := jwks.DocumentKeyfunc(doc)(kid)
		return pub, true, err
	}
	if req.jwksURL != "" && opts.Resolver != nil {
		pub, err := opts.Resolver.ResolveURL(ctx, req.jwksURL, kid)
		return pub, true, err
	}
	return nil, false, nil
}

func keyReason(err error) ope.Reason {
	switch {
	case errors.Is(err, jwks.ErrFetchFailed):
		return ope.ReasonFetchFailed
	case errors.Is(err, jwks.ErrUnsupportedKeyType):
		return ope.ReasonUnsupportedKeyType
	default:
		return ope.ReasonUnknownKeyID
	}
}
