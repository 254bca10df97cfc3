// Package envelope implements the portable transport envelope: the pure
// data wrapper that carries a proof, a content id, and key-resolution
// hints through response bodies, log lines, and receipt files.
//
// There is no verification logic here: the package must be
// serializable without pulling in any crypto dependency. Verification of
// a portable envelope is the verify package's job.
package envelope

import (
	"encoding/base64"
	"encoding/json"
	"errors"
)

var b64 = base64.RawURLEncoding

// Portable is the wire form. Never mutated after construction.
type Portable struct {
	ContentID  string          `json:"content_id"`
	KeyID      string          `json:"key_id"`
	Proof      string          `json:"proof"` // opaque base64url
	JWKSURL    string          `json:"jwks_url,omitempty"`
	JWKSInline json.RawMessage `json:"jwks_inline,omitempty"`
	Content    string          `json:"content_b64,omitempty"`
}

// Options carries the optional transport hints.
type Options struct {
	// JWKSURL hints where the verifier can fetch the signer's key set.
	JWKSURL string

	// JWKSInline embeds a key set document directly.
	JWKSInline json.RawMessage

	// Content embeds a copy of the content bytes for self-contained
	// receipts.
	Content []byte
}

// FromProofJSON wraps a full proof document (JSON bytes) as the opaque
// proof field. This is the common construction path: verifiers need the
// whole proof envelope, not just the signature.
func FromProofJSON(contentID, keyID string, proofJSON []byte, opts Options) (*Portable, error) {
	if contentID == "" {
		return nil, errors.New("envelope: content id is required")
	}
	if keyID == "" {
		return nil, errors.New("envelope: key id is required")
	}
	if len(proofJSON) == 0 {
		return nil, errors.New("envelope: proof is required")
	}
	p := &Portable{
		ContentID:  contentID,
		KeyID:      keyID,
		Proof:      b64.EncodeToString(proofJSON),
		JWKSURL:    opts.JWKSURL,
		JWKSInline: opts.JWKSInline,
	}
	if len(opts.Content) > 0 {
		p.Content = b64.EncodeToString(opts.Content)
	}
	return p, nil
}

// FromParts wraps a raw detached signature. The proof field then carries
// only the signature bytes; verifiers must obtain the remaining envelope
// metadata elsewhere.
func FromParts(contentID, keyID string, signature []byte, opts Options) (*Portable, error) {
	if len(signature) == 0 {
		return nil, errors.New("envelope: signature is required")
	}
	return FromProofJSON(contentID, keyID, signature, opts)
}

// ProofBytes decodes the opaque proof field.
func (p *Portable) ProofBytes() ([]byte, error) {
	raw, err := b64.DecodeString(p.Proof)
	if err != nil {
		return nil, errors.New("envelope: proof is not valid base64url")
	}
	return raw, nil
}

// ContentBytes decodes the inline content copy. Returns nil when no copy
// is embedded.
func (p *Portable) ContentBytes() ([]byte, error) {
	if p.Content == "" {
		return nil, nil
	}
	raw, err := b64.DecodeString(p.Content)
	if err != nil {
		return nil, errors.New("envelope: content_b64 is not valid base64url")
	}
	return raw, nil
}

// Marshal renders the envelope as JSON.
func (p *Portable) Marshal() ([]byte, error) {
	return json.Marshal(p)
}

// Unmarshal parses a portable envelope from JSON.
func Unmarshal(data []byte) (*Portable, error) {
	var p Portable
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, errors.New("envelope: malformed portable envelope")
	}
	if p.ContentID == "" || p.KeyID == "" || p.Proof == "" {
		return nil, errors.New("envelope: missing required field")
	}
	return &p, nil
}
