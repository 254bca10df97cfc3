// Package ope implements the ODIN Proof Envelope: a detached Ed25519
// signature plus metadata binding a signer to exact content bytes.
//
// The signed message has a fixed byte layout (domain prefix, big-endian
// timestamp, content hash, optional content-id) rather than a
// canonicalized rendering of the envelope itself, so independent
// implementations cannot disagree about what was signed.
//
// Verification never returns a Go error for tamper conditions: tampering
// and absence are expected outcomes, reported as a structured Result.
// Signing fails only on malformed key material.
package ope

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"
)

const (
	// Version is the envelope format version.
	Version = 1

	// Algorithm is the only signature algorithm the format admits.
	Algorithm = "Ed25519"
)

// domainPrefix separates OPE signatures from every other Ed25519 use in
// the protocol.
var domainPrefix = []byte("ODIN-OPE-v1")

// b64 is the encoding for all base64 fields: urlsafe, unpadded.
var b64 = base64.RawURLEncoding

// Envelope is the wire form of a proof. Immutable once created.
type Envelope struct {
	Version     int    `json:"version"`
	Algorithm   string `json:"algorithm"`
	TimestampNS int64  `json:"timestamp_ns"`
	KeyID       string `json:"key_id"`
	PublicKey   string `json:"public_key_b64"`
	ContentHash string `json:"content_hash_b64"`
	Signature   string `json:"signature_b64"`
	ContentID   string `json:"content_id,omitempty"`
}

// Marshal renders the envelope as JSON.
func (e *Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Unmarshal parses an envelope from JSON.
func Unmarshal(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("ope: malformed envelope: %w", err)
	}
	return &e, nil
}

// SignOptions carries the optional inputs to Sign.
type SignOptions struct {
	// ContentID binds the envelope to a content identifier. Optional.
	ContentID string

	// Timestamp overrides the signing time. Zero means time.Now().
	Timestamp time.Time
}

// Sign produces a proof envelope over content.
func Sign(priv ed25519.PrivateKey, keyID string, content []byte, opts SignOptions) (*Envelope, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("ope: private key must be %d bytes, got %d", ed25519.PrivateKeySize, len(priv))
	}
	if keyID == "" {
		return nil, fmt.Errorf("ope: key id is required")
	}

	ts := opts.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	tsNS := ts.UnixNano()

	hash := sha256.Sum256(content)
	msg := canonicalMessage(tsNS, hash[:], opts.ContentID)
	sig := ed25519.Sign(priv, msg)
	pub := priv.Public().(ed25519.PublicKey)

	return &Envelope{
		Version:     Version,
		Algorithm:   Algorithm,
		TimestampNS: tsNS,
		KeyID:       keyID,
		PublicKey:   b64.EncodeToString(pub),
		ContentHash: b64.EncodeToString(hash[:]),
		Signature:   b64.EncodeToString(sig),
		ContentID:   opts.ContentID,
	}, nil
}

// VerifyOptions carries the optional inputs to Verify.
type VerifyOptions struct {
	// ExpectedContentID, when set, must equal the envelope's declared
	// content id.
	ExpectedContentID string

	// MaxSkew, when non-zero, bounds |now - timestamp|. Zero disables the
	// check: receipts may be audited long after issuance.
	MaxSkew time.Duration

	// Now overrides the clock for the skew check. Nil means time.Now.
	Now func() time.Time
}

// Verify checks env against content. The checks run in a fixed order:
// content hash, content id, timestamp skew (when enabled), signature.
// The signature is verified over the canonical message rebuilt from the
// envelope's own declared fields, with the envelope's own declared public
// key; resolving that key independently is the verifier façade's job.
func Verify(env *Envelope, content []byte, opts VerifyOptions) Result {
	if env == nil {
		return fail(ReasonMalformedEnvelope, "nil envelope")
	}
	if env.Version != Version || env.Algorithm != Algorithm {
		return fail(ReasonUnsupportedAlgorithmOrVersion,
			fmt.Sprintf("version=%d algorithm=%q", env.Version, env.Algorithm))
	}

	declaredHash, err := b64.DecodeString(env.ContentHash)
	if err != nil || len(declaredHash) != sha256.Size {
		return fail(ReasonMalformedEnvelope, "content_hash_b64 is not a valid sha-256 digest")
	}
	hash := sha256.Sum256(content)
	if !bytes.Equal(hash[:], declaredHash) {
		return fail(ReasonContentHashMismatch, "content bytes do not match declared hash")
	}

	if opts.ExpectedContentID != "" && opts.ExpectedContentID != env.ContentID {
		return fail(ReasonContentIDMismatch,
			fmt.Sprintf("declared %q, expected %q", env.ContentID, opts.ExpectedContentID))
	}

	if opts.MaxSkew > 0 {
		now := time.Now
		if opts.Now != nil {
			now = opts.Now
		}
		skew := now().UnixNano() - env.TimestampNS
		if skew < 0 {
			skew = -skew
		}
		if time.Duration(skew) > opts.MaxSkew {
			return fail(ReasonTimestampSkew, "timestamp outside allowed skew")
		}
	}

	pub, err := b64.DecodeString(env.PublicKey)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return fail(ReasonMalformedEnvelope, "public_key_b64 is not a valid Ed25519 key")
	}
	sig, err := b64.DecodeString(env.Signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return fail(ReasonMalformedEnvelope, "signature_b64 is not a valid Ed25519 signature")
	}

	msg := canonicalMessage(env.TimestampNS, declaredHash, env.ContentID)
	if !ed25519.Verify(ed25519.PublicKey(pub), msg, sig) {
		return fail(ReasonSignatureInvalid, "signature does not verify")
	}
	return Result{OK: true}
}

// canonicalMessage builds the exact byte sequence that is signed:
// domain prefix ‖ 8-byte big-endian timestamp_ns ‖ 32-byte content hash ‖
// optional ASCII content-id bytes.
func canonicalMessage(tsNS int64, contentHash []byte, contentID string) []byte {
	msg := make([]byte, 0, len(domainPrefix)+8+len(contentHash)+len(contentID))
	msg = append(msg, domainPrefix...)
	msg = binary.BigEndian.AppendUint64(msg, uint64(tsNS))
	msg = append(msg, contentHash...)
	msg = append(msg, contentID...)
	return msg
}
