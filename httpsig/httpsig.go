// Package httpsig implements the ODIN HTTP request signature: a header
// value binding the method, path and body of one HTTP exchange to a
// signing key. It is a distinct domain from content proof envelopes: it
// protects the exchange, not an opaque payload.
//
// The header is a flat key=value;... string rather than a binary form so
// it survives proxies and reads well in logs:
//
//	v=1;ts_ns=<n>;alg=Ed25519;kid=<id>;hash=<b64url>;sig=<b64url>
//
// The header carries a timestamp but no replay window is enforced by
// default; anti-replay is a caller-owned policy (set VerifyOptions.MaxSkew
// to bound it).
package httpsig

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"odinprotocol.io/odin/jwks"
	"odinprotocol.io/odin/ope"
)

const (
	// Version is the header format version.
	Version = 1

	// Algorithm is the only admitted signature algorithm.
	Algorithm = "Ed25519"
)

const messagePrefix = "ODIN-HTTPSIG-v1\n"

var b64 = base64.RawURLEncoding

// Header is the parsed form of one signature header value. Created per
// request and discarded after verification.
type Header struct {
	Version     int
	TimestampNS int64
	Algorithm   string
	KeyID       string
	BodyHash    string // b64url sha-256 of the body
	Signature   string // b64url Ed25519 signature
}

// Encode renders the header value.
func (h *Header) Encode() string {
	return fmt.Sprintf("v=%d;ts_ns=%d;alg=%s;kid=%s;hash=%s;sig=%s",
		h.Version, h.TimestampNS, h.Algorithm, h.KeyID, h.BodyHash, h.Signature)
}

// Parse splits a header value into its typed form. Unknown fields are
// rejected; all six fields are required.
func Parse(value string) (*Header, error) {
	fields := make(map[string]string, 6)
	for _, part := range strings.Split(value, ";") {
		k, v, ok := strings.Cut(part, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("httpsig: malformed header segment %q", part)
		}
		if _, dup := fields[k]; dup {
			return nil, fmt.Errorf("httpsig: duplicate header field %q", k)
		}
		fields[k] = v
	}
	for _, required := range []string{"v", "ts_ns", "alg", "kid", "hash", "sig"} {
		if _, ok := fields[required]; !ok {
			return nil, fmt.Errorf("httpsig: missing header field %q", required)
		}
	}
	if len(fields) != 6 {
		return nil, fmt.Errorf("httpsig: unexpected header fields")
	}

	version, err := strconv.Atoi(fields["v"])
	if err != nil {
		return nil, fmt.Errorf("httpsig: malformed version %q", fields["v"])
	}
	tsNS, err := strconv.ParseInt(fields["ts_ns"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("httpsig: malformed timestamp %q", fields["ts_ns"])
	}

	return &Header{
		Version:     version,
		TimestampNS: tsNS,
		Algorithm:   fields["alg"],
		KeyID:       fields["kid"],
		BodyHash:    fields["hash"],
		Signature:   fields["sig"],
	}, nil
}

// SignOptions carries the optional inputs to Sign.
type SignOptions struct {
	// Timestamp overrides the signing time. Zero means time.Now().
	Timestamp time.Time
}

// Sign produces the header value for one request.
func Sign(priv ed25519.PrivateKey, keyID, method, path string, body []byte, opts SignOptions) (string, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return "", fmt.Errorf("httpsig: private key must be %d bytes, got %d", ed25519.PrivateKeySize, len(priv))
	}
	if keyID == "" {
		return "", fmt.Errorf("httpsig: key id is required")
	}

	ts := opts.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	tsNS := ts.UnixNano()

	bodyHash := sha256.Sum256(body)
	hashB64 := b64.EncodeToString(bodyHash[:])
	msg := canonicalMessage(tsNS, method, path, hashB64)
	sig := ed25519.Sign(priv, msg)

	h := &Header{
		Version:     Version,
		TimestampNS: tsNS,
		Algorithm:   Algorithm,
		KeyID:       keyID,
		BodyHash:    hashB64,
		Signature:   b64.EncodeToString(sig),
	}
	return h.Encode(), nil
}

// Keyfunc resolves a key id to a verification key. The jwks package
// provides adapters for documents and URL sources.
type Keyfunc func(kid string) (ed25519.PublicKey, error)

// VerifyOptions carries the optional inputs to Verify.
type VerifyOptions struct {
	// MaxSkew, when non-zero, bounds |now - ts_ns|. Zero disables the
	// check; replay protection is the caller's policy.
	MaxSkew time.Duration

	// Now overrides the clock for the skew check.
	Now func() time.Time
}

// Verify checks a header value against the presented method, path and
// body. The body hash is recomputed and compared before any asymmetric
// verification. The canonical message is rebuilt with the header's
// declared timestamp, not wall clock.
func Verify(headerValue, method, path string, body []byte, keyfunc Keyfunc, opts VerifyOptions) ope.Result {
	h, err := Parse(headerValue)
	if err != nil {
		return ope.Fail(ope.ReasonMalformedEnvelope, err.Error())
	}
	if h.Version != Version || h.Algorithm != Algorithm {
		return ope.Fail(ope.ReasonUnsupportedAlgorithmOrVersion,
			fmt.Sprintf("v=%d alg=%q", h.Version, h.Algorithm))
	}

	bodyHash := sha256.Sum256(body)
	if b64.EncodeToString(bodyHash[:]) != h.BodyHash {
		return ope.Fail(ope.ReasonContentHashMismatch, "body does not match declared hash")
	}

	if opts.MaxSkew > 0 {
		now := time.Now
		if opts.Now != nil {
			now = opts.Now
		}
		skew := now().UnixNano() - h.TimestampNS
		if skew < 0 {
			skew = -skew
		}
		if time.Duration(skew) > opts.MaxSkew {
			return ope.Fail(ope.ReasonTimestampSkew, "timestamp outside allowed skew")
		}
	}

	if keyfunc == nil {
		return ope.Fail(ope.ReasonUnknownKeyID, "no key source supplied")
	}
	pub, err := keyfunc(h.KeyID)
	if err != nil {
		return ope.Fail(resolveReason(err), err.Error())
	}

	sig, err := b64.DecodeString(h.Signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return ope.Fail(ope.ReasonMalformedEnvelope, "sig is not a valid Ed25519 signature")
	}
	msg := canonicalMessage(h.TimestampNS, method, path, h.BodyHash)
	if !ed25519.Verify(pub, msg, sig) {
		return ope.Fail(ope.ReasonSignatureInvalid, "signature does not verify")
	}
	return ope.Result{OK: true}
}

// canonicalMessage builds the signed byte sequence:
// prefix ‖ "ts_ns:<n>\n" ‖ "method:<METHOD>\n" ‖ "path:<path>\n" ‖
// "hash:<b64url body hash>\n".
func canonicalMessage(tsNS int64, method, path, bodyHashB64 string) []byte {
	var sb strings.Builder
	sb.WriteString(messagePrefix)
	sb.WriteString("ts_ns:")
	sb.WriteString(strconv.FormatInt(tsNS, 10))
	sb.WriteString("\nmethod:")
	sb.WriteString(strings.ToUpper(method))
	sb.WriteString("\npath:")
	sb.WriteString(path)
	sb.WriteString("\nhash:")
	sb.WriteString(bodyHashB64)
	sb.WriteString("\n")
	return []byte(sb.String())
}

// resolveReason maps key-resolution failures onto their own reason codes
// so operators can tell "forged signature" apart from "key service
// unreachable".
func resolveReason(err error) ope.Reason {
	switch {
	case errors.Is(err, jwks.ErrFetchFailed):
		return ope.ReasonFetchFailed
	case errors.Is(err, jwks.ErrUnsupportedKeyType):
		return ope.ReasonUnsupportedKeyType
	default:
		return ope.ReasonUnknownKeyID
	}
}
