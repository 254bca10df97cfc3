package httpsig

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"odinprotocol.io/odin/jwks"
	"odinprotocol.io/odin/ope"
)

func testSigner(t *testing.T) (ed25519.PrivateKey, Keyfunc) {
	t.Helper()
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	keyfunc := func(kid string) (ed25519.PublicKey, error) {
		if kid != "svc-1" {
			return nil, jwks.ErrUnknownKeyID
		}
		return pub, nil
	}
	return priv, keyfunc
}

func TestSignVerify_RoundTrip(t *testing.T) {
	priv, keyfunc := testSigner(t)
	body := []byte(`{"a":2,"b":2}`)

	header, err := Sign(priv, "svc-1", "POST", "/task", body, SignOptions{})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !strings.HasPrefix(header, "v=1;ts_ns=") {
		t.Fatalf("unexpected header layout: %q", header)
	}

	res := Verify(header, "POST", "/task", body, keyfunc, VerifyOptions{})
	if !res.OK {
		t.Fatalf("Verify failed: %s (%s)", res.Reason, res.Detail)
	}

	// Replaying the identical triple with the identical header succeeds:
	// anti-replay is not this package's policy.
	if res := Verify(header, "POST", "/task", body, keyfunc, VerifyOptions{}); !res.OK {
		t.Fatalf("identical replay rejected: %s", res.Reason)
	}
}

func TestVerify_BindsMethodPathBody(t *testing.T) {
	priv, keyfunc := testSigner(t)
	body := []byte(`{"a":2,"b":2}`)

	header, err := Sign(priv, "svc-1", "POST", "/task", body, SignOptions{})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	cases := []struct {
		name   string
		method string
		path   string
		body   []byte
		reason ope.Reason
	}{
		{"method changed", "PUT", "/task", body, ope.ReasonSignatureInvalid},
		{"path changed", "POST", "/other", body, ope.ReasonSignatureInvalid},
		{"body changed", "POST", "/task", []byte(`{"a":2,"b":3}`), ope.ReasonContentHashMismatch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := Verify(header, tc.method, tc.path, tc.body, keyfunc, VerifyOptions{})
			if res.OK {
				t.Fatalf("expected failure")
			}
			if res.Reason != tc.reason {
				t.Fatalf("reason: got %s want %s", res.Reason, tc.reason)
			}
		})
	}
}

func TestVerify_HeaderTamper(t *testing.T) {
	priv, keyfunc := testSigner(t)
	body := []byte("body")

	header, err := Sign(priv, "svc-1", "GET", "/x", body, SignOptions{Timestamp: time.Unix(1_700_000_000, 0)})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	// Bump the declared timestamp: body hash still matches, the rebuilt
	// canonical message does not.
	tampered := strings.Replace(header, "ts_ns=1700000000000000000", "ts_ns=1700000000000000001", 1)
	if tampered == header {
		t.Fatalf("test setup: timestamp not found in header %q", header)
	}
	res := Verify(tampered, "GET", "/x", body, keyfunc, VerifyOptions{})
	if res.OK || res.Reason != ope.ReasonSignatureInvalid {
		t.Fatalf("expected signature_invalid, got ok=%v reason=%s", res.OK, res.Reason)
	}
}

func TestVerify_MalformedHeader(t *testing.T) {
	_, keyfunc := testSigner(t)
	cases := map[string]string{
		"empty":         "",
		"no equals":     "v1;ts_ns2",
		"missing sig":   "v=1;ts_ns=1;alg=Ed25519;kid=k;hash=x",
		"duplicate":     "v=1;v=1;ts_ns=1;alg=Ed25519;kid=k;hash=x;sig=y",
		"extra field":   "v=1;ts_ns=1;alg=Ed25519;kid=k;hash=x;sig=y;evil=1",
		"bad version":   "v=one;ts_ns=1;alg=Ed25519;kid=k;hash=x;sig=y",
		"bad timestamp": "v=1;ts_ns=soon;alg=Ed25519;kid=k;hash=x;sig=y",
	}
	for name, value := range cases {
		t.Run(name, func(t *testing.T) {
			res := Verify(value, "GET", "/", nil, keyfunc, VerifyOptions{})
			if res.OK || res.Reason != ope.ReasonMalformedEnvelope {
				t.Fatalf("expected malformed_header_or_envelope, got ok=%v reason=%s", res.OK, res.Reason)
			}
		})
	}
}

func TestVerify_VersionAlgorithmExactMatch(t *testing.T) {
	priv, keyfunc := testSigner(t)
	header, err := Sign(priv, "svc-1", "GET", "/", nil, SignOptions{})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	wrongVersion := strings.Replace(header, "v=1;", "v=2;", 1)
	if res := Verify(wrongVersion, "GET", "/", nil, keyfunc, VerifyOptions{}); res.Reason != ope.ReasonUnsupportedAlgorithmOrVersion {
		t.Fatalf("version: got %s", res.Reason)
	}
	wrongAlg := strings.Replace(header, "alg=Ed25519", "alg=RSA", 1)
	if res := Verify(wrongAlg, "GET", "/", nil, keyfunc, VerifyOptions{}); res.Reason != ope.ReasonUnsupportedAlgorithmOrVersion {
		t.Fatalf("alg: got %s", res.Reason)
	}
}

func TestVerify_KeyResolution(t *testing.T) {
	priv, _ := testSigner(t)
	body := []byte("b")
	header, err := Sign(priv, "svc-1", "GET", "/", body, SignOptions{})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	unknown := func(string) (ed25519.PublicKey, error) { return nil, jwks.ErrUnknownKeyID }
	if res := Verify(header, "GET", "/", body, unknown, VerifyOptions{}); res.Reason != ope.ReasonUnknownKeyID {
		t.Fatalf("unknown kid: got %s", res.Reason)
	}

	down := func(string) (ed25519.PublicKey, error) {
		return nil, errors.Join(jwks.ErrFetchFailed, errors.New("dial tcp: refused"))
	}
	if res := Verify(header, "GET", "/", body, down, VerifyOptions{}); res.Reason != ope.ReasonFetchFailed {
		t.Fatalf("fetch failure: got %s", res.Reason)
	}

	rsa := func(string) (ed25519.PublicKey, error) { return nil, jwks.ErrUnsupportedKeyType }
	if res := Verify(header, "GET", "/", body, rsa, VerifyOptions{}); res.Reason != ope.ReasonUnsupportedKeyType {
		t.Fatalf("unsupported type: got %s", res.Reason)
	}

	wrongKey := func(string) (ed25519.PublicKey, error) {
		other := ed25519.NewKeyFromSeed(make([]byte, ed25519.SeedSize))
		return other.Public().(ed25519.PublicKey), nil
	}
	if res := Verify(header, "GET", "/", body, wrongKey, VerifyOptions{}); res.Reason != ope.ReasonSignatureInvalid {
		t.Fatalf("wrong key: got %s", res.Reason)
	}
}

func TestVerify_Skew(t *testing.T) {
	priv, keyfunc := testSigner(t)
	signedAt := time.Unix(1_700_000_000, 0)
	header, err := Sign(priv, "svc-1", "GET", "/", nil, SignOptions{Timestamp: signedAt})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	later := func() time.Time { return signedAt.Add(time.Hour) }
	// Default: no replay window.
	if res := Verify(header, "GET", "/", nil, keyfunc, VerifyOptions{Now: later}); !res.OK {
		t.Fatalf("skew enforced without MaxSkew: %s", res.Reason)
	}
	res := Verify(header, "GET", "/", nil, keyfunc, VerifyOptions{MaxSkew: time.Minute, Now: later})
	if res.OK || res.Reason != ope.ReasonTimestampSkew {
		t.Fatalf("expected timestamp_skew, got ok=%v reason=%s", res.OK, res.Reason)
	}
}

func TestParse_RoundTrip(t *testing.T) {
	h := &Header{
		Version:     1,
		TimestampNS: 1234567890,
		Algorithm:   "Ed25519",
		KeyID:       "svc-1",
		BodyHash:    base64.RawURLEncoding.EncodeToString([]byte("hash")),
		Signature:   base64.RawURLEncoding.EncodeToString([]byte("sig")),
	}
	back, err := Parse(h.Encode())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if *back != *h {
		t.Fatalf("round trip mismatch: %+v vs %+v", back, h)
	}
}
