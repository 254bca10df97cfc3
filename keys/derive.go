package keys

import (
	"crypto/ed25519"
	"crypto/sha256"
	"errors"
	"fmt"
)

// DeriveServiceSeed deterministically derives a service-specific Ed25519
// seed from a root seed, so one operator secret can back per-service
// signing identities.
func DeriveServiceSeed(rootSeed []byte, service string) ([]byte, error) {
	if len(rootSeed) != ed25519.SeedSize {
		return nil, fmt.Errorf("root seed must be %d bytes", ed25519.SeedSize)
	}
	if err := CheckName(service); err != nil {
		return nil, err
	}

	h := sha256.New()
	_, _ = h.Write(rootSeed)
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte("odin-keys-v1"))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte("service:"))
	_, _ = h.Write([]byte(service))
	sum := h.Sum(nil)
	if len(sum) < ed25519.SeedSize {
		return nil, errors.New("kdf output too short")
	}
	out := make([]byte, ed25519.SeedSize)
	copy(out, sum[:ed25519.SeedSize])
	return out, nil
}

// DeriveService stores the derived seed for service under the given
// name and returns its public key.
func (ks *Keystore) DeriveService(from, service string, overwrite bool) (ed25519.PublicKey, error) {
	if err := CheckName(from); err != nil {
		return nil, err
	}
	rootSeed, err := loadSeed(ks.seedPath(from))
	if err != nil {
		return nil, err
	}
	seed, err := DeriveServiceSeed(rootSeed, service)
	if err != nil {
		return nil, err
	}
	return ks.Import(from+"-"+service, seed, overwrite)
}
