// Package keys provides local-first Ed25519 key management for signers.
//
// Features:
// - Supports Ed25519 keys only
// - Stores seeds on the local filesystem
// - Generates deterministic subkeys for named services
// - Exports key sets as JWKS documents for verifiers
//
// This package is designed to be straightforward and explicit. It is a
// signer-side convenience, not part of the verification protocol: a key
// id here is simply the name a seed was stored under.
package keys

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"odinprotocol.io/odin/jwks"
)

// Keystore stores Ed25519 seeds under a directory, one subdirectory per
// key name.
type Keystore struct {
	Directory string
}

// DefaultDirectory returns ~/.odin/keys.
func DefaultDirectory() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".odin", "keys"), nil
}

// Open returns a keystore rooted at directory, defaulting to
// DefaultDirectory when empty.
func Open(directory string) (*Keystore, error) {
	if directory == "" {
		var err error
		directory, err = DefaultDirectory()
		if err != nil {
			return nil, err
		}
	}
	return &Keystore{Directory: directory}, nil
}

// CheckName validates a key name: letters, digits, dash, underscore.
func CheckName(name string) error {
	if name == "" {
		return errors.New("key name cannot be empty")
	}
	for _, char := range name {
		if (char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') || (char >= '0' && char <= '9') || char == '-' || char == '_' {
			continue
		}
		return fmt.Errorf("invalid character %q in key name", char)
	}
	return nil
}

func (ks *Keystore) seedPath(name string) string {
	return filepath.Join(ks.Directory, name, "key.seed")
}

// Generate creates a new random keypair stored under name and returns
// its public key.
func (ks *Keystore) Generate(name string, overwrite bool) (ed25519.PublicKey, error) {
	seed := make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, err
	}
	return ks.Import(name, seed, overwrite)
}

// Import stores an existing seed under name and returns its public key.
func (ks *Keystore) Import(name string, seed []byte, overwrite bool) (ed25519.PublicKey, error) {
	if err := CheckName(name); err != nil {
		return nil, err
	}
	if err := saveSeed(ks.seedPath(name), seed, overwrite); err != nil {
		return nil, err
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return priv.Public().(ed25519.PublicKey), nil
}

// Signer loads the private key stored under name. The key id for
// envelopes signed with it is the name itself.
func (ks *Keystore) Signer(name string) (ed25519.PrivateKey, error) {
	if err := CheckName(name); err != nil {
		return nil, err
	}
	seed, err := loadSeed(ks.seedPath(name))
	if err != nil {
		return nil, err
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

// List returns the stored key names, sorted.
func (ks *Keystore) List() ([]string, error) {
	entries, err := os.ReadDir(ks.Directory)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(ks.seedPath(e.Name())); err == nil {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// ExportJWKS builds a key set document for the named keys, suitable for
// serving to verifiers. With no names, every stored key is exported.
func (ks *Keystore) ExportJWKS(names ...string) (*jwks.Document, error) {
	if len(names) == 0 {
		var err error
		names, err = ks.List()
		if err != nil {
			return nil, err
		}
	}
	doc := &jwks.Document{}
	for _, name := range names {
		priv, err := ks.Signer(name)
		if err != nil {
			return nil, err
		}
		pub := priv.Public().(ed25519.PublicKey)
		doc.Keys = append(doc.Keys, jwks.Key{
			KeyType:   "OKP",
			Curve:     "Ed25519",
			KeyID:     name,
			PublicKey: base64.RawURLEncoding.EncodeToString(pub),
		})
	}
	return doc, nil
}

// ParseSeedHex decodes a hex-encoded Ed25519 seed.
func ParseSeedHex(seedHex string) ([]byte, error) {
	seedHex = strings.TrimSpace(seedHex)
	seedHex = strings.TrimPrefix(seedHex, "0x")
	data, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, err
	}
	if len(data) != ed25519.SeedSize {
		return nil, fmt.Errorf("expected seed length of %d bytes, got %d", ed25519.SeedSize, len(data))
	}
	return data, nil
}

// Fingerprint returns a short stable identifier for a public key:
// "ed25519:" + base64url of the first 8 bytes of its sha-256 digest.
func Fingerprint(pub ed25519.PublicKey) (string, error) {
	if l := len(pub); l != ed25519.PublicKeySize {
		return "", fmt.Errorf("ed25519 public key must be %d bytes, got %d", ed25519.PublicKeySize, l)
	}
	sum := sha256.Sum256(pub)
	return "ed25519:" + base64.RawURLEncoding.EncodeToString(sum[:8]), nil
}

func saveSeed(filePath string, seed []byte, overwrite bool) error {
	if len(seed) != ed25519.SeedSize {
		return fmt.Errorf("expected seed length of %d bytes", ed25519.SeedSize)
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0o700); err != nil {
		return err
	}
	flags := os.O_WRONLY | os.O_CREATE
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	file, err := os.OpenFile(filePath, flags, 0o600)
	if err != nil {
		return err
	}
	defer file.Close()
	if _, err := file.WriteString(hex.EncodeToString(seed) + "\n"); err != nil {
		return err
	}
	return file.Close()
}

func loadSeed(filePath string) ([]byte, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return ParseSeedHex(strings.TrimSpace(string(data)))
}
