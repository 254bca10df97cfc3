// Package cidutil derives content identifiers for canonical bytes.
//
// An ODIN CID is a multibase base32 string (lowercase, unpadded, "b"
// marker) over a sha2-256 multihash: marker + base32(algorithm code ‖
// digest length ‖ 32-byte digest). It is a pure function of the input
// bytes; CIDs computed by independent implementations over the same bytes
// are identical.
package cidutil

import (
	"bytes"
	"errors"

	"github.com/multiformats/go-multibase"
	"github.com/multiformats/go-multihash"
)

var ErrInvalidCID = errors.New("cidutil: invalid cid")

// Sum returns the CID for data.
func Sum(data []byte) string {
	mh, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		// multihash.Sum only errors for unknown codes or bad lengths; with
		// SHA2_256 and -1 this is unreachable.
		return ""
	}
	s, err := multibase.Encode(multibase.Base32, mh)
	if err != nil {
		return ""
	}
	return s
}

// Validate checks that s is a well-formed ODIN CID: base32 multibase over
// a sha2-256 multihash with a 32-byte digest.
func Validate(s string) error {
	enc, raw, err := multibase.Decode(s)
	if err != nil {
		return ErrInvalidCID
	}
	if enc != multibase.Base32 {
		return ErrInvalidCID
	}
	dec, err := multihash.Decode(raw)
	if err != nil {
		return ErrInvalidCID
	}
	if dec.Code != multihash.SHA2_256 || dec.Length != 32 {
		return ErrInvalidCID
	}
	return nil
}

// Matches reports whether s is the CID of data.
func Matches(s string, data []byte) bool {
	if Validate(s) != nil {
		return false
	}
	return s == Sum(data)
}

// Digest returns the raw 32-byte digest carried by a CID.
func Digest(s string) ([]byte, error) {
	if err := Validate(s); err != nil {
		return nil, err
	}
	_, raw, err := multibase.Decode(s)
	if err != nil {
		return nil, ErrInvalidCID
	}
	dec, err := multihash.Decode(raw)
	if err != nil {
		return nil, ErrInvalidCID
	}
	return bytes.Clone(dec.Digest), nil
}
