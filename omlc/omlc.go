// Package omlc implements OML-C, the canonical binary encoding of a
// logical message.
//
// Encode is the single canonicalization choke point for the protocol: all
// content hashing, CID derivation and signing operate on Encode output.
// Structurally equal inputs produce byte-identical output regardless of
// map key order or Unicode composition. The pipeline is: NFC-normalize every
// string, substitute well-known keys and enum values through the versioned
// symbol table, then emit RFC 8949 Core Deterministic CBOR (sorted map
// keys, shortest-form integers, no indefinite-length items).
//
// Decode is the literal inverse of the CBOR layer only. Symbol
// substitution is not reversed; decoders see the small-integer codes and
// resolve them against the shared table themselves.
package omlc

import (
	"fmt"
	"math"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/text/unicode/norm"
)

var encMode cbor.EncMode
var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("omlc: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		// Substituted map keys are integers; decode them as signed so the
		// decoded tree carries int64 throughout.
		IntDec: cbor.IntDecConvertSigned,
	}.DecMode()
	if err != nil {
		panic("omlc: CBOR decoder initialization failed: " + err.Error())
	}
}

// Encode serializes a logical message to canonical bytes.
//
// Accepted shapes: map[string]any, []any, string, bool, nil, Go integers,
// float32/float64, and []byte. Input must be acyclic (caller contract;
// cycles are a documented non-goal). Encoding fails only for unsupported
// value types.
func Encode(v any) ([]byte, error) {
	n, err := normalize(v)
	if err != nil {
		return nil, err
	}
	out, err := encMode.Marshal(n)
	if err != nil {
		return nil, wrapError(KindEncode, "serialization failed", err)
	}
	return out, nil
}

// Decode parses canonical bytes back into the logical tree of the binary
// layer: maps decode to map[any]any (keys may be substituted integers),
// integers to int64. Malformed or trailing bytes fail with a KindDecode
// error.
func Decode(b []byte) (any, error) {
	var v any
	if err := decMode.Unmarshal(b, &v); err != nil {
		return nil, wrapError(KindDecode, "malformed OML-C bytes", err)
	}
	return v, nil
}

// normalize rewrites the input tree into the form handed to the CBOR
// encoder: NFC strings, symbol-substituted keys and values.
func normalize(v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case bool, []byte:
		return t, nil
	case string:
		s := norm.NFC.String(t)
		if code, ok := SymbolTableV1.Values[s]; ok {
			return code, nil
		}
		return s, nil
	case int:
		return int64(t), nil
	case int8:
		return int64(t), nil
	case int16:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case int64:
		return t, nil
	case uint:
		return uint64(t), nil
	case uint8:
		return uint64(t), nil
	case uint16:
		return uint64(t), nil
	case uint32:
		return uint64(t), nil
	case uint64:
		return t, nil
	case float32:
		return normalizeFloat(float64(t))
	case float64:
		return normalizeFloat(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			n, err := normalize(e)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case map[string]any:
		out := make(map[any]any, len(t))
		for k, e := range t {
			nk := normalizeKey(k)
			n, err := normalize(e)
			if err != nil {
				return nil, err
			}
			out[nk] = n
		}
		return out, nil
	default:
		return nil, newError(KindEncode, fmt.Sprintf("unsupported value type %T", v))
	}
}

func normalizeKey(k string) any {
	s := norm.NFC.String(k)
	if code, ok := SymbolTableV1.Keys[s]; ok {
		return code
	}
	return s
}

// normalizeFloat collapses integral floats to integers so the encoder's
// shortest-form rule applies uniformly regardless of how a caller's JSON
// layer typed the number.
func normalizeFloat(f float64) (any, error) {
	if f == math.Trunc(f) && !math.IsInf(f, 0) && math.Abs(f) < 1<<53 {
		return int64(f), nil
	}
	return f, nil
}
