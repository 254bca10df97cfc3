package omlc

import (
	"bytes"
	"testing"
)

func TestEncode_Deterministic_KeyOrder(t *testing.T) {
	a := map[string]any{"intent": "ECHO", "msg": "hi", "zeta": int64(1)}
	b := map[string]any{"zeta": int64(1), "msg": "hi", "intent": "ECHO"}

	ea, err := Encode(a)
	if err != nil {
		t.Fatalf("Encode(a): %v", err)
	}
	eb, err := Encode(b)
	if err != nil {
		t.Fatalf("Encode(b): %v", err)
	}
	if !bytes.Equal(ea, eb) {
		t.Fatalf("encodings differ for equal logical content:\n%x\n%x", ea, eb)
	}
}

func TestEncode_Deterministic_UnicodeComposition(t *testing.T) {
	// "é" precomposed vs combining-accent form.
	composed := map[string]any{"msg": "café"}
	decomposed := map[string]any{"msg": "café"}

	ea, err := Encode(composed)
	if err != nil {
		t.Fatalf("Encode(composed): %v", err)
	}
	eb, err := Encode(decomposed)
	if err != nil {
		t.Fatalf("Encode(decomposed): %v", err)
	}
	if !bytes.Equal(ea, eb) {
		t.Fatalf("NFC normalization not applied: %x vs %x", ea, eb)
	}
}

func TestEncode_SymbolSubstitution(t *testing.T) {
	withSymbols, err := Encode(map[string]any{"intent": "ECHO"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	withoutSymbols, err := Encode(map[string]any{"unknown_key": "UNKNOWN_VALUE"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(withSymbols) >= len(withoutSymbols) {
		t.Fatalf("symbol substitution did not compact output: %d vs %d bytes",
			len(withSymbols), len(withoutSymbols))
	}

	v, err := Decode(withSymbols)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	m, ok := v.(map[any]any)
	if !ok {
		t.Fatalf("decoded type %T, want map[any]any", v)
	}
	// Decode does not reverse substitution: the table's codes appear as-is.
	got, ok := m[SymbolTableV1.Keys["intent"]]
	if !ok {
		t.Fatalf("substituted key code missing from decoded map: %v", m)
	}
	if got != SymbolTableV1.Values["ECHO"] {
		t.Fatalf("substituted value: got %v want %d", got, SymbolTableV1.Values["ECHO"])
	}
}

func TestEncode_NestedStructures(t *testing.T) {
	v := map[string]any{
		"payload": map[string]any{
			"items": []any{int64(1), "two", true, nil, 3.5},
		},
		"amount": int64(-42),
	}
	b, err := Encode(v)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, err := Decode(b); err != nil {
		t.Fatalf("Decode: %v", err)
	}
}

func TestEncode_IntegralFloatsCollapse(t *testing.T) {
	asInt, err := Encode(map[string]any{"a": int64(2)})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	asFloat, err := Encode(map[string]any{"a": float64(2)})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.Equal(asInt, asFloat) {
		t.Fatalf("2 and 2.0 encode differently: %x vs %x", asInt, asFloat)
	}
}

func TestEncode_UnsupportedType(t *testing.T) {
	_, err := Encode(map[string]any{"bad": make(chan int)})
	if err == nil {
		t.Fatalf("expected error for unsupported type")
	}
	if !IsKind(err, KindEncode) {
		t.Fatalf("expected KindEncode, got %v", err)
	}
}

func TestDecode_Malformed(t *testing.T) {
	cases := map[string][]byte{
		"empty":     {},
		"truncated": {0xa2, 0x01},
		"trailing":  {0x01, 0x02},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(in)
			if err == nil {
				t.Fatalf("expected decode error")
			}
			if !IsKind(err, KindDecode) {
				t.Fatalf("expected KindDecode, got %v", err)
			}
		})
	}
}

func TestDecode_BinaryRoundTrip(t *testing.T) {
	in := map[string]any{"free_key": "free_value", "n": int64(300)}
	b, err := Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	v, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	m, ok := v.(map[any]any)
	if !ok {
		t.Fatalf("decoded type %T", v)
	}
	if m["free_key"] != "free_value" {
		t.Fatalf("unsubstituted key lost: %v", m)
	}
	if m["n"] != int64(300) {
		t.Fatalf("integer round trip: got %v (%T)", m["n"], m["n"])
	}
}
