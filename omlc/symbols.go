package omlc

// SymbolTable maps well-known map keys and enum-like string values to
// small integers before serialization. Substitution keeps the wire form
// compact and independent of key spelling length; it is NOT reversed by
// Decode; both ends share the table out of band.
//
// The table is an explicit versioned constant of this protocol. It is not
// derived from any schema system and must never be reordered: assigned
// codes are permanent, new entries only append.
type SymbolTable struct {
	Version int

	// Keys are substituted only in map-key position.
	Keys map[string]int64

	// Values are substituted only in value position, and only on exact
	// match of the full string.
	Values map[string]int64
}

// SymbolTableV1 is the table used by Encode.
var SymbolTableV1 = SymbolTable{
	Version: 1,
	Keys: map[string]int64{
		"intent":   1,
		"msg":      2,
		"id":       3,
		"ts":       4,
		"trace_id": 5,
		"sender":   6,
		"receiver": 7,
		"payload":  8,
		"amount":   9,
		"currency": 10,
		"status":   11,
		"error":    12,
		"version":  13,
		"kind":     14,
		"data":     15,
		"reply_to": 16,
		"session":  17,
	},
	Values: map[string]int64{
		"ECHO":     1,
		"TRANSFER": 2,
		"QUERY":    3,
		"NOTIFY":   4,
		"SETTLE":   5,
		"OK":       6,
		"ERROR":    7,
		"PENDING":  8,
	},
}
