package ope

// Reason is a stable machine-readable code naming why a verification
// failed. The vocabulary is shared by every verification surface in the
// protocol (content proofs, HTTP signatures, the façade); callers that
// require proof must convert a failed Result into an explicit rejection
// carrying the reason, never a silent pass-through.
type Reason string

const (
	ReasonContentHashMismatch           Reason = "content_hash_mismatch"
	ReasonContentIDMismatch             Reason = "content_id_mismatch"
	ReasonTimestampSkew                 Reason = "timestamp_skew"
	ReasonSignatureInvalid              Reason = "signature_invalid"
	ReasonUnsupportedAlgorithmOrVersion Reason = "unsupported_algorithm_or_version"
	ReasonMalformedEnvelope             Reason = "malformed_header_or_envelope"
	ReasonUnknownKeyID                  Reason = "unknown_key_id"
	ReasonFetchFailed                   Reason = "fetch_failed"
	ReasonUnsupportedKeyType            Reason = "unsupported_key_type"
	ReasonResolvedKeyMismatch           Reason = "resolved_key_mismatch"
)

// Result is the outcome of a verification. Tampering is an expected
// outcome, not exceptional control flow.
type Result struct {
	OK     bool
	Reason Reason // empty when OK
	Detail string // human-readable, never for matching
}

func fail(reason Reason, detail string) Result {
	return Result{Reason: reason, Detail: detail}
}

// Fail builds a failed Result. Exported for the packages that share this
// reason vocabulary.
func Fail(reason Reason, detail string) Result {
	return fail(reason, detail)
}
