package model

// ErrorCode classifies apply and query failures for callers. Codes are part
// of the wire contract: clients decide retry behavior from them.
type ErrorCode string

const (
	// CodeAuthFailed: bad or missing signature or tenant. Rejected before
	// any side effect; safe to retry with corrected credentials.
	CodeAuthFailed ErrorCode = "AUTH_FAILED"

	// CodeValidationFailed: malformed payload. Rejected before mutation.
	CodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	// CodeMutateFailed: the external adapter failed or timed out. No credit
	// was granted; safe to retry with the same idempotency key.
	CodeMutateFailed ErrorCode = "MUTATE_FAILED"

	// CodeDuplicateComplete: not an error. The request matched a completed
	// idempotency reservation and the cached result was returned.
	CodeDuplicateComplete ErrorCode = "DUPLICATE_COMPLETE"

	// CodeChainCorruption: chain verification found a hash mismatch. The
	// affected key is read-only pending manual reconciliation.
	CodeChainCorruption ErrorCode = "CHAIN_CORRUPTION"

	// CodeStorageFailure: the ledger append failed after a successful
	// mutation. Surfaced distinctly so callers do not blindly retry and
	// double-mutate.
	CodeStorageFailure ErrorCode = "STORAGE_FAILURE"
)

// String returns the string representation of the error code.
func (c ErrorCode) String() string {
	return string(c)
}

// Retryable reports whether a caller may safely retry a request that failed
// with this code using the same idempotency key.
func (c ErrorCode) Retryable() bool {
	switch c {
	case CodeAuthFailed, CodeMutateFailed:
		return true
	}
	return false
}
