package reconcile

import "fmt"

// ProtocolError is a rejected inbound event with a machine-readable code
type ProtocolError struct {
	Err     error
	Message string
	Code    string
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// Rejection codes
const (
	ErrCodeMissingSignature = "missing_signature"
	ErrCodeInvalidSignature = "invalid_signature"
	ErrCodeMalformedPayload = "malformed_payload"
	ErrCodeOrderNotFound    = "order_not_found"
	ErrCodeInternalError    = "internal_error"
)
