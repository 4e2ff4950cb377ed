package service

import "errors"

// Reason explains why a request carried no acceptable session token.
type Reason string

const (
	ReasonMissing          Reason = "missing"
	ReasonMalformed        Reason = "malformed"
	ReasonExpired          Reason = "expired"
	ReasonSignatureInvalid Reason = "signature_invalid"
)

// ErrUnauthorized matches every *RejectionError with errors.Is.
var ErrUnauthorized = errors.New("unauthorized")

// RejectionError is returned when a session token cannot be accepted.
type RejectionError struct {
	Reason Reason
	Err    error
}

func (e *RejectionError) Error() string {
	if e.Err != nil {
		return "token rejected (" + string(e.Reason) + "): " + e.Err.Error()
	}
	return "token rejected (" + string(e.Reason) + ")"
}

func (e *RejectionError) Unwrap() error { return e.Err }

func (e *RejectionError) Is(target error) bool { return target == ErrUnauthorized }

// Message is the client-facing description of the rejection.
func (e *RejectionError) Message() string {
	switch e.Reason {
	case ReasonMissing:
		return "Authentication required"
	case ReasonExpired:
		return "Session token has expired"
	case ReasonSignatureInvalid:
		return "Session token signature is invalid"
	default:
		return "Malformed authorization credentials"
	}
}
