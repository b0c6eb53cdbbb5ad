// Package errors provides structured errors carried over the host bridge.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Frame errors
	CodeFrameMalformed   Code = "FRAME_MALFORMED"
	CodeFrameTooLarge    Code = "FRAME_TOO_LARGE"
	CodeFrameUnsupported Code = "FRAME_UNSUPPORTED"
	CodeRateLimited      Code = "RATE_LIMITED"

	// Host errors
	CodeHostReplaced Code = "HOST_REPLACED"

	// Actor and victim errors
	CodeActorRequired Code = "ACTOR_REQUIRED"
	CodeVictimInvalid Code = "VICTIM_INVALID"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeFrameMalformed,
		CodeFrameTooLarge,
		CodeFrameUnsupported,
		CodeActorRequired,
		CodeVictimInvalid:
		return codes.InvalidArgument

	// FailedPrecondition - state doesn't allow operation
	case CodeHostReplaced:
		return codes.FailedPrecondition

	case CodeRateLimited:
		return codes.ResourceExhausted

	default:
		return codes.Internal
	}
}

// Retryable reports whether a caller may resend the rejected request later.
func (c Code) Retryable() bool {
	return c == CodeRateLimited
}

var statusNames = map[codes.Code]string{
	codes.InvalidArgument:    "INVALID_ARGUMENT",
	codes.FailedPrecondition: "FAILED_PRECONDITION",
	codes.ResourceExhausted:  "RESOURCE_EXHAUSTED",
	codes.Internal:           "INTERNAL",
}

// StatusName returns the canonical upper-case name of the mapped gRPC code.
func (c Code) StatusName() string {
	if name, ok := statusNames[c.GRPCCode()]; ok {
		return name
	}
	return "UNKNOWN"
}
