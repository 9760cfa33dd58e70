package core

import (
	"errors"
	"fmt"
)

// Standard sentinel errors for comparison using errors.Is()
// These are generic errors that can be wrapped with additional context
var (
	// Caller contract violations. These propagate to the caller.
	ErrRequiredFieldMissing = errors.New("required field missing")
	ErrOperationEnded       = errors.New("operation already ended")
	ErrNilOperation         = errors.New("nil operation handle")

	// Telemetry fidelity errors. These are recovered locally.
	ErrMalformedContentBlock = errors.New("malformed content block")
	ErrExporterUnavailable   = errors.New("telemetry exporter unavailable")

	// The wrapped chat call failed or returned an unusable response
	ErrUpstreamFailure = errors.New("upstream call failed")

	// Configuration errors
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrMissingConfiguration = errors.New("missing required configuration")

	// State errors
	ErrNotInitialized = errors.New("not initialized")
)

// Error kinds used in OperationError.Kind and as the error.type fallback.
const (
	KindRequiredFieldMissing  = "required_field_missing"
	KindMalformedContentBlock = "malformed_content_block"
	KindUpstreamFailure       = "upstream_failure"
	KindExporterUnavailable   = "exporter_unavailable"
	KindUsage                 = "usage"
	KindConfig                = "config"
)

// OperationError provides structured error information with context
// It implements the error interface and supports error wrapping
type OperationError struct {
	Op          string // Operation that failed (e.g., "instrumentation.OnRequest")
	Kind        string // Error kind (one of the Kind* constants)
	OperationID string // Optional id of the telemetry operation involved
	Message     string // Human-readable message
	Err         error  // Underlying error for wrapping
}

// Error returns the string representation of the error
func (e *OperationError) Error() string {
	if e.Op != "" && e.Err != nil {
		if e.OperationID != "" {
			return fmt.Sprintf("%s [%s]: %v", e.Op, e.OperationID, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s error", e.Kind)
}

// Unwrap returns the underlying error for use with errors.Is/As
func (e *OperationError) Unwrap() error {
	return e.Err
}

// NewOperationError creates a new OperationError
func NewOperationError(op, kind string, err error) *OperationError {
	return &OperationError{
		Op:   op,
		Kind: kind,
		Err:  err,
	}
}

// IsCallerError reports whether err is a contract violation that must reach
// the caller of the wrapped service.
func IsCallerError(err error) bool {
	return errors.Is(err, ErrRequiredFieldMissing) ||
		errors.Is(err, ErrOperationEnded) ||
		errors.Is(err, ErrNilOperation)
}

// IsTelemetryOnly reports whether err only affects telemetry fidelity.
// Such errors are logged and dropped, never returned to the caller.
func IsTelemetryOnly(err error) bool {
	return errors.Is(err, ErrMalformedContentBlock) ||
		errors.Is(err, ErrExporterUnavailable)
}

// IsConfigurationError checks if an error is configuration-related
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration) ||
		errors.Is(err, ErrMissingConfiguration)
}

// KindOf classifies err into one of the Kind* constants.
// Unknown errors are reported as upstream failures.
func KindOf(err error) string {
	var opErr *OperationError
	if errors.As(err, &opErr) && opErr.Kind != "" {
		return opErr.Kind
	}
	switch {
	case errors.Is(err, ErrRequiredFieldMissing):
		return KindRequiredFieldMissing
	case errors.Is(err, ErrMalformedContentBlock):
		return KindMalformedContentBlock
	case errors.Is(err, ErrExporterUnavailable):
		return KindExporterUnavailable
	case errors.Is(err, ErrOperationEnded), errors.Is(err, ErrNilOperation):
		return KindUsage
	case IsConfigurationError(err):
		return KindConfig
	default:
		return KindUpstreamFailure
	}
}
