package integration

import (
	"errors"
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Error taxonomy
// ---------------------------------------------------------------------------

var (
	// ErrConfiguration marks a missing or malformed credential. Never retried.
	ErrConfiguration = errors.New("integration: configuration error")
	// ErrUpstreamRejected marks an upstream error envelope or non-2xx reply.
	ErrUpstreamRejected = errors.New("integration: upstream rejected request")
	// ErrTimeout marks an outbound call that exceeded its deadline.
	ErrTimeout = errors.New("integration: upstream timeout")
	// ErrUpstreamUnavailable marks transport failures other than timeouts.
	ErrUpstreamUnavailable = errors.New("integration: upstream unavailable")
	// ErrInvalidResponse marks an upstream body that could not be decoded.
	ErrInvalidResponse = errors.New("integration: invalid upstream response")
	// ErrValidationFailure marks ingested data that violates the canonical schema.
	ErrValidationFailure = errors.New("integration: validation failure")
	// ErrConflictDetected marks a business condition awaiting human resolution.
	ErrConflictDetected = errors.New("integration: conflict detected")

	ErrConflictNotFound = errors.New("integration: conflict not found")
	ErrSyncInProgress   = errors.New("integration: sync already in progress")
	ErrInvalidStage     = errors.New("integration: invalid production stage")
	ErrInvalidSource    = errors.New("integration: invalid source")
	ErrInvalidSyncType  = errors.New("integration: invalid sync type")
	ErrEmptyStatusKey   = errors.New("integration: status key is required")
	ErrInvalidOrder     = errors.New("integration: invalid order")
	ErrInvalidProduct   = errors.New("integration: invalid product")
	ErrInvalidCustomer  = errors.New("integration: invalid customer")
	ErrOrderNotFound    = errors.New("integration: order not found")
	ErrProductNotFound  = errors.New("integration: product not found")
	ErrCustomerNotFound = errors.New("integration: customer not found")
	ErrMappingNotFound  = errors.New("integration: status mapping not found")
)

// ErrorKind classifies upstream failures so callers can tell a slow
// upstream from a broken one without inspecting messages.
type ErrorKind string

const (
	KindConfiguration   ErrorKind = "configuration"
	KindRejected        ErrorKind = "rejected"
	KindTimeout         ErrorKind = "timeout"
	KindUnavailable     ErrorKind = "unavailable"
	KindInvalidResponse ErrorKind = "invalid_response"
)

// sentinel returns the package error that this kind unwraps to
func (k ErrorKind) sentinel() error {
	switch k {
	case KindConfiguration:
		return ErrConfiguration
	case KindTimeout:
		return ErrTimeout
	case KindUnavailable:
		return ErrUpstreamUnavailable
	case KindInvalidResponse:
		return ErrInvalidResponse
	default:
		return ErrUpstreamRejected
	}
}

// UpstreamError is the single failure shape returned by source adapters.
// HTTP transport failures and the upstream's own error envelope both
// surface as an UpstreamError carrying a human-readable message.
type UpstreamError struct {
	Source  Source
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

// NewUpstreamError creates an upstream error
func NewUpstreamError(source Source, kind ErrorKind, message string, cause error) *UpstreamError {
	return &UpstreamError{
		Source:  source,
		Kind:    kind,
		Message: message,
		Err:     cause,
	}
}

// Error implements the error interface
func (e *UpstreamError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Source))
	b.WriteString(": ")
	b.WriteString(string(e.Kind))
	if e.Code != "" {
		b.WriteString(" [")
		b.WriteString(e.Code)
		b.WriteString("]")
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

// Unwrap exposes both the kind sentinel and the underlying cause
func (e *UpstreamError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind.sentinel()}
	}
	return []error{e.Kind.sentinel(), e.Err}
}

// NewConfigurationError reports a missing or malformed credential
func NewConfigurationError(source Source, credential, reason string) *UpstreamError {
	return &UpstreamError{
		Source:  source,
		Kind:    KindConfiguration,
		Message: fmt.Sprintf("%s %s", credential, reason),
	}
}

// KindOf returns the kind of an upstream failure, or "" for other errors
func KindOf(err error) ErrorKind {
	var upstreamErr *UpstreamError
	if errors.As(err, &upstreamErr) {
		return upstreamErr.Kind
	}
	switch {
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrUpstreamUnavailable):
		return KindUnavailable
	case errors.Is(err, ErrUpstreamRejected):
		return KindRejected
	case errors.Is(err, ErrInvalidResponse):
		return KindInvalidResponse
	}
	return ""
}

// UserMessage returns a short message suitable for operators. Technical
// detail belongs in the error itself.
func UserMessage(err error) string {
	var failure *ValidationFailure
	switch {
	case err == nil:
		return ""
	case errors.As(err, &failure):
		return fmt.Sprintf("%d field(s) failed validation", len(failure.Issues))
	case errors.Is(err, ErrConfiguration):
		return "Credential missing or malformed, check the integration settings"
	case errors.Is(err, ErrTimeout):
		return "Upstream did not answer in time"
	case errors.Is(err, ErrUpstreamUnavailable):
		return "Upstream could not be reached"
	case errors.Is(err, ErrUpstreamRejected):
		var upstreamErr *UpstreamError
		if errors.As(err, &upstreamErr) && upstreamErr.Message != "" {
			return upstreamErr.Message
		}
		return "Upstream rejected the request"
	case errors.Is(err, ErrInvalidResponse):
		return "Upstream answered with an unreadable response"
	case errors.Is(err, ErrSyncInProgress):
		return "A sync of this type is already running"
	}
	return "Unexpected error"
}

// ---------------------------------------------------------------------------
// Validation failure
// ---------------------------------------------------------------------------

// Issue is a single field-level validation problem
type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidationFailure carries the enumerable list of issues found in one record
type ValidationFailure struct {
	Schema string  `json:"schema"`
	Issues []Issue `json:"issues"`
}

// Error implements the error interface
func (f *ValidationFailure) Error() string {
	if len(f.Issues) == 0 {
		return fmt.Sprintf("%s: %s", ErrValidationFailure.Error(), f.Schema)
	}
	parts := make([]string, 0, len(f.Issues))
	for _, issue := range f.Issues {
		parts = append(parts, issue.Path+": "+issue.Message)
	}
	return fmt.Sprintf("%s: %s: %s", ErrValidationFailure.Error(), f.Schema, strings.Join(parts, "; "))
}

// Unwrap allows errors.Is(err, ErrValidationFailure)
func (f *ValidationFailure) Unwrap() error {
	return ErrValidationFailure
}

// RowIssue reports a rejected row of a batch together with its issues
type RowIssue struct {
	Row    int     `json:"row"`
	Key    string  `json:"key,omitempty"`
	Issues []Issue `json:"issues"`
}
