package services

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is a stable failure classification surfaced to callers. Kinds are
// part of the API contract: a client decides between resubmission,
// different parameters, or escalation based on the kind alone.
type Kind string

const (
	KindUnsupportedFormat   Kind = "unsupported_format"
	KindResourceUnavailable Kind = "resource_unavailable"
	KindExtractionFailed    Kind = "extraction_failed"
	KindDeviceError         Kind = "device_error"
	KindTranscriptionFailed Kind = "transcription_failed"
	KindInternal            Kind = "internal_error"
)

// Sentinel markers used with Wrap. Stage code tags failures with one of
// these; the job runner reads the kind back via Details.
var (
	ErrUnsupportedFormat   = &marker{KindUnsupportedFormat}
	ErrResourceUnavailable = &marker{KindResourceUnavailable}
	ErrExtractionFailed    = &marker{KindExtractionFailed}
	ErrDeviceError         = &marker{KindDeviceError}
	ErrTranscriptionFailed = &marker{KindTranscriptionFailed}
	ErrInternal            = &marker{KindInternal}
)

type marker struct {
	kind Kind
}

func (m *marker) Error() string { return string(m.kind) }

// ErrorDetails is the structured failure record extracted from a wrapped
// stage error.
type ErrorDetails struct {
	Kind      Kind
	Stage     string
	Operation string
	Message   string
	Cause     error
}

type classifiedError struct {
	details ErrorDetails
	wrapped error
}

func (e *classifiedError) Error() string {
	detail := buildDetail(e.details.Stage, e.details.Operation, e.details.Message)
	if e.details.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.details.Kind, detail, e.details.Cause)
	}
	return fmt.Sprintf("%s: %s", e.details.Kind, detail)
}

func (e *classifiedError) Unwrap() error { return e.wrapped }

// Is reports marker equality so errors.Is(err, services.ErrDeviceError)
// works across wrapping layers.
func (e *classifiedError) Is(target error) bool {
	if m, ok := target.(*marker); ok {
		return m.kind == e.details.Kind
	}
	return false
}

// Wrap builds a stage error carrying a stable kind plus stage context.
// The marker must be one of the exported sentinels; a nil marker is
// classified as internal.
func Wrap(sentinel error, stage, operation, message string, err error) error {
	kind := KindInternal
	if m, ok := sentinel.(*marker); ok {
		kind = m.kind
	}
	return &classifiedError{
		details: ErrorDetails{
			Kind:      kind,
			Stage:     stage,
			Operation: operation,
			Message:   message,
			Cause:     err,
		},
		wrapped: err,
	}
}

// Details extracts the structured failure record from an error chain.
// Unclassified errors come back as internal with the raw message.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{Kind: KindInternal}
	}
	var classified *classifiedError
	if errors.As(err, &classified) {
		return classified.details
	}
	return ErrorDetails{
		Kind:    KindInternal,
		Message: strings.TrimSpace(err.Error()),
		Cause:   err,
	}
}

// KindOf returns the stable kind of an error chain.
func KindOf(err error) Kind {
	return Details(err).Kind
}

// UserMessage renders the human-readable failure text stored on the job
// record: stage-prefixed detail without the kind tag.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	d := Details(err)
	detail := buildDetail(d.Stage, d.Operation, d.Message)
	if d.Cause != nil {
		return fmt.Sprintf("%s: %v", detail, d.Cause)
	}
	return detail
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
