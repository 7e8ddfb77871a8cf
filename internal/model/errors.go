package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure the intake pipeline can report.
type ErrorKind string

const (
	ErrorKindPermissionDenied  ErrorKind = "permission_denied"
	ErrorKindNoDeviceAvailable ErrorKind = "no_device_available"
	ErrorKindEmptyBuffer       ErrorKind = "empty_buffer"
	ErrorKindBufferFull        ErrorKind = "buffer_full"
	ErrorKindNetwork           ErrorKind = "network"
	ErrorKindTimeout           ErrorKind = "timeout"
	ErrorKindServerRejected    ErrorKind = "server_rejected"
	ErrorKindCancelled         ErrorKind = "cancelled"
)

// PipelineError is an error with a kind the view layer can act on.
type PipelineError struct {
	Kind    ErrorKind `json:"errorKind"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a PipelineError of the same kind.
func (e *PipelineError) Is(target error) bool {
	var other *PipelineError
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == e.Kind
}

// NewError creates a new pipeline error.
func NewError(kind ErrorKind, message string, err error) *PipelineError {
	return &PipelineError{
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Sentinels for errors.Is comparisons.
var (
	ErrPermissionDenied  = &PipelineError{Kind: ErrorKindPermissionDenied, Message: "camera permission denied"}
	ErrNoDeviceAvailable = &PipelineError{Kind: ErrorKindNoDeviceAvailable, Message: "no camera available"}
	ErrEmptyBuffer       = &PipelineError{Kind: ErrorKindEmptyBuffer, Message: "capture at least one page before submitting"}
	ErrBufferFull        = &PipelineError{Kind: ErrorKindBufferFull, Message: "page limit reached"}
	ErrNetwork           = &PipelineError{Kind: ErrorKindNetwork, Message: "network error"}
	ErrTimeout           = &PipelineError{Kind: ErrorKindTimeout, Message: "processing took too long"}
	ErrServerRejected    = &PipelineError{Kind: ErrorKindServerRejected, Message: "the server could not process the document"}
	ErrCancelled         = &PipelineError{Kind: ErrorKindCancelled, Message: "submission cancelled"}
)

// KindOf returns the kind of err, or "" when err is not a PipelineError.
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// IsDeviceError reports whether err is recoverable by falling back to file selection.
func IsDeviceError(err error) bool {
	kind := KindOf(err)
	return kind == ErrorKindPermissionDenied || kind == ErrorKindNoDeviceAvailable
}
