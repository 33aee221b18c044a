package domain

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrInvalidFile     = errors.New("invalid file")
	ErrFileTooLarge    = errors.New("file too large")
	ErrBatchNotFound   = errors.New("batch not found")
	ErrTooManyFiles    = errors.New("too many files in batch")
	ErrEmptyBatch      = errors.New("batch has no files")
	ErrNotInitialized  = errors.New("client not initialized")
	ErrUnknownProvider = errors.New("unknown extraction provider")
	ErrFileExists      = errors.New("file already exists")
	ErrShuttingDown    = errors.New("shutting down")
)

// ValidationError represents a validation error with field and message information.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return e.Field + ": " + e.Message
	}
	return e.Message
}

// ErrorKind classifies a pipeline failure. Every kind belongs to exactly one stage.
type ErrorKind string

const (
	KindUnsupportedFormat  ErrorKind = "UnsupportedFormat"
	KindDecodeError        ErrorKind = "DecodeError"
	KindRasterizationError ErrorKind = "RasterizationError"
	KindExtractionTimeout  ErrorKind = "ExtractionTimeout"
	KindSchemaViolation    ErrorKind = "SchemaViolation"
	KindUpstreamError      ErrorKind = "UpstreamError"
	KindSinkCreateError    ErrorKind = "SinkCreateError"
	KindSinkWriteError     ErrorKind = "SinkWriteError"
)

// Stage is one of the three pipeline steps.
type Stage string

const (
	StageNormalize Stage = "normalize"
	StageExtract   Stage = "extract"
	StageSink      Stage = "sink"
)

// StageOf returns the stage a kind is raised from.
func StageOf(kind ErrorKind) Stage {
	switch kind {
	case KindUnsupportedFormat, KindDecodeError, KindRasterizationError:
		return StageNormalize
	case KindExtractionTimeout, KindSchemaViolation, KindUpstreamError:
		return StageExtract
	default:
		return StageSink
	}
}

// PipelineError is the error type raised by the normalizer, the extraction client
// and the sink writer.
type PipelineError struct {
	Kind    ErrorKind
	Message string
	Cause   error
	// Status is the upstream status code, when the failure came from a remote service.
	Status int
	// Resource is set on SinkWriteError: the spreadsheet exists but holds no data.
	Resource *SinkResource
}

// NewPipelineError creates a pipeline error of the given kind.
func NewPipelineError(kind ErrorKind, message string, cause error) *PipelineError {
	return &PipelineError{Kind: kind, Message: message, Cause: cause}
}

func (e *PipelineError) Error() string {
	msg := string(e.Kind) + ": " + e.Message
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Stage returns the stage the error belongs to.
func (e *PipelineError) Stage() Stage {
	return StageOf(e.Kind)
}

// KindOf returns the kind of the first PipelineError in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return "", false
}

// IsKind reports whether err carries a PipelineError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// StatusError is implemented by backend errors that carry a remote status code.
type StatusError interface {
	error
	StatusCode() int
}

// StatusOf returns the remote status code carried by err, or 0.
func StatusOf(err error) int {
	var se StatusError
	if errors.As(err, &se) {
		return se.StatusCode()
	}
	return 0
}
