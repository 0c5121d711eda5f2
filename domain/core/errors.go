package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Per-record errors, excluded from a batch rather than aborting it
	ErrValidation = errors.New("invalid variant record")
	ErrExtraction = errors.New("feature extraction failed")

	// Structural errors, abort the operation
	ErrTraining          = errors.New("training failed")
	ErrSchemaMismatch    = errors.New("feature schema mismatch")
	ErrMetricUndefined   = errors.New("metric undefined")
	ErrNoSelectableModel = errors.New("no selectable model")

	// Storage errors
	ErrNotFound         = errors.New("resource not found")
	ErrModelNotFound    = fmt.Errorf("%w: model", ErrNotFound)
	ErrRunNotFound      = fmt.Errorf("%w: training run", ErrNotFound)
	ErrHandleExists     = errors.New("model handle already published")
	ErrChecksumMismatch = errors.New("artifact checksum mismatch")
	ErrNoModelLoaded    = errors.New("no model loaded")
)

// ValidationError rejects a malformed record before feature extraction.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError creates a ValidationError for field
func NewValidationError(field string, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// ExtractionReason classifies why a feature could not be produced.
type ExtractionReason string

const (
	MissingAnnotation ExtractionReason = "missing_annotation"
	InvalidAllele     ExtractionReason = "invalid_allele"
)

// ExtractionError reports a per-record feature extraction failure.
type ExtractionError struct {
	Reason  ExtractionReason
	Field   string
	Variant string
	Detail  string
}

func (e *ExtractionError) Error() string {
	msg := fmt.Sprintf("extraction failed for %s: %s", e.Variant, e.Reason)
	if e.Field != "" {
		msg += " (" + e.Field + ")"
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *ExtractionError) Unwrap() error { return ErrExtraction }

// TrainingReason classifies fatal fit failures.
type TrainingReason string

const (
	DegenerateLabels TrainingReason = "degenerate_labels"
	SolverFailed     TrainingReason = "solver_failed"
)

// TrainingError aborts a fit attempt; no partial model is published.
type TrainingError struct {
	Reason TrainingReason
	Kind   string
	Detail string
}

func (e *TrainingError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Reason)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *TrainingError) Unwrap() error { return ErrTraining }

// NewDegenerateLabelsError reports a training set with fewer than two classes.
func NewDegenerateLabelsError(kind string, positives, negatives int) error {
	return &TrainingError{
		Reason: DegenerateLabels,
		Kind:   kind,
		Detail: fmt.Sprintf("training set has %d pathogenic and %d benign examples", positives, negatives),
	}
}

// MetricUndefinedError is surfaced instead of a degenerate metric value.
type MetricUndefinedError struct {
	Metric string
	Reason string
}

func (e *MetricUndefinedError) Error() string {
	return fmt.Sprintf("%s undefined: %s", e.Metric, e.Reason)
}

func (e *MetricUndefinedError) Unwrap() error { return ErrMetricUndefined }

// SchemaMismatchError means a model and its inputs disagree on feature schema.
type SchemaMismatchError struct {
	Expected string
	Actual   string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("feature schema mismatch: expected %q, got %q", e.Expected, e.Actual)
}

func (e *SchemaMismatchError) Unwrap() error { return ErrSchemaMismatch }

// NewSchemaMismatchError creates a SchemaMismatchError
func NewSchemaMismatchError(expected, actual string) error {
	return &SchemaMismatchError{Expected: expected, Actual: actual}
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// ReasonOf returns a short stable label for batch summaries.
func ReasonOf(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return "validation:" + ve.Field
	}
	var ee *ExtractionError
	if errors.As(err, &ee) {
		return "extraction:" + string(ee.Reason)
	}
	return "other"
}
