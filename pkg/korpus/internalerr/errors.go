package internalerr

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrDuplicate       = errors.New("duplicate entry")
	ErrInvalidConfig   = errors.New("invalid configuration")
	ErrMissingResource = errors.New("missing lexical resource")

	ErrMalformedSource   = errors.New("malformed source")
	ErrDateParse         = errors.New("date parse error")
	ErrMissingRelevance  = errors.New("missing relevance score")
	ErrRepresentation    = errors.New("wrong processed_text representation")
	ErrResourceExhausted = errors.New("annotation resource exhausted")
	ErrInputTooLong      = errors.New("input exceeds annotator max length")
	ErrSerialization     = errors.New("serialization error")
)

// MalformedSourceError reports a source export that is not valid structured data.
// Records decoded before the failure are kept by the loader.
type MalformedSourceError struct {
	Source string
	Parsed int
	Err    error
}

func (e *MalformedSourceError) Error() string {
	return fmt.Sprintf("malformed source %q after %d records: %v", e.Source, e.Parsed, e.Err)
}

func (e *MalformedSourceError) Is(target error) bool { return target == ErrMalformedSource }

func (e *MalformedSourceError) Unwrap() error { return e.Err }

// DateParseError reports a present but malformed document_date during ingestion.
type DateParseError struct {
	Title string
	Value string
	Err   error
}

func (e *DateParseError) Error() string {
	return fmt.Sprintf("document %q: invalid document_date %q (want YYYY-MM-DD): %v", e.Title, e.Value, e.Err)
}

func (e *DateParseError) Is(target error) bool { return target == ErrDateParse }

func (e *DateParseError) Unwrap() error { return e.Err }

// MissingRelevanceError is returned when relevance filtering runs before the
// score for Term was attached to every document.
type MissingRelevanceError struct {
	Key  string
	Term string
}

func (e *MissingRelevanceError) Error() string {
	return fmt.Sprintf("document %q has no relevance_%s score", e.Key, e.Term)
}

func (e *MissingRelevanceError) Is(target error) bool { return target == ErrMissingRelevance }

// RepresentationError means a stage received processed_text in the wrong form.
// Want and Got are "text", "tokens" or "missing".
type RepresentationError struct {
	Stage string
	Key   string
	Want  string
	Got   string
}

func (e *RepresentationError) Error() string {
	return fmt.Sprintf("%s: document %q: processed_text is %s, want %s", e.Stage, e.Key, e.Got, e.Want)
}

func (e *RepresentationError) Is(target error) bool { return target == ErrRepresentation }

// ResourceExhaustionError is returned by an annotator that could not process
// an input at full size.
type ResourceExhaustionError struct {
	Size int
	Err  error
}

func (e *ResourceExhaustionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("annotator exhausted on %d bytes: %v", e.Size, e.Err)
	}
	return fmt.Sprintf("annotator exhausted on %d bytes", e.Size)
}

func (e *ResourceExhaustionError) Is(target error) bool { return target == ErrResourceExhausted }

func (e *ResourceExhaustionError) Unwrap() error { return e.Err }

// SerializationError reports a field value that cannot be written.
type SerializationError struct {
	Key   string
	Field string
	Err   error
}

func (e *SerializationError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("serialize %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("serialize document %q field %s: %v", e.Key, e.Field, e.Err)
}

func (e *SerializationError) Is(target error) bool { return target == ErrSerialization }

func (e *SerializationError) Unwrap() error { return e.Err }
