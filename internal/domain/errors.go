package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Failure kinds. Adapters wrap these so callers can classify with errors.Is.
var (
	ErrTransport   = errors.New("transport failure")
	ErrProtocol    = errors.New("protocol failure")
	ErrParse       = errors.New("parse failure")
	ErrEmptyResult = errors.New("empty result")
)

// SourceError is a failure attributed to one upstream source.
type SourceError struct {
	Source string
	Kind   error
	Err    error
}

func (e *SourceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Source, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Source, e.Kind, e.Err)
}

func (e *SourceError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewSourceError wraps err as a failure of the given kind.
func NewSourceError(source string, kind, err error) *SourceError {
	return &SourceError{Source: source, Kind: kind, Err: err}
}

// AcquisitionError reports that every source in a fallback list failed.
// Sources holds the attempt order; Failures maps each source to its reason.
type AcquisitionError struct {
	Sources  []string
	Failures map[string]error
}

// Add records a failure for source.
func (e *AcquisitionError) Add(source string, err error) {
	if e.Failures == nil {
		e.Failures = make(map[string]error)
	}
	if _, ok := e.Failures[source]; !ok {
		e.Sources = append(e.Sources, source)
	}
	e.Failures[source] = err
}

func (e *AcquisitionError) Error() string {
	parts := make([]string, 0, len(e.Sources))
	for _, s := range e.Sources {
		parts = append(parts, fmt.Sprintf("%s: %v", s, e.Failures[s]))
	}
	return "all sources failed: " + strings.Join(parts, "; ")
}

func (e *AcquisitionError) Unwrap() []error {
	errs := make([]error, 0, len(e.Sources))
	for _, s := range e.Sources {
		errs = append(errs, e.Failures[s])
	}
	return errs
}

// EmptyResultError names the mandatory stage that left no records.
type EmptyResultError struct {
	Stage string
}

func (e *EmptyResultError) Error() string {
	return fmt.Sprintf("no records remain after %s", e.Stage)
}

func (e *EmptyResultError) Unwrap() error {
	return ErrEmptyResult
}
