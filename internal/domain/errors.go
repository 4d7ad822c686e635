package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by archives when a site or run is not indexed.
	ErrNotFound = errors.New("not found")

	// ErrUnknownModel is returned when a model name has no archive entry.
	ErrUnknownModel = errors.New("unknown model")

	// ErrNoData is returned when raw text holds no usable sounding.
	ErrNoData = errors.New("not enough data")
)

// ErrorKind classifies source failures for reporting.
type ErrorKind int

const (
	// KindConnection covers an unreachable or unopenable archive.
	KindConnection ErrorKind = iota
	// KindLookup covers unknown sites, models, or runs.
	KindLookup
	// KindIO covers file and query failures.
	KindIO
	// KindParse covers raw text that cannot be interpreted.
	KindParse
)

func (k ErrorKind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindLookup:
		return "lookup"
	case KindIO:
		return "io"
	case KindParse:
		return "parse"
	default:
		return "unknown"
	}
}

// SourceError is a loader failure carried as data through the pipeline.
type SourceError struct {
	Kind  ErrorKind
	Op    string
	Site  string
	Model string
	Err   error
}

func (e *SourceError) Error() string {
	switch {
	case e.Site != "" && e.Model != "":
		return fmt.Sprintf("%s %s/%s: %v", e.Op, e.Site, e.Model, e.Err)
	case e.Site != "":
		return fmt.Sprintf("%s %s: %v", e.Op, e.Site, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// KindOf returns the classification of err, treating unclassified errors as I/O.
func KindOf(err error) ErrorKind {
	var se *SourceError
	if errors.As(err, &se) {
		return se.Kind
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnknownModel) {
		return KindLookup
	}
	if errors.Is(err, ErrNoData) {
		return KindParse
	}
	return KindIO
}
