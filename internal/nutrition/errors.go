package nutrition

import (
	"errors"
	"fmt"
)

// Kind classifies the failures the inbound surface can report.
type Kind int

const (
	// KindInternal covers any fault not anticipated by the other kinds.
	KindInternal Kind = iota
	// KindInvalidInput means the caller sent an empty image or query.
	KindInvalidInput
	// KindClassifierUnavailable means no classification could be obtained.
	KindClassifierUnavailable
	// KindMalformedClassification means the classifier output was unusable.
	KindMalformedClassification
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindClassifierUnavailable:
		return "classifier_unavailable"
	case KindMalformedClassification:
		return "malformed_classification"
	default:
		return "internal"
	}
}

// Error is returned by Service and Resolver.ResolveClassification.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf reports the Kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}
