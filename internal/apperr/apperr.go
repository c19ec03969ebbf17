// Package apperr defines the error kinds a scrape request can fail with.
// Components wrap failures with a Kind; only the HTTP boundary turns them
// into response bodies.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies a failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindAuthentication
	KindValidation
	KindFetch
	KindStorage
	KindEmbedding
)

func (k Kind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication"
	case KindValidation:
		return "validation"
	case KindFetch:
		return "fetch"
	case KindStorage:
		return "storage"
	case KindEmbedding:
		return "embedding"
	default:
		return "unknown"
	}
}

// Error is a classified failure. Message is what the caller sees.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String() + " error"
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StatusCode is the status threaded into the response body.
// Only authentication failures carry one.
func (e *Error) StatusCode() int {
	if e.Kind == KindAuthentication {
		return http.StatusUnauthorized
	}
	return 0
}

// New creates a classified error with a caller-facing message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap classifies err, keeping its message verbatim.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: err.Error(), Err: err}
}

// Authentication returns a 401-class error with the given message.
func Authentication(message string) *Error {
	return New(KindAuthentication, message)
}

// Fetch classifies a content fetch failure.
func Fetch(err error) error { return Wrap(KindFetch, err) }

// Storage classifies an object or row write failure.
func Storage(err error) error { return Wrap(KindStorage, err) }

// Embedding classifies an embedding provider failure.
func Embedding(err error) error { return Wrap(KindEmbedding, err) }

// KindOf reports the kind of err, or KindUnknown.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}
