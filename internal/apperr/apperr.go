package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the HTTP boundary and for retry decisions.
type Kind string

const (
	KindConfig       Kind = "config"        // missing credential or bad setup, pre-flight
	KindAuth         Kind = "auth"          // bad or missing session / token
	KindNameConflict Kind = "name_conflict" // repository name taken or invalid
	KindRateLimited  Kind = "rate_limited"  // upstream throttling or permission denial
	KindUpstream     Kind = "upstream"      // any other upstream failure
	KindExtraction   Kind = "extraction"    // model responded with unusable text
	KindExhausted    Kind = "exhausted"     // every model in the fallback list failed
	KindNotFound     Kind = "not_found"
	KindInternal     Kind = "internal"
)

// Error carries a kind alongside the usual message/cause pair. None of the
// kinds are retried automatically above the model-fallback list.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a typed error with no underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates a typed error around an underlying cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of err, or KindInternal for untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Status maps an error to the HTTP status the boundary responds with.
func Status(err error) int {
	switch KindOf(err) {
	case KindAuth:
		return http.StatusUnauthorized
	case KindNameConflict:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindUpstream, KindExtraction, KindExhausted:
		return http.StatusBadGateway
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
