package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrConfiguration   = errors.New("missing configuration")
	ErrState           = errors.New("invalid state")
	ErrRerank          = errors.New("rerank failed")
	ErrGeneration      = errors.New("generation failed")
	ErrRateLimited     = errors.New("rate limited")
	ErrUnauthorized    = errors.New("unauthorized")
)

// ErrorKind is the outcome class of a failed operation.
type ErrorKind string

const (
	KindNone          ErrorKind = ""
	KindNotFound      ErrorKind = "not_found"
	KindValidation    ErrorKind = "validation"
	KindConfiguration ErrorKind = "configuration"
	KindState         ErrorKind = "state"
	KindUpstream      ErrorKind = "upstream"
	KindRateLimited   ErrorKind = "rate_limited"
	KindUnauthorized  ErrorKind = "unauthorized"
	KindInternal      ErrorKind = "internal"
)

// KindOf classifies err by the sentinel it wraps.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidArgument):
		return KindValidation
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrState):
		return KindState
	case errors.Is(err, ErrRerank), errors.Is(err, ErrGeneration):
		return KindUpstream
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	default:
		return KindInternal
	}
}
