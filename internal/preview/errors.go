package preview

import (
	"errors"
	"net/http"

	"supaconnect/internal/metrics"
)

type Kind int

const (
	KindUnauthorized Kind = iota + 1
	KindInvalidRequest
	KindUpstream
	KindInvalidJSON
	KindTooLarge
	KindSession
)

// Error is a preview failure together with the message shown to the caller.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindInvalidRequest, KindInvalidJSON:
		return http.StatusBadRequest
	case KindTooLarge:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (e *Error) Outcome() string {
	switch e.Kind {
	case KindUnauthorized:
		return metrics.OutcomeUnauthorized
	case KindInvalidRequest:
		return metrics.OutcomeInvalidRequest
	case KindInvalidJSON:
		return metrics.OutcomeInvalidJSON
	case KindTooLarge:
		return metrics.OutcomeTooLarge
	case KindSession:
		return metrics.OutcomeSessionError
	default:
		return metrics.OutcomeUpstreamError
	}
}

// AsError returns err as an *Error, wrapping unknown errors as upstream failures.
func AsError(err error) *Error {
	var perr *Error
	if errors.As(err, &perr) {
		return perr
	}
	return &Error{Kind: KindUpstream, Message: err.Error(), Err: err}
}
