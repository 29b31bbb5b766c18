package binance

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrInvalidInput marks local validation failures (bad quantity, leverage out
// of bounds, missing filters). These are rejected before any network call and
// are never retried.
var ErrInvalidInput = errors.New("invalid input")

func invalidInputf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidInput, format, args...)
}

// APIError is a structured {code, msg} rejection from the exchange. The code
// and message are propagated intact so operators can tell exchange-side
// rejections apart from local bugs.
type APIError struct {
	Code int64  `json:"code"`
	Msg  string `json:"msg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("binance api error (%d): %s", e.Code, e.Msg)
}

// TransportError wraps network and HTTP-layer failures. Callers must not
// retry non-idempotent operations on it: the request may have gone through.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError reports a response body that did not match the expected schema.
// It signals drift between client and exchange, not a transient fault.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode error: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// MissingFieldError reports exchange metadata lacking a required filter field.
// Raised during startup filter loading only.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing field in response: %s", e.Field)
}
