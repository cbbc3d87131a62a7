package client

import (
	"errors"
	"fmt"

	"github.com/kofuk/premises-sub000/internal/shared/types"
)

// ErrUnauthorized is matched by errors that mean the session is missing or
// expired.
var ErrUnauthorized = errors.New("unauthorized")

// APIError is an application-level failure: the control panel answered with
// success=false. Message is already localized.
type APIError struct {
	Endpoint string
	Code     types.ErrorCode
	Message  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s (code %d)", e.Endpoint, e.Message, e.Code)
}

// Is lets errors.Is(err, ErrUnauthorized) match RequiresAuth failures.
func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.Code == types.ErrRequiresAuth
}

// TransportError is a network failure or an HTTP error without a
// control panel envelope.
type TransportError struct {
	Endpoint string
	Status   int // 0 when no response was received
	Err      error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: http %d", e.Endpoint, e.Status)
	}
	return fmt.Sprintf("%s: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrUnauthorized) match bare 401 responses.
func (e *TransportError) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == 401
}

// ProtocolError is a response that could not be decoded.
type ProtocolError struct {
	Endpoint string
	Err      error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: malformed response: %v", e.Endpoint, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// IsAPIError reports whether err carries an application error code and
// returns it.
func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// countsAgainstBreaker reports whether err indicates the control panel is
// unreachable or unhealthy. Application errors and client-side 4xx do not.
func countsAgainstBreaker(err error) bool {
	var te *TransportError
	if !errors.As(err, &te) {
		return false
	}
	return te.Status == 0 || te.Status >= 500
}
