package types

import "encoding/json"

// Response is the generic control panel envelope. On failure Data is
// absent and ErrorCode is set.
type Response[T any] struct {
	Success   bool      `json:"success"`
	Data      T         `json:"data"`
	ErrorCode ErrorCode `json:"errorCode,omitempty"`
}

// RawResponse defers decoding of Data until Success is known.
type RawResponse struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	ErrorCode ErrorCode       `json:"errorCode,omitempty"`
}

// ErrorResponse is the failure envelope.
type ErrorResponse struct {
	Success   bool      `json:"success"`
	ErrorCode ErrorCode `json:"errorCode"`
}
