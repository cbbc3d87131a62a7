// Package client is the REST client for the control panel.
//
// Every response is wrapped in an envelope {success, data, errorCode}. A
// failed envelope becomes an *APIError carrying a localized message; HTTP
// failures without an envelope become a *TransportError; undecodable
// bodies become a *ProtocolError. errors.Is(err, ErrUnauthorized) matches
// both an expired token and a bare 401.
//
// Session calls under /api/internal rely on the cookie kept in the
// client's jar. Calls under /api/v1 carry the bearer token set with
// SetToken. GET requests are retried on transient failures; commands and
// writes are sent exactly once. A circuit breaker stops calls after
// repeated transport failures.
package client
