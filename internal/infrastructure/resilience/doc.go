// Package resilience provides the circuit breaker in front of control panel
// API calls.
//
// When the control panel is unreachable the breaker opens and calls fail
// fast with ErrCircuitOpen instead of each waiting out its own retries.
// After Timeout one probe is let through (half-open); its result closes or
// re-opens the breaker.
//
//	Closed --[ReadyToTrip]--> Open --[Timeout]--> Half-Open --[success]--> Closed
//	                           ^                      |
//	                           +------[failure]-------+
//
// Settings.IsFailure decides what counts. The API client counts transport
// failures and 5xx answers only; an application error such as a rejected
// login means the server is healthy.
package resilience
