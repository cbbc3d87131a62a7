// Package session tracks whether the client is logged in.
//
// The state is derived only from the control panel's session-data endpoint.
// It is read once at start-up and again after every login, logout and
// password initialization. Until the first read completes the state is not
// Known, and protected views should wait on WaitKnown rather than treating
// the zero value as logged out.
package session
