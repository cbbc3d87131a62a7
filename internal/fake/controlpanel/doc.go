// Package controlpanel is an in-memory control panel for tests and local
// development.
//
// It serves the same routes and envelopes as the real control panel:
// cookie sessions under /api/internal, bearer-token REST calls under
// /api/v1 and the event stream at /api/streaming. Launch, reconfigure and
// stop play a short sequence of status events instead of provisioning a
// machine. Delegated world links point back at the server itself.
package controlpanel
