// Package stream consumes the control panel's server-sent event stream.
//
// A Conn keeps one HTTP request open and feeds decoded events to the
// configured sinks:
//
//	statuschanged (or event) -> StatusSink.UpdateStatus
//	sysstat                  -> CPUSink.UpdateCPUUsage
//	notify                   -> Notifier.Notify
//
// When the request fails the connection reports status 0 (disconnected)
// once, then reconnects with a delay that starts at the server-advertised
// retry value and doubles up to a ceiling while attempts keep failing.
// Reconnects send Last-Event-ID when the server assigned ids.
//
// Malformed events are logged and dropped; they never close the stream.
package stream
