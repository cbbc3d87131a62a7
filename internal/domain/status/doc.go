// Package status keeps the client's view of the game server status.
//
// The Store is fed exclusively by the event stream. A status update replaces
// the code and auxiliary payload wholesale; the page selection only changes
// when an event carries one, so a disconnect (status 0) keeps the user on
// the screen they were looking at.
//
// CPU samples go into a Series of fixed capacity that is pre-seeded with
// zero samples, so consumers can always draw a full-width chart.
package status
