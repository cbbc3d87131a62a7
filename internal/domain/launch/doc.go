// Package launch holds the pending launch configuration and the commands
// that act on it.
//
// The server owns the configuration. Write sends a partial config; the
// server merges it, recomputes validity and returns the result, which
// becomes the cached value. The client never merges locally. Writes share a
// single cache key and are serialized, so concurrent edits cannot clobber
// one another and a Read after a completed Write always observes it.
package launch
