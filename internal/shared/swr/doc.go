// Package swr implements a stale-while-revalidate style cache for values
// owned by a remote server.
//
// The cache never computes values itself. Get serves the last known value or
// fetches it; Mutate runs a write against the server and adopts the server's
// response as the new cached value. Because Mutate serializes per key and
// stores the operation's own result, a Get issued after Mutate returns
// always observes that write or a later one.
package swr
