// Package session owns the econ password handshake and session defaults.
//
// Ownership boundary:
// - banner substrings (prompt, accepted, rejected)
// - challenge/response state machine over a raw connection
// - caller-side reconnect backoff primitives
package session
