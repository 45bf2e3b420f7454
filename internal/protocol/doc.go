// Package protocol owns the econ wire contract shared by the engine.
//
// Ownership boundary:
// - error taxonomy for connect, auth and pump faults
// - read error classification
// - line reassembly (line/) and message grammar (message/)
// - password handshake and session defaults (session/)
package protocol
