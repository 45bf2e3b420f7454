// Package econ runs one authenticated external console session.
//
// An Engine owns a TCP connection, a reader goroutine that reassembles and
// parses inbound lines, and a writer goroutine that drains queued commands.
// Callers interact only through Send, Receive and Disconnect.
package econ
