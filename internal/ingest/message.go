// Package ingest implements the in-process message queue and the log
// writer that drains it, appending to per-source daily log files and
// invoking the checkpoint updater.
package ingest

import "time"

// Message is one parsed syslog datagram, queued between the UDP receiver
// and the log writer. It is discarded once written; nothing downstream
// retains it.
type Message struct {
	// Arrival is the wall-clock arrival time, at microsecond resolution.
	Arrival time.Time
	// Source is the sending address, typically a dotted-quad IPv4 string.
	Source string
	// Payload is the UTF-8 log line, with any trailing NUL and trailing
	// newline already stripped by the receiver.
	Payload string
}
