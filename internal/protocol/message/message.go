package message

import (
	"fmt"
	"time"
)

// DefaultFallbackCategory labels lines that match no bracketed grammar and
// engine-generated status messages.
const DefaultFallbackCategory = "tw-econ"

// TimeOfDay is a wall-clock time without a date, as printed by the server.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

func ClockOf(t time.Time) TimeOfDay {
	h, m, s := t.Clock()
	return TimeOfDay{Hour: h, Minute: m, Second: s}
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

// Message is one parsed inbound line. Raw holds the line as received.
type Message struct {
	Timestamp TimeOfDay
	Category  string
	Content   string
	Raw       string
}

// String renders the message in the server's full form.
func (m Message) String() string {
	return fmt.Sprintf("[%s][%s]: %s", m.Timestamp, m.Category, m.Content)
}

// Synthetic builds an engine-generated message, e.g. connect notices.
func Synthetic(category, content string, at time.Time) Message {
	m := Message{
		Timestamp: ClockOf(at),
		Category:  category,
		Content:   content,
	}
	m.Raw = m.String()
	return m
}
