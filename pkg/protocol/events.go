// ABOUTME: Transport event definitions
// ABOUTME: Describes what a connection reports: open, messages, close, error
package protocol

import "fmt"

// EventKind identifies a transport event
type EventKind int

const (
	EventOpen EventKind = iota
	EventText
	EventBinary
	EventClose
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventOpen:
		return "open"
	case EventText:
		return "text"
	case EventBinary:
		return "binary"
	case EventClose:
		return "close"
	case EventError:
		return "error"
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// Event is delivered by a transport in the order it happened
type Event struct {
	Kind EventKind

	Text string // EventText
	Data []byte // EventBinary

	Code   int    // EventClose
	Reason string // EventClose

	Err error // EventError
}

// OpenEvent reports an established connection
func OpenEvent() Event { return Event{Kind: EventOpen} }

// TextEvent reports a text message
func TextEvent(text string) Event { return Event{Kind: EventText, Text: text} }

// BinaryEvent reports a binary message
func BinaryEvent(data []byte) Event { return Event{Kind: EventBinary, Data: data} }

// CloseEvent reports the connection closing
func CloseEvent(code int, reason string) Event {
	return Event{Kind: EventClose, Code: code, Reason: reason}
}

// ErrorEvent reports a transport failure
func ErrorEvent(err error) Event { return Event{Kind: EventError, Err: err} }
