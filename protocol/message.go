// File: protocol/message.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package protocol

// MessageKind names a logical message. The value is the dispatch key.
type MessageKind string

const (
	KindHandshake  MessageKind = "Handshake"
	KindBadRequest MessageKind = "BadRequest"
	KindText       MessageKind = "Text"
	KindBinary     MessageKind = "Binary"
	KindClose      MessageKind = "Close"
	KindPing       MessageKind = "Ping"
	KindPong       MessageKind = "Pong"
)

// Message is one decoded logical message. Text carries handshake headers,
// text payloads, ping/pong payloads and close reasons. Data carries binary
// payloads and the hybi-00 challenge response.
type Message struct {
	Kind      MessageKind
	Text      string
	Data      []byte
	CloseCode int

	// Truncated marks a message with a payload over the retention limit;
	// the oversized bytes were consumed and dropped.
	Truncated bool
}

// CloseReason returns the reason text of a close message.
func (m *Message) CloseReason() string {
	if m.Kind != KindClose {
		return ""
	}
	return m.Text
}
