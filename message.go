package libemit

import (
	"fmt"

	"github.com/fasthttp/websocket"
)

// MessageType mirrors the websocket frame opcodes.
type MessageType byte

const (
	TextMessage   = MessageType(websocket.TextMessage)
	BinaryMessage = MessageType(websocket.BinaryMessage)
	CloseMessage  = MessageType(websocket.CloseMessage)
	PingMessage   = MessageType(websocket.PingMessage)
	PongMessage   = MessageType(websocket.PongMessage)
)

func (t MessageType) IsData() bool {
	return t == TextMessage || t == BinaryMessage
}

func (t MessageType) IsControl() bool {
	return !t.IsData()
}

func (t MessageType) String() string {
	switch t {
	case TextMessage:
		return "text"
	case BinaryMessage:
		return "binary"
	case CloseMessage:
		return "close"
	case PingMessage:
		return "ping"
	case PongMessage:
		return "pong"
	}
	return fmt.Sprintf("opcode(%d)", byte(t))
}

// Message is a single websocket frame. Code is only meaningful for close
// frames.
type Message struct {
	Type MessageType
	Data []byte
	Code int
}

func (m Message) String() string {
	if m.Type == CloseMessage {
		return fmt.Sprintf("Message{type=%s,code=%d,data=%s}", m.Type, m.Code, m.Data)
	}
	return fmt.Sprintf("Message{type=%s,data=%s}", m.Type, m.Data)
}

func NewTextMessage(data []byte) Message {
	return Message{Type: TextMessage, Data: data}
}

func NewBinaryMessage(data []byte) Message {
	return Message{Type: BinaryMessage, Data: data}
}

func NewPingMessage(data []byte) Message {
	return Message{Type: PingMessage, Data: data}
}

func NewPongMessage(data []byte) Message {
	return Message{Type: PongMessage, Data: data}
}

func NewCloseMessage(code int, data []byte) Message {
	return Message{Type: CloseMessage, Code: code, Data: data}
}

// MessageEvent is the payload of EventMessage. It carries a cancellable
// signal: a listener that calls Cancel keeps the message from the listeners
// after it.
type MessageEvent struct {
	*Signal
	Message Message
}

func newMessageEvent(m Message) *MessageEvent {
	return &MessageEvent{
		Signal:  NewCancellableSignal(EventMessage),
		Message: m,
	}
}
