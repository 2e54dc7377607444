package model

// EventType names a frame on the live websocket protocol.
type EventType string

const (
	// Client -> server.
	TypeJoin  EventType = "join"
	TypeLeave EventType = "leave"
	TypeSend  EventType = "send"

	// Server -> client.
	TypeJoined     EventType = "joined"
	TypeLeft       EventType = "left"
	TypeMessage    EventType = "message"
	TypeSendFailed EventType = "sendFailed"
	TypeError      EventType = "error"
)

// Command is a client frame.
type Command struct {
	Type         EventType  `json:"type"`
	Conversation Descriptor `json:"conversation"`
	Text         string     `json:"text,omitempty"`
	ClientRef    string     `json:"clientRef,omitempty"`
}

// Event is a server frame.
type Event struct {
	Type         EventType   `json:"type"`
	Room         string      `json:"room,omitempty"`
	Message      *Message    `json:"message,omitempty"`
	Conversation *Descriptor `json:"conversation,omitempty"`
	ClientRef    string      `json:"clientRef,omitempty"`
	Error        string      `json:"error,omitempty"`
}
