package models

type EventType string

// Client-to-server protocol events.
const (
	EventAuthenticate EventType = "authenticate"
	EventJoinGroup    EventType = "join_group"
	EventLeaveGroup   EventType = "leave_group"
	EventTyping       EventType = "typing"
)

// Server-to-client protocol events.
const (
	EventAuthenticated EventType = "authenticated"
	EventNewMessage    EventType = "new_message"
	EventUserTyping    EventType = "user_typing"
)

// ClientEvent is the envelope for everything a socket sends to the gateway.
// Fields are populated per event type; unused fields stay zero.
type ClientEvent struct {
	Type     EventType `json:"type"`
	Token    string    `json:"token,omitempty"`
	GroupID  int       `json:"group_id,omitempty"`
	IsTyping bool      `json:"is_typing,omitempty"`
}

// ServerEvent is the envelope pushed to sockets.
type ServerEvent struct {
	Type     EventType `json:"type"`
	UserID   int       `json:"user_id,omitempty"`
	GroupID  int       `json:"group_id,omitempty"`
	IsTyping bool      `json:"is_typing,omitempty"`
	Message  *Message  `json:"message,omitempty"`
}
