package gateway

import (
	"encoding/json"
	"strings"
	"time"

	"chatroom/backend/internal/hub"
	"chatroom/backend/internal/models"
)

// Inbound event types.
const (
	EventAuth    = "auth"
	EventJoin    = "join"
	EventLeave   = "leave"
	EventMessage = "message"
	EventTyping  = "typing"
)

// Outbound event types. EventMessage and EventTyping are shared.
const (
	EventConnected   = "connected"
	EventOnlineUsers = "online_users"
	EventError       = "error"
)

// TimestampLayout renders message times as HH:MM in UTC.
const TimestampLayout = "15:04"

// Inbound is one client frame.
type Inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AuthPayload carries a credential for connections that could not send one
// during the handshake.
type AuthPayload struct {
	Token string `json:"token"`
}

// RoomPayload is the payload of join, leave and typing.
type RoomPayload struct {
	Room string `json:"room"`
}

// MessagePayload is the payload of an inbound message. Older clients send
// the text under "message".
type MessagePayload struct {
	Room    string `json:"room"`
	Content string `json:"content"`
	Message string `json:"message"`
}

func (p MessagePayload) text() string {
	if p.Content != "" {
		return p.Content
	}
	return p.Message
}

// ConnectedPayload acknowledges an authenticated connection.
type ConnectedPayload struct {
	Message string `json:"message"`
}

// OnlineUsersPayload is a room presence snapshot.
type OnlineUsersPayload struct {
	Room  string   `json:"room"`
	Users []string `json:"users"`
}

// ChatMessagePayload is a persisted message or a System notice. ID and
// SentAt are only set for persisted messages.
type ChatMessagePayload struct {
	ID        uint64     `json:"id,omitempty"`
	User      string     `json:"user"`
	Message   string     `json:"message"`
	Timestamp string     `json:"timestamp"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
	Room      string     `json:"room"`
}

// TypingPayload tells a room that user is typing.
type TypingPayload struct {
	User string `json:"user"`
	Room string `json:"room"`
}

// ErrorPayload is sent only to the connection that caused it.
type ErrorPayload struct {
	Message string `json:"message"`
}

func connectedEvent(user string) hub.Event {
	return hub.Event{Type: EventConnected, Payload: ConnectedPayload{Message: "Connected as " + user}}
}

func onlineUsersEvent(room string, users []string) hub.Event {
	if users == nil {
		users = []string{}
	}
	return hub.Event{Type: EventOnlineUsers, Payload: OnlineUsersPayload{Room: room, Users: users}}
}

func messageEvent(m models.Message) hub.Event {
	sentAt := m.CreatedAt.UTC()
	return hub.Event{Type: EventMessage, Payload: ChatMessagePayload{
		ID:        m.ID,
		User:      m.Author,
		Message:   m.Content,
		Timestamp: sentAt.Format(TimestampLayout),
		SentAt:    &sentAt,
		Room:      m.Room,
	}}
}

func noticeEvent(room, text string, now time.Time) hub.Event {
	return hub.Event{Type: EventMessage, Payload: ChatMessagePayload{
		User:      models.SystemAuthor,
		Message:   text,
		Timestamp: now.UTC().Format(TimestampLayout),
		Room:      room,
	}}
}

func typingEvent(user, room string) hub.Event {
	return hub.Event{Type: EventTyping, Payload: TypingPayload{User: user, Room: room}}
}

func errorEvent(msg string) hub.Event {
	return hub.Event{Type: EventError, Payload: ErrorPayload{Message: msg}}
}

func normalizeRoom(room string) string {
	return strings.TrimSpace(room)
}
