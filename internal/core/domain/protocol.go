package domain

import (
	"time"
)

const (
	TypeAck       = "ack"
	TypeMessage   = "message"
	TypePresence  = "presence"
	TypeHandshake = "handshake"
	TypeGap       = "gap"
	TypeError     = "error"
)

type AckStatus string

const (
	AckCommitted AckStatus = "committed"
	AckFailed    AckStatus = "failed"
)

// InboundMessage is what a websocket client sends to publish.
type InboundMessage struct {
	ClientMsgID string `json:"client_msg_id"`
	Text        string `json:"text"`
}

// HandshakeResponse is sent once on connect
type HandshakeResponse struct {
	Type      string `json:"type"` // "handshake"
	SessionID string `json:"session_id"`
	RoomID    string `json:"room_id"`
}

// AckMessage is sent ONLY to the sender
type AckMessage struct {
	Type        string    `json:"type"` // always "ack"
	ClientMsgID string    `json:"client_msg_id"`
	Status      AckStatus `json:"status"`
	ID          string    `json:"id,omitempty"`
	Timestamp   int64     `json:"timestamp,omitempty"`
	Seq         int64     `json:"seq,omitempty"`
	Code        string    `json:"code,omitempty"`
}

// ChatMessage is an admitted message pushed to a subscriber
type ChatMessage struct {
	Type      string `json:"type"` // "message"
	ID        string `json:"id"`
	RoomID    string `json:"room_id"`
	SenderID  string `json:"sender_id"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
	Seq       int64  `json:"seq"`
}

func NewChatMessage(m Message) ChatMessage {
	return ChatMessage{
		Type:      TypeMessage,
		ID:        m.ID,
		RoomID:    m.RoomID,
		SenderID:  m.SenderID,
		Text:      m.Text,
		Timestamp: m.Timestamp.Millis,
		Seq:       m.Timestamp.Seq,
	}
}

// PresenceEvent is pushed to room
type PresenceEvent struct {
	Type      string    `json:"type"` // "presence"
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	Online    bool      `json:"online"`
	LastSeen  time.Time `json:"last_seen"`
}

func NewPresenceEvent(rec PresenceRecord) PresenceEvent {
	return PresenceEvent{
		Type:      TypePresence,
		SessionID: rec.SessionID,
		UserID:    rec.UserID,
		Online:    rec.Online,
		LastSeen:  rec.LastSeen,
	}
}

// GapEvent tells the client some messages may have been missed
type GapEvent struct {
	Type    string `json:"type"` // "gap"
	RoomID  string `json:"room_id"`
	Message string `json:"message"`
}

// ErrorMessage is WS-safe error
type ErrorMessage struct {
	Type    string `json:"type"` // "error"
	Code    string `json:"code"`
	Message string `json:"message"`
}
