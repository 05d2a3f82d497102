package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Timestamp is the server-assigned order key of a log entry.
// Millis comes from the store clock at commit time, Seq breaks ties within the same millisecond.
// The zero value means "unset".
type Timestamp struct {
	Millis int64
	Seq    int64
}

func ParseTimestamp(s string) (Timestamp, error) {
	ms, seq, ok := strings.Cut(s, "-")
	if !ok {
		seq = "0"
	}
	millis, err := strconv.ParseInt(ms, 10, 64)
	if err != nil || millis < 0 {
		return Timestamp{}, fmt.Errorf("%w: %q", ErrMalformedTimestamp, s)
	}
	n, err := strconv.ParseInt(seq, 10, 64)
	if err != nil || n < 0 {
		return Timestamp{}, fmt.Errorf("%w: %q", ErrMalformedTimestamp, s)
	}
	return Timestamp{Millis: millis, Seq: n}, nil
}

func (t Timestamp) String() string {
	return strconv.FormatInt(t.Millis, 10) + "-" + strconv.FormatInt(t.Seq, 10)
}

func (t Timestamp) IsZero() bool {
	return t.Millis == 0 && t.Seq == 0
}

// Compare returns -1, 0 or 1. Millis is compared first, then Seq.
func (t Timestamp) Compare(other Timestamp) int {
	switch {
	case t.Millis < other.Millis:
		return -1
	case t.Millis > other.Millis:
		return 1
	case t.Seq < other.Seq:
		return -1
	case t.Seq > other.Seq:
		return 1
	}
	return 0
}

func (t Timestamp) Time() time.Time {
	return time.UnixMilli(t.Millis)
}

// Draft is a message before the store has committed it.
type Draft struct {
	RoomID    string
	SenderID  string
	SessionID uuid.UUID
	Text      string
}

// Message is a committed log entry. It is never mutated after commit.
type Message struct {
	ID        string // store entry id, equal to Timestamp.String()
	RoomID    string
	SenderID  string
	SessionID uuid.UUID
	Text      string
	Timestamp Timestamp
}

// Session is one connection of a user to a room.
// It bridges the permanent user id and the presence entry others observe.
type Session struct {
	ID         uuid.UUID
	UserID     string
	RoomID     string
	JoinedAt   time.Time
	LastSeenAt time.Time
	LeftAt     *time.Time
}

// PresenceRecord is the shared shape written for a session under a room.
type PresenceRecord struct {
	RoomID    string    `json:"room_id"`
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	Online    bool      `json:"online"`
	LastSeen  time.Time `json:"last_seen"`
}

type ConnectivityState int

const (
	ConnectivityUnknown ConnectivityState = iota
	ConnectivityOnline
	ConnectivityOffline
)

func (s ConnectivityState) String() string {
	switch s {
	case ConnectivityOnline:
		return "online"
	case ConnectivityOffline:
		return "offline"
	default:
		return "unknown"
	}
}

type FeedEventKind int

const (
	// ChildAdded carries one appended record.
	ChildAdded FeedEventKind = iota + 1
	// Gap reports that the feed dropped and resumed; records may have been missed.
	Gap
)

// FeedEvent is one notification delivered by a room subscription.
type FeedEvent struct {
	Kind    FeedEventKind
	Message Message
	Err     error
}

func ValidateRoomID(roomID string) error {
	if roomID == "" || len(roomID) > 128 {
		return ErrInvalidRoomID
	}
	for _, r := range roomID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
		default:
			return ErrInvalidRoomID
		}
	}
	return nil
}
