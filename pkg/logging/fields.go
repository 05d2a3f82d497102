package logging

import (
	"log/slog"
	"strconv"
)

// Domain identifiers

func Room(id string) slog.Attr {
	return slog.String("room_id", id)
}

func Session(id string) slog.Attr {
	return slog.String("session_id", id)
}

func User(id string) slog.Attr {
	return slog.String("user_id", id)
}

func ClientMsg(id string) slog.Attr {
	return slog.String("client_msg_id", id)
}

// Timestamp logs a server timestamp in its "<millis>-<seq>" form.
func Timestamp(millis, seq int64) slog.Attr {
	return slog.String("timestamp", strconv.FormatInt(millis, 10)+"-"+strconv.FormatInt(seq, 10))
}

// Request / tracing

func RequestID(id string) slog.Attr {
	return slog.String("request_id", id)
}

func TraceID(id string) slog.Attr {
	return slog.String("trace_id", id)
}

// Error handling

func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}
