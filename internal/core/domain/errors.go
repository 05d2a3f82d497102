package domain

import "errors"

var (
	// ErrWriteFailure means the store rejected a publish or it timed out.
	ErrWriteFailure = errors.New("write failure")
	// ErrDeliveryGap means the subscription dropped and resumed; unknown messages may have been missed.
	ErrDeliveryGap = errors.New("notification delivery gap")
	// ErrConnectivityUnknown means no connectivity signal has been observed yet.
	ErrConnectivityUnknown = errors.New("connectivity unknown")

	ErrEmptyMessage       = errors.New("message text is empty")
	ErrMessageTooLarge    = errors.New("message text too large")
	ErrMalformedTimestamp = errors.New("malformed timestamp")
	ErrInvalidRoomID      = errors.New("invalid room id")
	ErrInvalidSessionID   = errors.New("invalid session id")
	ErrInvalidUserID      = errors.New("invalid user id")
	ErrSessionNotFound    = errors.New("session not found")
	ErrAlreadySubscribed  = errors.New("subscription already running")
)
