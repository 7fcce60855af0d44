package domain

import "errors"

var (
	ErrStreamNotFound    = errors.New("stream not found")
	ErrSessionNotFound   = errors.New("session not found")
	ErrRecordingNotFound = errors.New("recording not found")
	ErrRecordingExpired  = errors.New("recording expired")
	ErrNotOwner          = errors.New("caller does not own this stream")
	ErrInvalidKey        = errors.New("invalid stream key")
	ErrStreamEnded       = errors.New("stream has ended")
)
