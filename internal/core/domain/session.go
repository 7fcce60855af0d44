package domain

import "time"

// SessionState tracks the room lifecycle. There is no paused state: a room is
// either hosted or gone.
type SessionState string

const (
	SessionHosted SessionState = "hosted"
	SessionEnded  SessionState = "ended"
)

// Session is one live room: exactly one host connection plus any number of
// viewer connections. A room may exist before its host arrives (viewer-before-
// host race); it is destroyed when the host disconnects or ends the stream.
type Session struct {
	StreamID  StreamID
	HostConn  ConnectionID // empty until a host registers
	Viewers   map[ConnectionID]*Participant
	OwnerID   UserID
	StreamKey string
	State     SessionState
	StartedAt time.Time
}

// Participant is the per-connection identity carried by the signaling channel.
type Participant struct {
	ConnID   ConnectionID
	UserID   UserID
	Username string
	Role     Role
	JoinedAt time.Time
}

// ViewerCount is always the size of the viewer set, never tracked separately.
func (s *Session) ViewerCount() int {
	return len(s.Viewers)
}

// ConnectionIDs returns every connection in the room, host included when
// present.
func (s *Session) ConnectionIDs() []ConnectionID {
	ids := make([]ConnectionID, 0, len(s.Viewers)+1)
	if s.HostConn != "" {
		ids = append(ids, s.HostConn)
	}
	for id := range s.Viewers {
		ids = append(ids, id)
	}
	return ids
}
