package domain

import (
	"fmt"
	"strconv"
	"time"
)

type StreamID int64
type UserID string
type PublicStreamID string
type ConnectionID string

func (id StreamID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseStreamID parses the decimal wire form of an internal stream id.
func ParseStreamID(s string) (StreamID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid stream id %q: %w", s, err)
	}
	return StreamID(n), nil
}

// Role is the declared role of a signaling connection.
type Role string

const (
	RoleHost        Role = "host"
	RoleBroadcaster Role = "broadcaster"
	RoleListener    Role = "listener"
	RoleViewer      Role = "viewer"
)

// IsBroadcasting reports whether the role publishes media into the room.
func (r Role) IsBroadcasting() bool {
	return r == RoleHost || r == RoleBroadcaster
}

// Stream is the persisted metadata record for one stream slot. The broadcaster
// key is private; PublicID is the only identifier ever handed to viewers.
type Stream struct {
	ID          StreamID       `json:"id"`
	UserID      UserID         `json:"userId"`
	Title       string         `json:"title"`
	StreamKey   string         `json:"streamKey,omitempty"`
	PublicID    PublicStreamID `json:"publicId"`
	IsLive      bool           `json:"isLive"`
	ViewerCount int            `json:"viewerCount"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// Sanitized returns a copy safe to hand to viewers: the private broadcaster
// key is stripped.
func (s *Stream) Sanitized() *Stream {
	out := *s
	out.StreamKey = ""
	return &out
}

// StreamRef identifies a stream either by its internal numeric id or by the
// shareable public id. It is resolved to a canonical internal id exactly once
// at the boundary, before any core state is touched.
type StreamRef struct {
	internal StreamID
	public   PublicStreamID
	isPublic bool
}

func InternalRef(id StreamID) StreamRef {
	return StreamRef{internal: id}
}

func PublicRef(id PublicStreamID) StreamRef {
	return StreamRef{public: id, isPublic: true}
}

func (r StreamRef) IsPublic() bool { return r.isPublic }

// Internal returns the internal id; valid only when IsPublic() is false.
func (r StreamRef) Internal() StreamID { return r.internal }

// Public returns the public id; valid only when IsPublic() is true.
func (r StreamRef) Public() PublicStreamID { return r.public }

func (r StreamRef) String() string {
	if r.isPublic {
		return string(r.public)
	}
	return r.internal.String()
}
