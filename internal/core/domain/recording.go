package domain

import "time"

// DefaultRecordingTTL is how long a temporary recording survives before the
// sweeper removes it, unless it is finalized permanent first.
const DefaultRecordingTTL = 24 * time.Hour

// Recording tracks the persisted segments of one stream. At most one recording
// exists per stream at a time. While temporary it auto-expires; finalizing
// permanent clears the expiry.
type Recording struct {
	StreamID        StreamID
	OwnerID         UserID
	Segments        []SegmentRef
	PlaylistURL     string
	SizeBytes       int64
	DurationSeconds float64
	IsTemporary     bool
	CreatedAt       time.Time
	ExpiresAt       time.Time // zero once permanent
}

// Expired reports whether a temporary recording is past its TTL at now.
func (r *Recording) Expired(now time.Time) bool {
	return r.IsTemporary && !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}
