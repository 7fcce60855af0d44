package domain

// Playlist windowing and bandwidth-estimate constants. Segment duration is
// fixed; incoming chunks are opaque and never probed.
const (
	PlaylistWindow         = 10
	SegmentDurationSeconds = 6
	BandwidthSeedBps       = 800_000
	BandwidthEMAOldWeight  = 0.7
	BandwidthEMANewWeight  = 0.3
)

// StorageMode is fixed at playlist creation for the lifetime of the stream.
type StorageMode string

const (
	StorageLocal  StorageMode = "local"
	StorageObject StorageMode = "object"
)

// SegmentRef is one packaged segment as referenced by playlists.
type SegmentRef struct {
	Name      string
	Index     int
	SizeBytes int64
}

// PlaylistState is the in-memory packaging state for one actively streaming
// id. Mutated only by the packaging pipeline on ingestion; destroyed when the
// stream ends.
type PlaylistState struct {
	StreamID        StreamID
	OwnerID         UserID
	Segments        []SegmentRef
	SequenceNumber  int
	DurationSeconds float64
	BandwidthBps    int
	Mode            StorageMode
	Ended           bool
}

// Window returns the trailing PlaylistWindow segments.
func (p *PlaylistState) Window() []SegmentRef {
	if len(p.Segments) <= PlaylistWindow {
		return p.Segments
	}
	return p.Segments[len(p.Segments)-PlaylistWindow:]
}
