package ports

import (
	"context"
	"encoding/json"
	"time"

	"github.com/toxikmusic/traxx-current-sub001/internal/core/domain"
)

// KeyService issues and verifies broadcaster keys. Pure functions over the
// server secrets; no shared state.
type KeyService interface {
	IssueKey(userID domain.UserID) string
	ValidateKey(key string, expected domain.UserID, expiry time.Duration) bool
	HasValidFormat(key string) bool
	ExtractUserID(key string) (domain.UserID, bool)
	DerivePublicID(key string) domain.PublicStreamID
	ClassifyFailure(key string, expected domain.UserID, expiry time.Duration) domain.KeyFailure
}

// SessionRegistry is the single authoritative owner of live rooms. Every
// operation is atomic with respect to the rooms map.
type SessionRegistry interface {
	RegisterHost(ctx context.Context, conn domain.ConnectionID, streamID domain.StreamID, p domain.Participant, streamKey string) error
	JoinViewer(ctx context.Context, conn domain.ConnectionID, ref domain.StreamRef, p domain.Participant) (domain.StreamID, error)
	Relay(kind string, from, target domain.ConnectionID, data json.RawMessage) error
	Chat(streamID domain.StreamID, from domain.ConnectionID, username, message string) error
	AudioLevel(streamID domain.StreamID, from domain.ConnectionID, level float64) error
	AudioData(streamID domain.StreamID, from domain.ConnectionID, data []byte) error
	Leave(conn domain.ConnectionID)
	Disconnect(conn domain.ConnectionID)
	EndStream(streamID domain.StreamID, conn domain.ConnectionID) error
	ViewerCount(streamID domain.StreamID) int
}

// EndResult tells the caller what to do after live packaging stops.
type EndResult struct {
	// PromptSave is set when object storage held the segments: the owner must
	// choose between permanent save and deletion.
	PromptSave  bool   `json:"promptSave"`
	PlaybackURL string `json:"playbackUrl,omitempty"`
}

// FinalizeResult reports the outcome of a save-or-delete decision.
type FinalizeResult struct {
	Saved bool   `json:"saved"`
	URL   string `json:"url,omitempty"`
}

// Packaging turns opaque media chunks into a sliding-window HLS playlist.
type Packaging interface {
	Ingest(ctx context.Context, streamID domain.StreamID, owner domain.UserID, chunk []byte, mimeType string) (string, error)
	MasterPlaylist(ctx context.Context, streamID domain.StreamID) (string, error)
	MediaPlaylist(ctx context.Context, streamID domain.StreamID) (string, error)
	End(ctx context.Context, streamID domain.StreamID, owner domain.UserID) (*EndResult, error)
	Finalize(ctx context.Context, streamID domain.StreamID, owner domain.UserID, savePermanently bool) (*FinalizeResult, error)
}

// ServedFile is a recording file ready to stream to a client.
type ServedFile struct {
	Data        []byte
	ContentType string
}

// RecordingStore persists segments and manages the temporary/permanent
// recording lifecycle.
type RecordingStore interface {
	StoreSegment(ctx context.Context, streamID domain.StreamID, owner domain.UserID, data []byte, index int) (string, error)
	UpdatePlaylist(ctx context.Context, streamID domain.StreamID, segments []domain.SegmentRef, sequence int, ended bool) error
	Get(streamID domain.StreamID) (*domain.Recording, bool)
	FinalizeRecording(ctx context.Context, streamID domain.StreamID, permanent bool) (bool, error)
	SweepExpired(ctx context.Context) int
	Serve(ctx context.Context, streamID domain.StreamID, file string) (*ServedFile, error)

	// Export and Import move the index in and out for snapshotting, so the
	// temporary/permanent lifecycle survives a restart.
	Export() []*domain.Recording
	Import(recordings []*domain.Recording)
}
