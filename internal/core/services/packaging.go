package services

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/toxikmusic/traxx-current-sub001/internal/core/domain"
	"github.com/toxikmusic/traxx-current-sub001/internal/core/ports"
	apperrors "github.com/toxikmusic/traxx-current-sub001/pkg/errors"
	"github.com/toxikmusic/traxx-current-sub001/pkg/hls"
)

type packagingService struct {
	mu        sync.Mutex
	playlists map[domain.StreamID]*domain.PlaylistState

	streams     ports.StreamRepository
	store       ports.RecordingStore
	objectStore bool // bucket configured at startup; fixes Mode per stream
	localDir    string

	logger  *zap.SugaredLogger
	metrics ports.Metrics
}

func NewPackagingService(streams ports.StreamRepository, store ports.RecordingStore, objectStore bool, localDir string, logger *zap.SugaredLogger, metrics ports.Metrics) ports.Packaging {
	return &packagingService{
		playlists:   make(map[domain.StreamID]*domain.PlaylistState),
		streams:     streams,
		store:       store,
		objectStore: objectStore,
		localDir:    localDir,
		logger:      logger,
		metrics:     metrics,
	}
}

// authorize verifies the caller owns the stream before any packaging work.
func (s *packagingService) authorize(ctx context.Context, streamID domain.StreamID, owner domain.UserID) (*domain.Stream, error) {
	stream, err := s.streams.GetByID(ctx, streamID)
	if err != nil {
		return nil, apperrors.NewNotFound("stream")
	}
	if stream.UserID != owner {
		return nil, apperrors.NewForbidden("caller does not own this stream")
	}
	return stream, nil
}

func (s *packagingService) Ingest(ctx context.Context, streamID domain.StreamID, owner domain.UserID, chunk []byte, mimeType string) (string, error) {
	if _, err := s.authorize(ctx, streamID, owner); err != nil {
		return "", err
	}

	s.mu.Lock()
	state, ok := s.playlists[streamID]
	if !ok {
		mode := domain.StorageLocal
		if s.objectStore {
			mode = domain.StorageObject
		}
		state = &domain.PlaylistState{
			StreamID:     streamID,
			OwnerID:      owner,
			BandwidthBps: domain.BandwidthSeedBps,
			Mode:         mode,
		}
		s.playlists[streamID] = state
		s.logger.Infow("packaging started",
			"stream_id", streamID,
			"storage_mode", mode,
			"mime_type", mimeType,
		)
	}
	// Reserve the index and publish the ref in the same critical section so
	// concurrent uploads never share an index or double-list a segment.
	index := len(state.Segments)
	state.Segments = append(state.Segments, domain.SegmentRef{
		Name:      fmt.Sprintf("segment_%d.ts", index),
		Index:     index,
		SizeBytes: int64(len(chunk)),
	})
	state.SequenceNumber = maxInt(0, len(state.Segments)-domain.PlaylistWindow)
	state.DurationSeconds += domain.SegmentDurationSeconds
	state.BandwidthBps = nextBandwidth(state.BandwidthBps, int64(len(chunk)))
	// Copied so the snapshot survives concurrent appends and rollbacks once
	// the lock is released.
	window := append([]domain.SegmentRef(nil), state.Window()...)
	sequence := state.SequenceNumber
	s.mu.Unlock()

	// Write-through outside the lock; the playlist entry is dropped again if
	// the chunk never reaches disk.
	if _, err := s.store.StoreSegment(ctx, streamID, owner, chunk, index); err != nil {
		s.mu.Lock()
		for i, ref := range state.Segments {
			if ref.Index == index {
				state.Segments = append(state.Segments[:i], state.Segments[i+1:]...)
				break
			}
		}
		state.SequenceNumber = maxInt(0, len(state.Segments)-domain.PlaylistWindow)
		state.DurationSeconds -= domain.SegmentDurationSeconds
		s.mu.Unlock()
		return "", err
	}

	if err := s.store.UpdatePlaylist(ctx, streamID, window, sequence, false); err != nil {
		return "", err
	}

	return s.mediaPlaylistURL(streamID), nil
}

func (s *packagingService) mediaPlaylistURL(streamID domain.StreamID) string {
	return fmt.Sprintf("/hls/%s/playlist.m3u8", streamID)
}

func (s *packagingService) MasterPlaylist(ctx context.Context, streamID domain.StreamID) (string, error) {
	s.mu.Lock()
	state, active := s.playlists[streamID]
	var bandwidth int
	if active {
		bandwidth = state.BandwidthBps
	}
	s.mu.Unlock()

	if active {
		return hls.RenderMaster(bandwidth, "playlist.m3u8"), nil
	}

	// Stream not live: fall back to a finalized VOD playlist if one survives
	// on disk.
	if _, err := os.Stat(filepath.Join(s.localDir, streamID.String(), "playlist.m3u8")); err == nil {
		return hls.RenderMaster(domain.BandwidthSeedBps, "playlist.m3u8"), nil
	}
	return "", apperrors.NewNotFound("stream")
}

func (s *packagingService) MediaPlaylist(ctx context.Context, streamID domain.StreamID) (string, error) {
	s.mu.Lock()
	state, active := s.playlists[streamID]
	var rendered string
	if active {
		rendered = hls.RenderMedia(state.Window(), state.SequenceNumber, state.Ended)
	}
	s.mu.Unlock()

	if active {
		return rendered, nil
	}

	data, err := os.ReadFile(filepath.Join(s.localDir, streamID.String(), "playlist.m3u8"))
	if err != nil {
		return "", apperrors.NewNotFound("stream")
	}
	return string(data), nil
}

func (s *packagingService) End(ctx context.Context, streamID domain.StreamID, owner domain.UserID) (*ports.EndResult, error) {
	stream, err := s.authorize(ctx, streamID, owner)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	state, active := s.playlists[streamID]
	if active {
		state.Ended = true
		delete(s.playlists, streamID)
	}
	s.mu.Unlock()

	if !active {
		return nil, apperrors.NewNotFound("active packaging session")
	}

	// Final playlist rewrite carries the end marker so the VOD fallback
	// terminates playback.
	if err := s.store.UpdatePlaylist(ctx, streamID, state.Window(), state.SequenceNumber, true); err != nil {
		s.logger.Warnw("failed to write final playlist", "stream_id", streamID, "error", err)
	}

	stream.IsLive = false
	if err := s.streams.Update(ctx, stream); err != nil {
		s.logger.Warnw("failed to mark stream not live", "stream_id", streamID, "error", err)
	}

	result := &ports.EndResult{}
	if state.Mode == domain.StorageObject {
		// Owner must now choose permanent-save vs delete; until then the
		// recording is temporary.
		result.PromptSave = true
		if rec, ok := s.store.Get(streamID); ok {
			result.PlaybackURL = rec.PlaylistURL
		}
	}

	s.logger.Infow("packaging ended",
		"stream_id", streamID,
		"segments", len(state.Segments),
		"duration_s", state.DurationSeconds,
	)
	return result, nil
}

func (s *packagingService) Finalize(ctx context.Context, streamID domain.StreamID, owner domain.UserID, savePermanently bool) (*ports.FinalizeResult, error) {
	if _, err := s.authorize(ctx, streamID, owner); err != nil {
		return nil, err
	}

	rec, hasRec := s.store.Get(streamID)
	found, err := s.store.FinalizeRecording(ctx, streamID, savePermanently)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperrors.NewNotFound("recording")
	}

	result := &ports.FinalizeResult{Saved: savePermanently}
	if savePermanently && hasRec {
		result.URL = rec.PlaylistURL
	}
	return result, nil
}

// nextBandwidth folds one segment sample into the exponential moving average.
// A segment of size S bytes over the fixed duration contributes S*8/6 bps.
func nextBandwidth(current int, sizeBytes int64) int {
	sample := float64(sizeBytes*8) / float64(domain.SegmentDurationSeconds)
	return int(math.Round(domain.BandwidthEMAOldWeight*float64(current) + domain.BandwidthEMANewWeight*sample))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
