package services

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/toxikmusic/traxx-current-sub001/internal/core/domain"
	"github.com/toxikmusic/traxx-current-sub001/internal/core/ports"
	"github.com/toxikmusic/traxx-current-sub001/internal/infrastructure/storage"
	"github.com/toxikmusic/traxx-current-sub001/pkg/circuitbreaker"
	apperrors "github.com/toxikmusic/traxx-current-sub001/pkg/errors"
	"github.com/toxikmusic/traxx-current-sub001/pkg/hls"
)

type recordingStore struct {
	mu         sync.Mutex
	recordings map[domain.StreamID]*domain.Recording

	localDir string
	mirror   storage.Storage // nil when no object store is configured
	breaker  *circuitbreaker.CircuitBreaker
	ttl      time.Duration

	logger  *zap.SugaredLogger
	metrics ports.Metrics
	now     func() time.Time
}

// RecordingStoreOption tweaks construction; used by tests to pin the clock.
type RecordingStoreOption func(*recordingStore)

func WithRecordingClock(now func() time.Time) RecordingStoreOption {
	return func(s *recordingStore) { s.now = now }
}

// NewRecordingStore builds the store. The local directory is the primary
// backend and is always written; mirror may be nil.
func NewRecordingStore(localDir string, mirror storage.Storage, ttl time.Duration, logger *zap.SugaredLogger, metrics ports.Metrics, opts ...RecordingStoreOption) ports.RecordingStore {
	if ttl <= 0 {
		ttl = domain.DefaultRecordingTTL
	}
	s := &recordingStore{
		recordings: make(map[domain.StreamID]*domain.Recording),
		localDir:   localDir,
		mirror:     mirror,
		breaker:    circuitbreaker.New(circuitbreaker.DefaultConfig()),
		ttl:        ttl,
		logger:     logger,
		metrics:    metrics,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *recordingStore) localPath(streamID domain.StreamID, file string) string {
	return filepath.Join(s.localDir, streamID.String(), file)
}

func (s *recordingStore) mirrorKey(streamID domain.StreamID, file string) string {
	return fmt.Sprintf("stream-%s/%s", streamID, file)
}

// mirrorWrite is best-effort: failures are logged and counted, never
// surfaced, so local playback is unaffected. The breaker keeps a dead object
// store from slowing every segment down.
func (s *recordingStore) mirrorWrite(ctx context.Context, key string, data []byte) {
	if s.mirror == nil {
		return
	}
	err := s.breaker.Execute(func() error {
		return s.mirror.Save(ctx, key, bytes.NewReader(data))
	})
	if err != nil {
		s.metrics.MirrorFailure()
		s.logger.Warnw("object storage mirror write failed",
			"key", key,
			"error", err,
		)
	}
}

func (s *recordingStore) StoreSegment(ctx context.Context, streamID domain.StreamID, owner domain.UserID, data []byte, index int) (string, error) {
	file := fmt.Sprintf("segment_%d.ts", index)
	path := s.localPath(streamID, file)

	// Primary write goes to local disk regardless of backend so playback is
	// immediate; a failure here propagates.
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", apperrors.NewStorage(err, "failed to create segment directory")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", apperrors.NewStorage(err, "failed to write segment")
	}

	// Mirror uses the object-store naming convention (hyphenated).
	s.mirrorWrite(ctx, s.mirrorKey(streamID, fmt.Sprintf("segment-%d.ts", index)), data)

	s.mu.Lock()
	rec, ok := s.recordings[streamID]
	if !ok {
		now := s.now()
		rec = &domain.Recording{
			StreamID:    streamID,
			OwnerID:     owner,
			PlaylistURL: fmt.Sprintf("/recordings/stream-%s/playlist.m3u8", streamID),
			IsTemporary: true,
			CreatedAt:   now,
			ExpiresAt:   now.Add(s.ttl),
		}
		s.recordings[streamID] = rec
	}
	rec.Segments = append(rec.Segments, domain.SegmentRef{
		Name:      file,
		Index:     index,
		SizeBytes: int64(len(data)),
	})
	rec.SizeBytes += int64(len(data))
	rec.DurationSeconds += domain.SegmentDurationSeconds
	s.mu.Unlock()

	s.metrics.SegmentIngested(int64(len(data)))

	return fmt.Sprintf("/hls/%s/%s", streamID, file), nil
}

func (s *recordingStore) UpdatePlaylist(ctx context.Context, streamID domain.StreamID, segments []domain.SegmentRef, sequence int, ended bool) error {
	playlist := hls.RenderMedia(segments, sequence, ended)
	path := s.localPath(streamID, "playlist.m3u8")

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return apperrors.NewStorage(err, "failed to create playlist directory")
	}
	if err := os.WriteFile(path, []byte(playlist), 0o644); err != nil {
		return apperrors.NewStorage(err, "failed to write playlist")
	}

	s.mirrorWrite(ctx, s.mirrorKey(streamID, "playlist.m3u8"), []byte(playlist))
	return nil
}

func (s *recordingStore) Get(streamID domain.StreamID) (*domain.Recording, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recordings[streamID]
	if !ok {
		return nil, false
	}
	copied := *rec
	return &copied, true
}

func (s *recordingStore) FinalizeRecording(ctx context.Context, streamID domain.StreamID, permanent bool) (bool, error) {
	s.mu.Lock()
	rec, ok := s.recordings[streamID]
	if !ok {
		s.mu.Unlock()
		return false, nil
	}

	if permanent {
		rec.IsTemporary = false
		rec.ExpiresAt = time.Time{}
		s.mu.Unlock()
		s.logger.Infow("recording finalized permanent", "stream_id", streamID)
		return true, nil
	}

	delete(s.recordings, streamID)
	s.mu.Unlock()

	if err := s.deleteFiles(ctx, streamID); err != nil {
		return true, err
	}
	s.logger.Infow("recording deleted", "stream_id", streamID)
	return true, nil
}

func (s *recordingStore) deleteFiles(ctx context.Context, streamID domain.StreamID) error {
	if err := os.RemoveAll(filepath.Join(s.localDir, streamID.String())); err != nil {
		return apperrors.NewStorage(err, "failed to delete recording files")
	}

	// Cloud delete mirrors the write policy: best-effort.
	if s.mirror != nil {
		prefix := fmt.Sprintf("stream-%s/", streamID)
		keys, err := s.mirror.List(ctx, prefix)
		if err != nil {
			s.logger.Warnw("object storage list failed during delete", "stream_id", streamID, "error", err)
			return nil
		}
		for _, key := range keys {
			if err := s.mirror.Delete(ctx, key); err != nil {
				s.logger.Warnw("object storage delete failed", "key", key, "error", err)
			}
		}
	}
	return nil
}

// SweepExpired removes every temporary recording past its TTL and returns the
// count removed. Runs at process start and on the sweep ticker.
func (s *recordingStore) SweepExpired(ctx context.Context) int {
	now := s.now()

	s.mu.Lock()
	var expired []domain.StreamID
	for id, rec := range s.recordings {
		if rec.Expired(now) {
			expired = append(expired, id)
			delete(s.recordings, id)
		}
	}
	s.mu.Unlock()

	for _, id := range expired {
		if err := s.deleteFiles(ctx, id); err != nil {
			s.logger.Warnw("failed to delete expired recording files", "stream_id", id, "error", err)
		}
	}

	if len(expired) > 0 {
		s.metrics.RecordingsSwept(len(expired))
		s.logger.Infow("swept expired recordings", "count", len(expired))
	}
	return len(expired)
}

// Export returns a deep copy of the index for snapshotting.
func (s *recordingStore) Export() []*domain.Recording {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*domain.Recording, 0, len(s.recordings))
	for _, rec := range s.recordings {
		copied := *rec
		copied.Segments = append([]domain.SegmentRef(nil), rec.Segments...)
		out = append(out, &copied)
	}
	return out
}

// Import restores snapshotted recordings. Entries already present win, and
// entries whose local files are gone are skipped rather than resurrected.
func (s *recordingStore) Import(recordings []*domain.Recording) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range recordings {
		if _, exists := s.recordings[rec.StreamID]; exists {
			continue
		}
		if _, err := os.Stat(filepath.Join(s.localDir, rec.StreamID.String())); err != nil {
			continue
		}
		copied := *rec
		copied.Segments = append([]domain.SegmentRef(nil), rec.Segments...)
		s.recordings[rec.StreamID] = &copied
	}
}

func (s *recordingStore) Serve(ctx context.Context, streamID domain.StreamID, file string) (*ports.ServedFile, error) {
	s.mu.Lock()
	rec, ok := s.recordings[streamID]
	var expired bool
	if ok {
		expired = rec.Expired(s.now())
	}
	s.mu.Unlock()

	if !ok {
		return nil, domain.ErrRecordingNotFound
	}
	if expired {
		return nil, domain.ErrRecordingExpired
	}

	data, err := os.ReadFile(s.localPath(streamID, file))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrRecordingNotFound
		}
		return nil, apperrors.NewStorage(err, "failed to read recording file")
	}

	return &ports.ServedFile{
		Data:        data,
		ContentType: hls.ContentTypeFor(file),
	}, nil
}
