// Package backup persists the recordings index through the object-storage
// abstraction. The index lives in memory; without the snapshot a permanent
// recording's files would survive a restart but the entry pointing at them
// would not.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/toxikmusic/traxx-current-sub001/internal/core/domain"
	"github.com/toxikmusic/traxx-current-sub001/internal/core/ports"
	"github.com/toxikmusic/traxx-current-sub001/internal/infrastructure/storage"
)

const indexObject = "recordings-index.json"

type indexFile struct {
	SavedAt    time.Time         `json:"savedAt"`
	Recordings []recordingRecord `json:"recordings"`
}

type recordingRecord struct {
	StreamID        int64           `json:"streamId"`
	OwnerID         string          `json:"ownerId"`
	Segments        []segmentRecord `json:"segments"`
	PlaylistURL     string          `json:"playlistUrl"`
	SizeBytes       int64           `json:"sizeBytes"`
	DurationSeconds float64         `json:"durationSeconds"`
	IsTemporary     bool            `json:"isTemporary"`
	CreatedAt       time.Time       `json:"createdAt"`
	ExpiresAt       time.Time       `json:"expiresAt,omitempty"`
}

type segmentRecord struct {
	Name      string `json:"name"`
	Index     int    `json:"index"`
	SizeBytes int64  `json:"sizeBytes"`
}

// IndexSnapshotter saves and restores the recordings index. Snapshots are
// full rewrites of a single object, so a torn write cannot corrupt more than
// one snapshot generation.
type IndexSnapshotter struct {
	store   ports.RecordingStore
	backend storage.Storage
	logger  *zap.SugaredLogger
}

func NewIndexSnapshotter(store ports.RecordingStore, backend storage.Storage, logger *zap.SugaredLogger) *IndexSnapshotter {
	return &IndexSnapshotter{
		store:   store,
		backend: backend,
		logger:  logger,
	}
}

func (s *IndexSnapshotter) Save(ctx context.Context) error {
	recordings := s.store.Export()

	file := indexFile{
		SavedAt:    time.Now(),
		Recordings: make([]recordingRecord, 0, len(recordings)),
	}
	for _, rec := range recordings {
		file.Recordings = append(file.Recordings, toRecord(rec))
	}

	data, err := json.Marshal(file)
	if err != nil {
		return fmt.Errorf("failed to encode recordings index: %w", err)
	}
	if err := s.backend.Save(ctx, indexObject, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to save recordings index: %w", err)
	}

	s.logger.Debugw("recordings index saved", "recordings", len(file.Recordings))
	return nil
}

// Restore loads the last snapshot into the store. A missing snapshot is a
// fresh deployment, not an error.
func (s *IndexSnapshotter) Restore(ctx context.Context) error {
	reader, err := s.backend.Load(ctx, indexObject)
	if err != nil {
		s.logger.Debugw("no recordings index snapshot found", "error", err)
		return nil
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("failed to read recordings index: %w", err)
	}

	var file indexFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to decode recordings index: %w", err)
	}

	recordings := make([]*domain.Recording, 0, len(file.Recordings))
	for _, record := range file.Recordings {
		recordings = append(recordings, fromRecord(record))
	}
	s.store.Import(recordings)

	s.logger.Infow("recordings index restored", "recordings", len(recordings), "saved_at", file.SavedAt)
	return nil
}

// Run snapshots on a ticker until the context is cancelled, then writes one
// final snapshot so shutdown never loses finalized recordings.
func (s *IndexSnapshotter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			finalCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.Save(finalCtx); err != nil {
				s.logger.Warnw("failed to save recordings index at shutdown", "error", err)
			}
			cancel()
			return
		case <-ticker.C:
			if err := s.Save(ctx); err != nil {
				s.logger.Warnw("failed to save recordings index", "error", err)
			}
		}
	}
}

func toRecord(rec *domain.Recording) recordingRecord {
	segments := make([]segmentRecord, 0, len(rec.Segments))
	for _, seg := range rec.Segments {
		segments = append(segments, segmentRecord{
			Name:      seg.Name,
			Index:     seg.Index,
			SizeBytes: seg.SizeBytes,
		})
	}
	return recordingRecord{
		StreamID:        int64(rec.StreamID),
		OwnerID:         string(rec.OwnerID),
		Segments:        segments,
		PlaylistURL:     rec.PlaylistURL,
		SizeBytes:       rec.SizeBytes,
		DurationSeconds: rec.DurationSeconds,
		IsTemporary:     rec.IsTemporary,
		CreatedAt:       rec.CreatedAt,
		ExpiresAt:       rec.ExpiresAt,
	}
}

func fromRecord(record recordingRecord) *domain.Recording {
	segments := make([]domain.SegmentRef, 0, len(record.Segments))
	for _, seg := range record.Segments {
		segments = append(segments, domain.SegmentRef{
			Name:      seg.Name,
			Index:     seg.Index,
			SizeBytes: seg.SizeBytes,
		})
	}
	return &domain.Recording{
		StreamID:        domain.StreamID(record.StreamID),
		OwnerID:         domain.UserID(record.OwnerID),
		Segments:        segments,
		PlaylistURL:     record.PlaylistURL,
		SizeBytes:       record.SizeBytes,
		DurationSeconds: record.DurationSeconds,
		IsTemporary:     record.IsTemporary,
		CreatedAt:       record.CreatedAt,
		ExpiresAt:       record.ExpiresAt,
	}
}
