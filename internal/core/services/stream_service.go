package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/toxikmusic/traxx-current-sub001/internal/core/domain"
	"github.com/toxikmusic/traxx-current-sub001/internal/core/ports"
)

// StreamService manages the persisted stream metadata records the core
// components read through: creation binds a fresh broadcaster key and its
// derived public id to the slot.
type StreamService interface {
	CreateStream(ctx context.Context, owner domain.UserID, title string) (*domain.Stream, error)
	GetStream(ctx context.Context, id domain.StreamID) (*domain.Stream, error)
	GetPublicStream(ctx context.Context, publicID domain.PublicStreamID) (*domain.Stream, error)
	ListActive(ctx context.Context) ([]*domain.Stream, error)
	VerifyKey(ctx context.Context, streamKey string) (*domain.Stream, error)
	ValidateKeyForStream(ctx context.Context, id domain.StreamID, streamKey string) (bool, string)
}

type streamService struct {
	streams   ports.StreamRepository
	keys      ports.KeyService
	keyExpiry time.Duration
	logger    *zap.SugaredLogger
}

func NewStreamService(streams ports.StreamRepository, keys ports.KeyService, keyExpiry time.Duration, logger *zap.SugaredLogger) StreamService {
	if keyExpiry <= 0 {
		keyExpiry = DefaultKeyExpiry
	}
	return &streamService{
		streams:   streams,
		keys:      keys,
		keyExpiry: keyExpiry,
		logger:    logger,
	}
}

func (s *streamService) CreateStream(ctx context.Context, owner domain.UserID, title string) (*domain.Stream, error) {
	key := s.keys.IssueKey(owner)
	stream := &domain.Stream{
		UserID:    owner,
		Title:     title,
		StreamKey: key,
		PublicID:  s.keys.DerivePublicID(key),
		CreatedAt: time.Now(),
	}

	if err := s.streams.Create(ctx, stream); err != nil {
		return nil, fmt.Errorf("failed to create stream: %w", err)
	}

	s.logger.Infow("stream created", "stream_id", stream.ID, "user_id", owner, "public_id", stream.PublicID)
	return stream, nil
}

func (s *streamService) GetStream(ctx context.Context, id domain.StreamID) (*domain.Stream, error) {
	return s.streams.GetByID(ctx, id)
}

func (s *streamService) GetPublicStream(ctx context.Context, publicID domain.PublicStreamID) (*domain.Stream, error) {
	stream, err := s.streams.GetByPublicID(ctx, publicID)
	if err != nil {
		return nil, err
	}
	return stream.Sanitized(), nil
}

func (s *streamService) ListActive(ctx context.Context) ([]*domain.Stream, error) {
	streams, err := s.streams.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Stream, 0, len(streams))
	for _, stream := range streams {
		out = append(out, stream.Sanitized())
	}
	return out, nil
}

// VerifyKey resolves a stream key to its owning stream. The format check runs
// first so malformed keys never reach the repository.
func (s *streamService) VerifyKey(ctx context.Context, streamKey string) (*domain.Stream, error) {
	if !s.keys.HasValidFormat(streamKey) {
		return nil, domain.ErrInvalidKey
	}

	stream, err := s.streams.GetByKey(ctx, streamKey)
	if err != nil {
		return nil, domain.ErrInvalidKey
	}
	return stream.Sanitized(), nil
}

// ValidateKeyForStream reports whether the key authorizes broadcasting on the
// given stream, with a category message naming the rejection reason.
func (s *streamService) ValidateKeyForStream(ctx context.Context, id domain.StreamID, streamKey string) (bool, string) {
	stream, err := s.streams.GetByID(ctx, id)
	if err != nil {
		return false, "stream not found"
	}

	if stream.StreamKey != "" && stream.StreamKey == streamKey {
		return true, domain.KeyOK.Message()
	}

	failure := s.keys.ClassifyFailure(streamKey, stream.UserID, s.keyExpiry)
	if failure == domain.KeyOK {
		return true, failure.Message()
	}
	return false, failure.Message()
}
