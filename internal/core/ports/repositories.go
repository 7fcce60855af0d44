package ports

import (
	"context"

	"github.com/toxikmusic/traxx-current-sub001/internal/core/domain"
)

type StreamRepository interface {
	Create(ctx context.Context, stream *domain.Stream) error
	GetByID(ctx context.Context, id domain.StreamID) (*domain.Stream, error)
	GetByPublicID(ctx context.Context, publicID domain.PublicStreamID) (*domain.Stream, error)
	GetByKey(ctx context.Context, streamKey string) (*domain.Stream, error)
	Update(ctx context.Context, stream *domain.Stream) error
	Delete(ctx context.Context, id domain.StreamID) error
	ListActive(ctx context.Context) ([]*domain.Stream, error)
}
