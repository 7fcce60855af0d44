package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/toxikmusic/traxx-current-sub001/internal/core/domain"
	"github.com/toxikmusic/traxx-current-sub001/internal/core/ports"
)

type MemoryStreamRepository struct {
	streams map[domain.StreamID]*domain.Stream
	nextID  domain.StreamID
	mu      sync.RWMutex
}

func NewMemoryStreamRepository() ports.StreamRepository {
	return &MemoryStreamRepository{
		streams: make(map[domain.StreamID]*domain.Stream),
		nextID:  1,
	}
}

// Create stores the stream, assigning the next internal id when none is set.
func (r *MemoryStreamRepository) Create(ctx context.Context, stream *domain.Stream) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if stream.ID == 0 {
		stream.ID = r.nextID
		r.nextID++
	} else if _, exists := r.streams[stream.ID]; exists {
		return fmt.Errorf("stream already exists: %s", stream.ID)
	} else if stream.ID >= r.nextID {
		r.nextID = stream.ID + 1
	}

	copied := *stream
	r.streams[stream.ID] = &copied
	return nil
}

func (r *MemoryStreamRepository) GetByID(ctx context.Context, id domain.StreamID) (*domain.Stream, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stream, exists := r.streams[id]
	if !exists {
		return nil, domain.ErrStreamNotFound
	}
	copied := *stream
	return &copied, nil
}

func (r *MemoryStreamRepository) GetByPublicID(ctx context.Context, publicID domain.PublicStreamID) (*domain.Stream, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, stream := range r.streams {
		if stream.PublicID == publicID {
			copied := *stream
			return &copied, nil
		}
	}
	return nil, domain.ErrStreamNotFound
}

func (r *MemoryStreamRepository) GetByKey(ctx context.Context, streamKey string) (*domain.Stream, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, stream := range r.streams {
		if stream.StreamKey != "" && stream.StreamKey == streamKey {
			copied := *stream
			return &copied, nil
		}
	}
	return nil, domain.ErrStreamNotFound
}

func (r *MemoryStreamRepository) Update(ctx context.Context, stream *domain.Stream) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.streams[stream.ID]; !exists {
		return domain.ErrStreamNotFound
	}
	copied := *stream
	r.streams[stream.ID] = &copied
	return nil
}

func (r *MemoryStreamRepository) Delete(ctx context.Context, id domain.StreamID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.streams[id]; !exists {
		return domain.ErrStreamNotFound
	}
	delete(r.streams, id)
	return nil
}

func (r *MemoryStreamRepository) ListActive(ctx context.Context) ([]*domain.Stream, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var active []*domain.Stream
	for _, stream := range r.streams {
		if stream.IsLive {
			copied := *stream
			active = append(active, &copied)
		}
	}
	return active, nil
}
