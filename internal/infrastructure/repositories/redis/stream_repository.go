package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/toxikmusic/traxx-current-sub001/internal/core/domain"
	"github.com/toxikmusic/traxx-current-sub001/internal/core/ports"
)

// RedisStreamRepository persists stream metadata in Redis. Secondary indexes
// (public id, stream key) are plain string keys pointing at the internal id,
// so lookups stay O(1) instead of scanning.
type RedisStreamRepository struct {
	client *redis.Client
	prefix string
}

func NewRedisStreamRepository(client *redis.Client) ports.StreamRepository {
	return &RedisStreamRepository{
		client: client,
		prefix: "traxx:stream:",
	}
}

func (r *RedisStreamRepository) streamKey(id domain.StreamID) string {
	return r.prefix + id.String()
}

func (r *RedisStreamRepository) publicIndexKey(publicID domain.PublicStreamID) string {
	return r.prefix + "public:" + string(publicID)
}

func (r *RedisStreamRepository) keyIndexKey(streamKey string) string {
	return r.prefix + "key:" + streamKey
}

func (r *RedisStreamRepository) liveSetKey() string {
	return r.prefix + "live"
}

func (r *RedisStreamRepository) counterKey() string {
	return r.prefix + "next_id"
}

func (r *RedisStreamRepository) write(ctx context.Context, stream *domain.Stream) error {
	data, err := json.Marshal(stream)
	if err != nil {
		return fmt.Errorf("failed to marshal stream: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.streamKey(stream.ID), data, 0)
	if stream.PublicID != "" {
		pipe.Set(ctx, r.publicIndexKey(stream.PublicID), stream.ID.String(), 0)
	}
	if stream.StreamKey != "" {
		pipe.Set(ctx, r.keyIndexKey(stream.StreamKey), stream.ID.String(), 0)
	}
	if stream.IsLive {
		pipe.SAdd(ctx, r.liveSetKey(), stream.ID.String())
	} else {
		pipe.SRem(ctx, r.liveSetKey(), stream.ID.String())
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write stream to Redis: %w", err)
	}
	return nil
}

func (r *RedisStreamRepository) Create(ctx context.Context, stream *domain.Stream) error {
	if stream.ID == 0 {
		next, err := r.client.Incr(ctx, r.counterKey()).Result()
		if err != nil {
			return fmt.Errorf("failed to allocate stream id: %w", err)
		}
		stream.ID = domain.StreamID(next)
	}
	return r.write(ctx, stream)
}

func (r *RedisStreamRepository) GetByID(ctx context.Context, id domain.StreamID) (*domain.Stream, error) {
	data, err := r.client.Get(ctx, r.streamKey(id)).Result()
	if err == redis.Nil {
		return nil, domain.ErrStreamNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stream from Redis: %w", err)
	}

	var stream domain.Stream
	if err := json.Unmarshal([]byte(data), &stream); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stream: %w", err)
	}
	return &stream, nil
}

func (r *RedisStreamRepository) getByIndex(ctx context.Context, indexKey string) (*domain.Stream, error) {
	idStr, err := r.client.Get(ctx, indexKey).Result()
	if err == redis.Nil {
		return nil, domain.ErrStreamNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve stream index: %w", err)
	}

	id, err := domain.ParseStreamID(idStr)
	if err != nil {
		return nil, fmt.Errorf("corrupt stream index entry: %w", err)
	}
	return r.GetByID(ctx, id)
}

func (r *RedisStreamRepository) GetByPublicID(ctx context.Context, publicID domain.PublicStreamID) (*domain.Stream, error) {
	return r.getByIndex(ctx, r.publicIndexKey(publicID))
}

func (r *RedisStreamRepository) GetByKey(ctx context.Context, streamKey string) (*domain.Stream, error) {
	return r.getByIndex(ctx, r.keyIndexKey(streamKey))
}

func (r *RedisStreamRepository) Update(ctx context.Context, stream *domain.Stream) error {
	if _, err := r.GetByID(ctx, stream.ID); err != nil {
		return err
	}
	return r.write(ctx, stream)
}

func (r *RedisStreamRepository) Delete(ctx context.Context, id domain.StreamID) error {
	stream, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.streamKey(id))
	if stream.PublicID != "" {
		pipe.Del(ctx, r.publicIndexKey(stream.PublicID))
	}
	if stream.StreamKey != "" {
		pipe.Del(ctx, r.keyIndexKey(stream.StreamKey))
	}
	pipe.SRem(ctx, r.liveSetKey(), id.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete stream from Redis: %w", err)
	}
	return nil
}

func (r *RedisStreamRepository) ListActive(ctx context.Context) ([]*domain.Stream, error) {
	ids, err := r.client.SMembers(ctx, r.liveSetKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list live streams: %w", err)
	}

	var active []*domain.Stream
	for _, idStr := range ids {
		id, err := domain.ParseStreamID(idStr)
		if err != nil {
			continue
		}
		stream, err := r.GetByID(ctx, id)
		if err != nil {
			continue
		}
		active = append(active, stream)
	}
	return active, nil
}
