package repositories

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/toxikmusic/traxx-current-sub001/internal/core/ports"
	"github.com/toxikmusic/traxx-current-sub001/internal/infrastructure/repositories/memory"
	redisrepo "github.com/toxikmusic/traxx-current-sub001/internal/infrastructure/repositories/redis"
	"github.com/toxikmusic/traxx-current-sub001/pkg/config"
	"github.com/toxikmusic/traxx-current-sub001/pkg/distributed"
)

// RepositoryFactory creates repositories, falling back to memory when Redis
// is unavailable.
type RepositoryFactory struct {
	useRedis    bool
	redisClient *redis.Client
	logger      *zap.SugaredLogger
}

func NewRepositoryFactory(cfg *config.Config, logger *zap.SugaredLogger) (*RepositoryFactory, error) {
	factory := &RepositoryFactory{
		useRedis: cfg.Redis.Enabled,
		logger:   logger,
	}

	if cfg.Redis.Enabled {
		client, err := redisrepo.NewRedisClient(
			cfg.Redis.Address,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.PoolSize,
			logger,
		)
		if err != nil {
			logger.Warnw("failed to connect to Redis, falling back to memory repositories",
				"error", err,
			)
			factory.useRedis = false
		} else {
			factory.redisClient = client
			logger.Info("using Redis stream repository")
		}
	}

	if !factory.useRedis {
		logger.Info("using memory stream repository")
	}
	return factory, nil
}

func (f *RepositoryFactory) CreateStreamRepository() ports.StreamRepository {
	if f.useRedis && f.redisClient != nil {
		return redisrepo.NewRedisStreamRepository(f.redisClient)
	}
	return memory.NewMemoryStreamRepository()
}

// NewSweepLock returns a cross-instance lock for the recording sweeper, or
// nil when running on memory repositories (single instance, no coordination
// needed).
func (f *RepositoryFactory) NewSweepLock(key string, ttl time.Duration) *distributed.Lock {
	if !f.useRedis || f.redisClient == nil {
		return nil
	}
	return distributed.NewLock(f.redisClient, key, ttl)
}

// Close closes the Redis connection if one is in use.
func (f *RepositoryFactory) Close() error {
	if f.redisClient != nil {
		return redisrepo.CloseRedisClient(f.redisClient)
	}
	return nil
}

// HealthCheck verifies the Redis connection when Redis is in use.
func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	if f.useRedis && f.redisClient != nil {
		return f.redisClient.Ping(ctx).Err()
	}
	return nil
}
