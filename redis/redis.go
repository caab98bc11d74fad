package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewClient connects to redis at addr. It returns nil when redis is not
// reachable; callers run without a cache in that case.
func NewClient(ctx context.Context, addr string, logger *zap.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("Redis not available. Running without Redis.", zap.String("addr", addr), zap.Error(err))
		_ = client.Close()
		return nil
	}

	logger.Info("Redis connected successfully.", zap.String("addr", addr))
	return client
}
