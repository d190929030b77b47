package realtime

import (
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/prontocore/kitchen/internal/config"
	"go.uber.org/fx"
)

// NewRedisClient opens the shared Redis connection used by the realtime
// bus and, elsewhere, the assignment advisory lock.
func NewRedisClient(cfg config.Config) *redis.Client {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		addr = "localhost:6379"
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

var Module = fx.Module("realtime.bus",
	fx.Provide(NewRedisClient),
	fx.Provide(New),
)
