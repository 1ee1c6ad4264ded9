package redisx

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/lessongen/internal/platform/envutil"
	"github.com/yungbote/lessongen/internal/platform/logger"
)

type Config struct {
	Addr     string
	Password string
	DB       int
}

func LoadConfig(log *logger.Logger) Config {
	return Config{
		Addr:     envutil.String("REDIS_ADDR", "", log),
		Password: envutil.String("REDIS_PASSWORD", "", nil),
		DB:       envutil.Int("REDIS_DB", 0),
	}
}

// Enabled reports whether a redis address was configured.
func (c Config) Enabled() bool { return strings.TrimSpace(c.Addr) != "" }

// NewClient dials redis and pings it once so misconfiguration fails at startup.
func NewClient(ctx context.Context, log *logger.Logger, cfg Config) (*goredis.Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if !cfg.Enabled() {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	log.Info("Redis connected", "addr", cfg.Addr, "db", cfg.DB)
	return rdb, nil
}
