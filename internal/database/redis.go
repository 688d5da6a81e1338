package database

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

type RedisDB struct {
	Client *redis.Client
}

func NewRedisDB(url, password string, db int, logger *zap.Logger) (*RedisDB, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	// a separately supplied password wins over the one in the URL
	if password != "" {
		opt.Password = password
	}
	opt.DB = db

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	logger.Info("Redis connection established",
		zap.String("addr", opt.Addr),
		zap.Int("db", db),
	)

	return &RedisDB{Client: client}, nil
}

func (r *RedisDB) Close() error {
	return r.Client.Close()
}

func (r *RedisDB) Ping(ctx context.Context) error {
	return r.Client.Ping(ctx).Err()
}

// RedisStats is the subset of INFO the health and monitoring endpoints report.
type RedisStats struct {
	Keys        int64
	UsedMemory  int64
	Connections int64
}

// GetStats reads key count and memory usage
func (r *RedisDB) GetStats(ctx context.Context) (RedisStats, error) {
	var stats RedisStats

	keys, err := r.Client.DBSize(ctx).Result()
	if err != nil {
		return stats, fmt.Errorf("failed to read dbsize: %w", err)
	}
	stats.Keys = keys

	info, err := r.Client.Info(ctx).Result()
	if err != nil {
		return stats, fmt.Errorf("failed to read info: %w", err)
	}
	stats.UsedMemory = parseInfoInt(info, "used_memory")
	stats.Connections = parseInfoInt(info, "connected_clients")

	return stats, nil
}

func parseInfoInt(info, field string) int64 {
	for _, line := range strings.Split(info, "\n") {
		if !strings.HasPrefix(line, field+":") {
			continue
		}
		value := strings.TrimSpace(strings.TrimPrefix(line, field+":"))
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return 0
		}
		return n
	}
	return 0
}
