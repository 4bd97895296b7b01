package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/arklim/skills-audit/internal/core/port"
	"github.com/arklim/skills-audit/internal/ids"
)

var errInvalidWindow = errors.New("window must be positive")

// RateLimitRepository keeps attempt windows in Redis sorted sets scored by unix nanoseconds.
type RateLimitRepository struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRateLimitRepository constructs a repository; keys are namespaced with keyPrefix.
func NewRateLimitRepository(client redis.UniversalClient, keyPrefix string) *RateLimitRepository {
	return &RateLimitRepository{client: client, keyPrefix: keyPrefix}
}

// Hit trims, records and counts in a single MULTI/EXEC round trip.
func (r *RateLimitRepository) Hit(ctx context.Context, key string, window time.Duration, at time.Time) (int, error) {
	if window <= 0 {
		return 0, errInvalidWindow
	}

	k := r.key(key)
	var count *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, k, "-inf", score(at.Add(-window)))
		pipe.ZAdd(ctx, k, redis.Z{Score: float64(at.UnixNano()), Member: ids.New()})
		count = pipe.ZCount(ctx, k, score(at.Add(-window)), score(at))
		pipe.Expire(ctx, k, window)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("redis rate limit hit: %w", err)
	}
	return int(count.Val()), nil
}

// Count returns the attempts inside the window ending at the given instant.
func (r *RateLimitRepository) Count(ctx context.Context, key string, window time.Duration, at time.Time) (int, error) {
	if window <= 0 {
		return 0, errInvalidWindow
	}

	count, err := r.client.ZCount(ctx, r.key(key), score(at.Add(-window)), score(at)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis zcount: %w", err)
	}
	return int(count), nil
}

func (r *RateLimitRepository) Oldest(ctx context.Context, key string, window time.Duration, at time.Time) (time.Time, bool, error) {
	if window <= 0 {
		return time.Time{}, false, errInvalidWindow
	}

	values, err := r.client.ZRangeByScoreWithScores(ctx, r.key(key), &redis.ZRangeBy{
		Min:   score(at.Add(-window)),
		Max:   score(at),
		Count: 1,
	}).Result()
	if err != nil {
		return time.Time{}, false, fmt.Errorf("redis zrangebyscore: %w", err)
	}
	if len(values) == 0 {
		return time.Time{}, false, nil
	}
	return time.Unix(0, int64(values[0].Score)), true, nil
}

// Reset forgets every attempt recorded for key.
func (r *RateLimitRepository) Reset(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (r *RateLimitRepository) key(identifier string) string {
	if r.keyPrefix == "" {
		return identifier
	}
	return r.keyPrefix + ":" + identifier
}

func score(t time.Time) string {
	return strconv.FormatInt(t.UnixNano(), 10)
}

var _ port.RateLimitStore = (*RateLimitRepository)(nil)
