package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/apperrors"
)

// GenerationLimiter bounds concurrent generations per company.
type GenerationLimiter interface {
	// Acquire takes a slot or fails with apperrors.ErrTooManyGenerations.
	// The returned release must be called exactly once.
	Acquire(ctx context.Context, companyID uuid.UUID) (release func(), err error)
}

// LocalLimiter counts slots in process. Used when Redis is not configured.
type LocalLimiter struct {
	mu     sync.Mutex
	max    int
	counts map[uuid.UUID]int
}

// NewLocalLimiter allows max concurrent generations per company.
func NewLocalLimiter(max int) *LocalLimiter {
	return &LocalLimiter{max: max, counts: make(map[uuid.UUID]int)}
}

func (l *LocalLimiter) Acquire(_ context.Context, companyID uuid.UUID) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.counts[companyID] >= l.max {
		return nil, apperrors.ErrTooManyGenerations
	}
	l.counts[companyID]++

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if l.counts[companyID]--; l.counts[companyID] <= 0 {
				delete(l.counts, companyID)
			}
		})
	}, nil
}

// RedisLimiter shares slots between server instances. Each company is a
// sorted set of slot leases scored by their expiry, so a crashed instance
// loses its slots after ttl regardless of load on the company.
type RedisLimiter struct {
	client *redis.Client
	max    int64
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisLimiter creates a RedisLimiter. ttl should exceed the generation timeout.
func NewRedisLimiter(client *redis.Client, max int, ttl time.Duration, logger *zap.Logger) *RedisLimiter {
	return &RedisLimiter{client: client, max: int64(max), ttl: ttl, logger: logger.Named("generation-limiter")}
}

// acquireScript drops expired leases, then adds ARGV[3] when fewer than
// ARGV[2] remain. KEYS[1] expires with the newest lease.
var acquireScript = redis.NewScript(`
redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", ARGV[1])
if redis.call("ZCARD", KEYS[1]) >= tonumber(ARGV[2]) then
	return 0
end
redis.call("ZADD", KEYS[1], ARGV[4], ARGV[3])
redis.call("PEXPIREAT", KEYS[1], ARGV[4])
return 1
`)

func (l *RedisLimiter) key(companyID uuid.UUID) string {
	return "bidflow:generations:" + companyID.String()
}

func (l *RedisLimiter) Acquire(ctx context.Context, companyID uuid.UUID) (func(), error) {
	key := l.key(companyID)
	lease := uuid.NewString()
	now := time.Now()

	ok, err := acquireScript.Run(ctx, l.client, []string{key},
		now.UnixMilli(), l.max, lease, now.Add(l.ttl).UnixMilli()).Int()
	if err != nil {
		return nil, fmt.Errorf("acquire generation slot: %w: %w", apperrors.ErrExternalFailure, err)
	}
	if ok == 0 {
		return nil, apperrors.ErrTooManyGenerations
	}

	var once sync.Once
	return func() { once.Do(func() { l.release(key, lease) }) }, nil
}

// release runs detached from the request so a cancelled request still frees its slot.
func (l *RedisLimiter) release(key, lease string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.client.ZRem(ctx, key, lease).Err(); err != nil {
		l.logger.Warn("Failed to release generation slot; it frees itself on expiry",
			zap.String("key", key),
			zap.Duration("ttl", l.ttl),
			zap.Error(err))
	}
}

var (
	_ GenerationLimiter = (*LocalLimiter)(nil)
	_ GenerationLimiter = (*RedisLimiter)(nil)
)
