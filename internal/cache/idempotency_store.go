package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"item-record-service/internal/apperror"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	idempotencyKeyPrefix = "idempotency:"

	statusPending   = "pending"
	statusCompleted = "completed"
)

// IdempotencyReplay is a stored HTTP response returned for a repeated key.
type IdempotencyReplay struct {
	StatusCode  int    `json:"status_code"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// IdempotencyStats counts how keys were resolved since startup.
type IdempotencyStats struct {
	Acquired  int64
	Replayed  int64
	Conflicts int64
	Released  int64
	Backend   string
}

// IdempotencyStore guards appends against duplicate client retries.
type IdempotencyStore interface {
	// Acquire reserves key for a request whose body hashes to requestHash.
	// It returns (nil, nil) when the caller owns the key, a replay when the
	// key already completed, or an IDEMPOTENCY_CONFLICT AppError.
	Acquire(ctx context.Context, key, requestHash string) (*IdempotencyReplay, error)
	Complete(ctx context.Context, key string, replay IdempotencyReplay) error
	// Release drops the reservation so the request can be retried.
	Release(ctx context.Context, key string) error
	GetStats() IdempotencyStats
}

type idempotencyEntry struct {
	Status      string             `json:"status"`
	RequestHash string             `json:"request_hash"`
	Response    *IdempotencyReplay `json:"response,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
}

// idempotencyCounters is shared by both store implementations
type idempotencyCounters struct {
	mu        sync.RWMutex
	acquired  int64
	replayed  int64
	conflicts int64
	released  int64
}

func (c *idempotencyCounters) inc(field *int64) {
	c.mu.Lock()
	*field++
	c.mu.Unlock()
}

func (c *idempotencyCounters) snapshot(backend string) IdempotencyStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return IdempotencyStats{
		Acquired:  c.acquired,
		Replayed:  c.replayed,
		Conflicts: c.conflicts,
		Released:  c.released,
		Backend:   backend,
	}
}

// resolve decides what a second request with the same key gets
func (c *idempotencyCounters) resolve(key, requestHash string, entry *idempotencyEntry) (*IdempotencyReplay, error) {
	if entry.RequestHash != requestHash {
		c.inc(&c.conflicts)
		return nil, apperror.NewIdempotencyConflict("idempotency key was already used with a different request").
			WithDetail("key", key)
	}
	if entry.Status != statusCompleted || entry.Response == nil {
		c.inc(&c.conflicts)
		return nil, apperror.NewIdempotencyConflict("a request with this idempotency key is still in progress").
			WithDetail("key", key)
	}
	c.inc(&c.replayed)
	return entry.Response, nil
}

// ===== REDIS =====

// RedisIdempotencyStore keeps keys in Redis so every replica sees them.
type RedisIdempotencyStore struct {
	redisClient *redis.Client
	ttl         time.Duration
	logger      *zap.Logger
	counters    idempotencyCounters
}

// NewRedisIdempotencyStore creates a store whose keys expire after ttl
func NewRedisIdempotencyStore(redisClient *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{
		redisClient: redisClient,
		ttl:         ttl,
		logger:      logger,
	}
}

func (s *RedisIdempotencyStore) Acquire(ctx context.Context, key, requestHash string) (*IdempotencyReplay, error) {
	redisKey := idempotencyKeyPrefix + key

	data, err := json.Marshal(idempotencyEntry{
		Status:      statusPending,
		RequestHash: requestHash,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal idempotency entry: %w", err)
	}

	// the key can expire between SETNX and GET, so try twice
	for attempt := 0; attempt < 2; attempt++ {
		acquired, err := s.redisClient.SetNX(ctx, redisKey, data, s.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to reserve idempotency key: %w", err)
		}
		if acquired {
			s.counters.inc(&s.counters.acquired)
			s.logger.Debug("Idempotency key acquired", zap.String("key", key))
			return nil, nil
		}

		stored, err := s.redisClient.Get(ctx, redisKey).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read idempotency key: %w", err)
		}

		var entry idempotencyEntry
		if err := json.Unmarshal(stored, &entry); err != nil {
			return nil, fmt.Errorf("failed to decode idempotency entry: %w", err)
		}

		replay, err := s.counters.resolve(key, requestHash, &entry)
		if err == nil {
			s.logger.Debug("Idempotency key replayed", zap.String("key", key))
		}
		return replay, err
	}

	return nil, apperror.NewIdempotencyConflict("idempotency key could not be reserved").WithDetail("key", key)
}

func (s *RedisIdempotencyStore) Complete(ctx context.Context, key string, replay IdempotencyReplay) error {
	redisKey := idempotencyKeyPrefix + key

	stored, err := s.redisClient.Get(ctx, redisKey).Bytes()
	if err != nil {
		return fmt.Errorf("failed to read idempotency key: %w", err)
	}

	var entry idempotencyEntry
	if err := json.Unmarshal(stored, &entry); err != nil {
		return fmt.Errorf("failed to decode idempotency entry: %w", err)
	}
	entry.Status = statusCompleted
	entry.Response = &replay

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal idempotency entry: %w", err)
	}

	if err := s.redisClient.Set(ctx, redisKey, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to complete idempotency key: %w", err)
	}
	return nil
}

func (s *RedisIdempotencyStore) Release(ctx context.Context, key string) error {
	if err := s.redisClient.Del(ctx, idempotencyKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to release idempotency key: %w", err)
	}
	s.counters.inc(&s.counters.released)
	return nil
}

func (s *RedisIdempotencyStore) GetStats() IdempotencyStats {
	return s.counters.snapshot("redis")
}

// ===== MEMORY =====

// MemoryIdempotencyStore is the single-process store used with the memory driver.
type MemoryIdempotencyStore struct {
	mu       sync.Mutex
	entries  map[string]*memoryEntry
	ttl      time.Duration
	now      func() time.Time
	counters idempotencyCounters
}

type memoryEntry struct {
	idempotencyEntry
	expiresAt time.Time
}

func NewMemoryIdempotencyStore(ttl time.Duration) *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{
		entries: make(map[string]*memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemoryIdempotencyStore) Acquire(ctx context.Context, key, requestHash string) (*IdempotencyReplay, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if entry, ok := s.entries[key]; ok && now.Before(entry.expiresAt) {
		return s.counters.resolve(key, requestHash, &entry.idempotencyEntry)
	}

	s.entries[key] = &memoryEntry{
		idempotencyEntry: idempotencyEntry{
			Status:      statusPending,
			RequestHash: requestHash,
			CreatedAt:   now.UTC(),
		},
		expiresAt: now.Add(s.ttl),
	}
	s.counters.inc(&s.counters.acquired)
	return nil, nil
}

func (s *MemoryIdempotencyStore) Complete(ctx context.Context, key string, replay IdempotencyReplay) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return fmt.Errorf("idempotency key %q is not reserved", key)
	}
	entry.Status = statusCompleted
	entry.Response = &replay
	entry.expiresAt = s.now().Add(s.ttl)
	return nil
}

func (s *MemoryIdempotencyStore) Release(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()

	s.counters.inc(&s.counters.released)
	return nil
}

func (s *MemoryIdempotencyStore) GetStats() IdempotencyStats {
	return s.counters.snapshot("memory")
}

var (
	_ IdempotencyStore = (*RedisIdempotencyStore)(nil)
	_ IdempotencyStore = (*MemoryIdempotencyStore)(nil)
)
