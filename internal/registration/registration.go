// Package registration remembers which member pays for a batch checkout while
// the card payment for it is outstanding.
package registration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrNotFound = errors.New("routing registration not found")

const keyPrefix = "clubledger:batch"

// Registration binds a batch to its payer.
type Registration struct {
	BatchID   uuid.UUID `json:"batch_id"`
	PayerID   uuid.UUID `json:"payer_id"`
	CreatedAt time.Time `json:"created_at"`
}

type Store interface {
	Put(ctx context.Context, reg Registration) error
	Get(ctx context.Context, batchID uuid.UUID) (*Registration, error)
	Delete(ctx context.Context, batchID uuid.UUID) error
}

// RedisStore keeps registrations as JSON values that expire after ttl.
type RedisStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisStore(client redis.Cmdable, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func redisKey(batchID uuid.UUID) string {
	return fmt.Sprintf("%s:%s", keyPrefix, batchID)
}

func (s *RedisStore) Put(ctx context.Context, reg Registration) error {
	if reg.CreatedAt.IsZero() {
		reg.CreatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(reg)
	if err != nil {
		return fmt.Errorf("marshal registration: %w", err)
	}
	if err := s.client.Set(ctx, redisKey(reg.BatchID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("store registration: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, batchID uuid.UUID) (*Registration, error) {
	val, err := s.client.Get(ctx, redisKey(batchID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load registration: %w", err)
	}
	var reg Registration
	if err := json.Unmarshal(val, &reg); err != nil {
		return nil, fmt.Errorf("decode registration: %w", err)
	}
	return &reg, nil
}

func (s *RedisStore) Delete(ctx context.Context, batchID uuid.UUID) error {
	if err := s.client.Del(ctx, redisKey(batchID)).Err(); err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}
	return nil
}

// MemoryStore is used when REDIS_URL is empty and in tests.
type MemoryStore struct {
	mu   sync.Mutex
	ttl  time.Duration
	now  func() time.Time
	regs map[uuid.UUID]Registration
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, now: time.Now, regs: map[uuid.UUID]Registration{}}
}

func (s *MemoryStore) Put(_ context.Context, reg Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if reg.CreatedAt.IsZero() {
		reg.CreatedAt = s.now().UTC()
	}
	s.regs[reg.BatchID] = reg
	return nil
}

func (s *MemoryStore) Get(_ context.Context, batchID uuid.UUID) (*Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.regs[batchID]
	if !ok {
		return nil, ErrNotFound
	}
	if s.ttl > 0 && s.now().Sub(reg.CreatedAt) > s.ttl {
		delete(s.regs, batchID)
		return nil, ErrNotFound
	}
	return &reg, nil
}

func (s *MemoryStore) Delete(_ context.Context, batchID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.regs, batchID)
	return nil
}
