package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ayo6706/clubledger/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

var (
	ErrNotFound     = errors.New("idempotency key not found")
	ErrHashMismatch = errors.New("idempotency key body mismatch")
	ErrInProgress   = errors.New("idempotency key in progress")
)

const (
	redisKeyPrefix = "clubledger:idempotency"

	servedByRedis    = "redis"
	servedByPostgres = "postgres"

	defaultAbandonAfter = 5 * time.Minute
	waitFloor           = 25 * time.Millisecond
	waitCeiling         = 500 * time.Millisecond
)

// Record is a finished response replayable for the same key and body hash.
type Record struct {
	Key         string
	RequestHash string
	Status      int
	Body        []byte
	ContentType string
	ServedBy    string
}

// Store keeps settlement request keys in Postgres with a Redis read-through
// cache. A nil redis client disables the cache.
//
// Finished records are replayed for ttl. A reservation whose request never
// finished (the process died mid-settlement) can be taken over once it is
// older than abandonAfter.
type Store struct {
	redis        redis.Cmdable
	queries      repository.Querier
	ttl          time.Duration
	abandonAfter time.Duration
	now          func() time.Time
}

func NewStore(redis redis.Cmdable, queries repository.Querier, ttl time.Duration) *Store {
	return &Store{
		redis:        redis,
		queries:      queries,
		ttl:          ttl,
		abandonAfter: defaultAbandonAfter,
		now:          time.Now,
	}
}

// WithAbandonAfter sets how long an unfinished reservation blocks its key.
func (s *Store) WithAbandonAfter(d time.Duration) *Store {
	if d > 0 {
		s.abandonAfter = d
	}
	return s
}

type cacheEnvelope struct {
	Key         string `json:"key"`
	Hash        string `json:"hash"`
	Status      int    `json:"status"`
	Body        []byte `json:"body"`
	ContentType string `json:"content_type"`
}

func (s *Store) Lookup(ctx context.Context, key, requestHash string) (*Record, error) {
	if rec, ok := s.cached(ctx, key); ok {
		if rec.RequestHash != requestHash {
			return nil, ErrHashMismatch
		}
		return rec, nil
	}

	row, err := s.queries.GetIdempotencyKey(ctx, key)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lookup idempotency key: %w", err)
	}
	if s.expired(row) {
		return nil, ErrNotFound
	}
	if row.RequestHash != requestHash {
		return nil, ErrHashMismatch
	}
	if row.InProgress {
		return nil, ErrInProgress
	}
	rec := recordFromRow(row)
	s.cache(ctx, rec)
	return &rec, nil
}

// expired reports whether row no longer holds its key: a finished record past
// ttl, or a reservation past abandonAfter.
func (s *Store) expired(row repository.IdempotencyKey) bool {
	age := s.now().Sub(row.UpdatedAt.Time)
	if row.InProgress {
		return age > s.abandonAfter
	}
	return s.ttl > 0 && age > s.ttl
}

// Reserve claims key for this request; false means another request owns it.
// An expired or abandoned row is removed and the claim retried once.
func (s *Store) Reserve(ctx context.Context, key, requestHash, method, path string) (bool, error) {
	params := repository.ReserveIdempotencyKeyParams{
		IdempotencyKey: key,
		RequestHash:    requestHash,
		Method:         method,
		Path:           path,
	}
	for attempt := 0; attempt < 2; attempt++ {
		_, err := s.queries.ReserveIdempotencyKey(ctx, params)
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return false, fmt.Errorf("reserve idempotency key: %w", err)
		}
		if attempt > 0 {
			break
		}
		removed, err := s.expire(ctx, key)
		if err != nil {
			return false, err
		}
		if !removed {
			break
		}
	}
	return false, nil
}

func (s *Store) expire(ctx context.Context, key string) (bool, error) {
	now := s.now()
	finishedBefore := now.Add(-s.ttl)
	if s.ttl <= 0 {
		finishedBefore = time.Time{}
	}
	n, err := s.queries.ExpireIdempotencyKey(ctx, repository.ExpireIdempotencyKeyParams{
		IdempotencyKey:  key,
		FinishedBefore:  repository.ToPgTimestamptz(finishedBefore),
		AbandonedBefore: repository.ToPgTimestamptz(now.Add(-s.abandonAfter)),
	})
	if err != nil {
		return false, fmt.Errorf("expire idempotency key: %w", err)
	}
	if n > 0 {
		s.evict(ctx, key)
		zap.L().Info("expired idempotency key reclaimed", zap.String("key", key))
	}
	return n > 0, nil
}

func (s *Store) Finalize(ctx context.Context, key, requestHash string, status int, body []byte, contentType string) (*Record, error) {
	row, err := s.queries.FinalizeIdempotencyKey(ctx, repository.FinalizeIdempotencyKeyParams{
		ResponseStatus: int32(status),
		ResponseBody:   body,
		ContentType:    contentType,
		IdempotencyKey: key,
		RequestHash:    requestHash,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("finalize idempotency key: %w", err)
	}
	rec := recordFromRow(row)
	s.cache(ctx, rec)
	return &rec, nil
}

// Release drops an unfinished reservation so the client can retry with the
// same key, e.g. after the gateway was unavailable.
func (s *Store) Release(ctx context.Context, key, requestHash string) error {
	if _, err := s.queries.ReleaseIdempotencyKey(ctx, repository.ReleaseIdempotencyKeyParams{
		IdempotencyKey: key,
		RequestHash:    requestHash,
	}); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

// WaitForCompletion polls with capped exponential backoff until the owning
// request finalizes the key or ctx ends. A released key returns ErrNotFound.
func (s *Store) WaitForCompletion(ctx context.Context, key, requestHash string) (*Record, error) {
	backoff := retry.WithCappedDuration(waitCeiling, retry.NewExponential(waitFloor))
	var rec *Record
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		rec, err = s.Lookup(ctx, key, requestHash)
		if errors.Is(err, ErrInProgress) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	return rec, nil
}

func recordFromRow(row repository.IdempotencyKey) Record {
	return Record{
		Key:         row.IdempotencyKey,
		RequestHash: row.RequestHash,
		Status:      int(row.ResponseStatus),
		Body:        row.ResponseBody,
		ContentType: row.ContentType,
		ServedBy:    servedByPostgres,
	}
}

func (s *Store) cached(ctx context.Context, key string) (*Record, bool) {
	if s.redis == nil {
		return nil, false
	}
	val, err := s.redis.Get(ctx, redisKey(key)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			zap.L().Warn("redis idempotency lookup failed", zap.Error(err))
		}
		return nil, false
	}
	var env cacheEnvelope
	if err := json.Unmarshal([]byte(val), &env); err != nil {
		return nil, false
	}
	return &Record{
		Key:         env.Key,
		RequestHash: env.Hash,
		Status:      env.Status,
		Body:        env.Body,
		ContentType: env.ContentType,
		ServedBy:    servedByRedis,
	}, true
}

func (s *Store) cache(ctx context.Context, rec Record) {
	if s.redis == nil {
		return
	}
	payload, err := json.Marshal(cacheEnvelope{
		Key:         rec.Key,
		Hash:        rec.RequestHash,
		Status:      rec.Status,
		Body:        rec.Body,
		ContentType: rec.ContentType,
	})
	if err != nil {
		zap.L().Warn("marshal idempotency cache", zap.Error(err))
		return
	}
	if err := s.redis.Set(ctx, redisKey(rec.Key), payload, s.ttl).Err(); err != nil {
		zap.L().Warn("redis idempotency cache set failed", zap.Error(err))
	}
}

func (s *Store) evict(ctx context.Context, key string) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, redisKey(key)).Err(); err != nil {
		zap.L().Warn("redis idempotency cache evict failed", zap.Error(err))
	}
}

func redisKey(key string) string {
	return fmt.Sprintf("%s:%s", redisKeyPrefix, key)
}
