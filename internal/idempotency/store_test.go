package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/ayo6706/clubledger/internal/testutil/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() *Store {
	return NewStore(nil, memstore.New().Queries(), time.Hour)
}

func TestReserveFinalizeLookup(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	_, err := s.Lookup(ctx, "k1", "h1")
	require.ErrorIs(t, err, ErrNotFound)

	reserved, err := s.Reserve(ctx, "k1", "h1", "POST", "/v1/settlements")
	require.NoError(t, err)
	require.True(t, reserved)

	_, err = s.Lookup(ctx, "k1", "h1")
	require.ErrorIs(t, err, ErrInProgress)

	again, err := s.Reserve(ctx, "k1", "h1", "POST", "/v1/settlements")
	require.NoError(t, err)
	assert.False(t, again)

	_, err = s.Finalize(ctx, "k1", "h1", 201, []byte(`{"outcome":"SETTLED"}`), "application/json")
	require.NoError(t, err)

	rec, err := s.Lookup(ctx, "k1", "h1")
	require.NoError(t, err)
	assert.Equal(t, 201, rec.Status)
	assert.JSONEq(t, `{"outcome":"SETTLED"}`, string(rec.Body))
	assert.Equal(t, "postgres", rec.ServedBy)

	_, err = s.Lookup(ctx, "k1", "other-body")
	assert.ErrorIs(t, err, ErrHashMismatch)
}

func TestReleaseAllowsRetry(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	reserved, err := s.Reserve(ctx, "k2", "h2", "POST", "/v1/settlements")
	require.NoError(t, err)
	require.True(t, reserved)

	require.NoError(t, s.Release(ctx, "k2", "h2"))
	_, err = s.Lookup(ctx, "k2", "h2")
	require.ErrorIs(t, err, ErrNotFound)

	reserved, err = s.Reserve(ctx, "k2", "h2", "POST", "/v1/settlements")
	require.NoError(t, err)
	assert.True(t, reserved)
}

func TestReleaseKeepsFinishedResponses(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	_, err := s.Reserve(ctx, "k3", "h3", "POST", "/v1/settlements")
	require.NoError(t, err)
	_, err = s.Finalize(ctx, "k3", "h3", 202, []byte(`{}`), "application/json")
	require.NoError(t, err)

	require.NoError(t, s.Release(ctx, "k3", "h3"))
	rec, err := s.Lookup(ctx, "k3", "h3")
	require.NoError(t, err)
	assert.Equal(t, 202, rec.Status)
}

func TestWaitForCompletionHonoursContext(t *testing.T) {
	s := newTestStore()
	_, err := s.Reserve(context.Background(), "k4", "h4", "POST", "/v1/settlements")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	_, err = s.WaitForCompletion(ctx, "k4", "h4")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExpiredRecordIsReclaimed(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	s.ttl = time.Minute

	_, err := s.Reserve(ctx, "k5", "h5", "POST", "/v1/settlements")
	require.NoError(t, err)
	_, err = s.Finalize(ctx, "k5", "h5", 201, []byte(`{}`), "application/json")
	require.NoError(t, err)

	reserved, err := s.Reserve(ctx, "k5", "other", "POST", "/v1/settlements")
	require.NoError(t, err)
	assert.False(t, reserved, "live record keeps its key")

	s.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = s.Lookup(ctx, "k5", "h5")
	require.ErrorIs(t, err, ErrNotFound)

	reserved, err = s.Reserve(ctx, "k5", "other", "POST", "/v1/settlements")
	require.NoError(t, err)
	assert.True(t, reserved)
}

func TestAbandonedReservationIsTakenOver(t *testing.T) {
	ctx := context.Background()
	s := newTestStore().WithAbandonAfter(time.Minute)

	_, err := s.Reserve(ctx, "k6", "h6", "POST", "/v1/settlements")
	require.NoError(t, err)

	reserved, err := s.Reserve(ctx, "k6", "h6", "POST", "/v1/settlements")
	require.NoError(t, err)
	assert.False(t, reserved)

	s.now = func() time.Time { return time.Now().Add(5 * time.Minute) }
	reserved, err = s.Reserve(ctx, "k6", "h6", "POST", "/v1/settlements")
	require.NoError(t, err)
	assert.True(t, reserved)
}

func TestWaitForCompletionReturnsFinalizedRecord(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	_, err := s.Reserve(ctx, "k7", "h7", "POST", "/v1/settlements")
	require.NoError(t, err)

	go func() {
		time.Sleep(60 * time.Millisecond)
		_, _ = s.Finalize(ctx, "k7", "h7", 402, []byte(`{"outcome":"DECLINED"}`), "application/json")
	}()

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	rec, err := s.WaitForCompletion(waitCtx, "k7", "h7")
	require.NoError(t, err)
	assert.Equal(t, 402, rec.Status)
}

func TestWaitForCompletionAfterRelease(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	_, err := s.Reserve(ctx, "k8", "h8", "POST", "/v1/settlements")
	require.NoError(t, err)

	go func() {
		time.Sleep(40 * time.Millisecond)
		_ = s.Release(ctx, "k8", "h8")
	}()

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, err = s.WaitForCompletion(waitCtx, "k8", "h8")
	assert.ErrorIs(t, err, ErrNotFound)
}
