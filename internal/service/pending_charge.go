package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ayo6706/clubledger/internal/models"
	"github.com/ayo6706/clubledger/internal/observability"
	"github.com/ayo6706/clubledger/internal/repository"
	"github.com/google/uuid"
)

// PendingChargeService exposes the two-phase charge records for lookup and reporting.
type PendingChargeService struct {
	store QueryStore
}

func NewPendingChargeService(store QueryStore) *PendingChargeService {
	return &PendingChargeService{store: store}
}

func (s *PendingChargeService) Get(ctx context.Context, id uuid.UUID) (*models.PendingCharge, error) {
	row, err := s.store.Queries().GetPendingCharge(ctx, repository.ToPgUUID(id))
	if err != nil {
		if isNoRows(err) {
			return nil, ErrPendingChargeNotFound
		}
		return nil, fmt.Errorf("get pending charge: %w", err)
	}
	charge := row.Model()
	return &charge, nil
}

// ReportStale counts charges still awaiting confirmation after maxAge and
// publishes the count. Stale charges are never cancelled.
func (s *PendingChargeService) ReportStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	n, err := s.store.Queries().CountStalePendingCharges(ctx, repository.ToPgTimestamptz(cutoff))
	if err != nil {
		return 0, fmt.Errorf("count stale pending charges: %w", err)
	}
	observability.SetStaleCharges(n)
	return n, nil
}
