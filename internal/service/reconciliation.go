package service

import (
	"context"
	"fmt"

	"github.com/ayo6706/clubledger/internal/observability"
	"go.uber.org/zap"
)

// ReconciliationService re-checks the ledger chain: every row's balance must
// equal the previous balance plus its amount, and sequences must be gapless.
type ReconciliationService struct {
	store QueryStore
}

// NewReconciliationService creates a reconciliation service.
func NewReconciliationService(store QueryStore) *ReconciliationService {
	return &ReconciliationService{store: store}
}

// ReconciliationReport counts broken chain links per ledger.
type ReconciliationReport struct {
	MemberBreaks       int64 `json:"member_breaks"`
	OrganisationBreaks int64 `json:"organisation_breaks"`
}

func (r ReconciliationReport) Balanced() bool {
	return r.MemberBreaks == 0 && r.OrganisationBreaks == 0
}

// Run scans both ledgers. Breaks are reported, never repaired.
func (s *ReconciliationService) Run(ctx context.Context) (ReconciliationReport, error) {
	queries := s.store.Queries()
	var report ReconciliationReport

	memberBreaks, err := queries.CountMemberLedgerBreaks(ctx)
	if err != nil {
		return report, fmt.Errorf("count member ledger breaks: %w", err)
	}
	orgBreaks, err := queries.CountOrganisationLedgerBreaks(ctx)
	if err != nil {
		return report, fmt.Errorf("count organisation ledger breaks: %w", err)
	}
	report.MemberBreaks = memberBreaks
	report.OrganisationBreaks = orgBreaks

	if !report.Balanced() {
		observability.AddLedgerBreaks(string(AccountMember), memberBreaks)
		observability.AddLedgerBreaks(string(AccountOrganisation), orgBreaks)
		zap.L().Error("CRITICAL: ledger chain broken",
			zap.Int64("member_breaks", memberBreaks),
			zap.Int64("organisation_breaks", orgBreaks))
		return report, nil
	}

	zap.L().Info("ledger chain intact")
	return report, nil
}
