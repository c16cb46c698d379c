package service

import (
	"context"
	"testing"
	"time"

	"github.com/ayo6706/clubledger/internal/domain"
	"github.com/ayo6706/clubledger/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconciliationReportsIntactChain(t *testing.T) {
	h := newHarness(t)
	alice := h.member(t, "alice")
	club := h.organisation(t, "Riverside Rowing")
	h.fund(t, alice, 50*gbp)
	_, err := h.settle.Settle(context.Background(), ChargeRequest{PayerID: alice, Amount: 20 * gbp, OrganisationID: &club, PaymentType: domain.PaymentTypeEntryFee})
	require.NoError(t, err)

	report, err := NewReconciliationService(h.store).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Balanced())
}

func TestReconciliationDetectsBrokenChain(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.member(t, "alice")
	h.fund(t, alice, 50*gbp)

	// a row written outside the ledger service, with a wrong snapshot
	err := h.store.RunInTx(ctx, func(q repository.Querier) error {
		_, err := q.InsertMemberTransaction(ctx, repository.InsertMemberTransactionParams{
			MemberID:    repository.ToPgUUID(alice),
			Sequence:    2,
			Amount:      -10 * gbp,
			Balance:     45 * gbp,
			Description: "bad row",
			PaymentType: string(domain.PaymentTypeEntryFee),
		})
		return err
	})
	require.NoError(t, err)

	report, err := NewReconciliationService(h.store).Run(ctx)
	require.NoError(t, err)
	assert.False(t, report.Balanced())
	assert.Equal(t, int64(1), report.MemberBreaks)
	assert.Zero(t, report.OrganisationBreaks)
}

func TestPendingChargeLookupAndStaleReport(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.member(t, "alice")

	_, err := h.charges.Get(ctx, uuid.New())
	require.ErrorIs(t, err, ErrPendingChargeNotFound)

	out, err := h.settle.Settle(ctx, ChargeRequest{PayerID: alice, Amount: 5 * gbp, PaymentType: domain.PaymentTypeEntryFee, Route: domain.Route{Code: domain.RouteEventEntry, Payload: "e-9"}})
	require.NoError(t, err)

	charge, err := h.charges.Get(ctx, out.CardPayment.PendingChargeID)
	require.NoError(t, err)
	assert.Equal(t, alice, charge.MemberID)
	assert.Equal(t, domain.Route{Code: domain.RouteEventEntry, Payload: "e-9"}, charge.Route)

	n, err := h.charges.ReportStale(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = h.charges.ReportStale(ctx, -time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
