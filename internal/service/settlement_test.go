package service

import (
	"context"
	"testing"

	"github.com/ayo6706/clubledger/internal/domain"
	"github.com/ayo6706/clubledger/internal/gateway"
	"github.com/ayo6706/clubledger/internal/models"
	"github.com/ayo6706/clubledger/internal/notify"
	"github.com/ayo6706/clubledger/internal/registration"
	"github.com/ayo6706/clubledger/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettleFromBalanceNeverCallsGateway(t *testing.T) {
	h := newHarness(t)
	alice := h.member(t, "alice")
	club := h.organisation(t, "Riverside Rowing")
	h.fund(t, alice, 100*gbp)
	h.enrol(t, alice, 50*gbp)

	out, err := h.settle.Settle(context.Background(), ChargeRequest{
		PayerID:        alice,
		Amount:         30 * gbp,
		Description:    "Spring regatta entry",
		OrganisationID: &club,
		PaymentType:    domain.PaymentTypeEntryFee,
		Route:          domain.Route{Code: domain.RouteEventEntry, Payload: `{"entry_id":42}`},
	})
	require.NoError(t, err)
	h.topups.Wait()

	assert.Equal(t, OutcomeSettled, out.Outcome)
	assert.Equal(t, int64(70*gbp), out.Balance)
	require.Len(t, out.Postings, 2)
	assert.Zero(t, h.gw.Calls())

	calls := h.routes.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, domain.RouteEventEntry, calls[0].Code)
	assert.Equal(t, `{"entry_id":42}`, calls[0].Payload)
	assert.Equal(t, domain.StatusSuccess, calls[0].Status)
	assert.NotEmpty(t, calls[0].ChargeRef)
}

func TestSettleCallerErrorsHaveNoSideEffects(t *testing.T) {
	h := newHarness(t)
	alice := h.member(t, "alice")
	bob := h.member(t, "bob")
	club := h.organisation(t, "Riverside Rowing")
	h.fund(t, alice, 100*gbp)

	baseTx := h.store.TxCount()
	baseAudit := len(h.store.AuditLogs())

	tests := []struct {
		name string
		req  ChargeRequest
	}{
		{name: "both counterparts", req: ChargeRequest{PayerID: alice, Amount: gbp, OrganisationID: &club, MemberID: &bob, PaymentType: domain.PaymentTypeEntryFee}},
		{name: "missing payer", req: ChargeRequest{Amount: gbp, PaymentType: domain.PaymentTypeEntryFee}},
		{name: "zero amount", req: ChargeRequest{PayerID: alice, PaymentType: domain.PaymentTypeEntryFee}},
		{name: "negative amount", req: ChargeRequest{PayerID: alice, Amount: -gbp, PaymentType: domain.PaymentTypeEntryFee}},
		{name: "pay self", req: ChargeRequest{PayerID: alice, Amount: gbp, MemberID: &alice, PaymentType: domain.PaymentTypeTransfer}},
		{name: "unknown payment type", req: ChargeRequest{PayerID: alice, Amount: gbp, PaymentType: "GIFT"}},
		{name: "reserved batch route", req: ChargeRequest{PayerID: alice, Amount: gbp, PaymentType: domain.PaymentTypeEntryFee, Route: domain.Route{Code: domain.RouteBatch}}},
		{name: "unknown route", req: ChargeRequest{PayerID: alice, Amount: gbp, PaymentType: domain.PaymentTypeEntryFee, Route: domain.Route{Code: "LOTTERY"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := h.settle.Settle(context.Background(), tt.req)
			require.Error(t, err)
			assert.Nil(t, out)
			assert.True(t, IsCallerError(err), "got %v", err)
		})
	}

	assert.Len(t, h.store.MemberTransactions(alice), 1)
	assert.Empty(t, h.store.MemberTransactions(bob))
	assert.Empty(t, h.store.OrganisationTransactions(club))
	assert.Empty(t, h.store.PendingCharges())
	assert.Equal(t, baseTx, h.store.TxCount())
	assert.Len(t, h.store.AuditLogs(), baseAudit)
	assert.Zero(t, h.gw.Calls())
	assert.Empty(t, h.routes.Calls())
}

func TestSettleUnknownCounterpart(t *testing.T) {
	h := newHarness(t)
	alice := h.member(t, "alice")
	h.fund(t, alice, 10*gbp)
	missing := uuid.New()

	_, err := h.settle.Settle(context.Background(), ChargeRequest{PayerID: alice, Amount: gbp, OrganisationID: &missing, PaymentType: domain.PaymentTypeEntryFee})
	require.ErrorIs(t, err, models.ErrOrganisationNotFound)
	assert.Len(t, h.store.MemberTransactions(alice), 1)
}

func TestSettleWithAutoTopUpEndToEnd(t *testing.T) {
	h := newHarness(t)
	alice := h.member(t, "alice")
	h.enrol(t, alice, 100*gbp)

	out, err := h.settle.Settle(context.Background(), ChargeRequest{
		PayerID:     alice,
		Amount:      30 * gbp,
		Description: "Coaching session",
		PaymentType: domain.PaymentTypeEntryFee,
	})
	require.NoError(t, err)
	h.topups.Wait()

	assert.Equal(t, OutcomeToppedUpAndSettled, out.Outcome)
	require.NotNil(t, out.TopUp)
	assert.Equal(t, int64(100*gbp), out.TopUp.Amount)
	assert.Equal(t, int64(70*gbp), out.Balance)

	rows := h.requireMemberChain(t, alice)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(100*gbp), rows[0].Amount)
	assert.Equal(t, string(domain.PaymentTypeAutoTopUp), rows[0].PaymentType)
	assert.Equal(t, int64(-30*gbp), rows[1].Amount)
	assert.Equal(t, int64(70*gbp), h.balance(t, alice))

	charges := h.gw.OffSessionCharges()
	require.Len(t, charges, 1)
	assert.Equal(t, int64(100*gbp), charges[0].Amount)
	assert.Equal(t, domain.KindAuto, charges[0].Metadata.TransactionKind)

	calls := h.routes.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, domain.RouteGeneric, calls[0].Code)
	assert.Equal(t, domain.StatusSuccess, calls[0].Status)
	assert.Contains(t, h.notes.Kinds(), notify.KindTopUpSucceeded)
	assert.Empty(t, h.store.PendingCharges())
}

func TestSettleWithoutAutoTopUpRequiresCardPayment(t *testing.T) {
	h := newHarness(t)
	alice := h.member(t, "alice")

	out, err := h.settle.Settle(context.Background(), ChargeRequest{
		PayerID:     alice,
		Amount:      30 * gbp,
		Description: "Coaching session",
		PaymentType: domain.PaymentTypeEntryFee,
		SuccessURL:  "https://club.test/ok",
		CancelURL:   "https://club.test/cancel",
	})
	require.NoError(t, err)

	assert.Equal(t, OutcomeCardPaymentRequired, out.Outcome)
	require.NotNil(t, out.CardPayment)
	assert.Equal(t, int64(30*gbp), out.CardPayment.Amount)
	assert.Equal(t, "pi_1_secret", out.CardPayment.ClientSecret)
	assert.Equal(t, "https://club.test/ok", out.CardPayment.SuccessURL)

	assert.Empty(t, h.store.MemberTransactions(alice))
	assert.Empty(t, h.routes.Calls())

	pending := h.store.PendingCharges()
	require.Len(t, pending, 1)
	assert.Equal(t, int64(30*gbp), pending[0].Amount)
	assert.Equal(t, domain.ChargeStatusCreated, pending[0].Status)
	assert.Equal(t, out.CardPayment.PendingChargeID, repository.FromPgUUID(pending[0].ID))
	require.NotNil(t, pending[0].LinkedAmount)
	assert.Equal(t, int64(30*gbp), *pending[0].LinkedAmount)

	h.gw.mu.Lock()
	intent := h.gw.intents[0]
	h.gw.mu.Unlock()
	assert.Equal(t, domain.KindManual, intent.Metadata.TransactionKind)
	assert.Equal(t, out.CardPayment.PendingChargeID.String(), intent.Metadata.InternalChargeID)
}

func TestSettleCardPaymentCoversOnlyShortfall(t *testing.T) {
	h := newHarness(t)
	alice := h.member(t, "alice")
	h.fund(t, alice, 10*gbp)

	out, err := h.settle.Settle(context.Background(), ChargeRequest{PayerID: alice, Amount: 30 * gbp, PaymentType: domain.PaymentTypeEntryFee})
	require.NoError(t, err)
	require.NotNil(t, out.CardPayment)
	assert.Equal(t, int64(20*gbp), out.CardPayment.Amount)
	assert.Equal(t, int64(10*gbp), out.Balance)
}

func TestSettleDeclinedTopUpDisablesPolicy(t *testing.T) {
	h := newHarness(t)
	alice := h.member(t, "alice")
	h.enrol(t, alice, 50*gbp)
	h.gw.chargeErr = &gateway.DeclineError{Code: "card_declined", Message: "insufficient funds on card"}

	out, err := h.settle.Settle(context.Background(), ChargeRequest{PayerID: alice, Amount: 30 * gbp, PaymentType: domain.PaymentTypeEntryFee})
	require.NoError(t, err)

	assert.Equal(t, OutcomeDeclined, out.Outcome)
	assert.Contains(t, out.Message, "insufficient funds on card")
	assert.Empty(t, h.store.MemberTransactions(alice))
	assert.Equal(t, domain.AutoTopUpOff, h.autoTopUpState(t, alice))
	assert.Contains(t, h.notes.Kinds(), notify.KindTopUpDeclined)

	calls := h.routes.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, domain.StatusFailure, calls[0].Status)
}

func TestSettleGatewayUnavailableCommitsNothing(t *testing.T) {
	h := newHarness(t)
	alice := h.member(t, "alice")
	h.gw.intentErr = gateway.ErrUnavailable

	_, err := h.settle.Settle(context.Background(), ChargeRequest{PayerID: alice, Amount: 30 * gbp, PaymentType: domain.PaymentTypeEntryFee})
	require.ErrorIs(t, err, ErrGatewayUnavailable)
	assert.Empty(t, h.store.PendingCharges())
	assert.Empty(t, h.store.MemberTransactions(alice))
	assert.Empty(t, h.routes.Calls())
}

func TestSettleOffSessionUnavailableKeepsPolicyOn(t *testing.T) {
	h := newHarness(t)
	alice := h.member(t, "alice")
	h.enrol(t, alice, 50*gbp)
	h.gw.chargeErr = gateway.ErrUnavailable

	_, err := h.settle.Settle(context.Background(), ChargeRequest{PayerID: alice, Amount: 30 * gbp, PaymentType: domain.PaymentTypeEntryFee})
	require.ErrorIs(t, err, ErrGatewayUnavailable)
	assert.Equal(t, domain.AutoTopUpOn, h.autoTopUpState(t, alice))
	assert.Empty(t, h.store.MemberTransactions(alice))
}

func TestSettleTriggersBackgroundTopUpBelowThreshold(t *testing.T) {
	h := newHarness(t)
	alice := h.member(t, "alice")
	h.fund(t, alice, 25*gbp)
	h.enrol(t, alice, 50*gbp)

	out, err := h.settle.Settle(context.Background(), ChargeRequest{PayerID: alice, Amount: 10 * gbp, PaymentType: domain.PaymentTypeEntryFee})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSettled, out.Outcome)
	assert.Equal(t, int64(15*gbp), out.Balance)

	h.topups.Wait()
	charges := h.gw.OffSessionCharges()
	require.Len(t, charges, 1)
	assert.Equal(t, int64(50*gbp), charges[0].Amount)
	assert.Equal(t, int64(65*gbp), h.balance(t, alice))
	h.requireMemberChain(t, alice)
}

func TestSettleBatchFromBalance(t *testing.T) {
	h := newHarness(t)
	alice := h.member(t, "alice")
	bob := h.member(t, "bob")
	club := h.organisation(t, "Riverside Rowing")
	h.fund(t, alice, 50*gbp)

	out, err := h.settle.SettleBatch(context.Background(), BatchChargeRequest{
		PayerID: alice,
		Items: []BatchItem{
			{Amount: 15 * gbp, OrganisationID: &club, PaymentType: domain.PaymentTypeEntryFee, Route: domain.Route{Code: domain.RouteEventEntry, Payload: "entry-1"}},
			{Amount: 20 * gbp, MemberID: &bob, PaymentType: domain.PaymentTypeTransfer, Route: domain.Route{Code: domain.RouteMemberTransfer, Payload: "transfer-1"}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSettled, out.Outcome)
	assert.Equal(t, int64(35*gbp), out.Total)
	assert.Equal(t, int64(15*gbp), out.Balance)
	assert.Len(t, out.Postings, 4)
	assert.Zero(t, h.gw.Calls())

	calls := h.routes.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "entry-1", calls[0].Payload)
	assert.Equal(t, "transfer-1", calls[1].Payload)
	h.requireMemberChain(t, alice)
	h.requireMemberChain(t, bob)
	h.requireOrganisationChain(t, club)
}

func TestSettleBatchWithCardPaymentCompletesOnWebhook(t *testing.T) {
	h := newHarness(t)
	alice := h.member(t, "alice")
	club := h.organisation(t, "Riverside Rowing")
	h.fund(t, alice, 10*gbp)

	out, err := h.settle.SettleBatch(context.Background(), BatchChargeRequest{
		PayerID: alice,
		Items: []BatchItem{
			{Amount: 15 * gbp, OrganisationID: &club, PaymentType: domain.PaymentTypeEntryFee, Route: domain.Route{Code: domain.RouteEventEntry, Payload: "entry-1"}},
			{Amount: 20 * gbp, OrganisationID: &club, PaymentType: domain.PaymentTypeEntryFee},
		},
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeCardPaymentRequired, out.Outcome)
	require.NotNil(t, out.CardPayment)
	assert.Equal(t, int64(25*gbp), out.CardPayment.Amount)
	assert.Empty(t, h.routes.Calls())

	reg, err := h.regs.Get(context.Background(), out.BatchID)
	require.NoError(t, err)
	assert.Equal(t, alice, reg.PayerID)

	pending := h.store.PendingCharges()
	require.Len(t, pending, 1)
	assert.Equal(t, string(domain.RouteBatch), pending[0].RouteCode)
	assert.Nil(t, pending[0].LinkedAmount)

	ack := h.confirmCharge(t, "evt_1", "ch_batch", out.CardPayment.PendingChargeID, 25*gbp)
	assert.Equal(t, WebhookApplied, ack.Outcome)

	assert.Equal(t, int64(0), h.balance(t, alice))
	orgBalance, err := h.ledger.OrganisationBalance(context.Background(), club)
	require.NoError(t, err)
	assert.Equal(t, int64(35*gbp), orgBalance)
	h.requireMemberChain(t, alice)

	calls := h.routes.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, domain.RouteEventEntry, calls[0].Code)
	assert.Equal(t, domain.RouteGeneric, calls[1].Code)
	for _, c := range calls {
		assert.Equal(t, domain.StatusSuccess, c.Status)
		assert.Equal(t, "ch_batch", c.ChargeRef)
	}

	_, err = h.regs.Get(context.Background(), out.BatchID)
	require.ErrorIs(t, err, registration.ErrNotFound)
}

func TestSettleBatchRejectsInvalidItem(t *testing.T) {
	h := newHarness(t)
	alice := h.member(t, "alice")

	_, err := h.settle.SettleBatch(context.Background(), BatchChargeRequest{PayerID: alice})
	require.True(t, IsCallerError(err))

	_, err = h.settle.SettleBatch(context.Background(), BatchChargeRequest{
		PayerID: alice,
		Items:   []BatchItem{{Amount: gbp, PaymentType: domain.PaymentTypeEntryFee}, {Amount: 0, PaymentType: domain.PaymentTypeEntryFee}},
	})
	require.True(t, IsCallerError(err))
	assert.Zero(t, h.store.TxCount())
	assert.Zero(t, h.gw.Calls())
}
