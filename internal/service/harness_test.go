package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ayo6706/clubledger/internal/domain"
	"github.com/ayo6706/clubledger/internal/gateway"
	"github.com/ayo6706/clubledger/internal/notify"
	"github.com/ayo6706/clubledger/internal/registration"
	"github.com/ayo6706/clubledger/internal/repository"
	"github.com/ayo6706/clubledger/internal/testutil/memstore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const (
	gbp           = int64(1_000_000)
	testThreshold = 20 * gbp
	testHMACKey   = "test-webhook-secret"
)

// stubGateway records every call and answers deterministically.
type stubGateway struct {
	mu        sync.Mutex
	calls     int
	intents   []gateway.ChargeIntentRequest
	setups    []string
	customers []string
	charges   []gateway.OffSessionChargeRequest
	methods   []gateway.PaymentMethod
	intentErr error
	chargeErr error
}

func newStubGateway() *stubGateway {
	return &stubGateway{methods: []gateway.PaymentMethod{{ID: "pm_card", Brand: "visa", Last4: "4242"}}}
}

func (g *stubGateway) CreateChargeIntent(_ context.Context, req gateway.ChargeIntentRequest) (*gateway.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.intentErr != nil {
		return nil, g.intentErr
	}
	g.intents = append(g.intents, req)
	n := len(g.intents)
	return &gateway.Intent{IntentID: fmt.Sprintf("pi_%d", n), ClientSecret: fmt.Sprintf("pi_%d_secret", n)}, nil
}

func (g *stubGateway) CreateSetupIntent(_ context.Context, customerRef string, _ gateway.Metadata) (*gateway.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.setups = append(g.setups, customerRef)
	n := len(g.setups)
	return &gateway.Intent{IntentID: fmt.Sprintf("seti_%d", n), ClientSecret: fmt.Sprintf("seti_%d_secret", n)}, nil
}

func (g *stubGateway) CreateCustomer(_ context.Context, memberID, _ string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.customers = append(g.customers, memberID)
	return fmt.Sprintf("cus_%d", len(g.customers)), nil
}

func (g *stubGateway) ListPaymentMethods(_ context.Context, _ string) ([]gateway.PaymentMethod, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return append([]gateway.PaymentMethod(nil), g.methods...), nil
}

func (g *stubGateway) CreateOffSessionCharge(_ context.Context, req gateway.OffSessionChargeRequest) (*gateway.Charge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.chargeErr != nil {
		return nil, g.chargeErr
	}
	g.charges = append(g.charges, req)
	return &gateway.Charge{ChargeID: fmt.Sprintf("ch_%d", len(g.charges)), Status: "succeeded"}, nil
}

func (g *stubGateway) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func (g *stubGateway) OffSessionCharges() []gateway.OffSessionChargeRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]gateway.OffSessionChargeRequest(nil), g.charges...)
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (n *recordingNotifier) Notify(_ context.Context, msg notify.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
}

func (n *recordingNotifier) Kinds() []notify.Kind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]notify.Kind, 0, len(n.sent))
	for _, msg := range n.sent {
		out = append(out, msg.Kind)
	}
	return out
}

type routedCall struct {
	Code      domain.RouteCode
	Payload   string
	Status    domain.SettlementStatus
	ChargeRef string
}

type routeRecorder struct {
	mu    sync.Mutex
	calls []routedCall
}

func (r *routeRecorder) callback(code domain.RouteCode) Callback {
	return func(_ context.Context, payload string, status domain.SettlementStatus, chargeRef string) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.calls = append(r.calls, routedCall{Code: code, Payload: payload, Status: status, ChargeRef: chargeRef})
		return nil
	}
}

func (r *routeRecorder) Calls() []routedCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]routedCall(nil), r.calls...)
}

type harness struct {
	store    *memstore.Store
	gw       *stubGateway
	notes    *recordingNotifier
	routes   *routeRecorder
	regs     *registration.MemoryStore
	accounts *AccountService
	ledger   *LedgerService
	topups   *AutoTopUpService
	settle   *SettlementService
	webhooks *WebhookService
	charges  *PendingChargeService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:  memstore.New(),
		gw:     newStubGateway(),
		notes:  &recordingNotifier{},
		routes: &routeRecorder{},
		regs:   registration.NewMemoryStore(time.Hour),
	}
	settings := Settings{Currency: "GBP", LowBalanceThreshold: testThreshold, GatewayTimeout: time.Second}
	router := NewCallbackRouter(Callbacks{
		Generic:        h.routes.callback(domain.RouteGeneric),
		EventEntry:     h.routes.callback(domain.RouteEventEntry),
		MemberTransfer: h.routes.callback(domain.RouteMemberTransfer),
	})
	h.accounts = NewAccountService(h.store)
	h.ledger = NewLedgerService(h.store)
	h.topups = NewAutoTopUpService(h.store, h.ledger, h.gw, h.notes, settings)
	h.settle = NewSettlementService(h.store, h.ledger, h.topups, h.gw, router, h.regs, settings)
	h.webhooks = NewWebhookService(h.store, h.ledger, h.topups, router, h.notes, testHMACKey, false)
	h.charges = NewPendingChargeService(h.store)
	t.Cleanup(h.topups.Wait)
	return h
}

func (h *harness) member(t *testing.T, name string) uuid.UUID {
	t.Helper()
	m, err := h.accounts.CreateMember(context.Background(), name, fmt.Sprintf("%s-%s@club.test", name, uuid.NewString()[:8]))
	require.NoError(t, err)
	return m.ID
}

func (h *harness) organisation(t *testing.T, name string) uuid.UUID {
	t.Helper()
	o, err := h.accounts.CreateOrganisation(context.Background(), name)
	require.NoError(t, err)
	return o.ID
}

func (h *harness) fund(t *testing.T, memberID uuid.UUID, amount int64) {
	t.Helper()
	err := h.store.RunInTx(context.Background(), func(q repository.Querier) error {
		_, err := h.ledger.Append(context.Background(), q, Entry{
			Account:     MemberAccount(memberID),
			Amount:      amount,
			Description: "Opening credit",
			PaymentType: domain.PaymentTypeTopUp,
			Source:      "test",
		})
		return err
	})
	require.NoError(t, err)
}

// enrol switches auto top-up ON with a stored customer, bypassing the setup flow.
func (h *harness) enrol(t *testing.T, memberID uuid.UUID, amount int64) {
	t.Helper()
	ctx := context.Background()
	ref := "cus_" + memberID.String()[:8]
	err := h.store.RunInTx(ctx, func(q repository.Querier) error {
		if _, err := q.SetMemberGatewayCustomer(ctx, repository.SetMemberGatewayCustomerParams{GatewayCustomerRef: &ref, ID: repository.ToPgUUID(memberID)}); err != nil {
			return err
		}
		if _, err := q.UpdateMemberAutoTopUpAmount(ctx, repository.UpdateMemberAutoTopUpAmountParams{AutoTopupAmount: amount, ID: repository.ToPgUUID(memberID)}); err != nil {
			return err
		}
		_, err := q.UpdateMemberAutoTopUpState(ctx, repository.UpdateMemberAutoTopUpStateParams{AutoTopupState: string(domain.AutoTopUpOn), ID: repository.ToPgUUID(memberID)})
		return err
	})
	require.NoError(t, err)
}

func (h *harness) balance(t *testing.T, memberID uuid.UUID) int64 {
	t.Helper()
	b, err := h.ledger.MemberBalance(context.Background(), memberID)
	require.NoError(t, err)
	return b
}

func (h *harness) autoTopUpState(t *testing.T, memberID uuid.UUID) domain.AutoTopUpState {
	t.Helper()
	m, err := h.accounts.GetMember(context.Background(), memberID)
	require.NoError(t, err)
	return m.AutoTopUpState
}

// requireChain checks balance continuity and gapless sequences.
func requireChain(t *testing.T, amounts, balances, sequences []int64) {
	t.Helper()
	var prev int64
	for i := range amounts {
		require.Equal(t, int64(i+1), sequences[i], "sequence of row %d", i)
		require.Equal(t, prev+amounts[i], balances[i], "balance of row %d", i)
		prev = balances[i]
	}
}

func (h *harness) requireMemberChain(t *testing.T, memberID uuid.UUID) []repository.MemberTransaction {
	t.Helper()
	rows := h.store.MemberTransactions(memberID)
	var amounts, balances, seqs []int64
	for _, r := range rows {
		amounts = append(amounts, r.Amount)
		balances = append(balances, r.Balance)
		seqs = append(seqs, r.Sequence)
	}
	requireChain(t, amounts, balances, seqs)
	return rows
}

func (h *harness) requireOrganisationChain(t *testing.T, orgID uuid.UUID) []repository.OrganisationTransaction {
	t.Helper()
	rows := h.store.OrganisationTransactions(orgID)
	var amounts, balances, seqs []int64
	for _, r := range rows {
		amounts = append(amounts, r.Amount)
		balances = append(balances, r.Balance)
		seqs = append(seqs, r.Sequence)
	}
	requireChain(t, amounts, balances, seqs)
	return rows
}

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testHMACKey))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

type webhookData struct {
	ChargeID    string           `json:"charge_id,omitempty"`
	IntentID    string           `json:"intent_id,omitempty"`
	CustomerRef string           `json:"customer_ref,omitempty"`
	Amount      int64            `json:"amount,omitempty"`
	Metadata    gateway.Metadata `json:"metadata"`
}

func webhookBody(t *testing.T, id, eventType string, data webhookData) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{"id": id, "type": eventType, "data": data})
	require.NoError(t, err)
	return body
}

// deliver sends a signed event and requires it to be acknowledged.
func (h *harness) deliver(t *testing.T, body []byte) *WebhookAck {
	t.Helper()
	ack, err := h.webhooks.HandleGatewayWebhook(context.Background(), body, sign(body))
	require.NoError(t, err)
	require.NotNil(t, ack)
	return ack
}

func (h *harness) confirmCharge(t *testing.T, eventID, gatewayChargeID string, chargeID uuid.UUID, amount int64) *WebhookAck {
	t.Helper()
	return h.deliver(t, webhookBody(t, eventID, EventChargeSucceeded, webhookData{
		ChargeID: gatewayChargeID,
		Amount:   amount,
		Metadata: gatewayManual(chargeID),
	}))
}

func gatewayManual(chargeID uuid.UUID) gateway.Metadata {
	return gateway.Metadata{TransactionKind: domain.KindManual, InternalChargeID: chargeID.String()}
}
