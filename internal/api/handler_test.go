package api_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ayo6706/clubledger/internal/api"
	"github.com/ayo6706/clubledger/internal/api/middleware"
	"github.com/ayo6706/clubledger/internal/config"
	"github.com/ayo6706/clubledger/internal/domain"
	"github.com/ayo6706/clubledger/internal/gateway"
	"github.com/ayo6706/clubledger/internal/idempotency"
	"github.com/ayo6706/clubledger/internal/registration"
	"github.com/ayo6706/clubledger/internal/service"
	"github.com/ayo6706/clubledger/internal/testutil/memstore"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testJWTSecret   = "test-secret-0123456789-test-secret"
	testJWTIssuer   = "clubledger-test"
	testJWTAudience = "clubledger-api-test"
	testHMACKey     = "api-test-webhook-secret"
	gbp             = int64(1_000_000)
)

// flakyGateway is the mock gateway with switchable intent outages.
type flakyGateway struct {
	*gateway.MockGateway
	down atomic.Bool
}

func (g *flakyGateway) CreateChargeIntent(ctx context.Context, req gateway.ChargeIntentRequest) (*gateway.Intent, error) {
	if g.down.Load() {
		return nil, gateway.ErrUnavailable
	}
	return g.MockGateway.CreateChargeIntent(ctx, req)
}

type testAPI struct {
	router chi.Router
	store  *memstore.Store
	gw     *flakyGateway
	topups *service.AutoTopUpService
}

func setupAPI(t *testing.T) *testAPI {
	t.Helper()
	store := memstore.New()
	mock := gateway.NewMockGateway()
	mock.Latency = 0
	mock.DeclineRate = 0
	gw := &flakyGateway{MockGateway: mock}

	cfg := &config.Config{
		HTTPPort:            "0",
		JWTSecret:           testJWTSecret,
		JWTIssuer:           testJWTIssuer,
		JWTAudience:         testJWTAudience,
		Currency:            "GBP",
		PublicRateLimitRPS:  1000,
		AuthRateLimitRPS:    1000,
		WebhookRateLimitRPS: 1000,
		IdempotencyTTL:      time.Hour,
	}
	settings := service.Settings{Currency: cfg.Currency, LowBalanceThreshold: 20 * gbp, GatewayTimeout: time.Second}
	callbacks := service.NewCallbackRouter(service.Callbacks{
		Generic:        service.LogCallback("generic"),
		EventEntry:     service.LogCallback("events"),
		MemberTransfer: service.LogCallback("transfers"),
	})
	ledger := service.NewLedgerService(store)
	topups := service.NewAutoTopUpService(store, ledger, gw, nil, settings)
	t.Cleanup(topups.Wait)
	svc := api.Services{
		Accounts:       service.NewAccountService(store),
		Ledger:         ledger,
		Settlements:    service.NewSettlementService(store, ledger, topups, gw, callbacks, registration.NewMemoryStore(time.Hour), settings),
		TopUps:         topups,
		Webhooks:       service.NewWebhookService(store, ledger, topups, callbacks, nil, testHMACKey, false),
		PendingCharges: service.NewPendingChargeService(store),
	}
	idem := idempotency.NewStore(nil, store.Queries(), cfg.IdempotencyTTL)
	router := api.NewRouter(cfg, zap.NewNop(), nil, nil, idem, svc).Routes()
	return &testAPI{router: router, store: store, gw: gw, topups: topups}
}

type call struct {
	method  string
	path    string
	body    any
	token   string
	headers map[string]string
}

func (a *testAPI) do(t *testing.T, c call) *httptest.ResponseRecorder {
	t.Helper()
	var payload []byte
	switch b := c.body.(type) {
	case nil:
	case []byte:
		payload = b
	default:
		var err error
		payload, err = json.Marshal(b)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(c.method, c.path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func token(t *testing.T, memberID uuid.UUID, role string) string {
	t.Helper()
	tok, err := middleware.IssueToken(middleware.Principal{MemberID: memberID, Role: role}, time.Hour)
	require.NoError(t, err)
	return tok
}

func (a *testAPI) createMember(t *testing.T, name string) (uuid.UUID, string) {
	t.Helper()
	w := a.do(t, call{method: http.MethodPost, path: "/v1/members", body: map[string]string{
		"name":  name,
		"email": name + "-" + uuid.NewString()[:8] + "@club.test",
	}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	member := decode[struct {
		ID uuid.UUID `json:"id"`
	}](t, w)

	login := a.do(t, call{method: http.MethodPost, path: "/v1/auth/login", body: map[string]string{"member_id": member.ID.String()}})
	require.Equal(t, http.StatusOK, login.Code, login.Body.String())
	return member.ID, decode[map[string]string](t, login)["token"]
}

func (a *testAPI) createOrganisation(t *testing.T, admin, name string) uuid.UUID {
	t.Helper()
	w := a.do(t, call{method: http.MethodPost, path: "/v1/organisations", token: admin, body: map[string]string{"name": name}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[struct {
		ID uuid.UUID `json:"id"`
	}](t, w).ID
}

func signed(body []byte) map[string]string {
	mac := hmac.New(sha256.New, []byte(testHMACKey))
	mac.Write(body)
	return map[string]string{"X-Webhook-Signature": "sha256=" + hex.EncodeToString(mac.Sum(nil))}
}

func chargeSucceeded(t *testing.T, eventID, gatewayChargeID string, pendingID uuid.UUID, amount int64) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"id":   eventID,
		"type": service.EventChargeSucceeded,
		"data": map[string]any{
			"charge_id": gatewayChargeID,
			"amount":    amount,
			"metadata": gateway.Metadata{
				TransactionKind:  domain.KindManual,
				InternalChargeID: pendingID.String(),
			},
		},
	})
	require.NoError(t, err)
	return body
}

func TestRFC7807ProblemDetails(t *testing.T) {
	a := setupAPI(t)

	memberID := uuid.New().String()
	w := a.do(t, call{method: http.MethodGet, path: "/v1/members/" + memberID + "/balance"})

	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Header().Get("Content-Type"), "application/problem+json")

	body := decode[map[string]any](t, w)
	assert.NotEmpty(t, body["type"])
	assert.Equal(t, float64(http.StatusUnauthorized), body["status"])
	assert.NotEmpty(t, body["title"])
	assert.NotEmpty(t, body["detail"])
	assert.Equal(t, "/v1/members/"+memberID+"/balance", body["instance"])
	assert.NotEmpty(t, body["request_id"])
}

func TestCreateMemberValidation(t *testing.T) {
	a := setupAPI(t)
	first := a.do(t, call{method: http.MethodPost, path: "/v1/members", body: map[string]string{"name": "Ada", "email": "ada@club.test"}})
	require.Equal(t, http.StatusCreated, first.Code)

	cases := []struct {
		name string
		body map[string]string
		want int
	}{
		{name: "duplicate_email", body: map[string]string{"name": "Ada Two", "email": "ADA@club.test"}, want: http.StatusConflict},
		{name: "bad_email", body: map[string]string{"name": "Bob", "email": "not-an-email"}, want: http.StatusBadRequest},
		{name: "missing_name", body: map[string]string{"email": "x@club.test"}, want: http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := a.do(t, call{method: http.MethodPost, path: "/v1/members", body: tc.body})
			assert.Equal(t, tc.want, w.Code, w.Body.String())
		})
	}
}

func TestAuthLoginInvalidMember(t *testing.T) {
	a := setupAPI(t)

	cases := []struct {
		name string
		body map[string]string
		want int
	}{
		{name: "unknown_member", body: map[string]string{"member_id": uuid.New().String()}, want: http.StatusNotFound},
		{name: "invalid_member_id_format", body: map[string]string{"member_id": "not-a-uuid"}, want: http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := a.do(t, call{method: http.MethodPost, path: "/v1/auth/login", body: tc.body})
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestMemberCannotReadAnotherMember(t *testing.T) {
	a := setupAPI(t)
	alice, aliceToken := a.createMember(t, "alice")
	bob, _ := a.createMember(t, "bob")

	own := a.do(t, call{method: http.MethodGet, path: "/v1/members/" + alice.String() + "/balance", token: aliceToken})
	require.Equal(t, http.StatusOK, own.Code)
	balance := decode[map[string]any](t, own)
	assert.Equal(t, float64(0), balance["balance"])
	assert.Equal(t, "0.00 GBP", balance["display"])

	other := a.do(t, call{method: http.MethodGet, path: "/v1/members/" + bob.String() + "/balance", token: aliceToken})
	assert.Equal(t, http.StatusForbidden, other.Code)

	orgs := a.do(t, call{method: http.MethodPost, path: "/v1/organisations", token: aliceToken, body: map[string]string{"name": "Club"}})
	assert.Equal(t, http.StatusForbidden, orgs.Code)
}

func TestSettlementRequiresIdempotencyKey(t *testing.T) {
	a := setupAPI(t)
	alice, aliceToken := a.createMember(t, "alice")

	w := a.do(t, call{method: http.MethodPost, path: "/v1/settlements", token: aliceToken, body: map[string]any{
		"payer_id": alice, "amount": "5", "payment_type": "ENTRY_FEE",
	}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSettlementValidation(t *testing.T) {
	a := setupAPI(t)
	alice, aliceToken := a.createMember(t, "alice")

	cases := []struct {
		name string
		body map[string]any
		want int
	}{
		{name: "zero_amount", body: map[string]any{"payer_id": alice, "amount": "0", "payment_type": "ENTRY_FEE"}, want: http.StatusBadRequest},
		{name: "bad_amount", body: map[string]any{"payer_id": alice, "amount": "ten", "payment_type": "ENTRY_FEE"}, want: http.StatusBadRequest},
		{name: "bad_payment_type", body: map[string]any{"payer_id": alice, "amount": "5", "payment_type": "BRIBE"}, want: http.StatusBadRequest},
		{name: "unknown_route", body: map[string]any{"payer_id": alice, "amount": "5", "payment_type": "ENTRY_FEE", "route": map[string]string{"code": "NOPE"}}, want: http.StatusBadRequest},
		{name: "batch_route_reserved", body: map[string]any{"payer_id": alice, "amount": "5", "payment_type": "ENTRY_FEE", "route": map[string]string{"code": "BATCH"}}, want: http.StatusBadRequest},
		{name: "other_payer", body: map[string]any{"payer_id": uuid.New(), "amount": "5", "payment_type": "ENTRY_FEE"}, want: http.StatusForbidden},
		{name: "unknown_organisation", body: map[string]any{"payer_id": alice, "amount": "5", "payment_type": "ENTRY_FEE", "organisation_id": uuid.New()}, want: http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := a.do(t, call{method: http.MethodPost, path: "/v1/settlements", token: aliceToken, body: tc.body,
				headers: map[string]string{"Idempotency-Key": "validation-" + tc.name}})
			assert.Equal(t, tc.want, w.Code, w.Body.String())
		})
	}
	assert.Empty(t, a.store.PendingCharges())
	assert.Empty(t, a.store.MemberTransactions(alice))
}

// A member with no balance pays by card; the webhook credits the top-up and
// settles the linked charge, then the ledger shows both.
func TestCardPaymentFlowEndToEnd(t *testing.T) {
	a := setupAPI(t)
	admin := token(t, uuid.New(), middleware.RoleAdmin)
	alice, aliceToken := a.createMember(t, "alice")
	club := a.createOrganisation(t, admin, "Chess Club")

	w := a.do(t, call{method: http.MethodPost, path: "/v1/settlements", token: aliceToken,
		headers: map[string]string{"Idempotency-Key": "entry-1"},
		body: map[string]any{
			"payer_id":        alice,
			"amount":          "15.00",
			"description":     "Spring tournament entry",
			"organisation_id": club,
			"payment_type":    "ENTRY_FEE",
			"route":           map[string]string{"code": "EVENT_ENTRY", "payload": "event-42"},
		}})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	outcome := decode[service.SettlementOutcome](t, w)
	require.Equal(t, service.OutcomeCardPaymentRequired, outcome.Outcome)
	require.NotNil(t, outcome.CardPayment)
	assert.Equal(t, 15*gbp, outcome.CardPayment.Amount)
	assert.NotEmpty(t, outcome.CardPayment.ClientSecret)
	pendingID := outcome.CardPayment.PendingChargeID

	pending := a.do(t, call{method: http.MethodGet, path: "/v1/pending-charges/" + pendingID.String(), token: aliceToken})
	require.Equal(t, http.StatusOK, pending.Code)
	assert.Equal(t, domain.ChargeStatusCreated, decode[map[string]any](t, pending)["status"])

	body := chargeSucceeded(t, "evt_1", "ch_1", pendingID, 15*gbp)
	unsigned := a.do(t, call{method: http.MethodPost, path: "/v1/webhooks/gateway", body: body,
		headers: map[string]string{"X-Webhook-Signature": "sha256=deadbeef"}})
	require.Equal(t, http.StatusUnauthorized, unsigned.Code)

	hook := a.do(t, call{method: http.MethodPost, path: "/v1/webhooks/gateway", body: body, headers: signed(body)})
	require.Equal(t, http.StatusOK, hook.Code, hook.Body.String())
	assert.Equal(t, service.WebhookApplied, decode[service.WebhookAck](t, hook).Outcome)

	replay := a.do(t, call{method: http.MethodPost, path: "/v1/webhooks/gateway", body: body, headers: signed(body)})
	require.Equal(t, http.StatusOK, replay.Code)
	assert.Equal(t, service.WebhookDuplicate, decode[service.WebhookAck](t, replay).Outcome)

	balance := a.do(t, call{method: http.MethodGet, path: "/v1/members/" + alice.String() + "/balance", token: aliceToken})
	require.Equal(t, http.StatusOK, balance.Code)
	assert.Equal(t, float64(0), decode[map[string]any](t, balance)["balance"])

	orgBalance := a.do(t, call{method: http.MethodGet, path: "/v1/organisations/" + club.String() + "/balance", token: admin})
	require.Equal(t, http.StatusOK, orgBalance.Code)
	assert.Equal(t, float64(15*gbp), decode[map[string]any](t, orgBalance)["balance"])

	statement := a.do(t, call{method: http.MethodGet, path: "/v1/members/" + alice.String() + "/transactions", token: aliceToken})
	require.Equal(t, http.StatusOK, statement.Code)
	rows := decode[[]map[string]any](t, statement)
	require.Len(t, rows, 2)
	assert.Equal(t, "ENTRY_FEE", rows[0]["payment_type"])
	assert.Equal(t, "TOP_UP", rows[1]["payment_type"])

	pending = a.do(t, call{method: http.MethodGet, path: "/v1/pending-charges/" + pendingID.String(), token: aliceToken})
	assert.Equal(t, domain.ChargeStatusComplete, decode[map[string]any](t, pending)["status"])
}

func TestSettlementIdempotentReplay(t *testing.T) {
	a := setupAPI(t)
	alice, aliceToken := a.createMember(t, "alice")
	body := map[string]any{"payer_id": alice, "amount": "5", "payment_type": "ENTRY_FEE"}
	headers := map[string]string{"Idempotency-Key": "replay-1"}

	first := a.do(t, call{method: http.MethodPost, path: "/v1/settlements", token: aliceToken, body: body, headers: headers})
	require.Equal(t, http.StatusAccepted, first.Code)

	second := a.do(t, call{method: http.MethodPost, path: "/v1/settlements", token: aliceToken, body: body, headers: headers})
	require.Equal(t, http.StatusAccepted, second.Code)
	assert.Equal(t, "postgres", second.Header().Get("X-Idempotent-Replay"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Len(t, a.store.PendingCharges(), 1)

	conflict := a.do(t, call{method: http.MethodPost, path: "/v1/settlements", token: aliceToken, headers: headers,
		body: map[string]any{"payer_id": alice, "amount": "6", "payment_type": "ENTRY_FEE"}})
	assert.Equal(t, http.StatusConflict, conflict.Code)
}

func TestGatewayOutageIsRetryableWithSameKey(t *testing.T) {
	a := setupAPI(t)
	alice, aliceToken := a.createMember(t, "alice")
	body := map[string]any{"payer_id": alice, "amount": "5", "payment_type": "ENTRY_FEE"}
	headers := map[string]string{"Idempotency-Key": "outage-1"}

	a.gw.down.Store(true)
	w := a.do(t, call{method: http.MethodPost, path: "/v1/settlements", token: aliceToken, body: body, headers: headers})
	require.Equal(t, http.StatusServiceUnavailable, w.Code, w.Body.String())
	assert.Equal(t, true, decode[map[string]any](t, w)["retryable"])
	assert.Empty(t, a.store.PendingCharges())

	a.gw.down.Store(false)
	w = a.do(t, call{method: http.MethodPost, path: "/v1/settlements", token: aliceToken, body: body, headers: headers})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.Empty(t, w.Header().Get("X-Idempotent-Replay"))
	assert.Len(t, a.store.PendingCharges(), 1)
}

func TestPendingChargeHiddenFromOtherMembers(t *testing.T) {
	a := setupAPI(t)
	alice, aliceToken := a.createMember(t, "alice")
	_, bobToken := a.createMember(t, "bob")

	w := a.do(t, call{method: http.MethodPost, path: "/v1/settlements", token: aliceToken,
		headers: map[string]string{"Idempotency-Key": "hidden-1"},
		body:    map[string]any{"payer_id": alice, "amount": "5", "payment_type": "ENTRY_FEE"}})
	require.Equal(t, http.StatusAccepted, w.Code)
	pendingID := decode[service.SettlementOutcome](t, w).CardPayment.PendingChargeID

	got := a.do(t, call{method: http.MethodGet, path: "/v1/pending-charges/" + pendingID.String(), token: bobToken})
	assert.Equal(t, http.StatusNotFound, got.Code)
}

func TestVoidRequiresAdminAndIsOneShot(t *testing.T) {
	a := setupAPI(t)
	admin := token(t, uuid.New(), middleware.RoleAdmin)
	alice, aliceToken := a.createMember(t, "alice")

	w := a.do(t, call{method: http.MethodPost, path: "/v1/settlements", token: aliceToken,
		headers: map[string]string{"Idempotency-Key": "void-1"},
		body:    map[string]any{"payer_id": alice, "amount": "8", "payment_type": "ENTRY_FEE"}})
	require.Equal(t, http.StatusAccepted, w.Code)
	pendingID := decode[service.SettlementOutcome](t, w).CardPayment.PendingChargeID
	hook := chargeSucceeded(t, "evt_void", "ch_void", pendingID, 8*gbp)
	require.Equal(t, http.StatusOK, a.do(t, call{method: http.MethodPost, path: "/v1/webhooks/gateway", body: hook, headers: signed(hook)}).Code)

	rows := a.store.MemberTransactions(alice)
	require.Len(t, rows, 2)
	var debitID int64
	for _, row := range rows {
		if row.Amount < 0 {
			debitID = row.ID
		}
	}
	require.NotZero(t, debitID)
	path := "/v1/members/" + alice.String() + "/transactions/" + jsonInt(debitID) + "/void"

	forbidden := a.do(t, call{method: http.MethodPost, path: path, token: aliceToken, body: map[string]string{"reason": "mine"}})
	assert.Equal(t, http.StatusForbidden, forbidden.Code)

	missingReason := a.do(t, call{method: http.MethodPost, path: path, token: admin, body: map[string]string{}})
	assert.Equal(t, http.StatusBadRequest, missingReason.Code)

	voided := a.do(t, call{method: http.MethodPost, path: path, token: admin, body: map[string]string{"reason": "event cancelled"}})
	require.Equal(t, http.StatusCreated, voided.Code, voided.Body.String())
	correction := decode[map[string]any](t, voided)
	assert.Equal(t, "MANUAL_CORRECTION", correction["payment_type"])
	assert.Equal(t, float64(8*gbp), correction["amount"])

	again := a.do(t, call{method: http.MethodPost, path: path, token: admin, body: map[string]string{"reason": "twice"}})
	assert.Equal(t, http.StatusConflict, again.Code)

	correctionPath := "/v1/members/" + alice.String() + "/transactions/" + jsonInt(int64(correction["id"].(float64))) + "/void"
	notVoidable := a.do(t, call{method: http.MethodPost, path: correctionPath, token: admin, body: map[string]string{"reason": "undo"}})
	assert.Equal(t, http.StatusUnprocessableEntity, notVoidable.Code)
}

func TestAutoTopUpEnrollment(t *testing.T) {
	a := setupAPI(t)
	alice, aliceToken := a.createMember(t, "alice")
	path := "/v1/members/" + alice.String() + "/auto-topup"

	bad := a.do(t, call{method: http.MethodPost, path: path, token: aliceToken, body: map[string]string{"amount": "-5"}})
	assert.Equal(t, http.StatusBadRequest, bad.Code)

	w := a.do(t, call{method: http.MethodPost, path: path, token: aliceToken, body: map[string]string{"amount": "25"}})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	enrollment := decode[service.Enrollment](t, w)
	assert.Equal(t, domain.AutoTopUpPending, enrollment.State)
	assert.Equal(t, 25*gbp, enrollment.Amount)
	assert.NotEmpty(t, enrollment.ClientSecret)

	configured := a.do(t, call{method: http.MethodPut, path: path, token: aliceToken, body: map[string]string{"amount": "30"}})
	assert.Equal(t, http.StatusNoContent, configured.Code)

	disabled := a.do(t, call{method: http.MethodDelete, path: path, token: aliceToken})
	assert.Equal(t, http.StatusNoContent, disabled.Code)

	member := a.do(t, call{method: http.MethodGet, path: "/v1/members/" + alice.String(), token: aliceToken})
	require.Equal(t, http.StatusOK, member.Code)
	body := decode[map[string]any](t, member)
	assert.Equal(t, string(domain.AutoTopUpOff), body["auto_topup_state"])
	assert.Equal(t, float64(30*gbp), body["auto_topup_amount"])
}

func TestMalformedWebhookIsAcknowledged(t *testing.T) {
	a := setupAPI(t)
	body := []byte(`{"id":"evt_bad","type":"charge.succeeded","data":{"charge_id":"ch_x","metadata":{"transaction_kind":"MANUAL"}}}`)

	w := a.do(t, call{method: http.MethodPost, path: "/v1/webhooks/gateway", body: body, headers: signed(body)})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.WebhookMalformed, decode[service.WebhookAck](t, w).Outcome)
	assert.Equal(t, string(service.WebhookMalformed), w.Header().Get("X-Webhook-Outcome"))
}

func TestHealthAndDocs(t *testing.T) {
	a := setupAPI(t)

	assert.Equal(t, http.StatusOK, a.do(t, call{method: http.MethodGet, path: "/healthz"}).Code)
	assert.Equal(t, http.StatusOK, a.do(t, call{method: http.MethodGet, path: "/readyz"}).Code)

	spec := a.do(t, call{method: http.MethodGet, path: "/openapi.yaml"})
	require.Equal(t, http.StatusOK, spec.Code)
	assert.Contains(t, spec.Body.String(), "/v1/settlements")
}

func jsonInt(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}
