package gateway

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"
)

// MockGateway simulates the card processor for local runs (GATEWAY_MOCK=true).
// Off-session charges are declined with probability DeclineRate.
type MockGateway struct {
	// DeclineRate is the probability of an off-session decline (0.0 to 1.0).
	DeclineRate float64
	// Latency is added before every call returns.
	Latency time.Duration

	seq     atomic.Int64
	mu      sync.Mutex
	methods map[string][]PaymentMethod
}

func NewMockGateway() *MockGateway {
	return &MockGateway{
		DeclineRate: 0.1,
		Latency:     200 * time.Millisecond,
		methods:     map[string][]PaymentMethod{},
	}
}

func (g *MockGateway) wait(ctx context.Context) error {
	if g.Latency <= 0 {
		return nil
	}
	jitter := time.Duration(rand.Int63n(int64(g.Latency)/2 + 1))
	select {
	case <-time.After(g.Latency + jitter):
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
	}
}

// ref formats ids as MOCK-<prefix>-YYYYMMDD-HHMMSS-<n>.
func (g *MockGateway) ref(prefix string) string {
	return fmt.Sprintf("MOCK-%s-%s-%05d", prefix, time.Now().Format("20060102-150405"), g.seq.Add(1))
}

func (g *MockGateway) CreateChargeIntent(ctx context.Context, req ChargeIntentRequest) (*Intent, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}
	id := g.ref("pi")
	return &Intent{IntentID: id, ClientSecret: id + "_secret"}, nil
}

// CreateSetupIntent also stores a test card for the customer, as if the
// member completed the setup form.
func (g *MockGateway) CreateSetupIntent(ctx context.Context, customerRef string, _ Metadata) (*Intent, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}
	g.mu.Lock()
	if len(g.methods[customerRef]) == 0 {
		g.methods[customerRef] = []PaymentMethod{{ID: g.ref("pm"), Brand: "visa", Last4: "4242"}}
	}
	g.mu.Unlock()
	id := g.ref("seti")
	return &Intent{IntentID: id, ClientSecret: id + "_secret"}, nil
}

func (g *MockGateway) CreateCustomer(ctx context.Context, _, _ string) (string, error) {
	if err := g.wait(ctx); err != nil {
		return "", err
	}
	return g.ref("cus"), nil
}

func (g *MockGateway) ListPaymentMethods(ctx context.Context, customerRef string) ([]PaymentMethod, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]PaymentMethod(nil), g.methods[customerRef]...), nil
}

func (g *MockGateway) CreateOffSessionCharge(ctx context.Context, req OffSessionChargeRequest) (*Charge, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}
	if rand.Float64() < g.DeclineRate {
		return nil, &DeclineError{Code: "card_declined", Message: "your card was declined"}
	}
	return &Charge{ChargeID: g.ref("ch"), Status: "succeeded"}, nil
}
