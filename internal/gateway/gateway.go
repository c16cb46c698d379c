package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/ayo6706/clubledger/internal/domain"
)

// ErrUnavailable covers transport failures and 5xx answers; callers may retry.
var ErrUnavailable = errors.New("payment gateway unavailable")

// DeclineError is a definitive refusal of a charge by the gateway.
type DeclineError struct {
	Code    string
	Message string
}

func (e *DeclineError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("charge declined: %s", e.Message)
	}
	return fmt.Sprintf("charge declined (%s): %s", e.Code, e.Message)
}

// IsDecline reports whether err carries a DeclineError.
func IsDecline(err error) bool {
	var d *DeclineError
	return errors.As(err, &d)
}

// Metadata is attached to every intent and echoed back in webhooks.
type Metadata struct {
	TransactionKind  domain.TransactionKind `json:"transaction_kind"`
	InternalChargeID string                 `json:"internal_charge_id,omitempty"`
	MemberID         string                 `json:"member_id,omitempty"`
}

type ChargeIntentRequest struct {
	Amount      int64    `json:"amount"`
	Currency    string   `json:"currency"`
	CustomerRef string   `json:"customer_ref,omitempty"`
	Description string   `json:"description"`
	SuccessURL  string   `json:"success_url,omitempty"`
	CancelURL   string   `json:"cancel_url,omitempty"`
	Metadata    Metadata `json:"metadata"`
}

// Intent is a client-completable charge or setup intent.
type Intent struct {
	IntentID     string `json:"intent_id"`
	ClientSecret string `json:"client_secret"`
}

type PaymentMethod struct {
	ID    string `json:"id"`
	Brand string `json:"brand"`
	Last4 string `json:"last4"`
}

type OffSessionChargeRequest struct {
	CustomerRef     string   `json:"customer_ref"`
	PaymentMethodID string   `json:"payment_method_id"`
	Amount          int64    `json:"amount"`
	Currency        string   `json:"currency"`
	Description     string   `json:"description"`
	Metadata        Metadata `json:"metadata"`
}

type Charge struct {
	ChargeID string `json:"charge_id"`
	Status   string `json:"status"`
}

// Gateway is the external card processor.
type Gateway interface {
	CreateChargeIntent(ctx context.Context, req ChargeIntentRequest) (*Intent, error)
	CreateSetupIntent(ctx context.Context, customerRef string, md Metadata) (*Intent, error)
	CreateCustomer(ctx context.Context, memberID, email string) (string, error)
	ListPaymentMethods(ctx context.Context, customerRef string) ([]PaymentMethod, error)
	CreateOffSessionCharge(ctx context.Context, req OffSessionChargeRequest) (*Charge, error)
}
