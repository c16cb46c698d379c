package models

import (
	"errors"
	"time"

	"github.com/ayo6706/clubledger/internal/domain"
	"github.com/google/uuid"
)

var (
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrMemberNotFound       = errors.New("member not found")
	ErrOrganisationNotFound = errors.New("organisation not found")
)

type Member struct {
	ID                 uuid.UUID             `json:"id"`
	Name               string                `json:"name"`
	Email              string                `json:"email"`
	AutoTopUpState     domain.AutoTopUpState `json:"auto_topup_state"`
	AutoTopUpAmount    int64                 `json:"auto_topup_amount"`
	GatewayCustomerRef *string               `json:"gateway_customer_ref,omitempty"`
	CreatedAt          time.Time             `json:"created_at"`
}

type Organisation struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// MemberTransaction is one immutable ledger row; Balance is the snapshot after it.
type MemberTransaction struct {
	ID                        int64              `json:"id"`
	MemberID                  uuid.UUID          `json:"member_id"`
	Sequence                  int64              `json:"sequence"`
	Amount                    int64              `json:"amount"`
	Balance                   int64              `json:"balance"`
	Description               string             `json:"description"`
	PaymentType               domain.PaymentType `json:"payment_type"`
	PendingChargeID           *uuid.UUID         `json:"pending_charge_id,omitempty"`
	CounterpartMemberID       *uuid.UUID         `json:"counterpart_member_id,omitempty"`
	CounterpartOrganisationID *uuid.UUID         `json:"counterpart_organisation_id,omitempty"`
	ReversesID                *int64             `json:"reverses_id,omitempty"`
	TransferID                *uuid.UUID         `json:"transfer_id,omitempty"`
	CreatedAt                 time.Time          `json:"created_at"`
}

type OrganisationTransaction struct {
	ID                        int64              `json:"id"`
	OrganisationID            uuid.UUID          `json:"organisation_id"`
	Sequence                  int64              `json:"sequence"`
	Amount                    int64              `json:"amount"`
	Balance                   int64              `json:"balance"`
	Description               string             `json:"description"`
	PaymentType               domain.PaymentType `json:"payment_type"`
	PendingChargeID           *uuid.UUID         `json:"pending_charge_id,omitempty"`
	CounterpartMemberID       *uuid.UUID         `json:"counterpart_member_id,omitempty"`
	CounterpartOrganisationID *uuid.UUID         `json:"counterpart_organisation_id,omitempty"`
	TransferID                *uuid.UUID         `json:"transfer_id,omitempty"`
	CreatedAt                 time.Time          `json:"created_at"`
}

// PendingCharge is money requested from the gateway but not yet confirmed.
type PendingCharge struct {
	ID                   uuid.UUID           `json:"id"`
	MemberID             uuid.UUID           `json:"member_id"`
	Amount               int64               `json:"amount"`
	Currency             string              `json:"currency"`
	Route                domain.Route        `json:"route"`
	LinkedAmount         *int64              `json:"linked_amount,omitempty"`
	LinkedMemberID       *uuid.UUID          `json:"linked_member_id,omitempty"`
	LinkedOrganisationID *uuid.UUID          `json:"linked_organisation_id,omitempty"`
	LinkedPaymentType    *domain.PaymentType `json:"linked_payment_type,omitempty"`
	LinkedDescription    *string             `json:"linked_description,omitempty"`
	GatewayIntentID      *string             `json:"gateway_intent_id,omitempty"`
	GatewayChargeID      *string             `json:"gateway_charge_id,omitempty"`
	Status               string              `json:"status"`
	CreatedAt            time.Time           `json:"created_at"`
	UpdatedAt            time.Time           `json:"updated_at"`
	CompletedAt          *time.Time          `json:"completed_at,omitempty"`
}
