package domain

import (
	"fmt"
	"strings"
)

// PaymentType tags every ledger row with the reason money moved.
type PaymentType string

const (
	PaymentTypeTopUp            PaymentType = "TOP_UP"
	PaymentTypeAutoTopUp        PaymentType = "AUTO_TOP_UP"
	PaymentTypeEntryFee         PaymentType = "ENTRY_FEE"
	PaymentTypeRefund           PaymentType = "REFUND"
	PaymentTypeTransfer         PaymentType = "TRANSFER"
	PaymentTypeManualCorrection PaymentType = "MANUAL_CORRECTION"
)

// ParsePaymentType validates a payment type coming from outside the process.
func ParsePaymentType(raw string) (PaymentType, error) {
	pt := PaymentType(strings.ToUpper(strings.TrimSpace(raw)))
	switch pt {
	case PaymentTypeTopUp, PaymentTypeAutoTopUp, PaymentTypeEntryFee,
		PaymentTypeRefund, PaymentTypeTransfer, PaymentTypeManualCorrection:
		return pt, nil
	}
	return "", fmt.Errorf("unknown payment type: %q", raw)
}

// AutoTopUpState is the member's enrollment flag for automatic top-ups.
type AutoTopUpState string

const (
	AutoTopUpOff     AutoTopUpState = "OFF"
	AutoTopUpPending AutoTopUpState = "PENDING"
	AutoTopUpOn      AutoTopUpState = "ON"
)

// Pending gateway charge statuses
const (
	ChargeStatusCreated          = "CREATED"
	ChargeStatusIntentIssued     = "INTENT_ISSUED"
	ChargeStatusComplete         = "COMPLETE"
	ChargeStatusDuplicateIgnored = "DUPLICATE_IGNORED"
)

// TransactionKind is echoed back by the gateway in webhook metadata.
type TransactionKind string

const (
	KindManual TransactionKind = "MANUAL"
	KindAuto   TransactionKind = "AUTO"
)

// SettlementStatus is what the callback router reports to domain modules.
type SettlementStatus string

const (
	StatusSuccess SettlementStatus = "SUCCESS"
	StatusFailure SettlementStatus = "FAILURE"
)

// Audit entity types
const (
	EntityMemberTransaction       = "member_transaction"
	EntityOrganisationTransaction = "organisation_transaction"
	EntityPendingCharge           = "pending_gateway_charge"
	EntityMember                  = "member"
)
