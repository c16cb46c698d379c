package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ayo6706/clubledger/internal/domain"
	"github.com/ayo6706/clubledger/internal/gateway"
	"github.com/ayo6706/clubledger/internal/notify"
	"github.com/ayo6706/clubledger/internal/observability"
	"github.com/ayo6706/clubledger/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// Gateway event types the reconciler acts on.
const (
	EventChargeSucceeded = "charge.succeeded"
	EventIntentCreated   = "intent.created"
	EventSetupSucceeded  = "setup.succeeded"
)

type WebhookOutcome string

const (
	WebhookApplied          WebhookOutcome = "APPLIED"
	WebhookDuplicate        WebhookOutcome = "DUPLICATE"
	WebhookDuplicateIgnored WebhookOutcome = "DUPLICATE_IGNORED"
	WebhookIgnored          WebhookOutcome = "IGNORED"
	WebhookMalformed        WebhookOutcome = "MALFORMED"
)

// WebhookEvent is the gateway's notification envelope.
type WebhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		ChargeID    string           `json:"charge_id"`
		IntentID    string           `json:"intent_id"`
		CustomerRef string           `json:"customer_ref"`
		Amount      int64            `json:"amount"`
		Metadata    gateway.Metadata `json:"metadata"`
	} `json:"data"`
}

// WebhookAck is returned to the gateway with HTTP 200 for every verified event.
type WebhookAck struct {
	EventID         string         `json:"event_id"`
	Outcome         WebhookOutcome `json:"outcome"`
	PendingChargeID *uuid.UUID     `json:"pending_charge_id,omitempty"`
	Message         string         `json:"message,omitempty"`
}

// WebhookService applies gateway confirmations to pending charges.
type WebhookService struct {
	store    QueryStore
	ledger   *LedgerService
	topups   *AutoTopUpService
	router   *CallbackRouter
	notifier notify.Notifier
	hmacKey  []byte
	skipSig  bool
	audit    *AuditService
}

func NewWebhookService(store QueryStore, ledger *LedgerService, topups *AutoTopUpService, router *CallbackRouter, notifier notify.Notifier, hmacKey string, skipSignature bool) *WebhookService {
	if notifier == nil {
		notifier = notify.Discard{}
	}
	return &WebhookService{
		store:    store,
		ledger:   ledger,
		topups:   topups,
		router:   router,
		notifier: notifier,
		hmacKey:  []byte(hmacKey),
		skipSig:  skipSignature,
		audit:    NewAuditService(),
	}
}

// errDuplicateCharge rolls back a confirmation whose gateway charge id is
// already recorded on another pending charge.
var errDuplicateCharge = errors.New("gateway charge already recorded")

// HandleGatewayWebhook verifies and applies one gateway event. Only a bad
// signature or a storage failure returns an error; anything else is acked.
func (s *WebhookService) HandleGatewayWebhook(ctx context.Context, body []byte, signature string) (*WebhookAck, error) {
	if !s.verifyHMAC(body, signature) {
		observability.IncrementWebhook("unknown", "invalid_signature")
		return nil, ErrInvalidSignature
	}

	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return s.malformed(event, "unparseable payload", err), nil
	}
	event.Type = strings.TrimSpace(event.Type)

	var (
		ack *WebhookAck
		err error
	)
	switch event.Type {
	case EventChargeSucceeded:
		ack, err = s.chargeSucceeded(ctx, event)
	case EventIntentCreated:
		ack, err = s.intentCreated(ctx, event)
	case EventSetupSucceeded:
		ack, err = s.setupSucceeded(ctx, event)
	default:
		zap.L().Info("ignoring gateway event", zap.String("event_id", event.ID), zap.String("type", event.Type))
		ack = &WebhookAck{EventID: event.ID, Outcome: WebhookIgnored}
	}
	if err != nil {
		observability.IncrementWebhook(event.Type, "error")
		return nil, err
	}
	observability.IncrementWebhook(event.Type, string(ack.Outcome))
	return ack, nil
}

func (s *WebhookService) malformed(event WebhookEvent, reason string, err error) *WebhookAck {
	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("type", event.Type),
		zap.String("gateway_charge_id", event.Data.ChargeID),
		zap.String("internal_charge_id", event.Data.Metadata.InternalChargeID),
		zap.String("reason", reason),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	zap.L().Error("CRITICAL: malformed gateway webhook", fields...)
	observability.IncrementWebhook(event.Type, string(WebhookMalformed))
	return &WebhookAck{EventID: event.ID, Outcome: WebhookMalformed, Message: reason}
}

func (s *WebhookService) internalChargeID(event WebhookEvent) (uuid.UUID, bool) {
	raw := strings.TrimSpace(event.Data.Metadata.InternalChargeID)
	if raw == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	return id, err == nil
}

func (s *WebhookService) chargeSucceeded(ctx context.Context, event WebhookEvent) (*WebhookAck, error) {
	switch event.Data.Metadata.TransactionKind {
	case domain.KindAuto:
		// Off-session top-ups are recorded when the charge call returns.
		zap.L().Debug("auto top-up confirmation acknowledged", zap.String("gateway_charge_id", event.Data.ChargeID))
		return &WebhookAck{EventID: event.ID, Outcome: WebhookIgnored, Message: "auto top-up already settled"}, nil
	case domain.KindManual:
	default:
		return s.malformed(event, "missing transaction kind", nil), nil
	}

	chargeID, ok := s.internalChargeID(event)
	if !ok {
		return s.malformed(event, "missing internal charge id", nil), nil
	}
	gatewayChargeID := strings.TrimSpace(event.Data.ChargeID)
	if gatewayChargeID == "" {
		return s.malformed(event, "missing gateway charge id", nil), nil
	}

	var (
		charge  repository.PendingGatewayCharge
		outcome = WebhookApplied
	)
	apply := func(settle bool) error {
		return s.store.RunInTx(ctx, func(q repository.Querier) error {
			var err error
			charge, err = q.GetPendingChargeForUpdate(ctx, repository.ToPgUUID(chargeID))
			if err != nil {
				return err
			}

			switch charge.Status {
			case domain.ChargeStatusComplete, domain.ChargeStatusDuplicateIgnored:
				outcome = WebhookDuplicate
				return nil
			}

			other, err := q.GetPendingChargeByGatewayChargeID(ctx, &gatewayChargeID)
			switch {
			case err == nil && other.ID != charge.ID:
				return errDuplicateCharge
			case err != nil && !errors.Is(err, pgx.ErrNoRows):
				return fmt.Errorf("look up gateway charge: %w", err)
			}

			if event.Data.Amount != 0 && event.Data.Amount != charge.Amount {
				zap.L().Warn("webhook amount differs from pending charge",
					zap.String("pending_charge_id", chargeID.String()),
					zap.Int64("event_amount", event.Data.Amount),
					zap.Int64("charge_amount", charge.Amount))
			}

			if err := completeCharge(ctx, q, s.audit, charge, gatewayChargeID); err != nil {
				return err
			}
			return s.applyConfirmedCharge(ctx, q, charge, chargeID, gatewayChargeID, settle)
		})
	}

	settled := true
	err := apply(true)
	if errors.Is(err, errUnsettleable) {
		// The money is taken either way; record it and fail the settlement.
		zap.L().Error("CRITICAL: confirmed card payment cannot settle its charges, crediting payer only",
			zap.String("pending_charge_id", chargeID.String()),
			zap.String("gateway_charge_id", gatewayChargeID),
			zap.Error(err))
		settled = false
		err = apply(false)
	}

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return s.malformed(event, "unknown internal charge id", err), nil
	case errors.Is(err, errDuplicateCharge), isGatewayChargeCollision(err):
		return s.ignoreDuplicate(ctx, event, chargeID, gatewayChargeID)
	case err != nil:
		zap.L().Error("failed to apply gateway confirmation",
			zap.String("pending_charge_id", chargeID.String()),
			zap.String("gateway_charge_id", gatewayChargeID),
			zap.Error(err))
		return nil, err
	}

	if outcome == WebhookDuplicate {
		zap.L().Info("duplicate gateway confirmation ignored",
			zap.String("pending_charge_id", chargeID.String()),
			zap.String("gateway_charge_id", gatewayChargeID),
			zap.String("status", charge.Status))
		return &WebhookAck{EventID: event.ID, Outcome: WebhookDuplicate, PendingChargeID: &chargeID}, nil
	}

	payerID := repository.FromPgUUID(charge.MemberID)
	zap.L().Info("card payment applied",
		zap.String("pending_charge_id", chargeID.String()),
		zap.String("gateway_charge_id", gatewayChargeID),
		zap.String("member_id", payerID.String()),
		zap.Int64("amount", charge.Amount),
		zap.Bool("settled", settled))
	ack := &WebhookAck{EventID: event.ID, Outcome: WebhookApplied, PendingChargeID: &chargeID}
	status := domain.StatusSuccess
	if !settled {
		status = domain.StatusFailure
		ack.Message = "payment credited to balance; settlement failed"
	}
	s.router.Route(ctx, domain.RouteCode(charge.RouteCode), charge.RoutePayload, status, gatewayChargeID)
	s.notifier.Notify(ctx, notify.Notification{
		MemberID: payerID,
		Kind:     notify.KindCardPaymentReceived,
		Amount:   charge.Amount,
		Message:  fmt.Sprintf("We received your card payment of %s", domain.NewMoney(charge.Amount, charge.Currency)),
	})
	return ack, nil
}

// errUnsettleable marks a confirmation whose settlement can never apply, as
// opposed to a transient storage failure the gateway should redeliver.
var errUnsettleable = errors.New("confirmed charge cannot be settled")

// settlementCharges returns what a card payment was taken for: the linked
// charge, every item of a batch, or nothing for a plain top-up.
func settlementCharges(charge repository.PendingGatewayCharge, chargeID uuid.UUID) ([]Charge, error) {
	if domain.RouteCode(charge.RouteCode) == domain.RouteBatch {
		batch, err := decodeBatchPayload(charge.RoutePayload)
		if err != nil {
			return nil, err
		}
		payerID := repository.FromPgUUID(charge.MemberID)
		if batch.PayerID != uuid.Nil && batch.PayerID != payerID {
			return nil, fmt.Errorf("batch %s belongs to %s, charge to %s", batch.BatchID, batch.PayerID, payerID)
		}
		return batchCharges(batch.Items, &chargeID), nil
	}

	if charge.LinkedAmount == nil {
		return nil, nil
	}
	linked := Charge{
		Amount:          *charge.LinkedAmount,
		PaymentType:     domain.PaymentTypeEntryFee,
		PendingChargeID: &chargeID,
	}
	if charge.LinkedPaymentType != nil {
		linked.PaymentType = domain.PaymentType(*charge.LinkedPaymentType)
	}
	if charge.LinkedDescription != nil {
		linked.Description = *charge.LinkedDescription
	}
	if charge.LinkedOrganisationID.Valid {
		acc := OrganisationAccount(repository.FromPgUUID(charge.LinkedOrganisationID))
		linked.Counterpart = &acc
	} else if charge.LinkedMemberID.Valid {
		acc := MemberAccount(repository.FromPgUUID(charge.LinkedMemberID))
		linked.Counterpart = &acc
	}
	return []Charge{linked}, nil
}

// applyConfirmedCharge credits the card payment to the payer and, when settle
// is set, posts what it was taken for in the same transaction. The credit
// covers only the shortfall, so the settlement may consume balance spent in
// the meantime. Every account is locked up front in Lock order.
func (s *WebhookService) applyConfirmedCharge(ctx context.Context, q repository.Querier, charge repository.PendingGatewayCharge, chargeID uuid.UUID, gatewayChargeID string, settle bool) error {
	payerID := repository.FromPgUUID(charge.MemberID)
	payer := MemberAccount(payerID)

	var charges []Charge
	if settle {
		var err error
		if charges, err = settlementCharges(charge, chargeID); err != nil {
			return fmt.Errorf("%w: %v", errUnsettleable, err)
		}
	}
	accounts := []Account{payer}
	for _, c := range charges {
		if c.Counterpart != nil {
			accounts = append(accounts, *c.Counterpart)
		}
	}
	if err := s.ledger.Lock(ctx, q, accounts...); err != nil {
		if len(charges) > 0 && accountMissing(err) {
			return fmt.Errorf("%w: %v", errUnsettleable, err)
		}
		return err
	}

	if _, err := s.ledger.Append(ctx, q, Entry{
		Account:         payer,
		Amount:          charge.Amount,
		Description:     fmt.Sprintf("Card payment (%s)", gatewayChargeID),
		PaymentType:     domain.PaymentTypeTopUp,
		PendingChargeID: &chargeID,
		Source:          "webhook",
	}); err != nil {
		return err
	}
	if len(charges) == 0 {
		return nil
	}
	_, _, err := s.ledger.PostCharges(ctx, q, payerID, charges, true, "webhook")
	return err
}

func isGatewayChargeCollision(err error) bool {
	constraint, ok := repository.ViolatedConstraint(err)
	return ok && constraint == "pending_gateway_charges_gateway_charge_id_key"
}

func (s *WebhookService) ignoreDuplicate(ctx context.Context, event WebhookEvent, chargeID uuid.UUID, gatewayChargeID string) (*WebhookAck, error) {
	err := s.store.RunInTx(ctx, func(q repository.Querier) error {
		return transitionChargeState(ctx, q, s.audit, chargeID, domain.ChargeStatusDuplicateIgnored, "duplicate_ignored",
			map[string]any{"gateway_charge_id": gatewayChargeID, "event_id": event.ID})
	})
	if err != nil {
		return nil, fmt.Errorf("mark duplicate charge: %w", err)
	}
	zap.L().Warn("gateway charge already applied to another pending charge",
		zap.String("pending_charge_id", chargeID.String()),
		zap.String("gateway_charge_id", gatewayChargeID))
	return &WebhookAck{EventID: event.ID, Outcome: WebhookDuplicateIgnored, PendingChargeID: &chargeID}, nil
}

func (s *WebhookService) intentCreated(ctx context.Context, event WebhookEvent) (*WebhookAck, error) {
	chargeID, ok := s.internalChargeID(event)
	if !ok {
		if event.Data.Metadata.TransactionKind == domain.KindAuto {
			// Setup intents carry no internal charge.
			return &WebhookAck{EventID: event.ID, Outcome: WebhookIgnored}, nil
		}
		return s.malformed(event, "missing internal charge id", nil), nil
	}

	outcome := WebhookApplied
	err := s.store.RunInTx(ctx, func(q repository.Querier) error {
		charge, err := q.GetPendingChargeForUpdate(ctx, repository.ToPgUUID(chargeID))
		if err != nil {
			return err
		}
		if charge.Status != domain.ChargeStatusCreated {
			// Confirmation overtook the acknowledgement.
			outcome = WebhookIgnored
			return nil
		}
		return transitionChargeState(ctx, q, s.audit, chargeID, domain.ChargeStatusIntentIssued, "intent_issued",
			map[string]any{"gateway_intent_id": event.Data.IntentID, "event_id": event.ID})
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return s.malformed(event, "unknown internal charge id", err), nil
	}
	if err != nil {
		return nil, err
	}
	return &WebhookAck{EventID: event.ID, Outcome: outcome, PendingChargeID: &chargeID}, nil
}

func (s *WebhookService) setupSucceeded(ctx context.Context, event WebhookEvent) (*WebhookAck, error) {
	memberID, err := uuid.Parse(strings.TrimSpace(event.Data.Metadata.MemberID))
	if err != nil {
		return s.malformed(event, "missing member id", err), nil
	}
	err = s.topups.ConfirmEnrollment(ctx, memberID, strings.TrimSpace(event.Data.CustomerRef))
	switch {
	case errors.Is(err, ErrInvalidAutoTopUpTransition):
		return &WebhookAck{EventID: event.ID, Outcome: WebhookIgnored, Message: err.Error()}, nil
	case err != nil && accountMissing(err):
		return s.malformed(event, "unknown member", err), nil
	case err != nil:
		return nil, err
	}
	return &WebhookAck{EventID: event.ID, Outcome: WebhookApplied}, nil
}

// verifyHMAC checks a "sha256=<hex>" signature over the raw body.
func (s *WebhookService) verifyHMAC(payload []byte, signature string) bool {
	if s.skipSig {
		return true
	}
	if len(s.hmacKey) == 0 {
		return false
	}

	h := hmac.New(sha256.New, s.hmacKey)
	h.Write(payload)
	expectedSig := "sha256=" + hex.EncodeToString(h.Sum(nil))

	// constant-time
	return hmac.Equal([]byte(signature), []byte(expectedSig))
}
