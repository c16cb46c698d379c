package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ayo6706/clubledger/internal/domain"
	"github.com/ayo6706/clubledger/internal/gateway"
	"github.com/ayo6706/clubledger/internal/models"
	"github.com/ayo6706/clubledger/internal/observability"
	"github.com/ayo6706/clubledger/internal/registration"
	"github.com/ayo6706/clubledger/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Outcome string

const (
	OutcomeSettled             Outcome = "SETTLED"
	OutcomeToppedUpAndSettled  Outcome = "TOPPED_UP_AND_SETTLED"
	OutcomeCardPaymentRequired Outcome = "CARD_PAYMENT_REQUIRED"
	OutcomeDeclined            Outcome = "DECLINED"
)

// ChargeRequest asks for Amount to move from the payer to at most one counterpart.
type ChargeRequest struct {
	PayerID        uuid.UUID
	Amount         int64
	Description    string
	OrganisationID *uuid.UUID
	MemberID       *uuid.UUID
	PaymentType    domain.PaymentType
	Route          domain.Route
	SuccessURL     string
	CancelURL      string
}

// CardPayment is what the client needs to finish a card payment for the shortfall.
type CardPayment struct {
	PendingChargeID uuid.UUID `json:"pending_charge_id"`
	IntentID        string    `json:"intent_id"`
	ClientSecret    string    `json:"client_secret"`
	Amount          int64     `json:"amount"`
	Currency        string    `json:"currency"`
	SuccessURL      string    `json:"success_url,omitempty"`
	CancelURL       string    `json:"cancel_url,omitempty"`
}

type SettlementOutcome struct {
	Outcome     Outcome      `json:"outcome"`
	Postings    []Posting    `json:"postings,omitempty"`
	Balance     int64        `json:"balance"`
	TopUp       *TopUpResult `json:"top_up,omitempty"`
	CardPayment *CardPayment `json:"card_payment,omitempty"`
	Message     string       `json:"message,omitempty"`
}

// SettlementService decides, per charge, between paying from balance, an
// automatic top-up, or an interactive card payment.
type SettlementService struct {
	store         QueryStore
	ledger        *LedgerService
	topups        *AutoTopUpService
	gateway       gateway.Gateway
	router        *CallbackRouter
	registrations registration.Store
	settings      Settings
	audit         *AuditService
}

func NewSettlementService(store QueryStore, ledger *LedgerService, topups *AutoTopUpService, gw gateway.Gateway, router *CallbackRouter, registrations registration.Store, settings Settings) *SettlementService {
	s := &SettlementService{
		store:         store,
		ledger:        ledger,
		topups:        topups,
		gateway:       gw,
		router:        router,
		registrations: registrations,
		settings:      settings.withDefaults(),
		audit:         NewAuditService(),
	}
	router.BindBatch(s.completeBatch)
	return s
}

func (r ChargeRequest) counterpart() *Account {
	switch {
	case r.OrganisationID != nil:
		acc := OrganisationAccount(*r.OrganisationID)
		return &acc
	case r.MemberID != nil:
		acc := MemberAccount(*r.MemberID)
		return &acc
	}
	return nil
}

func validateCharge(payerID uuid.UUID, amount int64, orgID, memberID *uuid.UUID, pt domain.PaymentType) *CallerError {
	if payerID == uuid.Nil {
		return callerErrorf("payer is required")
	}
	if amount <= 0 {
		return callerErrorf("amount must be positive, got %d", amount)
	}
	if orgID != nil && memberID != nil {
		return callerErrorf("at most one counterpart may be set")
	}
	if memberID != nil && *memberID == payerID {
		return callerErrorf("payer cannot pay themselves")
	}
	if _, err := domain.ParsePaymentType(string(pt)); err != nil {
		return callerErrorf("%v", err)
	}
	return nil
}

func (s *SettlementService) reject(err *CallerError, payerID uuid.UUID) error {
	observability.IncrementSettlement("rejected")
	zap.L().Error("CRITICAL: settlement request rejected",
		zap.String("payer_id", payerID.String()),
		zap.String("reason", err.Reason))
	return err
}

// Settle charges req.Amount to the payer. A lost balance race is re-decided once.
func (s *SettlementService) Settle(ctx context.Context, req ChargeRequest) (*SettlementOutcome, error) {
	if cerr := validateCharge(req.PayerID, req.Amount, req.OrganisationID, req.MemberID, req.PaymentType); cerr != nil {
		return nil, s.reject(cerr, req.PayerID)
	}
	if req.Route.Code == "" {
		req.Route.Code = domain.RouteGeneric
	}
	if _, err := domain.ParseRouteCode(string(req.Route.Code)); err != nil {
		return nil, s.reject(callerErrorf("%v", err), req.PayerID)
	}
	if strings.TrimSpace(req.Description) == "" {
		req.Description = string(req.PaymentType)
	}

	q := s.store.Queries()
	if cp := req.counterpart(); cp != nil {
		if err := s.ledger.accountExists(ctx, q, *cp); err != nil {
			return nil, err
		}
	}

	charges := []Charge{{
		Amount:      req.Amount,
		Description: req.Description,
		PaymentType: req.PaymentType,
		Counterpart: req.counterpart(),
	}}

	var topUp *TopUpResult
	for attempt := 0; attempt < 2; attempt++ {
		row, err := q.GetMember(ctx, repository.ToPgUUID(req.PayerID))
		if err != nil {
			return nil, accountLookupErr(MemberAccount(req.PayerID), err)
		}
		member := row.Model()
		balance, err := s.ledger.MemberBalance(ctx, req.PayerID)
		if err != nil {
			return nil, err
		}

		if req.Amount <= balance {
			postings, newBalance, err := s.postFromBalance(ctx, req.PayerID, charges, "settlement")
			if errors.Is(err, models.ErrInsufficientFunds) {
				zap.L().Info("balance changed before settlement, re-deciding", zap.String("payer_id", req.PayerID.String()))
				continue
			}
			if err != nil {
				return nil, err
			}
			out := &SettlementOutcome{Outcome: OutcomeSettled, Postings: postings, Balance: newBalance, TopUp: topUp}
			if topUp != nil {
				out.Outcome = OutcomeToppedUpAndSettled
				observability.IncrementSettlement("auto_topup")
			} else {
				observability.IncrementSettlement("balance")
			}
			s.router.Route(ctx, req.Route.Code, req.Route.Payload, domain.StatusSuccess, ledgerRef(postings))
			if topUp == nil && member.AutoTopUpState == domain.AutoTopUpOn && newBalance < s.settings.LowBalanceThreshold {
				s.topups.TopUpAsync(req.PayerID, "low_balance_after_settlement")
			}
			return out, nil
		}

		if member.AutoTopUpState == domain.AutoTopUpOn && topUp == nil {
			result, err := s.topups.TopUp(ctx, req.PayerID, req.Amount-balance)
			if err != nil {
				var decline *gateway.DeclineError
				if errors.As(err, &decline) {
					observability.IncrementSettlement("declined")
					s.router.Route(ctx, req.Route.Code, req.Route.Payload, domain.StatusFailure, "")
					return &SettlementOutcome{Outcome: OutcomeDeclined, Balance: balance, Message: decline.Error()}, nil
				}
				if !errors.Is(err, ErrAutoTopUpDisabled) {
					return nil, err
				}
			} else {
				topUp = result
				attempt--
				continue
			}
		}

		card, err := s.requestCardPayment(ctx, member, req.Amount-balance, req.Route, req.Description, req.SuccessURL, req.CancelURL, &linkedSettlement{
			amount:      req.Amount,
			counterpart: req.counterpart(),
			paymentType: req.PaymentType,
			description: req.Description,
		})
		if err != nil {
			return nil, err
		}
		observability.IncrementSettlement("card")
		return &SettlementOutcome{Outcome: OutcomeCardPaymentRequired, Balance: balance, TopUp: topUp, CardPayment: card}, nil
	}
	return nil, ErrBalanceContention
}

func (s *SettlementService) postFromBalance(ctx context.Context, payerID uuid.UUID, charges []Charge, source string) ([]Posting, int64, error) {
	var postings []Posting
	var balance int64
	err := s.store.RunInTx(ctx, func(q repository.Querier) error {
		var err error
		postings, balance, err = s.ledger.PostCharges(ctx, q, payerID, charges, false, source)
		return err
	})
	return postings, balance, err
}

func ledgerRef(postings []Posting) string {
	if len(postings) == 0 {
		return ""
	}
	return "ledger:" + strconv.FormatInt(postings[0].TransactionID, 10)
}

// linkedSettlement is the settlement applied when a card payment confirms.
type linkedSettlement struct {
	amount      int64
	counterpart *Account
	paymentType domain.PaymentType
	description string
}

// requestCardPayment asks the gateway for an intent first and only then
// records the pending charge, so a gateway failure leaves nothing behind.
func (s *SettlementService) requestCardPayment(ctx context.Context, member models.Member, shortfall int64, route domain.Route, description, successURL, cancelURL string, linked *linkedSettlement) (*CardPayment, error) {
	chargeID := uuid.New()
	customerRef := ""
	if member.GatewayCustomerRef != nil {
		customerRef = *member.GatewayCustomerRef
	}

	gctx, cancel := s.settings.gatewayContext(ctx)
	intent, err := s.gateway.CreateChargeIntent(gctx, gateway.ChargeIntentRequest{
		Amount:      shortfall,
		Currency:    s.settings.Currency,
		CustomerRef: customerRef,
		Description: description,
		SuccessURL:  successURL,
		CancelURL:   cancelURL,
		Metadata: gateway.Metadata{
			TransactionKind:  domain.KindManual,
			InternalChargeID: chargeID.String(),
			MemberID:         member.ID.String(),
		},
	})
	cancel()
	if err != nil {
		return nil, fmt.Errorf("create charge intent: %w", err)
	}

	params := repository.InsertPendingChargeParams{
		ID:              repository.ToPgUUID(chargeID),
		MemberID:        repository.ToPgUUID(member.ID),
		Amount:          shortfall,
		Currency:        s.settings.Currency,
		RouteCode:       string(route.Code),
		RoutePayload:    route.Payload,
		GatewayIntentID: &intent.IntentID,
		Status:          domain.ChargeStatusCreated,
	}
	if linked != nil {
		params.LinkedAmount = &linked.amount
		params.LinkedPaymentType = ptr(string(linked.paymentType))
		params.LinkedDescription = &linked.description
		if linked.counterpart != nil {
			if linked.counterpart.Kind == AccountOrganisation {
				params.LinkedOrganisationID = repository.ToPgUUID(linked.counterpart.ID)
			} else {
				params.LinkedMemberID = repository.ToPgUUID(linked.counterpart.ID)
			}
		}
	}

	err = s.store.RunInTx(ctx, func(q repository.Querier) error {
		if _, err := q.InsertPendingCharge(ctx, params); err != nil {
			return fmt.Errorf("insert pending charge: %w", err)
		}
		return s.audit.Write(ctx, q, AuditEntry{
			EntityType: domain.EntityPendingCharge,
			EntityID:   chargeID.String(),
			Action:     "created",
			NextState:  domain.ChargeStatusCreated,
			Metadata: map[string]any{
				"gateway_intent_id": intent.IntentID,
				"route_code":        route.Code,
				"amount":            shortfall,
			},
		})
	})
	if err != nil {
		zap.L().Error("intent issued but pending charge not recorded",
			zap.String("pending_charge_id", chargeID.String()),
			zap.String("gateway_intent_id", intent.IntentID),
			zap.Error(err))
		return nil, err
	}

	zap.L().Info("card payment required",
		zap.String("member_id", member.ID.String()),
		zap.String("pending_charge_id", chargeID.String()),
		zap.String("gateway_intent_id", intent.IntentID),
		zap.Int64("amount", shortfall))
	return &CardPayment{
		PendingChargeID: chargeID,
		IntentID:        intent.IntentID,
		ClientSecret:    intent.ClientSecret,
		Amount:          shortfall,
		Currency:        s.settings.Currency,
		SuccessURL:      successURL,
		CancelURL:       cancelURL,
	}, nil
}

// BatchItem is one line of a multi-item checkout with its own route.
type BatchItem struct {
	Amount         int64              `json:"amount"`
	Description    string             `json:"description"`
	OrganisationID *uuid.UUID         `json:"organisation_id,omitempty"`
	MemberID       *uuid.UUID         `json:"member_id,omitempty"`
	PaymentType    domain.PaymentType `json:"payment_type"`
	Route          domain.Route       `json:"route"`
}

func (i BatchItem) counterpart() *Account {
	return ChargeRequest{OrganisationID: i.OrganisationID, MemberID: i.MemberID}.counterpart()
}

type BatchChargeRequest struct {
	PayerID     uuid.UUID
	Description string
	Items       []BatchItem
	SuccessURL  string
	CancelURL   string
}

type BatchOutcome struct {
	BatchID     uuid.UUID    `json:"batch_id"`
	Outcome     Outcome      `json:"outcome"`
	Total       int64        `json:"total"`
	Postings    []Posting    `json:"postings,omitempty"`
	Balance     int64        `json:"balance"`
	TopUp       *TopUpResult `json:"top_up,omitempty"`
	CardPayment *CardPayment `json:"card_payment,omitempty"`
	Message     string       `json:"message,omitempty"`
}

// batchPayload travels in the pending charge's route payload.
type batchPayload struct {
	BatchID uuid.UUID   `json:"batch_id"`
	PayerID uuid.UUID   `json:"payer_id"`
	Items   []BatchItem `json:"items"`
}

func decodeBatchPayload(payload string) (batchPayload, error) {
	var batch batchPayload
	if err := json.Unmarshal([]byte(payload), &batch); err != nil {
		return batchPayload{}, fmt.Errorf("decode batch payload: %w", err)
	}
	if len(batch.Items) == 0 {
		return batchPayload{}, errors.New("batch payload has no items")
	}
	return batch, nil
}

func batchCharges(items []BatchItem, pendingChargeID *uuid.UUID) []Charge {
	charges := make([]Charge, 0, len(items))
	for _, item := range items {
		charges = append(charges, Charge{
			Amount:          item.Amount,
			Description:     item.Description,
			PaymentType:     item.PaymentType,
			Counterpart:     item.counterpart(),
			PendingChargeID: pendingChargeID,
		})
	}
	return charges
}

func (s *SettlementService) routeItems(ctx context.Context, items []BatchItem, status domain.SettlementStatus, chargeRef string) {
	for _, item := range items {
		s.router.Route(ctx, item.Route.Code, item.Route.Payload, status, chargeRef)
	}
}

// SettleBatch settles every item atomically for one payer, or when funds are
// short issues one card payment for the whole shortfall and settles the items
// when it confirms.
func (s *SettlementService) SettleBatch(ctx context.Context, req BatchChargeRequest) (*BatchOutcome, error) {
	if len(req.Items) == 0 {
		return nil, s.reject(callerErrorf("batch has no items"), req.PayerID)
	}
	var total int64
	for i := range req.Items {
		item := &req.Items[i]
		if cerr := validateCharge(req.PayerID, item.Amount, item.OrganisationID, item.MemberID, item.PaymentType); cerr != nil {
			return nil, s.reject(callerErrorf("item %d: %s", i, cerr.Reason), req.PayerID)
		}
		if item.Route.Code == "" {
			item.Route.Code = domain.RouteGeneric
		}
		if _, err := domain.ParseRouteCode(string(item.Route.Code)); err != nil {
			return nil, s.reject(callerErrorf("item %d: %v", i, err), req.PayerID)
		}
		if strings.TrimSpace(item.Description) == "" {
			item.Description = string(item.PaymentType)
		}
		total += item.Amount
		if total <= 0 {
			return nil, s.reject(callerErrorf("batch total overflows"), req.PayerID)
		}
	}
	if strings.TrimSpace(req.Description) == "" {
		req.Description = fmt.Sprintf("Checkout of %d items", len(req.Items))
	}

	q := s.store.Queries()
	for _, item := range req.Items {
		if cp := item.counterpart(); cp != nil {
			if err := s.ledger.accountExists(ctx, q, *cp); err != nil {
				return nil, err
			}
		}
	}

	batchID := uuid.New()
	charges := batchCharges(req.Items, nil)
	var topUp *TopUpResult
	for attempt := 0; attempt < 2; attempt++ {
		row, err := q.GetMember(ctx, repository.ToPgUUID(req.PayerID))
		if err != nil {
			return nil, accountLookupErr(MemberAccount(req.PayerID), err)
		}
		member := row.Model()
		balance, err := s.ledger.MemberBalance(ctx, req.PayerID)
		if err != nil {
			return nil, err
		}

		if total <= balance {
			postings, newBalance, err := s.postFromBalance(ctx, req.PayerID, charges, "batch_settlement")
			if errors.Is(err, models.ErrInsufficientFunds) {
				continue
			}
			if err != nil {
				return nil, err
			}
			out := &BatchOutcome{BatchID: batchID, Outcome: OutcomeSettled, Total: total, Postings: postings, Balance: newBalance, TopUp: topUp}
			if topUp != nil {
				out.Outcome = OutcomeToppedUpAndSettled
			}
			observability.IncrementSettlement("batch_balance")
			s.routeItems(ctx, req.Items, domain.StatusSuccess, ledgerRef(postings))
			if topUp == nil && member.AutoTopUpState == domain.AutoTopUpOn && newBalance < s.settings.LowBalanceThreshold {
				s.topups.TopUpAsync(req.PayerID, "low_balance_after_batch")
			}
			return out, nil
		}

		if member.AutoTopUpState == domain.AutoTopUpOn && topUp == nil {
			result, err := s.topups.TopUp(ctx, req.PayerID, total-balance)
			if err != nil {
				var decline *gateway.DeclineError
				if errors.As(err, &decline) {
					observability.IncrementSettlement("declined")
					s.routeItems(ctx, req.Items, domain.StatusFailure, "")
					return &BatchOutcome{BatchID: batchID, Outcome: OutcomeDeclined, Total: total, Balance: balance, Message: decline.Error()}, nil
				}
				if !errors.Is(err, ErrAutoTopUpDisabled) {
					return nil, err
				}
			} else {
				topUp = result
				attempt--
				continue
			}
		}

		payload, err := json.Marshal(batchPayload{BatchID: batchID, PayerID: req.PayerID, Items: req.Items})
		if err != nil {
			return nil, fmt.Errorf("encode batch payload: %w", err)
		}
		if err := s.registrations.Put(ctx, registration.Registration{BatchID: batchID, PayerID: req.PayerID}); err != nil {
			return nil, fmt.Errorf("register batch: %w", err)
		}
		card, err := s.requestCardPayment(ctx, member, total-balance, domain.Route{Code: domain.RouteBatch, Payload: string(payload)}, req.Description, req.SuccessURL, req.CancelURL, nil)
		if err != nil {
			if delErr := s.registrations.Delete(ctx, batchID); delErr != nil {
				zap.L().Warn("failed to drop batch registration", zap.String("batch_id", batchID.String()), zap.Error(delErr))
			}
			return nil, err
		}
		observability.IncrementSettlement("batch_card")
		return &BatchOutcome{BatchID: batchID, Outcome: OutcomeCardPaymentRequired, Total: total, Balance: balance, TopUp: topUp, CardPayment: card}, nil
	}
	return nil, ErrBalanceContention
}

// completeBatch fans a batch result out to every item's route. On success the
// items were already posted in the confirmation transaction. The registration
// is only cross-checked against the payload and then dropped.
func (s *SettlementService) completeBatch(ctx context.Context, payload string, status domain.SettlementStatus, chargeRef string) error {
	batch, err := decodeBatchPayload(payload)
	if err != nil {
		zap.L().Error("CRITICAL: unreadable batch payload, item results dropped",
			zap.String("charge_ref", chargeRef),
			zap.String("status", string(status)),
			zap.Error(err))
		return err
	}

	reg, err := s.registrations.Get(ctx, batch.BatchID)
	switch {
	case errors.Is(err, registration.ErrNotFound):
		zap.L().Warn("batch registration already gone", zap.String("batch_id", batch.BatchID.String()))
	case err != nil:
		zap.L().Warn("batch registration lookup failed", zap.String("batch_id", batch.BatchID.String()), zap.Error(err))
	case batch.PayerID != uuid.Nil && reg.PayerID != batch.PayerID:
		zap.L().Error("CRITICAL: batch registration names a different payer",
			zap.String("batch_id", batch.BatchID.String()),
			zap.String("registered_payer_id", reg.PayerID.String()),
			zap.String("payload_payer_id", batch.PayerID.String()))
	}

	zap.L().Info("batch result routed",
		zap.String("batch_id", batch.BatchID.String()),
		zap.String("status", string(status)),
		zap.Int("items", len(batch.Items)))
	s.routeItems(ctx, batch.Items, status, chargeRef)
	if err := s.registrations.Delete(ctx, batch.BatchID); err != nil {
		zap.L().Warn("failed to delete batch registration", zap.String("batch_id", batch.BatchID.String()), zap.Error(err))
	}
	return nil
}
