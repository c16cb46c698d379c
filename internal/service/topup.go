package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ayo6706/clubledger/internal/domain"
	"github.com/ayo6706/clubledger/internal/gateway"
	"github.com/ayo6706/clubledger/internal/models"
	"github.com/ayo6706/clubledger/internal/notify"
	"github.com/ayo6706/clubledger/internal/observability"
	"github.com/ayo6706/clubledger/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// TopUpResult describes a successful off-session top-up.
type TopUpResult struct {
	Amount          int64   `json:"amount"`
	GatewayChargeID string  `json:"gateway_charge_id"`
	Posting         Posting `json:"posting"`
	Balance         int64   `json:"balance"`
}

// Enrollment is returned when a member starts auto top-up setup.
type Enrollment struct {
	State        domain.AutoTopUpState `json:"state"`
	Amount       int64                 `json:"amount"`
	SetupIntent  string                `json:"setup_intent_id"`
	ClientSecret string                `json:"client_secret"`
}

// AutoTopUpService charges a member's stored card when their balance runs low.
type AutoTopUpService struct {
	store    QueryStore
	ledger   *LedgerService
	gateway  gateway.Gateway
	notifier notify.Notifier
	audit    *AuditService
	settings Settings

	inflight sync.WaitGroup
	slots    chan struct{}

	mu     sync.Mutex
	queued map[uuid.UUID]struct{}
}

var (
	errTopUpQueued    = errors.New("top-up already queued for member")
	errTopUpQueueFull = errors.New("top-up queue full")
)

func NewAutoTopUpService(store QueryStore, ledger *LedgerService, gw gateway.Gateway, notifier notify.Notifier, settings Settings) *AutoTopUpService {
	if notifier == nil {
		notifier = notify.Discard{}
	}
	settings = settings.withDefaults()
	return &AutoTopUpService{
		store:    store,
		ledger:   ledger,
		gateway:  gw,
		notifier: notifier,
		audit:    NewAuditService(),
		settings: settings,
		slots:    make(chan struct{}, settings.TopUpWorkers),
		queued:   make(map[uuid.UUID]struct{}),
	}
}

func (s *AutoTopUpService) Threshold() int64 {
	return s.settings.LowBalanceThreshold
}

// TopUp charges the member's first stored card once, off-session. A decline
// switches the policy OFF and is returned as *gateway.DeclineError.
func (s *AutoTopUpService) TopUp(ctx context.Context, memberID uuid.UUID, shortfall int64) (*TopUpResult, error) {
	row, err := s.store.Queries().GetMember(ctx, repository.ToPgUUID(memberID))
	if err != nil {
		return nil, accountLookupErr(MemberAccount(memberID), err)
	}
	member := row.Model()
	if member.AutoTopUpState != domain.AutoTopUpOn {
		return nil, ErrAutoTopUpDisabled
	}

	balance, err := s.ledger.MemberBalance(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if shortfall <= 0 && balance >= s.settings.LowBalanceThreshold {
		return nil, ErrNothingToTopUp
	}
	amount := domain.TopUpAmount(balance, s.settings.LowBalanceThreshold, member.AutoTopUpAmount, shortfall)
	if amount <= 0 {
		return nil, ErrNothingToTopUp
	}

	if member.GatewayCustomerRef == nil || *member.GatewayCustomerRef == "" {
		return nil, s.declined(ctx, member, amount, &gateway.DeclineError{Code: "no_customer", Message: "no stored payment details"})
	}
	customerRef := *member.GatewayCustomerRef

	gctx, cancel := s.settings.gatewayContext(ctx)
	defer cancel()

	methods, err := s.gateway.ListPaymentMethods(gctx, customerRef)
	if err != nil {
		if gateway.IsDecline(err) {
			return nil, s.declined(ctx, member, amount, err)
		}
		observability.IncrementTopUp("unavailable")
		return nil, fmt.Errorf("list payment methods: %w", err)
	}
	if len(methods) == 0 {
		return nil, s.declined(ctx, member, amount, &gateway.DeclineError{Code: "no_payment_method", Message: "no stored card"})
	}

	charge, err := s.gateway.CreateOffSessionCharge(gctx, gateway.OffSessionChargeRequest{
		CustomerRef:     customerRef,
		PaymentMethodID: methods[0].ID,
		Amount:          amount,
		Currency:        s.settings.Currency,
		Description:     "Automatic top-up",
		Metadata: gateway.Metadata{
			TransactionKind: domain.KindAuto,
			MemberID:        memberID.String(),
		},
	})
	if err != nil {
		if gateway.IsDecline(err) {
			return nil, s.declined(ctx, member, amount, err)
		}
		observability.IncrementTopUp("unavailable")
		return nil, fmt.Errorf("create off-session charge: %w", err)
	}

	var posting Posting
	err = s.store.RunInTx(ctx, func(q repository.Querier) error {
		var err error
		posting, err = s.ledger.Append(ctx, q, Entry{
			Account:     MemberAccount(memberID),
			Amount:      amount,
			Description: fmt.Sprintf("Automatic top-up (%s)", charge.ChargeID),
			PaymentType: domain.PaymentTypeAutoTopUp,
			Source:      "auto_topup",
		})
		return err
	})
	if err != nil {
		observability.IncrementTopUp("unrecorded")
		zap.L().Error("CRITICAL: card charged but top-up not recorded",
			zap.String("member_id", memberID.String()),
			zap.String("gateway_charge_id", charge.ChargeID),
			zap.Int64("amount", amount),
			zap.Error(err))
		return nil, fmt.Errorf("record top-up %s: %w", charge.ChargeID, err)
	}

	observability.IncrementTopUp("success")
	zap.L().Info("auto top-up succeeded",
		zap.String("member_id", memberID.String()),
		zap.String("gateway_charge_id", charge.ChargeID),
		zap.Int64("amount", amount),
		zap.Int64("balance", posting.Balance))
	s.notifier.Notify(ctx, notify.Notification{
		MemberID: memberID,
		Kind:     notify.KindTopUpSucceeded,
		Amount:   amount,
		Message:  fmt.Sprintf("Your balance was topped up by %s", domain.NewMoney(amount, s.settings.Currency)),
	})
	return &TopUpResult{
		Amount:          amount,
		GatewayChargeID: charge.ChargeID,
		Posting:         posting,
		Balance:         posting.Balance,
	}, nil
}

func (s *AutoTopUpService) declined(ctx context.Context, member models.Member, amount int64, cause error) error {
	observability.IncrementTopUp("declined")
	zap.L().Warn("auto top-up declined, disabling",
		zap.String("member_id", member.ID.String()),
		zap.Int64("amount", amount),
		zap.Error(cause))

	err := s.store.RunInTx(ctx, func(q repository.Querier) error {
		_, err := transitionAutoTopUp(ctx, q, s.audit, member.ID, domain.AutoTopUpOff, nil, "auto_topup_declined")
		return err
	})
	if err != nil {
		zap.L().Error("failed to disable auto top-up after decline", zap.String("member_id", member.ID.String()), zap.Error(err))
	}
	s.notifier.Notify(ctx, notify.Notification{
		MemberID: member.ID,
		Kind:     notify.KindTopUpDeclined,
		Amount:   amount,
		Message:  "Your automatic top-up was declined and has been switched off",
	})

	var decline *gateway.DeclineError
	if errors.As(cause, &decline) {
		return decline
	}
	return &gateway.DeclineError{Message: cause.Error()}
}

// TopUpAsync queues a proactive top-up; failures are only logged. At most one
// top-up per member is queued, and a full queue drops the request.
func (s *AutoTopUpService) TopUpAsync(memberID uuid.UUID, reason string) {
	if err := s.reserve(memberID); err != nil {
		if errors.Is(err, errTopUpQueueFull) {
			observability.IncrementTopUp("dropped")
			zap.L().Warn("background top-up dropped",
				zap.String("member_id", memberID.String()),
				zap.String("reason", reason),
				zap.Error(err))
		}
		return
	}
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer s.release(memberID)
		s.slots <- struct{}{}
		defer func() { <-s.slots }()

		ctx, cancel := context.WithTimeout(context.Background(), 3*s.settings.GatewayTimeout)
		defer cancel()
		if _, err := s.TopUp(ctx, memberID, 0); err != nil && !errors.Is(err, ErrNothingToTopUp) {
			zap.L().Warn("background top-up failed",
				zap.String("member_id", memberID.String()),
				zap.String("reason", reason),
				zap.Error(err))
		}
	}()
}

func (s *AutoTopUpService) reserve(memberID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.queued[memberID]; ok {
		return errTopUpQueued
	}
	if len(s.queued) >= s.settings.TopUpQueueDepth {
		return errTopUpQueueFull
	}
	s.queued[memberID] = struct{}{}
	return nil
}

func (s *AutoTopUpService) release(memberID uuid.UUID) {
	s.mu.Lock()
	delete(s.queued, memberID)
	s.mu.Unlock()
}

// Wait blocks until background top-ups finish.
func (s *AutoTopUpService) Wait() {
	s.inflight.Wait()
}

// BeginEnrollment starts card setup for automatic top-ups of amount.
func (s *AutoTopUpService) BeginEnrollment(ctx context.Context, memberID uuid.UUID, amount int64) (*Enrollment, error) {
	if amount <= 0 {
		return nil, callerErrorf("top-up amount must be positive")
	}
	row, err := s.store.Queries().GetMember(ctx, repository.ToPgUUID(memberID))
	if err != nil {
		return nil, accountLookupErr(MemberAccount(memberID), err)
	}
	member := row.Model()
	if member.AutoTopUpState == domain.AutoTopUpOn {
		return nil, callerErrorf("auto top-up already enabled")
	}

	gctx, cancel := s.settings.gatewayContext(ctx)
	defer cancel()

	customerRef := ""
	if member.GatewayCustomerRef != nil {
		customerRef = *member.GatewayCustomerRef
	}
	if customerRef == "" {
		customerRef, err = s.gateway.CreateCustomer(gctx, memberID.String(), member.Email)
		if err != nil {
			return nil, fmt.Errorf("create gateway customer: %w", err)
		}
	}
	intent, err := s.gateway.CreateSetupIntent(gctx, customerRef, gateway.Metadata{
		TransactionKind: domain.KindAuto,
		MemberID:        memberID.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("create setup intent: %w", err)
	}

	err = s.store.RunInTx(ctx, func(q repository.Querier) error {
		rows, err := q.SetMemberGatewayCustomer(ctx, repository.SetMemberGatewayCustomerParams{
			GatewayCustomerRef: &customerRef,
			ID:                 repository.ToPgUUID(memberID),
		})
		if err != nil {
			return fmt.Errorf("store gateway customer: %w", err)
		}
		if err := requireExactlyOne(rows, "store gateway customer"); err != nil {
			return err
		}
		if err := s.setAmount(ctx, q, memberID, amount); err != nil {
			return err
		}
		_, err = transitionAutoTopUp(ctx, q, s.audit, memberID, domain.AutoTopUpPending, nil, "auto_topup_enrollment_started")
		return err
	})
	if err != nil {
		return nil, err
	}
	return &Enrollment{
		State:        domain.AutoTopUpPending,
		Amount:       amount,
		SetupIntent:  intent.IntentID,
		ClientSecret: intent.ClientSecret,
	}, nil
}

// ConfirmEnrollment switches the policy ON once card setup succeeded and
// tops up straight away if the balance is already below threshold.
func (s *AutoTopUpService) ConfirmEnrollment(ctx context.Context, memberID uuid.UUID, customerRef string) error {
	var prev domain.AutoTopUpState
	err := s.store.RunInTx(ctx, func(q repository.Querier) error {
		if customerRef != "" {
			rows, err := q.SetMemberGatewayCustomer(ctx, repository.SetMemberGatewayCustomerParams{
				GatewayCustomerRef: &customerRef,
				ID:                 repository.ToPgUUID(memberID),
			})
			if err != nil {
				return fmt.Errorf("store gateway customer: %w", err)
			}
			if rows == 0 {
				return accountLookupErr(MemberAccount(memberID), pgx.ErrNoRows)
			}
		}
		var err error
		prev, err = transitionAutoTopUp(ctx, q, s.audit, memberID, domain.AutoTopUpOn, nil, "auto_topup_enabled")
		return err
	})
	if err != nil {
		return err
	}
	if prev == domain.AutoTopUpOn {
		return nil
	}

	s.notifier.Notify(ctx, notify.Notification{
		MemberID: memberID,
		Kind:     notify.KindAutoTopUpEnabled,
		Message:  "Automatic top-up is now active",
	})

	balance, err := s.ledger.MemberBalance(ctx, memberID)
	if err != nil {
		return err
	}
	if balance < s.settings.LowBalanceThreshold {
		s.TopUpAsync(memberID, "enrollment_confirmed")
	}
	return nil
}

// Disable turns automatic top-ups off.
func (s *AutoTopUpService) Disable(ctx context.Context, memberID uuid.UUID, actorID *uuid.UUID) error {
	return s.store.RunInTx(ctx, func(q repository.Querier) error {
		_, err := transitionAutoTopUp(ctx, q, s.audit, memberID, domain.AutoTopUpOff, actorID, "auto_topup_disabled")
		return err
	})
}

// Configure changes the configured top-up amount without touching the state.
func (s *AutoTopUpService) Configure(ctx context.Context, memberID uuid.UUID, amount int64) error {
	if amount <= 0 {
		return callerErrorf("top-up amount must be positive")
	}
	return s.store.RunInTx(ctx, func(q repository.Querier) error {
		if _, err := q.GetMemberForUpdate(ctx, repository.ToPgUUID(memberID)); err != nil {
			return accountLookupErr(MemberAccount(memberID), err)
		}
		return s.setAmount(ctx, q, memberID, amount)
	})
}

func (s *AutoTopUpService) setAmount(ctx context.Context, q repository.Querier, memberID uuid.UUID, amount int64) error {
	rows, err := q.UpdateMemberAutoTopUpAmount(ctx, repository.UpdateMemberAutoTopUpAmountParams{
		AutoTopupAmount: amount,
		ID:              repository.ToPgUUID(memberID),
	})
	if err != nil {
		return fmt.Errorf("update auto top-up amount: %w", err)
	}
	if err := requireExactlyOne(rows, "update auto top-up amount"); err != nil {
		return err
	}
	return s.audit.Write(ctx, q, AuditEntry{
		EntityType: domain.EntityMember,
		EntityID:   memberID.String(),
		Action:     "auto_topup_amount_configured",
		NextState:  domain.NewMoney(amount, s.settings.Currency).String(),
	})
}
