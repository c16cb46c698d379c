package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/ayo6706/clubledger/internal/domain"
	"github.com/ayo6706/clubledger/internal/repository"
	"github.com/google/uuid"
)

var chargeTransitions = map[string]map[string]struct{}{
	domain.ChargeStatusCreated: {
		domain.ChargeStatusIntentIssued:     {},
		domain.ChargeStatusComplete:         {},
		domain.ChargeStatusDuplicateIgnored: {},
	},
	domain.ChargeStatusIntentIssued: {
		domain.ChargeStatusComplete:         {},
		domain.ChargeStatusDuplicateIgnored: {},
	},
	domain.ChargeStatusComplete:         {},
	domain.ChargeStatusDuplicateIgnored: {},
}

var autoTopUpTransitions = map[string]map[string]struct{}{
	string(domain.AutoTopUpOff): {
		string(domain.AutoTopUpPending): {},
		string(domain.AutoTopUpOn):      {},
	},
	string(domain.AutoTopUpPending): {
		string(domain.AutoTopUpOn):  {},
		string(domain.AutoTopUpOff): {},
	},
	string(domain.AutoTopUpOn): {
		string(domain.AutoTopUpOff): {},
	},
}

func normalizeState(state string) string {
	return strings.ToUpper(strings.TrimSpace(state))
}

func canTransition(table map[string]map[string]struct{}, current, next string) bool {
	nextStates, ok := table[normalizeState(current)]
	if !ok {
		return false
	}
	_, ok = nextStates[normalizeState(next)]
	return ok
}

// transitionChargeState moves a pending charge along its state machine under
// a row lock. Completion goes through completeCharge, which also records the
// gateway reference.
func transitionChargeState(ctx context.Context, qtx repository.Querier, audit *AuditService, chargeID uuid.UUID, nextState, action string, metadata map[string]any) error {
	charge, err := qtx.GetPendingChargeForUpdate(ctx, repository.ToPgUUID(chargeID))
	if err != nil {
		return fmt.Errorf("get current charge state: %w", err)
	}

	if normalizeState(charge.Status) == normalizeState(nextState) {
		return nil
	}
	if !canTransition(chargeTransitions, charge.Status, nextState) {
		return fmt.Errorf("invalid charge state transition: %s -> %s", charge.Status, nextState)
	}

	rows, err := qtx.UpdatePendingChargeStatus(ctx, repository.UpdatePendingChargeStatusParams{
		Status: nextState,
		ID:     repository.ToPgUUID(chargeID),
	})
	if err != nil {
		return fmt.Errorf("update charge state: %w", err)
	}
	if err := requireExactlyOne(rows, "update charge state"); err != nil {
		return err
	}

	return audit.Write(ctx, qtx, AuditEntry{
		EntityType: domain.EntityPendingCharge,
		EntityID:   chargeID.String(),
		Action:     action,
		PrevState:  charge.Status,
		NextState:  nextState,
		Metadata:   metadata,
	})
}

// completeCharge is the compare-and-set from CREATED/INTENT_ISSUED to COMPLETE.
func completeCharge(ctx context.Context, qtx repository.Querier, audit *AuditService, charge repository.PendingGatewayCharge, gatewayChargeID string) error {
	if !canTransition(chargeTransitions, charge.Status, domain.ChargeStatusComplete) {
		return fmt.Errorf("invalid charge state transition: %s -> %s", charge.Status, domain.ChargeStatusComplete)
	}
	rows, err := qtx.CompletePendingCharge(ctx, repository.CompletePendingChargeParams{
		GatewayChargeID: &gatewayChargeID,
		ID:              charge.ID,
	})
	if err != nil {
		return fmt.Errorf("complete pending charge: %w", err)
	}
	if err := requireExactlyOne(rows, "complete pending charge"); err != nil {
		return err
	}
	return audit.Write(ctx, qtx, AuditEntry{
		EntityType: domain.EntityPendingCharge,
		EntityID:   repository.FromPgUUID(charge.ID).String(),
		Action:     "gateway_confirmed",
		PrevState:  charge.Status,
		NextState:  domain.ChargeStatusComplete,
		Metadata:   map[string]any{"gateway_charge_id": gatewayChargeID},
	})
}

// transitionAutoTopUp moves a member's enrollment flag. It returns the
// previous state; an unchanged state is a no-op.
func transitionAutoTopUp(ctx context.Context, qtx repository.Querier, audit *AuditService, memberID uuid.UUID, next domain.AutoTopUpState, actorID *uuid.UUID, action string) (domain.AutoTopUpState, error) {
	member, err := qtx.GetMemberForUpdate(ctx, repository.ToPgUUID(memberID))
	if err != nil {
		return "", accountLookupErr(MemberAccount(memberID), err)
	}
	current := domain.AutoTopUpState(member.AutoTopupState)
	if current == next {
		return current, nil
	}
	if !canTransition(autoTopUpTransitions, string(current), string(next)) {
		return current, fmt.Errorf("%w: %s -> %s", ErrInvalidAutoTopUpTransition, current, next)
	}

	rows, err := qtx.UpdateMemberAutoTopUpState(ctx, repository.UpdateMemberAutoTopUpStateParams{
		AutoTopupState: string(next),
		ID:             repository.ToPgUUID(memberID),
	})
	if err != nil {
		return current, fmt.Errorf("update auto top-up state: %w", err)
	}
	if err := requireExactlyOne(rows, "update auto top-up state"); err != nil {
		return current, err
	}

	return current, audit.Write(ctx, qtx, AuditEntry{
		EntityType: domain.EntityMember,
		EntityID:   memberID.String(),
		ActorID:    actorID,
		Action:     action,
		PrevState:  string(current),
		NextState:  string(next),
	})
}
