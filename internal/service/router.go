package service

import (
	"context"
	"sync"

	"github.com/ayo6706/clubledger/internal/domain"
	"go.uber.org/zap"
)

// Callback is how a domain module learns that a charge it requested settled
// or failed. payload is whatever the module attached when it asked to settle.
type Callback func(ctx context.Context, payload string, status domain.SettlementStatus, chargeRef string) error

// Callbacks has one field per route code.
type Callbacks struct {
	Generic        Callback
	EventEntry     Callback
	MemberTransfer Callback
	Batch          Callback
}

// CallbackRouter dispatches settlement results to the owning domain module.
type CallbackRouter struct {
	mu        sync.RWMutex
	callbacks Callbacks
}

func NewCallbackRouter(callbacks Callbacks) *CallbackRouter {
	return &CallbackRouter{callbacks: callbacks}
}

// BindBatch installs the batch completion handler. The settlement service
// owns it, so it is bound after construction.
func (r *CallbackRouter) BindBatch(cb Callback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks.Batch = cb
}

// Route never fails the caller: unknown codes and callback errors or panics are logged.
func (r *CallbackRouter) Route(ctx context.Context, code domain.RouteCode, payload string, status domain.SettlementStatus, chargeRef string) {
	r.mu.RLock()
	var cb Callback
	switch code {
	case domain.RouteGeneric:
		cb = r.callbacks.Generic
	case domain.RouteEventEntry:
		cb = r.callbacks.EventEntry
	case domain.RouteMemberTransfer:
		cb = r.callbacks.MemberTransfer
	case domain.RouteBatch:
		cb = r.callbacks.Batch
	default:
		r.mu.RUnlock()
		zap.L().Error("CRITICAL: unknown route code, settlement result dropped",
			zap.String("route_code", string(code)),
			zap.String("status", string(status)),
			zap.String("charge_ref", chargeRef))
		return
	}
	r.mu.RUnlock()

	if cb == nil {
		zap.L().Debug("no callback bound for route", zap.String("route_code", string(code)))
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			zap.L().Error("settlement callback panicked",
				zap.String("route_code", string(code)),
				zap.String("charge_ref", chargeRef),
				zap.Any("panic", rec))
		}
	}()
	if err := cb(ctx, payload, status, chargeRef); err != nil {
		zap.L().Error("settlement callback failed",
			zap.String("route_code", string(code)),
			zap.String("status", string(status)),
			zap.String("charge_ref", chargeRef),
			zap.Error(err))
	}
}

// LogCallback is bound for domain modules that run out of process and poll
// their own state; it records the result in the application log.
func LogCallback(module string) Callback {
	return func(_ context.Context, payload string, status domain.SettlementStatus, chargeRef string) error {
		zap.L().Info("settlement result",
			zap.String("module", module),
			zap.String("status", string(status)),
			zap.String("charge_ref", chargeRef),
			zap.String("payload", payload))
		return nil
	}
}
