package service

import (
	"errors"
	"fmt"

	"github.com/ayo6706/clubledger/internal/gateway"
)

var (
	// ErrGatewayUnavailable is retryable; nothing was committed.
	ErrGatewayUnavailable = gateway.ErrUnavailable

	ErrInvalidSignature           = errors.New("invalid signature")
	ErrPendingChargeNotFound      = errors.New("pending charge not found")
	ErrAutoTopUpDisabled          = errors.New("auto top-up is not enabled")
	ErrNothingToTopUp             = errors.New("computed top-up amount is zero")
	ErrInvalidAutoTopUpTransition = errors.New("invalid auto top-up transition")
	ErrBalanceContention          = errors.New("balance changed concurrently, retry")
)

// CallerError means the request itself is wrong. Nothing was written.
type CallerError struct {
	Reason string
}

func (e *CallerError) Error() string {
	return "invalid request: " + e.Reason
}

func callerErrorf(format string, args ...any) *CallerError {
	return &CallerError{Reason: fmt.Sprintf(format, args...)}
}

// IsCallerError reports whether err is a *CallerError.
func IsCallerError(err error) bool {
	var ce *CallerError
	return errors.As(err, &ce)
}
