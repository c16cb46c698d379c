package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ayo6706/clubledger/internal/api/middleware"
	"github.com/ayo6706/clubledger/internal/api/problem"
	"github.com/ayo6706/clubledger/internal/domain"
	"github.com/ayo6706/clubledger/internal/gateway"
	"github.com/ayo6706/clubledger/internal/models"
	"github.com/ayo6706/clubledger/internal/repository"
	"github.com/ayo6706/clubledger/internal/service"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// RespondJSON writes a JSON response.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// RespondError writes an error response.
func RespondError(w http.ResponseWriter, r *http.Request, status int, problemType, message string) {
	if problemType != "" && problemType != "about:blank" && !strings.HasPrefix(problemType, "http") {
		problemType = problem.Type(problemType)
	}
	problem.Write(w, r, status, problemType, http.StatusText(status), message)
}

// principal returns the authenticated caller, writing a 401 when there is none.
func principal(w http.ResponseWriter, r *http.Request) (middleware.Principal, bool) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
	}
	return p, ok
}

// authorizeMember checks the caller may act for memberID. It writes the
// response itself and returns false when they may not.
func authorizeMember(w http.ResponseWriter, r *http.Request, memberID uuid.UUID) (uuid.UUID, bool) {
	p, ok := principal(w, r)
	if !ok {
		return uuid.Nil, false
	}
	if !p.CanActFor(memberID) {
		RespondError(w, r, http.StatusForbidden, "auth/insufficient-permissions", "insufficient permissions")
		return uuid.Nil, false
	}
	return p.MemberID, true
}

func parseAmount(raw string) (int64, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, errors.New("amount is required")
	}
	return domain.ParseAmount(raw)
}

func parseOptionalUUID(raw *string) (*uuid.UUID, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	id, err := uuid.Parse(strings.TrimSpace(*raw))
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// respondServiceError maps service errors onto problem responses. op names
// the failed operation in logs and in the fallback problem type.
func respondServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var callerErr *service.CallerError
	var decline *gateway.DeclineError
	switch {
	case errors.As(err, &callerErr):
		RespondError(w, r, http.StatusBadRequest, "request/invalid", callerErr.Reason)
	case errors.As(err, &decline):
		RespondError(w, r, http.StatusPaymentRequired, "payment/declined", decline.Error())
	case errors.Is(err, models.ErrMemberNotFound):
		RespondError(w, r, http.StatusNotFound, "member/not-found", "member not found")
	case errors.Is(err, models.ErrOrganisationNotFound):
		RespondError(w, r, http.StatusNotFound, "organisation/not-found", "organisation not found")
	case errors.Is(err, service.ErrPendingChargeNotFound):
		RespondError(w, r, http.StatusNotFound, "pending-charge/not-found", "pending charge not found")
	case errors.Is(err, service.ErrTransactionNotFound):
		RespondError(w, r, http.StatusNotFound, "ledger/transaction-not-found", "ledger transaction not found")
	case errors.Is(err, service.ErrAlreadyVoided):
		RespondError(w, r, http.StatusConflict, "ledger/already-voided", "ledger transaction already voided")
	case errors.Is(err, service.ErrNotVoidable):
		RespondError(w, r, http.StatusUnprocessableEntity, "ledger/not-voidable", "ledger transaction cannot be voided")
	case errors.Is(err, models.ErrInsufficientFunds):
		RespondError(w, r, http.StatusConflict, "ledger/insufficient-funds", "insufficient funds")
	case errors.Is(err, service.ErrEmailTaken):
		RespondError(w, r, http.StatusConflict, "member/email-taken", "email already registered")
	case errors.Is(err, service.ErrInvalidAutoTopUpTransition):
		RespondError(w, r, http.StatusConflict, "auto-topup/invalid-transition", "auto top-up cannot change to that state")
	case errors.Is(err, service.ErrBalanceContention):
		RespondError(w, r, http.StatusConflict, "settlement/contention", "balance changed concurrently, retry")
	case errors.Is(err, service.ErrGatewayUnavailable):
		zap.L().Warn(op+" failed: gateway unavailable", zap.Error(err))
		RespondError(w, r, http.StatusServiceUnavailable, "gateway/unavailable", "payment gateway unavailable, retry later")
	default:
		if status, pType, msg, ok := mapDBError(err); ok {
			RespondError(w, r, status, pType, msg)
			return
		}
		zap.L().Error(op+" failed", zap.Error(err), zap.String("path", r.URL.Path))
		RespondError(w, r, http.StatusInternalServerError, strings.ReplaceAll(op, " ", "-")+"-failed", "internal error")
	}
}

func mapDBError(err error) (status int, problemType, message string, ok bool) {
	if constraint, found := repository.ViolatedConstraint(err); found {
		return http.StatusConflict, "db/unique-violation", "resource already exists (" + constraint + ")", true
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return 0, "", "", false
	}

	switch pgErr.Code {
	case "23505": // unique_violation
		return http.StatusConflict, "db/unique-violation", "resource already exists", true
	case "23503": // foreign_key_violation
		return http.StatusBadRequest, "db/foreign-key-violation", "invalid reference", true
	case "23514": // check_violation
		return http.StatusBadRequest, "db/check-violation", "request violates data constraints", true
	case "23502": // not_null_violation
		return http.StatusBadRequest, "db/not-null-violation", "missing required field", true
	case "55P03", "40001", "40P01": // lock_not_available, serialization_failure, deadlock_detected
		return http.StatusServiceUnavailable, "db/contention", "account is busy, retry with the same Idempotency-Key", true
	default:
		return 0, "", "", false
	}
}
