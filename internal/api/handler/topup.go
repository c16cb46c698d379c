package handler

import (
	"encoding/json"
	"net/http"

	"github.com/ayo6706/clubledger/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// AutoTopUpHandler manages a member's automatic top-up enrollment.
type AutoTopUpHandler struct {
	svc *service.AutoTopUpService
}

func NewAutoTopUpHandler(svc *service.AutoTopUpService) *AutoTopUpHandler {
	return &AutoTopUpHandler{svc: svc}
}

type topUpAmountRequest struct {
	Amount string `json:"amount"`
}

func (h *AutoTopUpHandler) decode(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, int64, bool) {
	memberID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-member-id", "Invalid member ID")
		return uuid.Nil, uuid.Nil, 0, false
	}
	actorID, ok := authorizeMember(w, r, memberID)
	if !ok {
		return uuid.Nil, uuid.Nil, 0, false
	}
	if r.Method == http.MethodDelete {
		return memberID, actorID, 0, true
	}

	var req topUpAmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return uuid.Nil, uuid.Nil, 0, false
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-amount", err.Error())
		return uuid.Nil, uuid.Nil, 0, false
	}
	return memberID, actorID, amount, true
}

// Enroll handles POST /v1/members/{id}/auto-topup. The returned client secret
// completes card setup; the policy turns ON when the gateway confirms it.
func (h *AutoTopUpHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	memberID, _, amount, ok := h.decode(w, r)
	if !ok {
		return
	}
	enrollment, err := h.svc.BeginEnrollment(r.Context(), memberID, amount)
	if err != nil {
		respondServiceError(w, r, "auto-topup enrollment", err)
		return
	}
	RespondJSON(w, http.StatusAccepted, enrollment)
}

// Configure handles PUT /v1/members/{id}/auto-topup.
func (h *AutoTopUpHandler) Configure(w http.ResponseWriter, r *http.Request) {
	memberID, _, amount, ok := h.decode(w, r)
	if !ok {
		return
	}
	if err := h.svc.Configure(r.Context(), memberID, amount); err != nil {
		respondServiceError(w, r, "auto-topup configure", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Disable handles DELETE /v1/members/{id}/auto-topup.
func (h *AutoTopUpHandler) Disable(w http.ResponseWriter, r *http.Request) {
	memberID, actorID, _, ok := h.decode(w, r)
	if !ok {
		return
	}
	if err := h.svc.Disable(r.Context(), memberID, &actorID); err != nil {
		respondServiceError(w, r, "auto-topup disable", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
