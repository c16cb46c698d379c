package handler

import (
	"net/http"

	"github.com/ayo6706/clubledger/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type PendingChargeHandler struct {
	svc *service.PendingChargeService
}

func NewPendingChargeHandler(svc *service.PendingChargeService) *PendingChargeHandler {
	return &PendingChargeHandler{svc: svc}
}

// Get handles GET /v1/pending-charges/{id}. Clients poll it after a card payment.
func (h *PendingChargeHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller, ok := principal(w, r)
	if !ok {
		return
	}
	chargeID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-pending-charge-id", "Invalid pending charge ID")
		return
	}

	charge, err := h.svc.Get(r.Context(), chargeID)
	if err != nil {
		respondServiceError(w, r, "pending charge read", err)
		return
	}
	if !caller.CanActFor(charge.MemberID) {
		// Other members' charges read as missing.
		RespondError(w, r, http.StatusNotFound, "pending-charge/not-found", "pending charge not found")
		return
	}
	RespondJSON(w, http.StatusOK, charge)
}
