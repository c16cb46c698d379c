package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ayo6706/clubledger/internal/domain"
	"github.com/ayo6706/clubledger/internal/service"
	"github.com/google/uuid"
)

type SettlementHandler struct {
	svc *service.SettlementService
}

func NewSettlementHandler(svc *service.SettlementService) *SettlementHandler {
	return &SettlementHandler{svc: svc}
}

type routeRequest struct {
	Code    string `json:"code"`
	Payload string `json:"payload"`
}

type settlementRequest struct {
	PayerID        string       `json:"payer_id"`
	Amount         string       `json:"amount"`
	Description    string       `json:"description"`
	OrganisationID *string      `json:"organisation_id"`
	MemberID       *string      `json:"member_id"`
	PaymentType    string       `json:"payment_type"`
	Route          routeRequest `json:"route"`
	SuccessURL     string       `json:"success_url"`
	CancelURL      string       `json:"cancel_url"`
}

type batchItemRequest struct {
	Amount         string       `json:"amount"`
	Description    string       `json:"description"`
	OrganisationID *string      `json:"organisation_id"`
	MemberID       *string      `json:"member_id"`
	PaymentType    string       `json:"payment_type"`
	Route          routeRequest `json:"route"`
}

type batchSettlementRequest struct {
	PayerID     string             `json:"payer_id"`
	Description string             `json:"description"`
	Items       []batchItemRequest `json:"items"`
	SuccessURL  string             `json:"success_url"`
	CancelURL   string             `json:"cancel_url"`
}

// counterparts parses the optional organisation and member ids.
func counterparts(orgRaw, memberRaw *string) (*uuid.UUID, *uuid.UUID, error) {
	orgID, err := parseOptionalUUID(orgRaw)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid organisation_id")
	}
	memberID, err := parseOptionalUUID(memberRaw)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid member_id")
	}
	return orgID, memberID, nil
}

func outcomeStatus(outcome service.Outcome) int {
	switch outcome {
	case service.OutcomeCardPaymentRequired:
		return http.StatusAccepted
	case service.OutcomeDeclined:
		return http.StatusPaymentRequired
	default:
		return http.StatusCreated
	}
}

// Settle handles POST /v1/settlements.
func (h *SettlementHandler) Settle(w http.ResponseWriter, r *http.Request) {
	var req settlementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	payerID, err := uuid.Parse(req.PayerID)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-payer-id", "Invalid payer_id")
		return
	}
	if _, ok := authorizeMember(w, r, payerID); !ok {
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-amount", err.Error())
		return
	}
	pt, err := domain.ParsePaymentType(req.PaymentType)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-payment-type", err.Error())
		return
	}
	orgID, memberID, err := counterparts(req.OrganisationID, req.MemberID)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-counterpart", err.Error())
		return
	}

	outcome, err := h.svc.Settle(r.Context(), service.ChargeRequest{
		PayerID:        payerID,
		Amount:         amount,
		Description:    req.Description,
		OrganisationID: orgID,
		MemberID:       memberID,
		PaymentType:    pt,
		Route:          domain.Route{Code: domain.RouteCode(req.Route.Code), Payload: req.Route.Payload},
		SuccessURL:     req.SuccessURL,
		CancelURL:      req.CancelURL,
	})
	if err != nil {
		respondServiceError(w, r, "settlement", err)
		return
	}
	RespondJSON(w, outcomeStatus(outcome.Outcome), outcome)
}

// SettleBatch handles POST /v1/settlements/batch: one payment for many items.
func (h *SettlementHandler) SettleBatch(w http.ResponseWriter, r *http.Request) {
	var req batchSettlementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	payerID, err := uuid.Parse(req.PayerID)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-payer-id", "Invalid payer_id")
		return
	}
	if _, ok := authorizeMember(w, r, payerID); !ok {
		return
	}

	items := make([]service.BatchItem, 0, len(req.Items))
	for i, it := range req.Items {
		amount, err := parseAmount(it.Amount)
		if err != nil {
			RespondError(w, r, http.StatusBadRequest, "request/invalid-amount", fmt.Sprintf("item %d: %v", i, err))
			return
		}
		pt, err := domain.ParsePaymentType(it.PaymentType)
		if err != nil {
			RespondError(w, r, http.StatusBadRequest, "request/invalid-payment-type", fmt.Sprintf("item %d: %v", i, err))
			return
		}
		orgID, memberID, err := counterparts(it.OrganisationID, it.MemberID)
		if err != nil {
			RespondError(w, r, http.StatusBadRequest, "request/invalid-counterpart", fmt.Sprintf("item %d: %v", i, err))
			return
		}
		items = append(items, service.BatchItem{
			Amount:         amount,
			Description:    it.Description,
			OrganisationID: orgID,
			MemberID:       memberID,
			PaymentType:    pt,
			Route:          domain.Route{Code: domain.RouteCode(it.Route.Code), Payload: it.Route.Payload},
		})
	}

	outcome, err := h.svc.SettleBatch(r.Context(), service.BatchChargeRequest{
		PayerID:     payerID,
		Description: req.Description,
		Items:       items,
		SuccessURL:  req.SuccessURL,
		CancelURL:   req.CancelURL,
	})
	if err != nil {
		respondServiceError(w, r, "batch settlement", err)
		return
	}
	RespondJSON(w, outcomeStatus(outcome.Outcome), outcome)
}
