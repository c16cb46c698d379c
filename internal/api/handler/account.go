package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ayo6706/clubledger/internal/domain"
	"github.com/ayo6706/clubledger/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type AccountHandler struct {
	accounts *service.AccountService
	ledger   *service.LedgerService
	currency string
}

func NewAccountHandler(accounts *service.AccountService, ledger *service.LedgerService, currency string) *AccountHandler {
	return &AccountHandler{accounts: accounts, ledger: ledger, currency: currency}
}

type balanceResponse struct {
	AccountID uuid.UUID `json:"account_id"`
	Balance   int64     `json:"balance"`
	Display   string    `json:"display"`
}

// CreateMember handles POST /v1/members. Sign-up is public.
func (h *AccountHandler) CreateMember(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	member, err := h.accounts.CreateMember(r.Context(), req.Name, req.Email)
	if err != nil {
		respondServiceError(w, r, "member create", err)
		return
	}
	RespondJSON(w, http.StatusCreated, member)
}

func (h *AccountHandler) GetMember(w http.ResponseWriter, r *http.Request) {
	memberID, ok := h.memberParam(w, r)
	if !ok {
		return
	}
	if _, ok := authorizeMember(w, r, memberID); !ok {
		return
	}

	member, err := h.accounts.GetMember(r.Context(), memberID)
	if err != nil {
		respondServiceError(w, r, "member read", err)
		return
	}
	RespondJSON(w, http.StatusOK, member)
}

func (h *AccountHandler) GetMemberBalance(w http.ResponseWriter, r *http.Request) {
	memberID, ok := h.memberParam(w, r)
	if !ok {
		return
	}
	if _, ok := authorizeMember(w, r, memberID); !ok {
		return
	}

	balance, err := h.ledger.MemberBalance(r.Context(), memberID)
	if err != nil {
		respondServiceError(w, r, "member balance", err)
		return
	}
	RespondJSON(w, http.StatusOK, balanceResponse{AccountID: memberID, Balance: balance, Display: domain.NewMoney(balance, h.currency).String()})
}

// GetMemberStatement lists ledger rows newest first, paged by limit/offset.
func (h *AccountHandler) GetMemberStatement(w http.ResponseWriter, r *http.Request) {
	memberID, ok := h.memberParam(w, r)
	if !ok {
		return
	}
	if _, ok := authorizeMember(w, r, memberID); !ok {
		return
	}

	limit, offset := pageParams(r)
	rows, err := h.ledger.MemberStatement(r.Context(), memberID, limit, offset)
	if err != nil {
		respondServiceError(w, r, "member statement", err)
		return
	}
	RespondJSON(w, http.StatusOK, rows)
}

// VoidMemberTransaction handles POST /v1/members/{id}/transactions/{txID}/void (admin only).
func (h *AccountHandler) VoidMemberTransaction(w http.ResponseWriter, r *http.Request) {
	caller, ok := principal(w, r)
	if !ok {
		return
	}
	if !caller.IsAdmin() {
		RespondError(w, r, http.StatusForbidden, "auth/insufficient-permissions", "insufficient permissions")
		return
	}
	actorID := caller.MemberID
	memberID, ok := h.memberParam(w, r)
	if !ok {
		return
	}
	txID, err := strconv.ParseInt(chi.URLParam(r, "txID"), 10, 64)
	if err != nil || txID <= 0 {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-transaction-id", "Invalid transaction ID")
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	correction, err := h.ledger.VoidMemberTransaction(r.Context(), memberID, txID, &actorID, req.Reason)
	if err != nil {
		respondServiceError(w, r, "transaction void", err)
		return
	}
	RespondJSON(w, http.StatusCreated, correction)
}

// CreateOrganisation handles POST /v1/organisations (admin only).
func (h *AccountHandler) CreateOrganisation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	org, err := h.accounts.CreateOrganisation(r.Context(), req.Name)
	if err != nil {
		respondServiceError(w, r, "organisation create", err)
		return
	}
	RespondJSON(w, http.StatusCreated, org)
}

func (h *AccountHandler) GetOrganisationBalance(w http.ResponseWriter, r *http.Request) {
	orgID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-organisation-id", "Invalid organisation ID")
		return
	}

	balance, err := h.ledger.OrganisationBalance(r.Context(), orgID)
	if err != nil {
		respondServiceError(w, r, "organisation balance", err)
		return
	}
	RespondJSON(w, http.StatusOK, balanceResponse{AccountID: orgID, Balance: balance, Display: domain.NewMoney(balance, h.currency).String()})
}

func (h *AccountHandler) GetOrganisationStatement(w http.ResponseWriter, r *http.Request) {
	orgID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-organisation-id", "Invalid organisation ID")
		return
	}

	limit, offset := pageParams(r)
	rows, err := h.ledger.OrganisationStatement(r.Context(), orgID, limit, offset)
	if err != nil {
		respondServiceError(w, r, "organisation statement", err)
		return
	}
	RespondJSON(w, http.StatusOK, rows)
}

func (h *AccountHandler) memberParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	memberID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-member-id", "Invalid member ID")
		return uuid.Nil, false
	}
	return memberID, true
}

func pageParams(r *http.Request) (int, int) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	return limit, offset
}
