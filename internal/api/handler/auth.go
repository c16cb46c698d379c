package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ayo6706/clubledger/internal/api/middleware"
	"github.com/ayo6706/clubledger/internal/service"
	"github.com/google/uuid"
)

const tokenTTL = 24 * time.Hour

type AuthHandler struct {
	accounts *service.AccountService
}

func NewAuthHandler(accounts *service.AccountService) *AuthHandler {
	return &AuthHandler{accounts: accounts}
}

// Login issues a member token. Admin tokens are minted outside this service.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MemberID string `json:"member_id"` // Mock login by member id
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	memberID, err := uuid.Parse(req.MemberID)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-member-id", "Invalid member_id")
		return
	}

	if _, err := h.accounts.GetMember(r.Context(), memberID); err != nil {
		respondServiceError(w, r, "login", err)
		return
	}

	tokenString, err := middleware.IssueToken(middleware.Principal{MemberID: memberID, Role: middleware.RoleMember}, tokenTTL)
	if err != nil {
		RespondError(w, r, http.StatusInternalServerError, "auth/token-signing-failed", "Failed to sign token")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]string{
		"token": tokenString,
	})
}
