package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/ayo6706/clubledger/internal/service"
	"go.uber.org/zap"
)

const (
	maxWebhookBody  = 1 << 20
	signatureHeader = "X-Webhook-Signature"
	outcomeHeader   = "X-Webhook-Outcome"
)

// WebhookHandler receives payment gateway events.
type WebhookHandler struct {
	webhookSvc *service.WebhookService
}

func NewWebhookHandler(webhookSvc *service.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhookSvc: webhookSvc}
}

// HandleGatewayWebhook handles POST /v1/webhooks/gateway.
//
// The status code is the redelivery signal: 200 for every acknowledged event
// (applied, duplicate, ignored or malformed), 401 for a bad signature, 413
// for an oversized body and 500 for transient failures the gateway should
// redeliver.
func (h *WebhookHandler) HandleGatewayWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			zap.L().Error("CRITICAL: gateway webhook exceeds body limit", zap.Int64("limit", tooLarge.Limit))
			RespondError(w, r, http.StatusRequestEntityTooLarge, "webhook/body-too-large", "webhook body too large")
			return
		}
		zap.L().Error("read webhook body failed", zap.Error(err))
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Failed to read request body")
		return
	}

	ack, err := h.webhookSvc.HandleGatewayWebhook(r.Context(), body, r.Header.Get(signatureHeader))
	switch {
	case errors.Is(err, service.ErrInvalidSignature):
		RespondError(w, r, http.StatusUnauthorized, "webhook/invalid-signature", "Invalid signature")
		return
	case err != nil:
		zap.L().Error("process gateway webhook failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "webhook/processing-failed", "webhook processing failed, redeliver")
		return
	}

	w.Header().Set(outcomeHeader, string(ack.Outcome))
	RespondJSON(w, http.StatusOK, ack)
}
