package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

const defaultTimeout = 10 * time.Second

// HTTPClient talks JSON to the gateway REST API with a bearer key.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPClient creates a client; timeout <= 0 falls back to 10s.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal gateway request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build gateway request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode == http.StatusPaymentRequired:
		var apiErr apiError
		_ = json.Unmarshal(raw, &apiErr)
		return &DeclineError{Code: apiErr.Code, Message: apiErr.Message}
	case resp.StatusCode >= 400:
		var apiErr apiError
		_ = json.Unmarshal(raw, &apiErr)
		return fmt.Errorf("gateway rejected %s %s: status %d: %s", method, path, resp.StatusCode, apiErr.Message)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode gateway response: %w", err)
	}
	return nil
}

func (c *HTTPClient) CreateChargeIntent(ctx context.Context, req ChargeIntentRequest) (*Intent, error) {
	var intent Intent
	if err := c.do(ctx, http.MethodPost, "/v1/charge_intents", req, &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}

func (c *HTTPClient) CreateSetupIntent(ctx context.Context, customerRef string, md Metadata) (*Intent, error) {
	payload := struct {
		CustomerRef string   `json:"customer_ref"`
		Metadata    Metadata `json:"metadata"`
	}{customerRef, md}
	var intent Intent
	if err := c.do(ctx, http.MethodPost, "/v1/setup_intents", payload, &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}

func (c *HTTPClient) CreateCustomer(ctx context.Context, memberID, email string) (string, error) {
	payload := struct {
		ExternalID string `json:"external_id"`
		Email      string `json:"email"`
	}{memberID, email}
	var out struct {
		CustomerRef string `json:"customer_ref"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/customers", payload, &out); err != nil {
		return "", err
	}
	return out.CustomerRef, nil
}

// ListPaymentMethods is a read, so transient failures are retried a few times.
func (c *HTTPClient) ListPaymentMethods(ctx context.Context, customerRef string) ([]PaymentMethod, error) {
	var out struct {
		Data []PaymentMethod `json:"data"`
	}
	path := "/v1/customers/" + url.PathEscape(customerRef) + "/payment_methods"
	backoff := retry.WithMaxRetries(2, retry.NewExponential(100*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := c.do(ctx, http.MethodGet, path, nil, &out)
		if errors.Is(err, ErrUnavailable) {
			zap.L().Warn("list payment methods failed, retrying", zap.String("customer_ref", customerRef), zap.Error(err))
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return out.Data, nil
}

// CreateOffSessionCharge is never retried here; a second attempt could double charge.
func (c *HTTPClient) CreateOffSessionCharge(ctx context.Context, req OffSessionChargeRequest) (*Charge, error) {
	var charge Charge
	if err := c.do(ctx, http.MethodPost, "/v1/charges", req, &charge); err != nil {
		return nil, err
	}
	return &charge, nil
}
