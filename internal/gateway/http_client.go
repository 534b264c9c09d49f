package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// HTTPAdapter talks to the payment provider's internal authorization API.
type HTTPAdapter struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *zap.Logger
}

func NewHTTPAdapter(baseURL, apiKey string, timeout time.Duration, log *zap.Logger) *HTTPAdapter {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPAdapter{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

func (a *HTTPAdapter) Authorize(ctx context.Context, req AuthorizeRequest) (*AuthorizeResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v1/authorize", a.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Api-Key", a.apiKey)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("payment gateway unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("payment gateway returned %d: %s", resp.StatusCode, string(b))
	}

	var result AuthorizeResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	if result.TransactionRef == "" {
		return nil, fmt.Errorf("payment gateway response missing transaction_ref")
	}
	return &result, nil
}

// callbackPayload is the shape the provider POSTs to our webhook endpoint.
type callbackPayload struct {
	TransactionRef string `json:"transaction_ref"`
	Status         string `json:"status"` // success / failure
	FailureReason  string `json:"failure_reason,omitempty"`
}

func (a *HTTPAdapter) ParseCallback(payload []byte) (*CallbackResult, error) {
	var p callbackPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("malformed callback payload: %w", err)
	}
	if p.TransactionRef == "" {
		return nil, fmt.Errorf("callback payload missing transaction_ref")
	}
	switch p.Status {
	case "success":
		return &CallbackResult{TransactionRef: p.TransactionRef, Succeeded: true}, nil
	case "failure":
		reason := p.FailureReason
		if reason == "" {
			reason = "authorization declined"
		}
		return &CallbackResult{TransactionRef: p.TransactionRef, Succeeded: false, FailureReason: reason}, nil
	default:
		return nil, fmt.Errorf("callback payload has unknown status %q", p.Status)
	}
}
