package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

var (
	ErrIntentNotFound = errors.New("payment intent not found")
	ErrIntentUnpaid   = errors.New("payment intent is not paid")
)

// Intent is the provider's view of a payment intent.
type Intent struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Amount int64  `json:"amount"` // minor units
}

// Verifier checks a caller-supplied payment reference against the payment
// provider before the deposit is marked paid. The reference arrives from the
// patient's browser and is never trusted at face value.
type Verifier interface {
	VerifyIntent(ctx context.Context, intentID string) (*Intent, error)
}

type HTTPVerifier struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPVerifier(baseURL, apiKey string) *HTTPVerifier {
	return &HTTPVerifier{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (v *HTTPVerifier) VerifyIntent(ctx context.Context, intentID string) (*Intent, error) {
	reqURL := fmt.Sprintf("%s/v1/payment_intents/%s", v.baseURL, url.PathEscape(intentID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+v.apiKey)

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch payment intent: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrIntentNotFound
	}
	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("payment provider returned %d: %s", resp.StatusCode, string(snippet))
	}

	var intent Intent
	if err := json.NewDecoder(resp.Body).Decode(&intent); err != nil {
		return nil, fmt.Errorf("decode payment intent: %w", err)
	}

	if intent.Status != "succeeded" {
		return nil, fmt.Errorf("%w: status %q", ErrIntentUnpaid, intent.Status)
	}

	return &intent, nil
}
