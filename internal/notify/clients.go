package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// The clinic's providers all speak plain JSON-over-HTTP, so the senders here
// are small hand-rolled clients rather than vendor SDKs.

type EmailAPIClient struct {
	baseURL string
	apiKey  string
	from    string
	client  *http.Client
}

func NewEmailAPIClient(baseURL, apiKey, from string) *EmailAPIClient {
	return &EmailAPIClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		from:    from,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *EmailAPIClient) SendEmail(ctx context.Context, to, subject, body string) error {
	payload := map[string]any{
		"from":    c.from,
		"to":      []string{to},
		"subject": subject,
		"text":    body,
	}

	return postJSON(ctx, c.client, c.baseURL+"/emails", c.apiKey, payload)
}

type ChatWebhookClient struct {
	webhookURL string
	client     *http.Client
}

func NewChatWebhookClient(webhookURL string) *ChatWebhookClient {
	return &ChatWebhookClient{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *ChatWebhookClient) SendMessage(ctx context.Context, text string) error {
	return postJSON(ctx, c.client, c.webhookURL, "", map[string]any{"text": text})
}

type SMSAPIClient struct {
	baseURL string
	apiKey  string
	sender  string
	client  *http.Client
}

func NewSMSAPIClient(baseURL, apiKey, sender string) *SMSAPIClient {
	return &SMSAPIClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		sender:  sender,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *SMSAPIClient) SendSMS(ctx context.Context, to, body string) error {
	payload := map[string]any{
		"from":    c.sender,
		"to":      to,
		"message": body,
	}

	return postJSON(ctx, c.client, c.baseURL+"/sms.do", c.apiKey, payload)
}

func postJSON(ctx context.Context, client *http.Client, url, apiKey string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("provider returned %d: %s", resp.StatusCode, string(snippet))
	}

	return nil
}
