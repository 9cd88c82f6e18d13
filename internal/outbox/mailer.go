package outbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultProviderURL = "https://api.resend.com/emails"

// HTTPMailer delivers email through a Resend-style JSON API.
type HTTPMailer struct {
	client  *http.Client
	baseURL string
	apiKey  string
	from    string
}

// MailerOption configures an HTTPMailer.
type MailerOption func(*HTTPMailer)

// WithProviderURL overrides the provider endpoint.
func WithProviderURL(url string) MailerOption {
	return func(m *HTTPMailer) {
		if url != "" {
			m.baseURL = url
		}
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) MailerOption {
	return func(m *HTTPMailer) {
		if client != nil {
			m.client = client
		}
	}
}

// NewHTTPMailer constructs a mailer for the given API key and sender.
func NewHTTPMailer(apiKey, from string, opts ...MailerOption) (*HTTPMailer, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("mail provider api key is required")
	}
	from = strings.TrimSpace(from)
	if from == "" {
		return nil, errors.New("mail sender address is required")
	}
	m := &HTTPMailer{
		client:  &http.Client{Timeout: 15 * time.Second},
		baseURL: defaultProviderURL,
		apiKey:  apiKey,
		from:    from,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

type sendRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

type sendError struct {
	Message string `json:"message"`
}

// Send posts one email to the provider. Non-2xx responses surface the
// provider's message so bounce classification can see it.
func (m *HTTPMailer) Send(ctx context.Context, to, subject, html string) error {
	body, err := json.Marshal(sendRequest{From: m.from, To: to, Subject: subject, HTML: html})
	if err != nil {
		return fmt.Errorf("encode send request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var provider sendError
	if err := json.Unmarshal(raw, &provider); err == nil && provider.Message != "" {
		return fmt.Errorf("provider rejected email (%d): %s", resp.StatusCode, provider.Message)
	}
	return fmt.Errorf("provider rejected email (%d)", resp.StatusCode)
}
