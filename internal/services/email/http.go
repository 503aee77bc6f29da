// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package email

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultHTTPTimeout = 10 * time.Second

type httpMailRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

// HTTPMailer posts messages as JSON to a transactional email API.
type HTTPMailer struct {
	client   *resty.Client
	endpoint string
	apiKey   string
	from     string
}

// NewHTTPMailer creates an HTTP mailer with its own resty client.
func NewHTTPMailer(endpoint, apiKey, from string, timeout time.Duration) (*HTTPMailer, error) {
	client := resty.New()
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	client.SetTimeout(timeout)
	return NewHTTPMailerWithClient(endpoint, apiKey, from, client)
}

// NewHTTPMailerWithClient creates an HTTP mailer using client.
// Resty's own retries are disabled, retrying is up to the caller.
func NewHTTPMailerWithClient(endpoint, apiKey, from string, client *resty.Client) (*HTTPMailer, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("mail endpoint is required")
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("invalid mail endpoint: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultHTTPTimeout)
	}
	client.SetRetryCount(0)

	return &HTTPMailer{client: client, endpoint: endpoint, apiKey: apiKey, from: from}, nil
}

// Send posts msg to the provider.
func (m *HTTPMailer) Send(ctx context.Context, msg Message) error {
	req := m.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(httpMailRequest{
			From:    m.from,
			To:      msg.To,
			Subject: msg.Subject,
			Text:    msg.Body,
		})
	if m.apiKey != "" {
		req.SetAuthToken(m.apiKey)
	}

	resp, err := req.Post(m.endpoint)
	if err != nil {
		return &ProviderError{
			Message:   "provider request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}

	status := resp.StatusCode()
	if status >= http.StatusOK && status < http.StatusMultipleChoices {
		return nil
	}

	body := strings.TrimSpace(resp.String())
	message := fmt.Sprintf("provider returned status %d", status)
	if body != "" {
		message += ": " + body
	}
	return &ProviderError{
		StatusCode: status,
		Message:    message,
		Transient:  isTransientHTTPStatus(status),
	}
}

func isTransientHTTPStatus(status int) bool {
	return status == http.StatusTooManyRequests || (status >= http.StatusInternalServerError && status <= 599)
}
