// Package email sends transactional emails through Resend REST API.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rookgm/storefront/internal/models"
)

const (
	defaultBaseURL = "https://api.resend.com"
	defaultTimeout = 10 * time.Second
)

// Message is email to send
type Message struct {
	To      []string
	Subject string
	HTML    string
}

// Client is Resend API client
type Client struct {
	client  *http.Client
	baseURL string
	apiKey  string
	from    string
}

// NewClient creates new Client instance, empty baseURL means Resend API
func NewClient(apiKey, from, baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		client: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		apiKey:  apiKey,
		from:    from,
	}
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type errorResponse struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// Send sends message
// 200 — письмо принято;
// 4xx — письмо отклонено;
// 5xx — внутренняя ошибка сервиса.
func (c *Client) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(sendRequest{
		From:    c.from,
		To:      msg.To,
		Subject: msg.Subject,
		HTML:    msg.HTML,
	})
	if err != nil {
		return err
	}

	// POST /emails
	u, err := url.JoinPath(c.baseURL, "emails")
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("%w: %w", models.ErrEmailUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		errResp := errorResponse{}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		_ = json.Unmarshal(data, &errResp)
		return fmt.Errorf("%w: status %d: %s", models.ErrEmailUnavailable, resp.StatusCode, errResp.Message)
	}

	return nil
}
