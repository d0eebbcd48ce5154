package senders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const resendAPI = "https://api.resend.com/emails"

// ResendSendRequest matches the Resend API v1 send body.
type ResendSendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text,omitempty"`
	HTML    string   `json:"html,omitempty"`
}

// ResendClient sends transactional email via the Resend API. An empty API
// key makes every call a no-op, which keeps dev environments quiet.
type ResendClient struct {
	APIKey   string
	MailFrom string
	BaseURL  string
	Client   *http.Client
}

func (c *ResendClient) from() string {
	if c.MailFrom != "" {
		return c.MailFrom
	}
	return "noreply@davetjet.com"
}

// httpClient never mutates the receiver; scheduler workers share one
// client value concurrently.
func (c *ResendClient) httpClient() *http.Client {
	if c.Client != nil {
		return c.Client
	}
	return &http.Client{Timeout: 15 * time.Second}
}

func (c *ResendClient) endpoint() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return resendAPI
}

// SendEmail delivers one email per recipient so addresses stay private
// (BCC semantics without a shared envelope).
func (c *ResendClient) SendEmail(ctx context.Context, recipients []string, subject, text, html string) error {
	if c.APIKey == "" {
		return nil
	}
	for _, to := range recipients {
		if err := c.send(ctx, to, subject, text, html); err != nil {
			return err
		}
	}
	return nil
}

func (c *ResendClient) send(ctx context.Context, to, subject, text, html string) error {
	body := ResendSendRequest{
		From:    c.from(),
		To:      []string{to},
		Subject: subject,
		Text:    text,
		HTML:    html,
	}
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(bodyBytes))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("resend send failed: status %d", resp.StatusCode)
	}
	return nil
}
