package senders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const graphAPIBase = "https://graph.facebook.com/v22.0"

// WhatsAppSendRequest matches the Meta Graph API messages body.
type WhatsAppSendRequest struct {
	MessagingProduct string       `json:"messaging_product"`
	RecipientType    string       `json:"recipient_type"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             WhatsAppText `json:"text"`
}

type WhatsAppText struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

// WhatsAppClient sends text messages via the Meta Graph API (Cloud API).
type WhatsAppClient struct {
	Token   string
	PhoneID string
	BaseURL string
	Client  *http.Client
}

// httpClient never mutates the receiver; scheduler workers share one
// client value concurrently.
func (c *WhatsAppClient) httpClient() *http.Client {
	if c.Client != nil {
		return c.Client
	}
	return &http.Client{Timeout: 15 * time.Second}
}

func (c *WhatsAppClient) endpoint() string {
	base := c.BaseURL
	if base == "" {
		base = graphAPIBase
	}
	return fmt.Sprintf("%s/%s/messages", base, c.PhoneID)
}

// SendWhatsApp delivers one text message. to is the canonical 10-digit
// local number; the international prefix is added here.
func (c *WhatsAppClient) SendWhatsApp(ctx context.Context, to, text string) error {
	if c.Token == "" {
		return nil
	}
	body := WhatsAppSendRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               "+90" + to,
		Type:             "text",
		Text:             WhatsAppText{PreviewURL: true, Body: text},
	}
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(bodyBytes))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("whatsapp send failed: status %d", resp.StatusCode)
	}
	return nil
}
