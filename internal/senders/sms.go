package senders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const netgsmAPI = "https://api.netgsm.com.tr/sms/rest/v2/send"

// NetgsmMessage is one entry in a batch send.
type NetgsmMessage struct {
	Msg string `json:"msg"`
	No  string `json:"no"`
}

// NetgsmSendRequest matches the Netgsm REST v2 /send body.
type NetgsmSendRequest struct {
	MsgHeader   string          `json:"msgheader"`
	Messages    []NetgsmMessage `json:"messages"`
	Encoding    string          `json:"encoding"`
	IYSFilter   string          `json:"iysfilter"`
	PartnerCode string          `json:"partnercode"`
}

// NetgsmClient sends batch SMS through the Netgsm gateway (basic auth).
// Numbers must already be in canonical 10-digit 5XXXXXXXXX form.
type NetgsmClient struct {
	Username string
	Password string
	// AppName is the approved originator header; falls back to Username.
	AppName string
	BaseURL string
	Client  *http.Client
}

func (c *NetgsmClient) header(override string) string {
	if override != "" {
		return override
	}
	if c.AppName != "" {
		return c.AppName
	}
	return c.Username
}

// httpClient never mutates the receiver; scheduler workers share one
// client value concurrently.
func (c *NetgsmClient) httpClient() *http.Client {
	if c.Client != nil {
		return c.Client
	}
	return &http.Client{Timeout: 20 * time.Second}
}

func (c *NetgsmClient) endpoint() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return netgsmAPI
}

// SendSMS posts one batch request. Gateway code "00" is success; any other
// code is returned alongside the parsed result for logging.
func (c *NetgsmClient) SendSMS(ctx context.Context, numbers []string, message, header string) (*SMSResult, error) {
	if c.Username == "" {
		return nil, nil
	}
	if len(numbers) == 0 {
		return nil, nil
	}

	messages := make([]NetgsmMessage, 0, len(numbers))
	for _, n := range numbers {
		messages = append(messages, NetgsmMessage{Msg: message, No: n})
	}
	body := NetgsmSendRequest{
		MsgHeader: c.header(header),
		Messages:  messages,
		Encoding:  "TR",
	}
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.Username, c.Password)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("netgsm send failed: status %d", resp.StatusCode)
	}

	var result SMSResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("netgsm send failed: malformed response: %w", err)
	}
	if result.Code != "00" {
		return &result, fmt.Errorf("netgsm send failed: code %s (%s)", result.Code, result.Description)
	}
	return &result, nil
}
