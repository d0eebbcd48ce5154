// Package senders holds the channel-sender collaborators: best-effort,
// single-attempt HTTP calls to the third-party providers. Retry policy
// belongs to nobody here; a failed call is terminal for its job.
package senders

import "context"

// EmailSender delivers one rendered email to a recipient batch.
type EmailSender interface {
	SendEmail(ctx context.Context, recipients []string, subject, text, html string) error
}

// SMSSender delivers one text to a batch of canonical 10-digit numbers.
type SMSSender interface {
	SendSMS(ctx context.Context, numbers []string, message, header string) (*SMSResult, error)
}

// WhatsAppSender delivers one text message to a single recipient.
type WhatsAppSender interface {
	SendWhatsApp(ctx context.Context, to, text string) error
}

// SMSResult is the gateway response: code "00" means accepted.
type SMSResult struct {
	Code        string `json:"code"`
	JobID       string `json:"jobid"`
	Description string `json:"description"`
}
