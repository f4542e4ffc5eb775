package postmark

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/leafbook/internal/config"
)

const DefaultBaseURL = "https://api.postmarkapp.com"

type emailRequest struct {
	From          string `json:"From"`
	To            string `json:"To"`
	Subject       string `json:"Subject"`
	TextBody      string `json:"TextBody"`
	MessageStream string `json:"MessageStream"`
}

type emailResponse struct {
	ErrorCode int    `json:"ErrorCode"`
	Message   string `json:"Message"`
	MessageID string `json:"MessageID"`
}

// Mailer sends transactional email through the Postmark HTTP API.
type Mailer struct {
	client *resty.Client
	from   string
}

func NewMailer(cfg *config.Config) *Mailer {
	return NewMailerWithBaseURL(cfg, DefaultBaseURL)
}

func NewMailerWithBaseURL(cfg *config.Config, baseURL string) *Mailer {
	timeout := cfg.MailTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("X-Postmark-Server-Token", cfg.PostmarkServerToken)
	return &Mailer{client: client, from: cfg.MailFrom}
}

func (m *Mailer) SendEmail(ctx context.Context, to, subject, body string) error {
	resp, err := m.client.R().
		SetContext(ctx).
		SetBody(emailRequest{
			From:          m.from,
			To:            to,
			Subject:       subject,
			TextBody:      body,
			MessageStream: "outbound",
		}).
		Post("/email")
	if err != nil {
		return fmt.Errorf("postmark request: %w", err)
	}

	var out emailResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil && !resp.IsError() {
		return fmt.Errorf("postmark response: %w", err)
	}
	if resp.IsError() || out.ErrorCode != 0 {
		return fmt.Errorf("postmark status %d code %d: %s", resp.StatusCode(), out.ErrorCode, out.Message)
	}
	return nil
}
