package recaptcha

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/leafbook/internal/config"
)

const (
	DefaultVerifyURL = "https://www.google.com/recaptcha/api/siteverify"
	verifyTimeout    = 6 * time.Second
)

// Rejection reasons. The messages are safe to show to the person signing up.
var (
	ErrMissingToken       = errors.New("Missing reCAPTCHA token.")
	ErrMissingSecret      = errors.New("Missing reCAPTCHA secret key.")
	ErrVerificationFailed = errors.New("reCAPTCHA verification failed.")
	ErrRejected           = errors.New("reCAPTCHA rejected.")
	ErrWrongAction        = errors.New("Invalid reCAPTCHA action.")
	ErrLowScore           = errors.New("reCAPTCHA score too low.")
)

type siteverifyResponse struct {
	Success bool     `json:"success"`
	Score   *float64 `json:"score"`
	Action  string   `json:"action"`
}

// Verifier asks the siteverify endpoint whether a client token came from a human.
// It holds no state between calls and never retries.
type Verifier struct {
	client    *resty.Client
	secret    string
	verifyURL string
	action    string
	threshold float64
}

func NewVerifier(cfg *config.Config) *Verifier {
	url := cfg.RecaptchaVerifyURL
	if url == "" {
		url = DefaultVerifyURL
	}
	action := cfg.RecaptchaAction
	if action == "" {
		action = "signup"
	}
	return &Verifier{
		client:    resty.New().SetTimeout(verifyTimeout),
		secret:    cfg.RecaptchaSecretKey,
		verifyURL: url,
		action:    action,
		threshold: cfg.RecaptchaThreshold,
	}
}

// Verify returns nil when the token passes, otherwise one of the rejection reasons above.
// A missing token or secret is rejected without a network call.
func (v *Verifier) Verify(ctx context.Context, token, clientIP string) error {
	if token == "" {
		return ErrMissingToken
	}
	if v.secret == "" {
		return ErrMissingSecret
	}

	form := map[string]string{
		"secret":   v.secret,
		"response": token,
	}
	if clientIP != "" {
		form["remoteip"] = clientIP
	}

	resp, err := v.client.R().
		SetContext(ctx).
		SetFormData(form).
		Post(v.verifyURL)
	if err != nil {
		slog.Debug("recaptcha request failed", "error", err)
		return ErrVerificationFailed
	}
	if resp.IsError() {
		slog.Debug("recaptcha unexpected status", "status", resp.StatusCode())
		return ErrVerificationFailed
	}

	var result siteverifyResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		slog.Debug("recaptcha response not json", "error", err)
		return ErrVerificationFailed
	}

	if !result.Success {
		return ErrRejected
	}
	if result.Action != "" && result.Action != v.action {
		return ErrWrongAction
	}
	var score float64
	if result.Score != nil {
		score = *result.Score
	}
	slog.Debug("recaptcha score", "score", score, "threshold", v.threshold)
	if score < v.threshold {
		return ErrLowScore
	}
	return nil
}
