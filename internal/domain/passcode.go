package domain

import (
	"crypto/subtle"
	"time"
)

// OneTimePasscode is a 6-digit code proving control of an account's email.
// PK: account_id, SK: otp_id. Rows are never deleted; a code is consumed by
// flipping Used, and expiry is only checked when a code is presented.
type OneTimePasscode struct {
	AccountID  string    `json:"account_id" dynamodbav:"account_id"`
	PasscodeID string    `json:"id" dynamodbav:"otp_id"`
	Code       string    `json:"-" dynamodbav:"code"`
	CreatedAt  time.Time `json:"created_at" dynamodbav:"created_at,unixtime"`
	ExpiresAt  time.Time `json:"expires_at" dynamodbav:"expires_at,unixtime"`
	Used       bool      `json:"used" dynamodbav:"used"`
}

// Usable reports whether the passcode can still be matched at now.
// A code presented at or after ExpiresAt is rejected.
func (p *OneTimePasscode) Usable(now time.Time) bool {
	return !p.Used && now.Before(p.ExpiresAt)
}

// Matches reports whether code equals this passcode and the passcode is usable at now.
func (p *OneTimePasscode) Matches(code string, now time.Time) bool {
	return p.Usable(now) && subtle.ConstantTimeCompare([]byte(p.Code), []byte(code)) == 1
}
