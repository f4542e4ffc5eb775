package domain

import "time"

const (
	AuthProviderLocal  = "local"
	AuthProviderGoogle = "google"
)

// Account is an identity. Signup creates it inactive; it is activated exactly once,
// when a passcode is matched.
type Account struct {
	AccountID    string    `json:"id" dynamodbav:"account_id"`
	Username     string    `json:"username" dynamodbav:"username"`
	Email        string    `json:"email" dynamodbav:"email"`
	DisplayName  string    `json:"display_name" dynamodbav:"display_name"`
	PasswordHash string    `json:"-" dynamodbav:"password_hash"`
	Role         string    `json:"role" dynamodbav:"role"`
	IsActive     bool      `json:"is_active" dynamodbav:"is_active"`
	AuthProvider string    `json:"auth_provider,omitempty" dynamodbav:"auth_provider"` // "local" | "google"
	GoogleSub    string    `json:"-" dynamodbav:"google_sub,omitempty"`
	ActiveOTPID  string    `json:"-" dynamodbav:"active_otp_id,omitempty"`
	CreatedAt    time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt    time.Time `json:"updated" dynamodbav:"updated_at"`
}

type UpdateAccountRequest struct {
	DisplayName *string `json:"display_name" validate:"omitempty,min=1,max=150"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
}
