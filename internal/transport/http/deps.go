package http

import (
	"context"

	"github.com/leafbook/internal/application/session"
	"github.com/leafbook/internal/infrastructure/dynamo"
	"github.com/leafbook/internal/infrastructure/google"
	jwtinfra "github.com/leafbook/internal/infrastructure/jwt"
	"github.com/leafbook/internal/infrastructure/recaptcha"
	s3infra "github.com/leafbook/internal/infrastructure/s3"
)

// Mailer delivers plain-text email. Both the SMTP and the Postmark mailers satisfy it.
type Mailer interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	AccountRepo   *dynamo.AccountRepo
	PasscodeRepo  *dynamo.PasscodeRepo
	SessionRepo   *dynamo.SessionRepo
	CategoryRepo  *dynamo.CategoryRepo
	BookRepo      *dynamo.BookRepo
	LeafRepo      *dynamo.LeafRepo
	ReviewRepo    *dynamo.ReviewRepo
	SavedBookRepo *dynamo.SavedBookRepo
	S3Store       *s3infra.Store
	Mailer        Mailer
	BotGate       *recaptcha.Verifier
	Google        *google.Verifier
	JWTProvider   *jwtinfra.Provider
}

// googleTokens narrows a verified Google payload to what the session service reads.
type googleTokens struct {
	v *google.Verifier
}

// newGoogleTokens returns nil when Google sign-in is not configured.
func newGoogleTokens(v *google.Verifier) interface {
	Verify(ctx context.Context, token string) (*session.GooglePayload, error)
} {
	if v == nil {
		return nil
	}
	return googleTokens{v: v}
}

func (g googleTokens) Verify(ctx context.Context, token string) (*session.GooglePayload, error) {
	p, err := g.v.Verify(ctx, token)
	if err != nil {
		return nil, err
	}
	return &session.GooglePayload{Sub: p.Sub, Email: p.Email, EmailVerified: p.EmailVerified, Name: p.Name}, nil
}
