package google

import (
	"context"
	"fmt"

	"github.com/leafbook/internal/domain"
	"google.golang.org/api/idtoken"
)

// Payload holds the verified claims extracted from a Google ID token.
type Payload struct {
	Sub           string
	Email         string
	EmailVerified bool
	Name          string
}

// Verifier verifies Google ID tokens against a specific client ID.
type Verifier struct {
	clientID string
}

func NewVerifier(clientID string) *Verifier {
	return &Verifier{clientID: clientID}
}

// Verify validates the Google ID token and returns the extracted payload.
// Returns a domain.ErrUnauthorized-wrapped error if the token is invalid.
func (v *Verifier) Verify(ctx context.Context, token string) (*Payload, error) {
	if v.clientID == "" {
		return nil, fmt.Errorf("google sign-in is not configured: %w", domain.ErrUnauthorized)
	}
	p, err := idtoken.Validate(ctx, token, v.clientID)
	if err != nil {
		return nil, fmt.Errorf("invalid google token: %w", domain.ErrUnauthorized)
	}
	return payloadFromClaims(p.Subject, p.Claims), nil
}

func payloadFromClaims(sub string, claims map[string]interface{}) *Payload {
	email, _ := claims["email"].(string)
	emailVerified, _ := claims["email_verified"].(bool)
	name, _ := claims["name"].(string)
	if name == "" {
		given, _ := claims["given_name"].(string)
		family, _ := claims["family_name"].(string)
		name = given
		if family != "" {
			if name != "" {
				name += " "
			}
			name += family
		}
	}
	return &Payload{Sub: sub, Email: email, EmailVerified: emailVerified, Name: name}
}
