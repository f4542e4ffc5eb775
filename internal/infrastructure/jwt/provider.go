package jwtinfra

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/leafbook/internal/config"
)

const (
	// AudienceAPI marks access tokens accepted by authenticated routes.
	AudienceAPI = "api"
	// AudiencePending marks signup references; they never authenticate a request.
	AudiencePending = "signup-pending"
)

// Claims holds the access-token payload fields.
type Claims struct {
	AccountID string `json:"account_id"`
	Role      string `json:"role"`
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

// Provider signs and verifies RS256 JWTs.
type Provider struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	expiry     time.Duration
	pendingTTL time.Duration
}

func NewProvider(cfg *config.Config) (*Provider, error) {
	privBytes, err := os.ReadFile(cfg.JWTPrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	privKey, err := jwt.ParseRSAPrivateKeyFromPEM(privBytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	pubBytes, err := os.ReadFile(cfg.JWTPublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(pubBytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	return NewProviderFromKeys(privKey, pubKey, cfg.JWTExpiry, cfg.PendingTokenTTL), nil
}

// NewProviderFromKeys builds a Provider from already parsed keys.
func NewProviderFromKeys(priv *rsa.PrivateKey, pub *rsa.PublicKey, expiry, pendingTTL time.Duration) *Provider {
	if pendingTTL <= 0 {
		pendingTTL = time.Hour
	}
	return &Provider{privateKey: priv, publicKey: pub, expiry: expiry, pendingTTL: pendingTTL}
}

func (p *Provider) Sign(accountID, role, sessionID string) (string, error) {
	now := time.Now()
	claims := Claims{
		AccountID: accountID,
		Role:      role,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{AudienceAPI},
			ExpiresAt: jwt.NewNumericDate(now.Add(p.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(p.privateKey)
}

func (p *Provider) Verify(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	if err := p.parse(tokenStr, claims, AudienceAPI); err != nil {
		return nil, err
	}
	return claims, nil
}

// SignPending issues the reference a browser holds between signup and verification.
// It only carries the account id.
func (p *Provider) SignPending(accountID string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   accountID,
		Audience:  jwt.ClaimStrings{AudiencePending},
		ExpiresAt: jwt.NewNumericDate(now.Add(p.pendingTTL)),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(p.privateKey)
}

// VerifyPending returns the account id carried by a pending reference.
func (p *Provider) VerifyPending(tokenStr string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	if err := p.parse(tokenStr, claims, AudiencePending); err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errors.New("pending token has no subject")
	}
	return claims.Subject, nil
}

func (p *Provider) parse(tokenStr string, claims jwt.Claims, audience string) error {
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return p.publicKey, nil
	}, jwt.WithAudience(audience), jwt.WithExpirationRequired())
	if err != nil {
		return err
	}
	if !token.Valid {
		return errors.New("invalid token claims")
	}
	return nil
}
