package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/leafbook/internal/domain"
	"github.com/leafbook/internal/pkg/id"
	pkgtoken "github.com/leafbook/internal/pkg/token"
	"golang.org/x/crypto/bcrypt"
)

const (
	fieldEnable    = "enable"
	fieldGoogleSub = "google_sub"
	fieldIsActive  = "is_active"
)

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Result is an authenticated session plus the credentials handed to the client.
type Result struct {
	Bearer       string
	RefreshToken string
	Session      *domain.Session
}

// GooglePayload is the subset of a verified Google ID token the service needs.
type GooglePayload struct {
	Sub           string
	Email         string
	EmailVerified bool
	Name          string
}

type Service interface {
	Login(ctx context.Context, req LoginRequest) (*Result, error)
	LoginWithGoogle(ctx context.Context, idToken string) (*Result, error)
	// Start opens a session for an account that has already been authenticated.
	Start(ctx context.Context, acct *domain.Account) (*Result, error)
	Logout(ctx context.Context, sessionID string) error
	GetCurrent(ctx context.Context, sessionID string) (*domain.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*Result, error)
}

type accountStore interface {
	Get(ctx context.Context, accountID string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	Create(ctx context.Context, a *domain.Account) error
	Update(ctx context.Context, accountID string, updates map[string]interface{}) error
}

type sessionStore interface {
	Put(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	GetByRefreshToken(ctx context.Context, token string) (*domain.Session, error)
	RotateRefreshToken(ctx context.Context, sessionID, newToken string, newExpiry int64) error
	Update(ctx context.Context, sessionID string, updates map[string]interface{}) error
}

type jwtSigner interface {
	Sign(accountID, role, sessionID string) (string, error)
}

type googleVerifier interface {
	Verify(ctx context.Context, token string) (*GooglePayload, error)
}

type service struct {
	accountRepo     accountStore
	sessionRepo     sessionStore
	jwtProvider     jwtSigner
	googleVerifier  googleVerifier
	refreshTokenDur time.Duration
}

type ServiceDeps struct {
	AccountRepo     accountStore
	SessionRepo     sessionStore
	JWTProvider     jwtSigner
	GoogleVerifier  googleVerifier
	RefreshTokenDur time.Duration
}

func NewService(deps ServiceDeps) Service {
	dur := deps.RefreshTokenDur
	if dur <= 0 {
		dur = 30 * 24 * time.Hour
	}
	return &service{
		accountRepo:     deps.AccountRepo,
		sessionRepo:     deps.SessionRepo,
		jwtProvider:     deps.JWTProvider,
		googleVerifier:  deps.GoogleVerifier,
		refreshTokenDur: dur,
	}
}

var errInvalidCredentials = fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)

func (s *service) Login(ctx context.Context, req LoginRequest) (*Result, error) {
	email := strings.ToLower(strings.TrimSpace(req.Username))
	a, err := s.accountRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, err
	}
	if a.PasswordHash == "" {
		return nil, errInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(req.Password)); err != nil {
		return nil, errInvalidCredentials
	}
	if !a.IsActive {
		return nil, fmt.Errorf("account not verified: %w", domain.ErrUnauthorized)
	}
	return s.Start(ctx, a)
}

func (s *service) LoginWithGoogle(ctx context.Context, idToken string) (*Result, error) {
	if s.googleVerifier == nil {
		return nil, fmt.Errorf("google sign-in unavailable: %w", domain.ErrUnauthorized)
	}
	p, err := s.googleVerifier.Verify(ctx, idToken)
	if err != nil {
		return nil, err
	}
	if p.Sub == "" {
		return nil, fmt.Errorf("google token has no subject: %w", domain.ErrUnauthorized)
	}
	if p.Email == "" {
		return nil, fmt.Errorf("google account has no email: %w", domain.ErrUnauthorized)
	}
	if !p.EmailVerified {
		return nil, fmt.Errorf("google email not verified: %w", domain.ErrUnauthorized)
	}
	email := strings.ToLower(p.Email)

	a, err := s.accountRepo.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if err := s.linkGoogle(ctx, a, p.Sub); err != nil {
			return nil, err
		}
	case errors.Is(err, domain.ErrNotFound):
		a, err = s.createGoogleAccount(ctx, email, p)
		if err != nil {
			return nil, err
		}
	default:
		return nil, err
	}
	return s.Start(ctx, a)
}

// linkGoogle accepts a Google identity for an existing account. An account already
// bound to another subject is refused; a password account is bound on first use.
// Google has verified the email, so linking also activates a pending signup.
func (s *service) linkGoogle(ctx context.Context, a *domain.Account, sub string) error {
	if a.GoogleSub != "" {
		if a.GoogleSub != sub {
			return fmt.Errorf("google account mismatch: %w", domain.ErrUnauthorized)
		}
		if !a.IsActive {
			return fmt.Errorf("account disabled: %w", domain.ErrUnauthorized)
		}
		return nil
	}
	if a.PasswordHash == "" {
		return fmt.Errorf("account cannot be linked: %w", domain.ErrUnauthorized)
	}
	updates := map[string]interface{}{fieldGoogleSub: sub}
	if !a.IsActive {
		updates[fieldIsActive] = true
	}
	if err := s.accountRepo.Update(ctx, a.AccountID, updates); err != nil {
		return err
	}
	a.GoogleSub = sub
	a.IsActive = true
	return nil
}

func (s *service) createGoogleAccount(ctx context.Context, email string, p *GooglePayload) (*domain.Account, error) {
	now := time.Now().UTC()
	name := p.Name
	if name == "" {
		name = email
	}
	a := &domain.Account{
		AccountID:    id.New(),
		Username:     email,
		Email:        email,
		DisplayName:  name,
		Role:         domain.RoleUser,
		IsActive:     true,
		AuthProvider: domain.AuthProviderGoogle,
		GoogleSub:    p.Sub,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.accountRepo.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *service) Start(ctx context.Context, a *domain.Account) (*Result, error) {
	refreshToken, err := pkgtoken.NewRefreshToken()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	sess := &domain.Session{
		SessionID:        id.New(),
		AccountID:        a.AccountID,
		Enable:           true,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: now.Add(s.refreshTokenDur).Unix(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.sessionRepo.Put(ctx, sess); err != nil {
		return nil, err
	}
	bearer, err := s.jwtProvider.Sign(a.AccountID, a.Role, sess.SessionID)
	if err != nil {
		return nil, err
	}
	sess.Account = a
	return &Result{Bearer: bearer, RefreshToken: refreshToken, Session: sess}, nil
}

func (s *service) Logout(ctx context.Context, sessionID string) error {
	return s.sessionRepo.Update(ctx, sessionID, map[string]interface{}{fieldEnable: false})
}

func (s *service) GetCurrent(ctx context.Context, sessionID string) (*domain.Session, error) {
	sess, err := s.sessionRepo.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.Enable {
		return nil, fmt.Errorf("session expired: %w", domain.ErrUnauthorized)
	}
	a, err := s.accountRepo.Get(ctx, sess.AccountID)
	if err != nil {
		return nil, err
	}
	sess.Account = a
	return sess, nil
}

func (s *service) Refresh(ctx context.Context, refreshToken string) (*Result, error) {
	sess, err := s.sessionRepo.GetByRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("invalid or expired refresh token: %w", domain.ErrUnauthorized)
	}
	if sess.RefreshExpiresAt < time.Now().Unix() {
		return nil, fmt.Errorf("refresh token expired: %w", domain.ErrUnauthorized)
	}
	a, err := s.accountRepo.Get(ctx, sess.AccountID)
	if err != nil {
		return nil, err
	}
	newToken, err := pkgtoken.NewRefreshToken()
	if err != nil {
		return nil, err
	}
	newExpiry := time.Now().Add(s.refreshTokenDur).Unix()
	if err := s.sessionRepo.RotateRefreshToken(ctx, sess.SessionID, newToken, newExpiry); err != nil {
		return nil, err
	}
	bearer, err := s.jwtProvider.Sign(a.AccountID, a.Role, sess.SessionID)
	if err != nil {
		return nil, err
	}
	sess.RefreshToken = newToken
	sess.RefreshExpiresAt = newExpiry
	sess.Account = a
	return &Result{Bearer: bearer, RefreshToken: newToken, Session: sess}, nil
}
