package account

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leafbook/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

// DynamoDB attribute names used in partial update maps.
const (
	fieldDisplayName  = "display_name"
	fieldPasswordHash = "password_hash"
)

type Service interface {
	Get(ctx context.Context, accountID string) (*domain.Account, error)
	Update(ctx context.Context, accountID string, req domain.UpdateAccountRequest) (*domain.Account, error)
	// ChangePassword replaces the password and disables every session of the account.
	ChangePassword(ctx context.Context, accountID string, req domain.ChangePasswordRequest) error
}

type accountStore interface {
	Get(ctx context.Context, accountID string) (*domain.Account, error)
	Update(ctx context.Context, accountID string, updates map[string]interface{}) error
}

type sessionStore interface {
	DisableByAccount(ctx context.Context, accountID string) error
}

type service struct {
	repo        accountStore
	sessionRepo sessionStore
}

type ServiceDeps struct {
	AccountRepo accountStore
	SessionRepo sessionStore
}

func NewService(deps ServiceDeps) Service {
	return &service{repo: deps.AccountRepo, sessionRepo: deps.SessionRepo}
}

func (s *service) Get(ctx context.Context, accountID string) (*domain.Account, error) {
	return s.repo.Get(ctx, accountID)
}

func (s *service) Update(ctx context.Context, accountID string, req domain.UpdateAccountRequest) (*domain.Account, error) {
	updates := map[string]interface{}{}
	if req.DisplayName != nil {
		name := strings.TrimSpace(*req.DisplayName)
		if name == "" {
			return nil, fmt.Errorf("display name must not be blank: %w", domain.ErrBadRequest)
		}
		updates[fieldDisplayName] = name
	}
	if len(updates) == 0 {
		return s.repo.Get(ctx, accountID)
	}
	if err := s.repo.Update(ctx, accountID, updates); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, accountID)
}

func (s *service) ChangePassword(ctx context.Context, accountID string, req domain.ChangePasswordRequest) error {
	a, err := s.repo.Get(ctx, accountID)
	if err != nil {
		return err
	}
	if a.PasswordHash == "" {
		return fmt.Errorf("account has no password: %w", domain.ErrBadRequest)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return fmt.Errorf("current password is incorrect: %w", domain.ErrUnauthorized)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.repo.Update(ctx, accountID, map[string]interface{}{fieldPasswordHash: string(hash)}); err != nil {
		return err
	}
	if err := s.sessionRepo.DisableByAccount(ctx, accountID); err != nil {
		slog.Warn("sessions not disabled after password change", "account_id", accountID, "err", err)
	}
	return nil
}
