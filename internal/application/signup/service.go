package signup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/leafbook/internal/application/session"
	"github.com/leafbook/internal/domain"
	"github.com/leafbook/internal/pkg/id"
	"github.com/leafbook/internal/pkg/otp"
	"golang.org/x/crypto/bcrypt"
)

// issueAttempts bounds retries when a concurrent signup for the same account wins the passcode race.
const issueAttempts = 3

// Request carries a signup form submission.
type Request struct {
	Name     string
	Email    string
	Username string // accepted when Email is blank
	Password string
	BotToken string
	ClientIP string
}

// Pending is what the caller keeps between signup and verification.
type Pending struct {
	Token     string    `json:"pending_token"`
	AccountID string    `json:"account_id"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"code_expires_at"`
}

// Service drives an account from signup through email verification.
type Service interface {
	// Signup creates or refreshes an inactive account and emails it a new passcode.
	// When only the email could not be sent, it returns both the pending reference
	// and an error wrapping domain.ErrDispatchFailed.
	Signup(ctx context.Context, req Request) (*Pending, error)
	// Resend issues a fresh passcode for the account behind a pending reference.
	Resend(ctx context.Context, pendingToken string) (*Pending, error)
	// Pending resolves the account behind a pending reference.
	Pending(ctx context.Context, pendingToken string) (*domain.Account, error)
	// VerifyLink matches a code presented together with its account id.
	VerifyLink(ctx context.Context, accountID, code string) (*session.Result, error)
	// VerifyPending matches a code against the account behind a pending reference.
	VerifyPending(ctx context.Context, pendingToken, code string) (*session.Result, error)
}

type accountStore interface {
	Get(ctx context.Context, accountID string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	Create(ctx context.Context, a *domain.Account) error
	UpdatePending(ctx context.Context, a *domain.Account) error
}

type passcodeStore interface {
	Issue(ctx context.Context, acct *domain.Account, p *domain.OneTimePasscode) error
	ListUnused(ctx context.Context, accountID string) ([]domain.OneTimePasscode, error)
	Consume(ctx context.Context, p *domain.OneTimePasscode, now time.Time) error
}

type botGate interface {
	Verify(ctx context.Context, token, clientIP string) error
}

type mailer interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

type pendingTokens interface {
	SignPending(accountID string) (string, error)
	VerifyPending(token string) (string, error)
}

type sessionStarter interface {
	Start(ctx context.Context, acct *domain.Account) (*session.Result, error)
}

type ServiceDeps struct {
	AccountRepo   accountStore
	PasscodeRepo  passcodeStore
	Gate          botGate
	Mailer        mailer
	PendingTokens pendingTokens
	Sessions      sessionStarter

	ProductName   string
	PublicBaseURL string
	PasscodeTTL   time.Duration

	// Now and GenerateCode default to time.Now and otp.Generate.
	Now          func() time.Time
	GenerateCode func() (string, error)
}

type service struct {
	accounts  accountStore
	passcodes passcodeStore
	gate      botGate
	mailer    mailer
	pending   pendingTokens
	sessions  sessionStarter

	productName string
	baseURL     string
	ttl         time.Duration
	now         func() time.Time
	genCode     func() (string, error)
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		accounts:    deps.AccountRepo,
		passcodes:   deps.PasscodeRepo,
		gate:        deps.Gate,
		mailer:      deps.Mailer,
		pending:     deps.PendingTokens,
		sessions:    deps.Sessions,
		productName: deps.ProductName,
		baseURL:     strings.TrimRight(deps.PublicBaseURL, "/"),
		ttl:         deps.PasscodeTTL,
		now:         deps.Now,
		genCode:     deps.GenerateCode,
	}
	if s.productName == "" {
		s.productName = "Book"
	}
	if s.ttl <= 0 {
		s.ttl = 10 * time.Minute
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.genCode == nil {
		s.genCode = otp.Generate
	}
	return s
}

func (s *service) Signup(ctx context.Context, req Request) (*Pending, error) {
	name := strings.TrimSpace(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		email = strings.ToLower(strings.TrimSpace(req.Username))
	}
	if name == "" || email == "" || strings.TrimSpace(req.Password) == "" || strings.TrimSpace(req.BotToken) == "" {
		return nil, domain.ErrValidation
	}

	if err := s.gate.Verify(ctx, req.BotToken, req.ClientIP); err != nil {
		return nil, &domain.BotCheckError{Reason: err}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	acct, err := s.upsertPending(ctx, name, email, string(hash))
	if err != nil {
		return nil, err
	}
	return s.issueAndSend(ctx, acct)
}

// upsertPending creates the inactive account for email, or overwrites the credentials
// of an inactive one. An active account is never touched.
func (s *service) upsertPending(ctx context.Context, name, email, hash string) (*domain.Account, error) {
	now := s.now().UTC()
	for attempt := 0; attempt < 2; attempt++ {
		acct, err := s.accounts.GetByEmail(ctx, email)
		switch {
		case err == nil:
			if acct.IsActive {
				return nil, domain.ErrAccountExists
			}
			acct.DisplayName = name
			acct.Email = email
			acct.PasswordHash = hash
			acct.UpdatedAt = now
			if err := s.accounts.UpdatePending(ctx, acct); err != nil {
				if errors.Is(err, domain.ErrConflict) {
					return nil, domain.ErrAccountExists
				}
				return nil, err
			}
			return acct, nil

		case errors.Is(err, domain.ErrNotFound):
			acct = &domain.Account{
				AccountID:    id.New(),
				Username:     email,
				Email:        email,
				DisplayName:  name,
				PasswordHash: hash,
				Role:         domain.RoleUser,
				IsActive:     false,
				AuthProvider: domain.AuthProviderLocal,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			err := s.accounts.Create(ctx, acct)
			if err == nil {
				return acct, nil
			}
			if !errors.Is(err, domain.ErrConflict) {
				return nil, err
			}
			// Another signup claimed the email first; re-read and take the update path.

		default:
			return nil, err
		}
	}
	return nil, fmt.Errorf("account for %s changed concurrently: %w", email, domain.ErrConflict)
}

func (s *service) issueAndSend(ctx context.Context, acct *domain.Account) (*Pending, error) {
	p, err := s.issue(ctx, acct)
	if err != nil {
		return nil, err
	}

	token, err := s.pending.SignPending(acct.AccountID)
	if err != nil {
		return nil, fmt.Errorf("sign pending reference: %w", err)
	}
	pending := &Pending{Token: token, AccountID: acct.AccountID, Email: acct.Email, ExpiresAt: p.ExpiresAt}

	if err := s.mailer.SendEmail(ctx, acct.Email, s.subject(), s.body(acct.AccountID, p.Code)); err != nil {
		slog.Warn("verification email not sent", "account_id", acct.AccountID, "err", err)
		return pending, domain.ErrDispatchFailed
	}
	return pending, nil
}

// issue retires the account's outstanding passcodes and stores a new one. A lost race
// against a concurrent issue is retried against a fresh read of the account.
func (s *service) issue(ctx context.Context, acct *domain.Account) (*domain.OneTimePasscode, error) {
	for attempt := 1; ; attempt++ {
		code, err := s.genCode()
		if err != nil {
			return nil, err
		}
		created := s.now().UTC().Truncate(time.Second)
		p := &domain.OneTimePasscode{
			AccountID:  acct.AccountID,
			PasscodeID: id.NewAt(created),
			Code:       code,
			CreatedAt:  created,
			ExpiresAt:  created.Add(s.ttl),
		}
		err = s.passcodes.Issue(ctx, acct, p)
		if err == nil {
			acct.ActiveOTPID = p.PasscodeID
			return p, nil
		}
		if !errors.Is(err, domain.ErrConflict) || attempt >= issueAttempts {
			return nil, err
		}
		fresh, gerr := s.accounts.Get(ctx, acct.AccountID)
		if gerr != nil {
			return nil, gerr
		}
		if fresh.IsActive {
			return nil, domain.ErrAccountExists
		}
		*acct = *fresh
	}
}

func (s *service) Resend(ctx context.Context, pendingToken string) (*Pending, error) {
	acct, err := s.Pending(ctx, pendingToken)
	if err != nil {
		return nil, err
	}
	if acct.IsActive {
		return nil, domain.ErrAccountExists
	}
	return s.issueAndSend(ctx, acct)
}

func (s *service) Pending(ctx context.Context, pendingToken string) (*domain.Account, error) {
	if pendingToken == "" {
		return nil, domain.ErrNoPendingSignup
	}
	accountID, err := s.pending.VerifyPending(pendingToken)
	if err != nil {
		return nil, domain.ErrNoPendingSignup
	}
	acct, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNoPendingSignup
		}
		return nil, err
	}
	return acct, nil
}

func (s *service) VerifyLink(ctx context.Context, accountID, code string) (*session.Result, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, domain.ErrInvalidOrExpiredCode
	}
	acct, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidOrExpiredCode
		}
		return nil, err
	}
	return s.verify(ctx, acct, code)
}

func (s *service) VerifyPending(ctx context.Context, pendingToken, code string) (*session.Result, error) {
	acct, err := s.Pending(ctx, pendingToken)
	if err != nil {
		return nil, err
	}
	return s.verify(ctx, acct, code)
}

// verify matches code against the account's unused, unexpired passcodes. A miss
// leaves everything untouched; a hit consumes the passcode, activates the account
// and opens a session.
func (s *service) verify(ctx context.Context, acct *domain.Account, code string) (*session.Result, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, domain.ErrInvalidOrExpiredCode
	}
	now := s.now()
	unused, err := s.passcodes.ListUnused(ctx, acct.AccountID)
	if err != nil {
		return nil, err
	}
	var match *domain.OneTimePasscode
	for i := range unused {
		if unused[i].Matches(code, now) {
			match = &unused[i]
			break
		}
	}
	if match == nil {
		return nil, domain.ErrInvalidOrExpiredCode
	}
	if err := s.passcodes.Consume(ctx, match, now); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, domain.ErrInvalidOrExpiredCode
		}
		return nil, err
	}
	acct.IsActive = true
	acct.ActiveOTPID = ""
	return s.sessions.Start(ctx, acct)
}

func (s *service) subject() string {
	return fmt.Sprintf("Your %s verification code", s.productName)
}

func (s *service) body(accountID, code string) string {
	link := s.baseURL + "/v1/signup/verify?uid=" + url.QueryEscape(accountID) + "&code=" + url.QueryEscape(code)
	return "Use this code to verify your account:\n\n" +
		code + "\n\n" +
		fmt.Sprintf("It expires in %d minutes.\n\n", int(s.ttl.Minutes())) +
		"Verify directly with this link:\n" + link
}
