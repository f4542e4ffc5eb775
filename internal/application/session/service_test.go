package session

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/leafbook/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- mocks ---

type mockAccountStore struct{ mock.Mock }

func (m *mockAccountStore) Get(ctx context.Context, accountID string) (*domain.Account, error) {
	args := m.Called(ctx, accountID)
	if a, _ := args.Get(0).(*domain.Account); a != nil {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockAccountStore) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	args := m.Called(ctx, email)
	if a, _ := args.Get(0).(*domain.Account); a != nil {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockAccountStore) Create(ctx context.Context, a *domain.Account) error {
	return m.Called(ctx, a).Error(0)
}
func (m *mockAccountStore) Update(ctx context.Context, accountID string, updates map[string]interface{}) error {
	return m.Called(ctx, accountID, updates).Error(0)
}

type mockSessionStore struct{ mock.Mock }

func (m *mockSessionStore) Put(ctx context.Context, s *domain.Session) error {
	return m.Called(ctx, s).Error(0)
}
func (m *mockSessionStore) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	args := m.Called(ctx, sessionID)
	if s, _ := args.Get(0).(*domain.Session); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockSessionStore) GetByRefreshToken(ctx context.Context, token string) (*domain.Session, error) {
	args := m.Called(ctx, token)
	if s, _ := args.Get(0).(*domain.Session); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockSessionStore) RotateRefreshToken(ctx context.Context, sessionID, newToken string, newExpiry int64) error {
	return m.Called(ctx, sessionID, newToken, newExpiry).Error(0)
}
func (m *mockSessionStore) Update(ctx context.Context, sessionID string, updates map[string]interface{}) error {
	return m.Called(ctx, sessionID, updates).Error(0)
}

type mockJWTSigner struct{ mock.Mock }

func (m *mockJWTSigner) Sign(accountID, role, sessionID string) (string, error) {
	args := m.Called(accountID, role, sessionID)
	return args.String(0), args.Error(1)
}

type mockGoogleVerifier struct{ mock.Mock }

func (m *mockGoogleVerifier) Verify(ctx context.Context, token string) (*GooglePayload, error) {
	args := m.Called(ctx, token)
	if p, _ := args.Get(0).(*GooglePayload); p != nil {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

// --- helpers ---

func newSvc(as *mockAccountStore, ss *mockSessionStore, jwt *mockJWTSigner, gv *mockGoogleVerifier) Service {
	return NewService(ServiceDeps{
		AccountRepo:     as,
		SessionRepo:     ss,
		JWTProvider:     jwt,
		GoogleVerifier:  gv,
		RefreshTokenDur: 24 * time.Hour,
	})
}

func validPayload() *GooglePayload {
	return &GooglePayload{
		Sub:           "google-sub-123",
		Email:         "Alice@gmail.com",
		EmailVerified: true,
		Name:          "Alice Smith",
	}
}

func existingAccount() *domain.Account {
	return &domain.Account{
		AccountID: "acc-123",
		Username:  "alice@gmail.com",
		Email:     "alice@gmail.com",
		Role:      domain.RoleUser,
		IsActive:  true,
		GoogleSub: "google-sub-123",
	}
}

func passwordAccount(t *testing.T, password string, active bool) *domain.Account {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	a := existingAccount()
	a.GoogleSub = ""
	a.PasswordHash = string(hash)
	a.IsActive = active
	return a
}

func stubSession(ss *mockSessionStore, jwt *mockJWTSigner) {
	ss.On("Put", mock.Anything, mock.AnythingOfType("*domain.Session")).Return(nil)
	jwt.On("Sign", mock.Anything, mock.Anything, mock.Anything).Return("bearer", nil)
}

// --- Login ---

func TestLogin_Success(t *testing.T) {
	as, ss, jwt := &mockAccountStore{}, &mockSessionStore{}, &mockJWTSigner{}
	as.On("GetByEmail", mock.Anything, "alice@gmail.com").Return(passwordAccount(t, "secret123", true), nil)
	stubSession(ss, jwt)

	res, err := newSvc(as, ss, jwt, nil).Login(context.Background(), LoginRequest{Username: " Alice@Gmail.com ", Password: "secret123"})

	require.NoError(t, err)
	assert.Equal(t, "bearer", res.Bearer)
	raw, err := base64.RawURLEncoding.DecodeString(res.RefreshToken)
	require.NoError(t, err)
	assert.Len(t, raw, 32)
	assert.Equal(t, "acc-123", res.Session.AccountID)
	assert.True(t, res.Session.Enable)
	jwt.AssertCalled(t, "Sign", "acc-123", domain.RoleUser, res.Session.SessionID)
}

func TestLogin_WrongPassword(t *testing.T) {
	as, ss, jwt := &mockAccountStore{}, &mockSessionStore{}, &mockJWTSigner{}
	as.On("GetByEmail", mock.Anything, "alice@gmail.com").Return(passwordAccount(t, "secret123", true), nil)

	_, err := newSvc(as, ss, jwt, nil).Login(context.Background(), LoginRequest{Username: "alice@gmail.com", Password: "nope"})

	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	ss.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestLogin_UnknownAccount(t *testing.T) {
	as := &mockAccountStore{}
	as.On("GetByEmail", mock.Anything, "ghost@example.com").Return(nil, domain.ErrNotFound)

	_, err := newSvc(as, &mockSessionStore{}, &mockJWTSigner{}, nil).Login(context.Background(), LoginRequest{Username: "ghost@example.com", Password: "x"})

	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestLogin_UnverifiedAccountRejected(t *testing.T) {
	as, ss := &mockAccountStore{}, &mockSessionStore{}
	as.On("GetByEmail", mock.Anything, "alice@gmail.com").Return(passwordAccount(t, "secret123", false), nil)

	_, err := newSvc(as, ss, &mockJWTSigner{}, nil).Login(context.Background(), LoginRequest{Username: "alice@gmail.com", Password: "secret123"})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Contains(t, err.Error(), "not verified")
	ss.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

// --- Refresh / Logout / GetCurrent ---

func TestRefresh_RotatesToken(t *testing.T) {
	as, ss, jwt := &mockAccountStore{}, &mockSessionStore{}, &mockJWTSigner{}
	sess := &domain.Session{SessionID: "s1", AccountID: "acc-123", Enable: true, RefreshExpiresAt: time.Now().Add(time.Hour).Unix()}
	ss.On("GetByRefreshToken", mock.Anything, "old").Return(sess, nil)
	ss.On("RotateRefreshToken", mock.Anything, "s1", mock.AnythingOfType("string"), mock.AnythingOfType("int64")).Return(nil)
	as.On("Get", mock.Anything, "acc-123").Return(existingAccount(), nil)
	jwt.On("Sign", "acc-123", domain.RoleUser, "s1").Return("bearer2", nil)

	res, err := newSvc(as, ss, jwt, nil).Refresh(context.Background(), "old")

	require.NoError(t, err)
	assert.Equal(t, "bearer2", res.Bearer)
	assert.NotEqual(t, "old", res.RefreshToken)
}

func TestRefresh_Expired(t *testing.T) {
	ss := &mockSessionStore{}
	ss.On("GetByRefreshToken", mock.Anything, "old").Return(&domain.Session{SessionID: "s1", RefreshExpiresAt: time.Now().Add(-time.Hour).Unix()}, nil)

	_, err := newSvc(&mockAccountStore{}, ss, &mockJWTSigner{}, nil).Refresh(context.Background(), "old")

	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	ss.AssertNotCalled(t, "RotateRefreshToken", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestLogout_DisablesSession(t *testing.T) {
	ss := &mockSessionStore{}
	ss.On("Update", mock.Anything, "s1", map[string]interface{}{"enable": false}).Return(nil)

	require.NoError(t, newSvc(&mockAccountStore{}, ss, &mockJWTSigner{}, nil).Logout(context.Background(), "s1"))
	ss.AssertExpectations(t)
}

func TestGetCurrent_DisabledSession(t *testing.T) {
	ss := &mockSessionStore{}
	ss.On("Get", mock.Anything, "s1").Return(&domain.Session{SessionID: "s1", Enable: false}, nil)

	_, err := newSvc(&mockAccountStore{}, ss, &mockJWTSigner{}, nil).GetCurrent(context.Background(), "s1")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestGetCurrent_AttachesAccount(t *testing.T) {
	as, ss := &mockAccountStore{}, &mockSessionStore{}
	ss.On("Get", mock.Anything, "s1").Return(&domain.Session{SessionID: "s1", AccountID: "acc-123", Enable: true}, nil)
	as.On("Get", mock.Anything, "acc-123").Return(existingAccount(), nil)

	sess, err := newSvc(as, ss, &mockJWTSigner{}, nil).GetCurrent(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "alice@gmail.com", sess.Account.Email)
}

// --- LoginWithGoogle ---

func TestLoginWithGoogle_NewAccount(t *testing.T) {
	as, ss, jwt, gv := &mockAccountStore{}, &mockSessionStore{}, &mockJWTSigner{}, &mockGoogleVerifier{}

	gv.On("Verify", mock.Anything, "tok").Return(validPayload(), nil)
	as.On("GetByEmail", mock.Anything, "alice@gmail.com").Return(nil, domain.ErrNotFound)
	as.On("Create", mock.Anything, mock.AnythingOfType("*domain.Account")).Return(nil)
	stubSession(ss, jwt)

	res, err := newSvc(as, ss, jwt, gv).LoginWithGoogle(context.Background(), "tok")

	require.NoError(t, err)
	assert.Equal(t, "bearer", res.Bearer)
	acct := res.Session.Account
	assert.Equal(t, "alice@gmail.com", acct.Username)
	assert.Equal(t, "Alice Smith", acct.DisplayName)
	assert.Equal(t, domain.AuthProviderGoogle, acct.AuthProvider)
	assert.True(t, acct.IsActive)
}

func TestLoginWithGoogle_ExistingAccount_SubMatches(t *testing.T) {
	as, ss, jwt, gv := &mockAccountStore{}, &mockSessionStore{}, &mockJWTSigner{}, &mockGoogleVerifier{}

	gv.On("Verify", mock.Anything, "tok").Return(validPayload(), nil)
	as.On("GetByEmail", mock.Anything, "alice@gmail.com").Return(existingAccount(), nil)
	stubSession(ss, jwt)

	res, err := newSvc(as, ss, jwt, gv).LoginWithGoogle(context.Background(), "tok")

	require.NoError(t, err)
	assert.Equal(t, "bearer", res.Bearer)
	as.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestLoginWithGoogle_PasswordAccount_AutoLinks(t *testing.T) {
	as, ss, jwt, gv := &mockAccountStore{}, &mockSessionStore{}, &mockJWTSigner{}, &mockGoogleVerifier{}

	gv.On("Verify", mock.Anything, "tok").Return(validPayload(), nil)
	as.On("GetByEmail", mock.Anything, "alice@gmail.com").Return(passwordAccount(t, "pw", true), nil)
	as.On("Update", mock.Anything, "acc-123", map[string]interface{}{"google_sub": "google-sub-123"}).Return(nil)
	stubSession(ss, jwt)

	res, err := newSvc(as, ss, jwt, gv).LoginWithGoogle(context.Background(), "tok")

	require.NoError(t, err)
	assert.Equal(t, "google-sub-123", res.Session.Account.GoogleSub)
	as.AssertExpectations(t)
}

func TestLoginWithGoogle_PendingSignupIsActivated(t *testing.T) {
	as, ss, jwt, gv := &mockAccountStore{}, &mockSessionStore{}, &mockJWTSigner{}, &mockGoogleVerifier{}

	gv.On("Verify", mock.Anything, "tok").Return(validPayload(), nil)
	as.On("GetByEmail", mock.Anything, "alice@gmail.com").Return(passwordAccount(t, "pw", false), nil)
	as.On("Update", mock.Anything, "acc-123", map[string]interface{}{"google_sub": "google-sub-123", "is_active": true}).Return(nil)
	stubSession(ss, jwt)

	res, err := newSvc(as, ss, jwt, gv).LoginWithGoogle(context.Background(), "tok")

	require.NoError(t, err)
	assert.True(t, res.Session.Account.IsActive)
}

func TestLoginWithGoogle_NoPasswordAccount_LinkingBlocked(t *testing.T) {
	as, ss, jwt, gv := &mockAccountStore{}, &mockSessionStore{}, &mockJWTSigner{}, &mockGoogleVerifier{}

	acct := existingAccount()
	acct.GoogleSub = ""
	gv.On("Verify", mock.Anything, "tok").Return(validPayload(), nil)
	as.On("GetByEmail", mock.Anything, "alice@gmail.com").Return(acct, nil)

	_, err := newSvc(as, ss, jwt, gv).LoginWithGoogle(context.Background(), "tok")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
	as.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestLoginWithGoogle_SubMismatch_Rejected(t *testing.T) {
	as, gv := &mockAccountStore{}, &mockGoogleVerifier{}

	acct := existingAccount()
	acct.GoogleSub = "different-sub"
	gv.On("Verify", mock.Anything, "tok").Return(validPayload(), nil)
	as.On("GetByEmail", mock.Anything, "alice@gmail.com").Return(acct, nil)

	_, err := newSvc(as, &mockSessionStore{}, &mockJWTSigner{}, gv).LoginWithGoogle(context.Background(), "tok")

	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestLoginWithGoogle_RejectedPayloads(t *testing.T) {
	cases := map[string]func(p *GooglePayload){
		"unverified email": func(p *GooglePayload) { p.EmailVerified = false },
		"empty email":      func(p *GooglePayload) { p.Email = "" },
		"empty sub":        func(p *GooglePayload) { p.Sub = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			as, gv := &mockAccountStore{}, &mockGoogleVerifier{}
			p := validPayload()
			mutate(p)
			gv.On("Verify", mock.Anything, "tok").Return(p, nil)

			_, err := newSvc(as, &mockSessionStore{}, &mockJWTSigner{}, gv).LoginWithGoogle(context.Background(), "tok")

			assert.ErrorIs(t, err, domain.ErrUnauthorized)
			as.AssertNotCalled(t, "GetByEmail", mock.Anything, mock.Anything)
		})
	}
}

func TestLoginWithGoogle_VerifierError(t *testing.T) {
	gv := &mockGoogleVerifier{}
	gv.On("Verify", mock.Anything, "bad").Return(nil, domain.ErrUnauthorized)

	_, err := newSvc(&mockAccountStore{}, &mockSessionStore{}, &mockJWTSigner{}, gv).LoginWithGoogle(context.Background(), "bad")

	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}
