package twofactor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/go-identity-api/internal/domain"
	"github.com/go-identity-api/internal/pkg/totp"
)

// rfcSecret is the base32 encoding of "12345678901234567890"; at t=59s the
// expected 6-digit code is 287082 (RFC 6238 appendix B).
const (
	rfcSecret = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"
	rfcCode   = "287082"
)

var rfcTime = time.Unix(59, 0)

type mockAccounts struct {
	mock.Mock
}

func (m *mockAccounts) Get(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockAccounts) GetProfile(ctx context.Context, userID string) (*domain.SecurityProfile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SecurityProfile), args.Error(1)
}

func (m *mockAccounts) UpdateProfile(ctx context.Context, userID string, updates map[string]interface{}, removes ...string) error {
	args := m.Called(ctx, userID, updates, removes)
	return args.Error(0)
}

// fakeAccounts keeps real profile state so tests can drive multi-step
// enrollment flows instead of asserting on individual calls.
type fakeAccounts struct {
	mu      sync.Mutex
	user    *domain.User
	profile *domain.SecurityProfile
}

func (f *fakeAccounts) Get(ctx context.Context, userID string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := *f.user
	return &u, nil
}

func (f *fakeAccounts) GetProfile(ctx context.Context, userID string) (*domain.SecurityProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := *f.profile
	return &p, nil
}

func (f *fakeAccounts) UpdateProfile(ctx context.Context, userID string, updates map[string]interface{}, removes ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, v := range updates {
		switch k {
		case "totp_secret":
			f.profile.TOTPSecret = v.(string)
		case "is_2fa_enabled":
			f.profile.Is2FAEnabled = v.(bool)
		}
	}
	for _, k := range removes {
		if k == "totp_secret" {
			f.profile.TOTPSecret = ""
		}
	}
	return nil
}

func newTestService(accounts *mockAccounts) Service {
	return NewService(ServiceDeps{
		Accounts: accounts,
		Issuer:   "identity-api",
		Now:      func() time.Time { return rfcTime },
	})
}

func TestSetup(t *testing.T) {
	accounts := new(mockAccounts)
	accounts.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1", Email: "a@b.com"}, nil)
	accounts.On("GetProfile", mock.Anything, "u1").Return(&domain.SecurityProfile{UserID: "u1"}, nil)
	accounts.On("UpdateProfile", mock.Anything, "u1", mock.MatchedBy(func(u map[string]interface{}) bool {
		secret, ok := u["totp_secret"].(string)
		return ok && secret != ""
	}), []string(nil)).Return(nil)

	svc := newTestService(accounts)
	res, err := svc.Setup(context.Background(), "u1")

	require.NoError(t, err)
	assert.NotEmpty(t, res.Secret)
	assert.Contains(t, res.ProvisioningURI, "otpauth://totp/")
	assert.Contains(t, res.ProvisioningURI, res.Secret)
}

func TestSetupAlreadyEnabled(t *testing.T) {
	accounts := new(mockAccounts)
	accounts.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1", Email: "a@b.com"}, nil)
	accounts.On("GetProfile", mock.Anything, "u1").Return(&domain.SecurityProfile{
		UserID: "u1", TOTPSecret: rfcSecret, Is2FAEnabled: true,
	}, nil)

	svc := newTestService(accounts)
	_, err := svc.Setup(context.Background(), "u1")

	assert.ErrorIs(t, err, domain.ErrOperationNotAllowed)
	accounts.AssertNotCalled(t, "UpdateProfile", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEnable(t *testing.T) {
	accounts := new(mockAccounts)
	accounts.On("GetProfile", mock.Anything, "u1").Return(&domain.SecurityProfile{
		UserID: "u1", TOTPSecret: rfcSecret,
	}, nil)
	accounts.On("UpdateProfile", mock.Anything, "u1", mock.MatchedBy(func(u map[string]interface{}) bool {
		return u["is_2fa_enabled"] == true
	}), []string(nil)).Return(nil)

	svc := newTestService(accounts)
	err := svc.Enable(context.Background(), "u1", rfcCode)

	require.NoError(t, err)
	accounts.AssertExpectations(t)
}

func TestEnableWrongCode(t *testing.T) {
	accounts := new(mockAccounts)
	accounts.On("GetProfile", mock.Anything, "u1").Return(&domain.SecurityProfile{
		UserID: "u1", TOTPSecret: rfcSecret,
	}, nil)

	svc := newTestService(accounts)
	err := svc.Enable(context.Background(), "u1", "000000")

	assert.ErrorIs(t, err, domain.ErrAuthenticationFailed)
}

func TestEnableWithoutSetup(t *testing.T) {
	accounts := new(mockAccounts)
	accounts.On("GetProfile", mock.Anything, "u1").Return(&domain.SecurityProfile{UserID: "u1"}, nil)

	svc := newTestService(accounts)
	err := svc.Enable(context.Background(), "u1", rfcCode)

	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestEnableAlreadyEnabled(t *testing.T) {
	accounts := new(mockAccounts)
	accounts.On("GetProfile", mock.Anything, "u1").Return(&domain.SecurityProfile{
		UserID: "u1", TOTPSecret: rfcSecret, Is2FAEnabled: true,
	}, nil)

	svc := newTestService(accounts)
	err := svc.Enable(context.Background(), "u1", rfcCode)

	assert.ErrorIs(t, err, domain.ErrOperationNotAllowed)
}

func TestDisable(t *testing.T) {
	accounts := new(mockAccounts)
	accounts.On("GetProfile", mock.Anything, "u1").Return(&domain.SecurityProfile{
		UserID: "u1", TOTPSecret: rfcSecret, Is2FAEnabled: true,
	}, nil)
	accounts.On("UpdateProfile", mock.Anything, "u1", mock.MatchedBy(func(u map[string]interface{}) bool {
		return u["is_2fa_enabled"] == false
	}), []string{"totp_secret"}).Return(nil)

	svc := newTestService(accounts)
	err := svc.Disable(context.Background(), "u1", rfcCode)

	require.NoError(t, err)
	accounts.AssertExpectations(t)
}

// A second Setup before Enable must rotate the pending secret: codes from
// the first secret stop working, only the latest one can confirm enrollment.
func TestSetupTwiceRotatesPendingSecret(t *testing.T) {
	store := &fakeAccounts{
		user:    &domain.User{UserID: "u1", Email: "a@b.com"},
		profile: &domain.SecurityProfile{UserID: "u1"},
	}
	svc := NewService(ServiceDeps{
		Accounts: store,
		Issuer:   "identity-api",
		Now:      func() time.Time { return rfcTime },
	})

	first, err := svc.Setup(context.Background(), "u1")
	require.NoError(t, err)
	second, err := svc.Setup(context.Background(), "u1")
	require.NoError(t, err)
	require.NotEqual(t, first.Secret, second.Secret)

	staleCode, err := totp.Code(first.Secret, rfcTime)
	require.NoError(t, err)
	err = svc.Enable(context.Background(), "u1", staleCode)
	assert.ErrorIs(t, err, domain.ErrAuthenticationFailed)
	assert.False(t, store.profile.Is2FAEnabled)

	freshCode, err := totp.Code(second.Secret, rfcTime)
	require.NoError(t, err)
	require.NoError(t, svc.Enable(context.Background(), "u1", freshCode))
	assert.True(t, store.profile.Is2FAEnabled)
	assert.Equal(t, second.Secret, store.profile.TOTPSecret)
}

func TestDisableNotEnabled(t *testing.T) {
	accounts := new(mockAccounts)
	accounts.On("GetProfile", mock.Anything, "u1").Return(&domain.SecurityProfile{
		UserID: "u1", TOTPSecret: rfcSecret,
	}, nil)

	svc := newTestService(accounts)
	err := svc.Disable(context.Background(), "u1", rfcCode)

	assert.ErrorIs(t, err, domain.ErrOperationNotAllowed)
}

func TestDisableWrongCode(t *testing.T) {
	accounts := new(mockAccounts)
	accounts.On("GetProfile", mock.Anything, "u1").Return(&domain.SecurityProfile{
		UserID: "u1", TOTPSecret: rfcSecret, Is2FAEnabled: true,
	}, nil)

	svc := newTestService(accounts)
	err := svc.Disable(context.Background(), "u1", "999999")

	assert.ErrorIs(t, err, domain.ErrAuthenticationFailed)
	accounts.AssertNotCalled(t, "UpdateProfile", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
