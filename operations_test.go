package auth_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-auth-jwt"
)

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendResetPasswordEmail(ctx context.Context, account *auth.Account, token string) error {
	args := m.Called(ctx, account, token)
	return args.Error(0)
}

func (m *MockMailer) SendActivationEmail(ctx context.Context, account *auth.Account, token string) error {
	args := m.Called(ctx, account, token)
	return args.Error(0)
}

// registrarless hides Register so registration is not wired automatically
type registrarless struct {
	auth.AccountStore
}

func newOperations(f *fixture) *auth.Operations {
	return auth.NewOperations(f.auth, f.accounts)
}

func TestOperations_CreateToken(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ops := newOperations(f)
	account := f.addAccount(t, "user@example.com", true, auth.RoleMember)

	t.Run("Valid credentials", func(t *testing.T) {
		resp, err := ops.CreateToken(ctx, f.req, auth.LoginData{Email: account.Email, Password: testPassword})
		require.NoError(t, err)

		assert.True(t, resp.Valid)
		assert.Equal(t, auth.StatusOK, resp.Status)
		assert.Equal(t, http.StatusOK, resp.Code)
		assert.NotEmpty(t, resp.Token)
		require.NotNil(t, resp.Account)
		assert.Equal(t, account.ID, resp.Account.ID)
		assert.Equal(t, auth.StatusOK, f.validate(t, resp.Token).Status)
	})

	t.Run("Bad credentials", func(t *testing.T) {
		resp, err := ops.CreateToken(ctx, f.req, auth.LoginData{Email: account.Email, Password: "nope"})
		require.NoError(t, err)

		assert.False(t, resp.Valid)
		assert.Equal(t, auth.StatusBadLogin, resp.Status)
		assert.Equal(t, http.StatusUnauthorized, resp.Code)
		assert.Equal(t, auth.MessageBadLogin, resp.Message)
		assert.Empty(t, resp.Token)
		assert.Nil(t, resp.Account)
	})

	t.Run("Inactive accounts get a token that reports INACTIVATED_USER", func(t *testing.T) {
		inactive := f.addAccount(t, "inactive@example.com", false, auth.RoleMember)

		resp, err := ops.CreateToken(ctx, f.req, auth.LoginData{Email: inactive.Email, Password: testPassword})
		require.NoError(t, err)
		require.Equal(t, auth.StatusOK, resp.Status)

		validated, err := ops.ValidateToken(ctx, f.req, resp.Token)
		require.NoError(t, err)
		assert.Equal(t, auth.StatusInactivatedUser, validated.Status)
		assert.Nil(t, validated.Account)
	})
}

func TestOperations_CreateAnonymousToken(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ops := newOperations(f)

	resp, err := ops.CreateAnonymousToken(ctx, f.req)
	require.NoError(t, err)
	assert.Equal(t, auth.StatusOK, resp.Status)
	assert.NotEmpty(t, resp.Token)

	f.cfg.AnonymousAllowed = false

	resp, err = ops.CreateAnonymousToken(ctx, f.req)
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, auth.ErrAnonymousNotAllowed)
}

func TestOperations_RefreshToken(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ops := newOperations(f)
	account := f.addAccount(t, "user@example.com", true, auth.RoleMember)
	issued := f.login(t, account)

	t.Run("OK tokens are renewed", func(t *testing.T) {
		resp, err := ops.RefreshToken(ctx, f.req, issued.Token)
		require.NoError(t, err)
		assert.Equal(t, auth.StatusOK, resp.Status)
		assert.NotEqual(t, issued.Token, resp.Token)
		assert.Equal(t, account.ID, resp.Account.ID)
	})

	t.Run("EXPIRED tokens are renewed and keep their record", func(t *testing.T) {
		f.clock.Advance(2 * time.Hour)

		resp, err := ops.RefreshToken(ctx, f.req, issued.Token)
		require.NoError(t, err)
		assert.Equal(t, auth.StatusOK, resp.Status)
		assert.Equal(t, auth.StatusOK, f.validate(t, resp.Token).Status)

		assert.Equal(t, auth.StatusExpired, f.validate(t, issued.Token).Status)
	})

	t.Run("DEAD tokens are not renewed", func(t *testing.T) {
		f.clock.Advance(8 * 24 * time.Hour)

		resp, err := ops.RefreshToken(ctx, f.req, issued.Token)
		require.NoError(t, err)
		assert.Equal(t, auth.StatusDead, resp.Status)
		assert.Equal(t, auth.MessageDead, resp.Message)
		assert.Empty(t, resp.Token)
	})

	t.Run("Garbage is INVALID", func(t *testing.T) {
		resp, err := ops.RefreshToken(ctx, f.req, "garbage")
		require.NoError(t, err)
		assert.Equal(t, auth.StatusInvalid, resp.Status)
	})
}

func TestOperations_RefreshAnonymousToken(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ops := newOperations(f)

	anonymous, err := ops.CreateAnonymousToken(ctx, f.req)
	require.NoError(t, err)

	resp, err := ops.RefreshToken(ctx, f.req, anonymous.Token)
	require.NoError(t, err)
	assert.Equal(t, auth.StatusOK, resp.Status)
	assert.Nil(t, resp.Account)

	f.cfg.AnonymousAllowed = false

	resp, err = ops.RefreshToken(ctx, f.req, anonymous.Token)
	require.NoError(t, err)
	assert.Equal(t, auth.StatusInvalid, resp.Status)
}

func TestOperations_LogOut(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ops := newOperations(f)
	account := f.addAccount(t, "user@example.com", true, auth.RoleMember)

	first := f.login(t, account)
	second := f.login(t, account)

	resp, err := ops.LogOut(ctx, f.req, first.Token)
	require.NoError(t, err)
	assert.Equal(t, auth.StatusDead, resp.Status)
	require.NotNil(t, resp.Account)
	assert.Equal(t, account.ID, resp.Account.ID)

	assert.Equal(t, auth.StatusInvalid, f.validate(t, first.Token).Status)
	assert.Equal(t, auth.StatusInvalid, f.validate(t, second.Token).Status)

	resp, err = ops.LogOut(ctx, f.req, first.Token)
	require.NoError(t, err)
	assert.Equal(t, auth.StatusInvalid, resp.Status)
}

func TestOperations_LogOutAnonymous(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ops := newOperations(f)

	first, err := ops.CreateAnonymousToken(ctx, f.req)
	require.NoError(t, err)
	second, err := ops.CreateAnonymousToken(ctx, f.req)
	require.NoError(t, err)

	resp, err := ops.LogOut(ctx, f.req, first.Token)
	require.NoError(t, err)
	assert.Equal(t, auth.StatusDead, resp.Status)
	assert.Nil(t, resp.Account)

	assert.Equal(t, auth.StatusInvalid, f.validate(t, first.Token).Status)
	assert.Equal(t, auth.StatusOK, f.validate(t, second.Token).Status)
}

func TestOperations_PasswordReset(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	mailer := new(MockMailer)
	sink := &recordingSink{}
	ops := newOperations(f).WithResetMailer(mailer).WithActivitySink(sink)
	account := f.addAccount(t, "user@example.com", true, auth.RoleMember)
	session := f.login(t, account)

	var resetToken string
	mailer.On("SendResetPasswordEmail", mock.Anything, mock.MatchedBy(func(a *auth.Account) bool {
		return a.ID == account.ID
	}), mock.AnythingOfType("string")).
		Run(func(args mock.Arguments) {
			resetToken = args.String(2)
		}).
		Return(nil).Once()

	resp, err := ops.RequestPasswordReset(ctx, f.req, account.Email)
	require.NoError(t, err)
	assert.True(t, resp.Successful)
	assert.Equal(t, auth.MessagePasswordResetRequest, resp.Message)
	require.NotEmpty(t, resetToken)

	validated, err := ops.ValidateResetToken(ctx, f.req, resetToken)
	require.NoError(t, err)
	assert.Equal(t, auth.StatusOK, validated.Status)
	assert.Nil(t, validated.Account, "reset validation does not expose the account")

	t.Run("Mismatched confirmation", func(t *testing.T) {
		resp, err := ops.ResetPassword(ctx, f.req, resetToken, "new-password-1", "new-password-2")
		require.NoError(t, err)
		assert.False(t, resp.Successful)
		assert.Equal(t, auth.StatusBadRequest, resp.Status)
		assert.Equal(t, auth.MessagePasswordMismatch, resp.Message)
		require.Len(t, resp.Messages, 1)
		assert.Equal(t, auth.MessagePasswordMismatch, resp.Messages[0].Message)
	})

	t.Run("Missing token keeps the generic message", func(t *testing.T) {
		resp, err := ops.ResetPassword(ctx, f.req, "", "new-password-1", "new-password-1")
		require.NoError(t, err)
		assert.Equal(t, auth.StatusBadRequest, resp.Status)
		assert.Equal(t, auth.ResetPasswordMessage(auth.StatusBadRequest), resp.Message)
		assert.Empty(t, resp.Messages)
	})

	t.Run("Weak password", func(t *testing.T) {
		resp, err := ops.ResetPassword(ctx, f.req, resetToken, "short", "short")
		require.NoError(t, err)
		assert.Equal(t, auth.StatusInvalidPassword, resp.Status)
		require.Len(t, resp.Messages, 1)
		assert.Equal(t, auth.StatusInvalidPassword, resp.Messages[0].Status)
	})

	t.Run("Successful reset", func(t *testing.T) {
		resp, err := ops.ResetPassword(ctx, f.req, resetToken, "new-password-1", "new-password-1")
		require.NoError(t, err)
		assert.True(t, resp.Successful)
		assert.Equal(t, auth.MessagePasswordReset, resp.Message)

		stored := f.accounts.get(account.ID)
		assert.Nil(t, stored.ResetTokenID)
		assert.NoError(t, auth.ComparePasswordAndHash("new-password-1", stored.PasswordHash))

		assert.Equal(t, auth.StatusInvalid, f.validate(t, session.Token).Status, "sessions are revoked")
	})

	t.Run("Reset tokens are single use", func(t *testing.T) {
		resp, err := ops.ResetPassword(ctx, f.req, resetToken, "new-password-2", "new-password-2")
		require.NoError(t, err)
		assert.False(t, resp.Successful)
		assert.Equal(t, auth.StatusInvalid, resp.Status)
	})

	assert.Equal(t, []auth.ActivityEventType{
		auth.ActivityEventPasswordResetRequest,
		auth.ActivityEventPasswordResetSuccess,
	}, sink.Types())

	mailer.AssertExpectations(t)
}

func TestOperations_RequestPasswordResetUnknownEmail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	mailer := new(MockMailer)
	ops := newOperations(f).WithResetMailer(mailer)

	for _, email := range []string{"nobody@example.com", "", "   ", "not-an-email"} {
		resp, err := ops.RequestPasswordReset(ctx, f.req, email)
		require.NoError(t, err, email)
		assert.True(t, resp.Successful, email)
		assert.Equal(t, auth.StatusOK, resp.Status, email)
		assert.Equal(t, auth.RequestResetPasswordMessage(auth.StatusOK), resp.Message, email)
	}
	assert.Equal(t, 0, f.records.Len())

	mailer.AssertNotCalled(t, "SendResetPasswordEmail", mock.Anything, mock.Anything, mock.Anything)
}

func TestOperations_ValidateResetTokenRequiresToken(t *testing.T) {
	f := newFixture(t)
	ops := newOperations(f)

	resp, err := ops.ValidateResetToken(context.Background(), f.req, "")
	require.NoError(t, err)
	assert.Equal(t, auth.StatusBadRequest, resp.Status)
}

func TestOperations_ActivateAccount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ops := newOperations(f)
	account := f.addAccount(t, "new@example.com", false, auth.RoleMember)

	signup, err := f.auth.GenerateSignupToken(ctx, f.req, account)
	require.NoError(t, err)

	resp, err := ops.ActivateAccount(ctx, f.req, signup.Token)
	require.NoError(t, err)
	assert.Equal(t, auth.StatusOK, resp.Status)
	assert.Equal(t, auth.MessageAccountActivated, resp.Message)
	require.NotNil(t, resp.Account)
	assert.True(t, resp.Account.Activated)

	stored := f.accounts.get(account.ID)
	assert.True(t, stored.Activated)
	assert.Nil(t, stored.SignupTokenID)

	resp, err = ops.ActivateAccount(ctx, f.req, signup.Token)
	require.NoError(t, err)
	assert.Equal(t, auth.StatusInvalid, resp.Status)

	resp, err = ops.ActivateAccount(ctx, f.req, "")
	require.NoError(t, err)
	assert.Equal(t, auth.StatusBadRequest, resp.Status)
}

func TestOperations_RegisterAccount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	mailer := new(MockMailer)
	ops := newOperations(f).WithSignupMailer(mailer)

	var signupToken string
	mailer.On("SendActivationEmail", mock.Anything, mock.AnythingOfType("*auth.Account"), mock.AnythingOfType("string")).
		Run(func(args mock.Arguments) {
			signupToken = args.String(2)
		}).
		Return(nil).Once()

	resp, err := ops.RegisterAccount(ctx, f.req, auth.RegisterAccountMessage{
		FirstName: "Pepe",
		LastName:  "Rone",
		Email:     "Pepe.Rone@Example.com",
		Password:  testPassword,
	})
	require.NoError(t, err)
	assert.Equal(t, auth.StatusOK, resp.Status)
	assert.Equal(t, auth.MessageAccountRegistered, resp.Message)
	require.NotEmpty(t, signupToken)

	account, err := f.accounts.FindByIdentifier(ctx, "pepe.rone@example.com")
	require.NoError(t, err)
	require.NotNil(t, account)
	assert.Equal(t, "pepe.rone", account.Username)
	assert.Equal(t, auth.RoleMember, account.Role)
	assert.False(t, account.Activated)

	t.Run("Login token of a new account is INACTIVATED_USER", func(t *testing.T) {
		login, err := ops.CreateToken(ctx, f.req, auth.LoginData{Email: account.Email, Password: testPassword})
		require.NoError(t, err)
		assert.Equal(t, auth.StatusInactivatedUser, f.validate(t, login.Token).Status)
	})

	t.Run("Duplicate email", func(t *testing.T) {
		resp, err := ops.RegisterAccount(ctx, f.req, auth.RegisterAccountMessage{
			Email:    "pepe.rone@example.com",
			Password: testPassword,
		})
		require.NoError(t, err)
		assert.Equal(t, auth.StatusBadRequest, resp.Status)
		assert.Equal(t, auth.MessageAccountExists, resp.Message)
	})

	t.Run("Invalid email", func(t *testing.T) {
		resp, err := ops.RegisterAccount(ctx, f.req, auth.RegisterAccountMessage{
			Email:    "not-an-email",
			Password: testPassword,
		})
		require.NoError(t, err)
		assert.Equal(t, auth.StatusBadRequest, resp.Status)
	})

	t.Run("Weak password", func(t *testing.T) {
		resp, err := ops.RegisterAccount(ctx, f.req, auth.RegisterAccountMessage{
			Email:    "weak@example.com",
			Password: "short",
		})
		require.NoError(t, err)
		assert.Equal(t, auth.StatusInvalidPassword, resp.Status)
	})

	t.Run("Activation", func(t *testing.T) {
		resp, err := ops.ActivateAccount(ctx, f.req, signupToken)
		require.NoError(t, err)
		assert.Equal(t, auth.StatusOK, resp.Status)
		assert.True(t, f.accounts.get(account.ID).Activated)
	})

	mailer.AssertExpectations(t)
}

func TestOperations_RegisterAccountDisabled(t *testing.T) {
	f := newFixture(t)
	ops := auth.NewOperations(f.auth, registrarless{f.accounts})

	resp, err := ops.RegisterAccount(context.Background(), f.req, auth.RegisterAccountMessage{
		Email:    "new@example.com",
		Password: testPassword,
	})
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, auth.ErrRegistrationDisabled)

	ops.WithAccountRegistrar(f.accounts)

	resp, err = ops.RegisterAccount(context.Background(), f.req, auth.RegisterAccountMessage{
		Email:    "new@example.com",
		Password: testPassword,
	})
	require.NoError(t, err)
	assert.Equal(t, auth.StatusOK, resp.Status)
}

func TestOperations_RequestActivation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	mailer := new(MockMailer)
	ops := newOperations(f).WithSignupMailer(mailer)
	account := f.addAccount(t, "new@example.com", false, auth.RoleMember)

	first, err := f.auth.GenerateSignupToken(ctx, f.req, account)
	require.NoError(t, err)

	var second string
	mailer.On("SendActivationEmail", mock.Anything, mock.Anything, mock.AnythingOfType("string")).
		Run(func(args mock.Arguments) {
			second = args.String(2)
		}).
		Return(errors.New("smtp down")).Once()

	resp, err := ops.RequestActivation(ctx, f.req, account.Email)
	require.NoError(t, err, "mailer failures are logged")
	assert.Equal(t, auth.StatusOK, resp.Status)
	assert.Equal(t, auth.MessageActivationRequest, resp.Message)
	require.NotEmpty(t, second)

	out, err := f.auth.ValidateSignupToken(ctx, first.Token, f.req)
	require.NoError(t, err)
	assert.Equal(t, auth.StatusInvalid, out.Status)
	assert.Nil(t, out.Record, "replaced signup records are deleted")

	out, err = f.auth.ValidateSignupToken(ctx, second, f.req)
	require.NoError(t, err)
	assert.Equal(t, auth.StatusOK, out.Status)

	t.Run("Unknown and active accounts are not reported", func(t *testing.T) {
		active := f.addAccount(t, "active@example.com", true, auth.RoleMember)

		for _, email := range []string{"nobody@example.com", active.Email} {
			resp, err := ops.RequestActivation(ctx, f.req, email)
			require.NoError(t, err)
			assert.Equal(t, auth.StatusOK, resp.Status)
		}
	})

	t.Run("Empty email", func(t *testing.T) {
		resp, err := ops.RequestActivation(ctx, f.req, " ")
		require.NoError(t, err)
		assert.Equal(t, auth.StatusBadRequest, resp.Status)
	})

	mailer.AssertExpectations(t)
}
