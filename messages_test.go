package auth_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	auth "github.com/goliatone/go-auth-jwt"
)

func TestMessageAndHTTPCode(t *testing.T) {
	for _, status := range auth.Statuses {
		t.Run(status.String(), func(t *testing.T) {
			assert.NotEmpty(t, auth.Message(status))

			code := auth.HTTPCode(status)
			switch status {
			case auth.StatusOK:
				assert.Equal(t, http.StatusOK, code)
			case auth.StatusExpired:
				assert.Equal(t, http.StatusUpgradeRequired, code)
			default:
				assert.Equal(t, http.StatusUnauthorized, code)
			}
		})
	}
}

func TestMessagePanicsOnUnknownStatus(t *testing.T) {
	assert.Panics(t, func() { auth.Message(auth.Status("NOPE")) })
	assert.Panics(t, func() { auth.HTTPCode(auth.Status("NOPE")) })
}

func TestPasswordMessages(t *testing.T) {
	assert.Equal(t, auth.MessagePasswordReset, auth.ResetPasswordMessage(auth.StatusOK))
	assert.Equal(t, auth.MessageInvalid, auth.ResetPasswordMessage(auth.StatusInvalid))
	assert.Equal(t, auth.MessagePasswordResetRequest, auth.RequestResetPasswordMessage(auth.StatusOK))
}

func TestTokenResponse(t *testing.T) {
	account := &auth.Account{Email: "user@example.com"}

	ok := auth.NewTokenResponse(auth.StatusOK, account, "token")
	assert.True(t, ok.Valid)
	assert.Equal(t, account, ok.Account)
	assert.Equal(t, auth.MessageOK, ok.Message)

	expired := auth.NewTokenResponse(auth.StatusExpired, account, "token")
	assert.False(t, expired.Valid)
	assert.Nil(t, expired.Account)
	assert.Equal(t, http.StatusUpgradeRequired, expired.Code)

	assert.Equal(t, account, expired.WithAccount(account).Account)
	assert.Equal(t, "custom", expired.WithMessage("custom").Message)
	assert.Equal(t, "custom", expired.WithMessage("").Message)
}
