package auth

import (
	"fmt"
	"net/http"
)

const (
	MessageOK              = "Token is ok"
	MessageExpired         = "Token is expired, please renew your token with a refreshToken query"
	MessageDead            = "Token is expired, but is too old to renew. Please log in again."
	MessageInvalid         = "Invalid token provided"
	MessageBadLogin        = "Sorry your email and password combination is rejected"
	MessageBadRequest      = "Invalid request"
	MessageInactivatedUser = "User is not activated. Please check your email for the activation link or request a new one."
	MessageInvalidPassword = "Password does not meet the requirements"

	MessagePasswordReset        = "Password is reset"
	MessagePasswordResetRequest = "Password reset request sent"
	MessagePasswordMismatch     = "Passwords do not match"

	MessageAccountRegistered = "Account created, please check your email for the activation link"
	MessageAccountExists     = "An account with this email already exists"
	MessageActivationRequest = "Activation request sent"
	MessageAccountActivated  = "Account is activated"
)

// StatusCodeUpgradeRequired is returned for expired but renewable tokens
const StatusCodeUpgradeRequired = http.StatusUpgradeRequired

// Message returns the human readable message for a status.
// It panics on statuses it does not know.
func Message(status Status) string {
	switch status {
	case StatusOK:
		return MessageOK
	case StatusExpired:
		return MessageExpired
	case StatusDead:
		return MessageDead
	case StatusInvalid:
		return MessageInvalid
	case StatusBadLogin:
		return MessageBadLogin
	case StatusBadRequest:
		return MessageBadRequest
	case StatusInactivatedUser:
		return MessageInactivatedUser
	case StatusInvalidPassword:
		return MessageInvalidPassword
	}
	panic(fmt.Sprintf("auth: unknown status %q", string(status)))
}

// ResetPasswordMessage is Message with a success text for password resets
func ResetPasswordMessage(status Status) string {
	if status == StatusOK {
		return MessagePasswordReset
	}
	return Message(status)
}

// RequestResetPasswordMessage is Message with a success text for reset requests
func RequestResetPasswordMessage(status Status) string {
	if status == StatusOK {
		return MessagePasswordResetRequest
	}
	return Message(status)
}

// HTTPCode maps a status to the HTTP status code used when errors are
// reported through the transport
func HTTPCode(status Status) int {
	switch status {
	case StatusOK:
		return http.StatusOK
	case StatusExpired:
		return StatusCodeUpgradeRequired
	case StatusDead, StatusInvalid, StatusBadLogin, StatusBadRequest,
		StatusInactivatedUser, StatusInvalidPassword:
		return http.StatusUnauthorized
	}
	panic(fmt.Sprintf("auth: unknown status %q", string(status)))
}
