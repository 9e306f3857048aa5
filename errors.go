package auth

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeMissingSignerKey    = "MISSING_SIGNER_KEY"
	TextCodeMissingPublicKey    = "MISSING_PUBLIC_KEY"
	TextCodeInvalidKey          = "INVALID_KEY"
	TextCodeTokenSigning        = "TOKEN_SIGNING_FAILED"
	TextCodeTokenRecordConflict = "TOKEN_RECORD_CONFLICT"
	TextCodeAnonymousDisabled   = "ANONYMOUS_NOT_ALLOWED"
	TextCodeProtectedClaims     = "PROTECTED_CLAIMS_MUTATED"
	TextCodeAccountRequired     = "ACCOUNT_REQUIRED"
	TextCodeEmptyPassword       = "EMPTY_PASSWORD"
	TextCodeMismatchedPassword  = "MISMATCHED_PASSWORD"
	TextCodeRegistrationOff     = "REGISTRATION_DISABLED"
)

// ErrMissingSignerKey is returned when no signer key is configured
var ErrMissingSignerKey = goerrors.New("signer key is not configured", goerrors.CategoryInternal).
	WithTextCode(TextCodeMissingSignerKey).
	WithCode(goerrors.CodeInternal)

// ErrMissingPublicKey is returned when an RSA private key is configured
// without a readable public key
var ErrMissingPublicKey = goerrors.New("public key is missing or unreadable", goerrors.CategoryInternal).
	WithTextCode(TextCodeMissingPublicKey).
	WithCode(goerrors.CodeInternal)

// ErrInvalidKey is returned when key material can not be parsed
var ErrInvalidKey = goerrors.New("key material could not be parsed", goerrors.CategoryInternal).
	WithTextCode(TextCodeInvalidKey).
	WithCode(goerrors.CodeInternal)

// ErrTokenSigning wraps signing failures
var ErrTokenSigning = goerrors.New("unable to sign token", goerrors.CategoryInternal).
	WithTextCode(TextCodeTokenSigning).
	WithCode(goerrors.CodeInternal)

// ErrTokenRecordConflict is returned when a token uid already exists
var ErrTokenRecordConflict = goerrors.New("token record uid already exists", goerrors.CategoryConflict).
	WithTextCode(TextCodeTokenRecordConflict).
	WithCode(goerrors.CodeConflict)

// ErrAnonymousNotAllowed is returned when minting anonymous tokens is disabled
var ErrAnonymousNotAllowed = goerrors.New("anonymous tokens are not allowed", goerrors.CategoryAuthz).
	WithTextCode(TextCodeAnonymousDisabled).
	WithCode(goerrors.CodeForbidden)

// ErrImmutableClaimMutation is returned when a claims decorator changes
// registered claims
var ErrImmutableClaimMutation = goerrors.New("claims decorator modified protected claims", goerrors.CategoryInternal).
	WithTextCode(TextCodeProtectedClaims).
	WithCode(goerrors.CodeInternal)

// ErrAccountRequired is returned when an operation needs an account
var ErrAccountRequired = goerrors.New("account is required", goerrors.CategoryBadInput).
	WithTextCode(TextCodeAccountRequired).
	WithCode(goerrors.CodeBadRequest)

// ErrNoEmptyString is returned when hashing an empty password
var ErrNoEmptyString = goerrors.New("password can not be empty", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(goerrors.CodeBadRequest)

// ErrMismatchedHashAndPassword is returned when the password does not match
var ErrMismatchedHashAndPassword = goerrors.New("password does not match", goerrors.CategoryAuth).
	WithTextCode(TextCodeMismatchedPassword).
	WithCode(goerrors.CodeUnauthorized)

// ErrRegistrationDisabled is returned when no AccountRegistrar is configured
var ErrRegistrationDisabled = goerrors.New("account registration is not available", goerrors.CategoryOperation).
	WithTextCode(TextCodeRegistrationOff).
	WithCode(goerrors.CodeForbidden)

// withSource clones a sentinel so callers can attach the cause and
// metadata without mutating the shared value
func withSource(base *goerrors.Error, err error, meta map[string]any) *goerrors.Error {
	clone := base.Clone()
	if clone == nil {
		clone = base
	}
	if err != nil {
		clone.Source = err
	}
	if len(meta) > 0 {
		clone.WithMetadata(meta)
	}
	return clone
}

// IsConfigurationError reports whether err is a configuration
// failure that should surface as a server error
func IsConfigurationError(err error) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	switch richErr.TextCode {
	case TextCodeMissingSignerKey, TextCodeMissingPublicKey, TextCodeInvalidKey:
		return true
	}
	return false
}
