package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds the token options. Getters are evaluated on every
// call so key material is never cached between requests.
type Config interface {
	GetSignerKey() string
	GetKeyPassword() string
	GetPublicKey() string
	GetBasePath() string
	GetSignerDomains() []string
	GetIssuer() string
	GetBaseURL() string
	GetNotBefore() int
	GetTokenExpiration() int
	GetSignupTokenExpiration() int
	GetResetTokenExpiration() int
	GetRenewExpiration() int
	GetAnonymousAllowed() bool
	GetAnonymousUsername() string
	GetPreferHTTPErrors() bool
	GetSubjectFields() []string
	GetTokenPrefix() string
}

// RequestContext carries the request attributes the token lifecycle
// depends on. It replaces any notion of an ambient current request.
type RequestContext struct {
	// Origin is the value of the Origin header, used as issuer
	Origin string
	// BaseURL is the absolute base URL expected in the audience
	BaseURL string
	// UserAgent is stored on issued token records
	UserAgent string
	// RemoteAddr is only used for activity metadata
	RemoteAddr string
}

// AccountStore is the account persistence the token lifecycle needs.
// Lookups return nil, nil when no account matches.
type AccountStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Account, error)
	FindByIdentifier(ctx context.Context, identifier string) (*Account, error)
	FindByResetToken(ctx context.Context, recordID uuid.UUID) (*Account, error)
	FindBySignupToken(ctx context.Context, recordID uuid.UUID) (*Account, error)
	SetResetToken(ctx context.Context, accountID uuid.UUID, recordID *uuid.UUID) error
	SetSignupToken(ctx context.Context, accountID uuid.UUID, recordID *uuid.UUID) error
	Activate(ctx context.Context, accountID uuid.UUID) error
	ResetPassword(ctx context.Context, accountID uuid.UUID, passwordHash string) error
	TrackAttemptedLogin(ctx context.Context, account *Account) error
	TrackSuccessfulLogin(ctx context.Context, account *Account) error
}

// TokenRecordStore persists the server side anchor of every issued token.
type TokenRecordStore interface {
	Create(ctx context.Context, class TokenClass, accountID *uuid.UUID, userAgent string) (*TokenRecord, error)
	// FindByID returns nil, nil when the record does not exist
	FindByID(ctx context.Context, id uuid.UUID) (*TokenRecord, error)
	Delete(ctx context.Context, record *TokenRecord) error
	DeleteAuthTokens(ctx context.Context, accountID uuid.UUID) (int, error)
	ListAuthTokens(ctx context.Context, accountID uuid.UUID) ([]*TokenRecord, error)
}

// SubAuthenticator resolves an account from login data. A nil account
// means the authenticator did not accept the data, the result explains why.
type SubAuthenticator interface {
	Authenticate(ctx context.Context, data LoginData, req RequestContext) (*Account, *ValidationResult)
}

// ResetMailer delivers the password reset link. Delivery is out of scope
// for this package, callers plug their own transport.
type ResetMailer interface {
	SendResetPasswordEmail(ctx context.Context, account *Account, token string) error
}

// SignupMailer delivers the account activation link
type SignupMailer interface {
	SendActivationEmail(ctx context.Context, account *Account, token string) error
}

// AccountRegistrar persists new accounts
type AccountRegistrar interface {
	Register(ctx context.Context, account *Account) (*Account, error)
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
