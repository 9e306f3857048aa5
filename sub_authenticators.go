package auth

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// MaxLoginAttempts is the maximun number of attempts an account gets
// in a period
var MaxLoginAttempts = 5

// CoolDownPeriod is the period in which we enforce a cool down
var CoolDownPeriod = "24h"

// MessageTooManyAttempts is reported while an account is cooling down
const MessageTooManyAttempts = "Too many failed login attempts, please try again later"

// LoginData is what a client submits to log in. Token is only used by
// token based authenticators.
type LoginData struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
	Token    string `json:"-"`
}

// ValidationMessage is a single entry of a ValidationResult
type ValidationMessage struct {
	Message string `json:"message"`
	Status  Status `json:"status"`
}

// ValidationResult is the side channel authenticators report through
type ValidationResult struct {
	messages []ValidationMessage
}

func NewValidationResult() *ValidationResult {
	return &ValidationResult{}
}

// AddError records a failure, the result is invalid afterwards
func (r *ValidationResult) AddError(message string, status Status) *ValidationResult {
	r.messages = append(r.messages, ValidationMessage{Message: message, Status: status})
	return r
}

func (r *ValidationResult) IsValid() bool {
	return r == nil || len(r.messages) == 0
}

func (r *ValidationResult) Messages() []ValidationMessage {
	if r == nil {
		return nil
	}
	return append([]ValidationMessage(nil), r.messages...)
}

// FirstMessage returns the first recorded message, if any
func (r *ValidationResult) FirstMessage() string {
	if r == nil || len(r.messages) == 0 {
		return ""
	}
	return r.messages[0].Message
}

// Status returns the status of the first failure, OK for valid results
func (r *ValidationResult) Status() Status {
	if r.IsValid() {
		return StatusOK
	}
	return r.messages[0].Status
}

func failedResult(status Status, message string) *ValidationResult {
	if message == "" {
		message = Message(status)
	}
	return NewValidationResult().AddError(message, status)
}

// PasswordAuthenticator checks email and password against stored bcrypt
// hashes, with a login attempt cool down.
type PasswordAuthenticator struct {
	store     AccountStore
	Validator func(*Account) error
	logger    Logger
	now       func() time.Time
}

var _ SubAuthenticator = (*PasswordAuthenticator)(nil)

// NewPasswordAuthenticator will create a new PasswordAuthenticator
func NewPasswordAuthenticator(store AccountStore) *PasswordAuthenticator {
	return &PasswordAuthenticator{
		store:     store,
		Validator: defaultValidator,
		logger:    defLogger{},
		now:       time.Now,
	}
}

func (p *PasswordAuthenticator) WithLogger(logger Logger) *PasswordAuthenticator {
	if logger != nil {
		p.logger = logger
	}
	return p
}

func (p *PasswordAuthenticator) WithClock(now func() time.Time) *PasswordAuthenticator {
	if now != nil {
		p.now = now
	}
	return p
}

// Authenticate will find the account and compare the password
func (p *PasswordAuthenticator) Authenticate(ctx context.Context, data LoginData, _ RequestContext) (*Account, *ValidationResult) {
	email := strings.TrimSpace(data.Email)
	if email == "" || data.Password == "" {
		return nil, failedResult(StatusBadLogin, "")
	}

	account, err := p.store.FindByIdentifier(ctx, email)
	if err != nil {
		p.logger.Error("failed to retrieve account during login: %v", err)
		return nil, failedResult(StatusBadLogin, "")
	}

	if account == nil {
		return nil, failedResult(StatusBadLogin, "")
	}

	if account.LoginAttemptAt != nil {
		outside, err := IsOutsideThresholdPeriod(p.now(), *account.LoginAttemptAt, CoolDownPeriod)
		if err != nil {
			p.logger.Error("failed to calculate login attempt cooldown: %v", err)
			return nil, failedResult(StatusBadLogin, "")
		}

		if outside {
			account.LoginAttempts = 0
		}
	}

	//if we have too many attempts in the given window, cool off!
	if account.LoginAttempts > MaxLoginAttempts {
		return nil, failedResult(StatusBadLogin, MessageTooManyAttempts)
	}

	if err := ComparePasswordAndHash(data.Password, account.PasswordHash); err != nil {
		if err2 := p.store.TrackAttemptedLogin(ctx, account); err2 != nil {
			p.logger.Error("failed to track login attempt: %v", err2)
		}
		return nil, failedResult(StatusBadLogin, "")
	}

	if err := p.store.TrackSuccessfulLogin(ctx, account); err != nil {
		p.logger.Error("failed to track successful login: %v", err)
	}

	if p.Validator != nil {
		if err := p.Validator(account); err != nil {
			p.logger.Warn("account %s rejected by validator: %v", account.ID, err)
			return nil, failedResult(StatusBadLogin, "")
		}
	}

	return account, NewValidationResult()
}

// AnonymousAuthenticator logs in the configured anonymous account
// without a password, when anonymous access is allowed.
type AnonymousAuthenticator struct {
	cfg   Config
	store AccountStore
}

var _ SubAuthenticator = (*AnonymousAuthenticator)(nil)

func NewAnonymousAuthenticator(cfg Config, store AccountStore) *AnonymousAuthenticator {
	return &AnonymousAuthenticator{cfg: cfg, store: store}
}

func (a *AnonymousAuthenticator) Authenticate(ctx context.Context, data LoginData, _ RequestContext) (*Account, *ValidationResult) {
	if !a.cfg.GetAnonymousAllowed() {
		return nil, failedResult(StatusBadLogin, "")
	}

	username := a.cfg.GetAnonymousUsername()
	if username == "" || !strings.EqualFold(strings.TrimSpace(data.Email), username) {
		return nil, failedResult(StatusBadLogin, "")
	}

	account, err := a.store.FindByIdentifier(ctx, username)
	if err != nil || account == nil {
		return nil, failedResult(StatusBadLogin, "")
	}

	return account, NewValidationResult()
}

func defaultValidator(a *Account) error {
	if a.Role.IsValid() {
		return nil
	}
	return goerrors.New("account has an unknown or invalid role", goerrors.CategoryAuth).
		WithTextCode("INVALID_ROLE").
		WithMetadata(map[string]any{"role": a.Role, "account_id": a.ID.String()})
}
