package auth

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
)

// Operations is the surface transports call into. Expected failures are
// reported as response statuses, errors are reserved for configuration
// and store problems.
type Operations struct {
	auth       *Authenticator
	accounts   AccountStore
	initialize *InitializePasswordResetHandler
	finalize   *FinalizePasswordResetHandler
	register   *RegisterAccountHandler
	activation *AccountActivationRequestHandler
	mailer     SignupMailer
	policy     PasswordPolicy
	activity   ActivitySink
	logger     Logger
	hashedIDs  bool
}

// NewOperations wires the command handlers. Registration is available
// when accounts also implements AccountRegistrar, see WithAccountRegistrar.
func NewOperations(auth *Authenticator, accounts AccountStore) *Operations {
	ops := &Operations{
		auth:       auth,
		accounts:   accounts,
		initialize: NewInitializePasswordResetHandler(auth, accounts),
		finalize:   NewFinalizePasswordResetHandler(auth, accounts),
		activation: NewAccountActivationRequestHandler(auth, accounts),
		activity:   noopActivitySink{},
		logger:     defLogger{},
	}
	if registrar, ok := accounts.(AccountRegistrar); ok {
		ops.register = NewRegisterAccountHandler(auth, accounts, registrar)
	}
	return ops
}

func (o *Operations) WithLogger(logger Logger) *Operations {
	if logger != nil {
		o.logger = logger
		o.initialize.WithLogger(logger)
		o.finalize.WithLogger(logger)
		o.activation.WithLogger(logger)
		if o.register != nil {
			o.register.WithLogger(logger)
		}
	}
	return o
}

func (o *Operations) WithAccountRegistrar(registrar AccountRegistrar) *Operations {
	if registrar != nil {
		o.register = NewRegisterAccountHandler(o.auth, o.accounts, registrar).
			WithLogger(o.logger).
			WithActivitySink(o.activity).
			WithPasswordPolicy(o.policy).
			WithSignupMailer(o.mailer).
			WithHashedIDs(o.hashedIDs)
	}
	return o
}

// WithHashedAccountIDs makes registration derive account ids from emails
func (o *Operations) WithHashedAccountIDs(enabled bool) *Operations {
	o.hashedIDs = enabled
	if o.register != nil {
		o.register.WithHashedIDs(enabled)
	}
	return o
}

// WithSignupMailer sets the hook delivering activation links
func (o *Operations) WithSignupMailer(mailer SignupMailer) *Operations {
	o.mailer = mailer
	o.activation.WithSignupMailer(mailer)
	if o.register != nil {
		o.register.WithSignupMailer(mailer)
	}
	return o
}

// WithResetMailer sets the hook delivering password reset links
func (o *Operations) WithResetMailer(mailer ResetMailer) *Operations {
	o.initialize.WithResetMailer(mailer)
	return o
}

func (o *Operations) WithPasswordPolicy(policy PasswordPolicy) *Operations {
	o.policy = policy
	o.finalize.WithPasswordPolicy(policy)
	if o.register != nil {
		o.register.WithPasswordPolicy(policy)
	}
	return o
}

func (o *Operations) WithActivitySink(sink ActivitySink) *Operations {
	o.activity = normalizeActivitySink(sink)
	o.initialize.WithActivitySink(sink)
	o.finalize.WithActivitySink(sink)
	if o.register != nil {
		o.register.WithActivitySink(sink)
	}
	return o
}

func (o *Operations) Authenticator() *Authenticator {
	return o.auth
}

// CreateToken logs in with credentials and issues a login token
func (o *Operations) CreateToken(ctx context.Context, req RequestContext, data LoginData) (*TokenResponse, error) {
	account, result := o.auth.AuthenticateWithCredentials(ctx, data, req)
	if account == nil {
		return NewTokenResponse(StatusBadLogin, nil, "").WithMessage(result.FirstMessage()), nil
	}

	issued, err := o.auth.GenerateToken(ctx, req, account)
	if err != nil {
		return nil, err
	}

	return NewTokenResponse(StatusOK, account, issued.Token), nil
}

// CreateAnonymousToken issues a login token bound to no account
func (o *Operations) CreateAnonymousToken(ctx context.Context, req RequestContext) (*TokenResponse, error) {
	issued, err := o.auth.GenerateAnonymousToken(ctx, req)
	if err != nil {
		return nil, err
	}
	return NewTokenResponse(StatusOK, nil, issued.Token), nil
}

// ValidateToken reports the state of a login token
func (o *Operations) ValidateToken(ctx context.Context, req RequestContext, token string) (*TokenResponse, error) {
	out, err := o.auth.ValidateToken(ctx, token, req)
	if err != nil {
		return nil, err
	}
	return NewTokenResponse(out.Status, out.Account, token), nil
}

// ValidateResetToken reports the state of a password reset token without
// exposing the account
func (o *Operations) ValidateResetToken(ctx context.Context, req RequestContext, token string) (*TokenResponse, error) {
	if token == "" {
		return NewTokenResponse(StatusBadRequest, nil, ""), nil
	}

	out, err := o.auth.ValidateResetToken(ctx, token, req)
	if err != nil {
		return nil, err
	}
	return NewTokenResponse(out.Status, nil, token), nil
}

// RefreshToken mints a new login token from an OK or EXPIRED one. The
// old record is kept, it dies with its renewal window.
func (o *Operations) RefreshToken(ctx context.Context, req RequestContext, token string) (*TokenResponse, error) {
	out, err := o.auth.ValidateToken(ctx, token, req)
	if err != nil {
		return nil, err
	}

	if !out.Status.IsRenewable() {
		return NewTokenResponse(out.Status, nil, ""), nil
	}

	var issued *IssuedToken
	switch {
	case out.Account != nil:
		issued, err = o.auth.GenerateToken(ctx, req, out.Account)
	case out.Record.AccountID == nil:
		issued, err = o.auth.GenerateAnonymousToken(ctx, req)
	default:
		return NewTokenResponse(StatusInvalid, nil, ""), nil
	}

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) && richErr.TextCode == TextCodeAnonymousDisabled {
			return NewTokenResponse(StatusInvalid, nil, ""), nil
		}
		return nil, err
	}

	return NewTokenResponse(StatusOK, out.Account, issued.Token), nil
}

// LogOut revokes every login token of the token's account and reports
// DEAD. Anonymous sessions only lose their own record.
func (o *Operations) LogOut(ctx context.Context, req RequestContext, token string) (*TokenResponse, error) {
	out, err := o.auth.ValidateToken(ctx, token, req)
	if err != nil {
		return nil, err
	}

	if out.Status != StatusOK {
		return NewTokenResponse(out.Status, nil, token), nil
	}

	if out.Account != nil {
		if _, err := o.auth.RevokeAllTokens(ctx, out.Account); err != nil {
			return nil, err
		}
	} else if err := o.auth.RevokeToken(ctx, out.Record); err != nil {
		return nil, err
	}

	return NewTokenResponse(StatusDead, nil, token).WithAccount(out.Account), nil
}

// RequestPasswordReset always answers OK so callers can not probe for
// registered emails
func (o *Operations) RequestPasswordReset(ctx context.Context, req RequestContext, email string) (*PasswordResponse, error) {
	err := o.initialize.Execute(ctx, InitializePasswordResetMessage{
		Email:   email,
		Request: req,
	})
	if err != nil {
		return nil, err
	}
	return NewRequestResetPasswordResponse(StatusOK), nil
}

// ResetPassword consumes a reset token and sets the new password
func (o *Operations) ResetPassword(ctx context.Context, req RequestContext, token, password, confirm string) (*PasswordResponse, error) {
	var resp *PasswordResponse
	err := o.finalize.Execute(ctx, FinalizePasswordResetMessage{
		Token:           token,
		Password:        password,
		PasswordConfirm: confirm,
		Request:         req,
		OnResponse: func(r *PasswordResponse) {
			resp = r
		},
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// ActivateAccount consumes a signup token and activates its account
func (o *Operations) ActivateAccount(ctx context.Context, req RequestContext, token string) (*TokenResponse, error) {
	if token == "" {
		return NewTokenResponse(StatusBadRequest, nil, ""), nil
	}

	out, err := o.auth.ValidateSignupToken(ctx, token, req)
	if err != nil {
		return nil, err
	}

	if out.Status != StatusOK {
		return NewTokenResponse(out.Status, nil, ""), nil
	}

	account := out.Account
	if err := o.accounts.Activate(ctx, account.ID); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to activate account")
	}
	account.Activated = true
	account.SignupTokenID = nil

	if err := o.auth.RevokeToken(ctx, out.Record); err != nil {
		o.logger.Warn("failed to delete used signup token record %s: %v", out.Record.ID, err)
	}

	event := newActivityEvent(ActivityEventAccountActivated, account, o.auth.Codec().Now(), nil)
	if err := normalizeActivitySink(o.activity).Record(ctx, event); err != nil {
		o.logger.Warn("activity sink error during account activation: %v", err)
	}

	return NewTokenResponse(StatusOK, account, "").WithMessage(MessageAccountActivated), nil
}

// RegisterAccount creates an inactive account and sends its signup token
func (o *Operations) RegisterAccount(ctx context.Context, req RequestContext, msg RegisterAccountMessage) (*TokenResponse, error) {
	if o.register == nil {
		return nil, ErrRegistrationDisabled
	}

	var resp *TokenResponse
	msg.Request = req
	msg.OnResponse = func(r *TokenResponse) {
		resp = r
	}

	if err := o.register.Execute(ctx, msg); err != nil {
		return nil, err
	}
	return resp, nil
}

// RequestActivation re-sends the signup token of an inactive account.
// Like RequestPasswordReset it does not reveal whether the email exists.
func (o *Operations) RequestActivation(ctx context.Context, req RequestContext, email string) (*TokenResponse, error) {
	var resp *TokenResponse
	err := o.activation.Execute(ctx, AccountActivationRequestMessage{
		Email:   email,
		Request: req,
		OnResponse: func(r *TokenResponse) {
			resp = r
		},
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}
