package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// IssuedToken is a signed token together with its record
type IssuedToken struct {
	Token  string
	Record *TokenRecord
	Claims *TokenClaims
}

// ExpiresAt returns the exp claim of the token
func (t *IssuedToken) ExpiresAt() time.Time {
	if t == nil || t.Claims == nil {
		return time.Time{}
	}
	return t.Claims.Expires()
}

// Authenticator issues, validates and revokes stateful tokens and
// resolves accounts from credentials through its sub authenticators.
type Authenticator struct {
	cfg       Config
	codec     *TokenCodec
	validator *TokenValidator
	records   TokenRecordStore
	accounts  AccountStore
	subs      []SubAuthenticator
	logger    Logger
	activity  ActivitySink
}

var _ SubAuthenticator = (*Authenticator)(nil)

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(cfg Config, records TokenRecordStore, accounts AccountStore) *Authenticator {
	codec := NewTokenCodec(cfg)
	return &Authenticator{
		cfg:       cfg,
		codec:     codec,
		validator: NewTokenValidator(codec, records, accounts),
		records:   records,
		accounts:  accounts,
		logger:    defLogger{},
		activity:  noopActivitySink{},
	}
}

func (a *Authenticator) WithLogger(logger Logger) *Authenticator {
	if logger != nil {
		a.logger = logger
		a.codec.WithLogger(logger)
		a.validator.WithLogger(logger)
	}
	return a
}

// WithClock replaces time.Now for minting, validation and events
func (a *Authenticator) WithClock(now func() time.Time) *Authenticator {
	a.codec.WithClock(now)
	return a
}

// WithClaimsDecorator configures a ClaimsDecorator for enriching tokens.
func (a *Authenticator) WithClaimsDecorator(decorator ClaimsDecorator) *Authenticator {
	a.codec.WithClaimsDecorator(decorator)
	return a
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (a *Authenticator) WithActivitySink(sink ActivitySink) *Authenticator {
	a.activity = normalizeActivitySink(sink)
	return a
}

// WithSubAuthenticators sets the ordered list used for credential logins
func (a *Authenticator) WithSubAuthenticators(subs ...SubAuthenticator) *Authenticator {
	a.subs = a.subs[:0]
	for _, sub := range subs {
		if sub != nil {
			a.subs = append(a.subs, sub)
		}
	}
	return a
}

// WithUserAgentBinding makes tokens valid only for the user agent they
// were issued to
func (a *Authenticator) WithUserAgentBinding(enabled bool) *Authenticator {
	a.validator.WithUserAgentBinding(enabled)
	return a
}

func (a *Authenticator) Config() Config {
	return a.cfg
}

func (a *Authenticator) Codec() *TokenCodec {
	return a.codec
}

func (a *Authenticator) Validator() *TokenValidator {
	return a.validator
}

// Authenticate logs in with the bearer token carried in data.Token.
// It makes the Authenticator usable wherever a SubAuthenticator is.
func (a *Authenticator) Authenticate(ctx context.Context, data LoginData, req RequestContext) (*Account, *ValidationResult) {
	account, result, err := a.AuthenticateWithToken(ctx, data.Token, req)
	if err != nil {
		a.logger.Error("token authentication failed: %v", err)
		return nil, failedResult(StatusInvalid, "")
	}
	return account, result
}

// AuthenticateWithCredentials asks each sub authenticator in order and
// returns the first account accepted with a valid result.
func (a *Authenticator) AuthenticateWithCredentials(ctx context.Context, data LoginData, req RequestContext) (*Account, *ValidationResult) {
	ctx, span := startSpan(ctx, "auth.authenticate_credentials")
	defer span.End()

	var last *ValidationResult
	for _, sub := range a.subs {
		if _, self := sub.(*Authenticator); self {
			continue
		}

		account, result := sub.Authenticate(ctx, data, req)
		if account != nil && result.IsValid() {
			a.emit(ctx, ActivityEventLoginSuccess, account, map[string]any{
				"user_agent": req.UserAgent,
			})
			return account, NewValidationResult()
		}

		// the first failure is reported
		if last == nil && result != nil && !result.IsValid() {
			last = result
		}
	}

	a.emit(ctx, ActivityEventLoginFailure, nil, map[string]any{
		"identifier": data.Email,
		"user_agent": req.UserAgent,
	})

	if last == nil {
		last = failedResult(StatusBadLogin, "")
	}
	return nil, last
}

// AuthenticateWithToken returns the token's account only when the token
// is OK. Other outcomes are reported through the result.
func (a *Authenticator) AuthenticateWithToken(ctx context.Context, raw string, req RequestContext) (*Account, *ValidationResult, error) {
	out, err := a.validator.ValidateToken(ctx, raw, req)
	if err != nil {
		return nil, failedResult(StatusInvalid, ""), err
	}

	if out.Status != StatusOK {
		return nil, failedResult(out.Status, ""), nil
	}

	return out.Account, NewValidationResult(), nil
}

// ValidateToken runs the login token state machine
func (a *Authenticator) ValidateToken(ctx context.Context, raw string, req RequestContext) (Outcome, error) {
	return a.validator.ValidateToken(ctx, raw, req)
}

func (a *Authenticator) ValidateAnonymousToken(ctx context.Context, raw string, req RequestContext) (Outcome, error) {
	return a.validator.ValidateAnonymousToken(ctx, raw, req)
}

func (a *Authenticator) ValidateResetToken(ctx context.Context, raw string, req RequestContext) (Outcome, error) {
	return a.validator.ValidateResetToken(ctx, raw, req)
}

func (a *Authenticator) ValidateSignupToken(ctx context.Context, raw string, req RequestContext) (Outcome, error) {
	return a.validator.ValidateSignupToken(ctx, raw, req)
}

// GenerateToken issues a renewable login token for account
func (a *Authenticator) GenerateToken(ctx context.Context, req RequestContext, account *Account) (*IssuedToken, error) {
	if account == nil {
		return nil, ErrAccountRequired
	}

	issued, err := a.issue(ctx, req, TokenClassAuth, account, MintParams{
		Account:   account,
		Subject:   SubjectForAccount(account, a.cfg.GetSubjectFields()),
		TTL:       seconds(a.cfg.GetTokenExpiration()),
		Renewable: true,
	})
	if err != nil {
		return nil, err
	}

	a.emit(ctx, ActivityEventTokenIssued, account, map[string]any{
		"record_id": issued.Record.ID.String(),
	})
	return issued, nil
}

// GenerateAnonymousToken issues a renewable login token bound to no
// account. It fails unless anonymous access is allowed.
func (a *Authenticator) GenerateAnonymousToken(ctx context.Context, req RequestContext) (*IssuedToken, error) {
	if !a.cfg.GetAnonymousAllowed() {
		return nil, ErrAnonymousNotAllowed
	}

	issued, err := a.issue(ctx, req, TokenClassAuth, nil, MintParams{
		Subject:   AnonymousSubject(),
		TTL:       seconds(a.cfg.GetTokenExpiration()),
		Renewable: true,
	})
	if err != nil {
		return nil, err
	}

	a.emit(ctx, ActivityEventAnonymousTokenIssued, nil, map[string]any{
		"record_id": issued.Record.ID.String(),
	})
	return issued, nil
}

// GenerateResetToken issues a password reset token and points the
// account's reset reference at it. Older reset tokens stop validating.
func (a *Authenticator) GenerateResetToken(ctx context.Context, req RequestContext, account *Account) (*IssuedToken, error) {
	issued, err := a.issueSingleUse(ctx, req, account, seconds(a.cfg.GetResetTokenExpiration()), "reset")
	if err != nil {
		return nil, err
	}

	if err := a.accounts.SetResetToken(ctx, account.ID, &issued.Record.ID); err != nil {
		a.discard(ctx, issued.Record)
		return nil, err
	}

	account.ResetTokenID = &issued.Record.ID
	return issued, nil
}

// GenerateSignupToken issues an account activation token
func (a *Authenticator) GenerateSignupToken(ctx context.Context, req RequestContext, account *Account) (*IssuedToken, error) {
	issued, err := a.issueSingleUse(ctx, req, account, seconds(a.cfg.GetSignupTokenExpiration()), "signup")
	if err != nil {
		return nil, err
	}

	if err := a.accounts.SetSignupToken(ctx, account.ID, &issued.Record.ID); err != nil {
		a.discard(ctx, issued.Record)
		return nil, err
	}

	account.SignupTokenID = &issued.Record.ID
	return issued, nil
}

func (a *Authenticator) issueSingleUse(ctx context.Context, req RequestContext, account *Account, ttl time.Duration, purpose string) (*IssuedToken, error) {
	if account == nil {
		return nil, ErrAccountRequired
	}

	issued, err := a.issue(ctx, req, TokenClassAnonymous, nil, MintParams{
		Account: account,
		Subject: AnonymousSubject(),
		TTL:     ttl,
	})
	if err != nil {
		return nil, err
	}

	a.emit(ctx, ActivityEventSingleUseTokenIssued, account, map[string]any{
		"record_id": issued.Record.ID.String(),
		"purpose":   purpose,
	})
	return issued, nil
}

// RevokeAllTokens deletes every login token record of the account.
// Calling it again is a no-op.
func (a *Authenticator) RevokeAllTokens(ctx context.Context, account *Account) (int, error) {
	if account == nil {
		return 0, ErrAccountRequired
	}

	ctx, span := startSpan(ctx, "auth.revoke_all_tokens", attribute.String("auth.account_id", account.ID.String()))
	n, err := a.records.DeleteAuthTokens(ctx, account.ID)
	endSpan(span, "", err)
	if err != nil {
		return 0, err
	}

	if n > 0 {
		a.emit(ctx, ActivityEventTokenRevoked, account, map[string]any{
			"revoked": n,
		})
	}
	return n, nil
}

// RevokeToken deletes a single record, killing its token
func (a *Authenticator) RevokeToken(ctx context.Context, record *TokenRecord) error {
	if record == nil {
		return nil
	}

	if err := a.records.Delete(ctx, record); err != nil {
		return err
	}

	var account *Account
	if record.AccountID != nil {
		account = &Account{ID: *record.AccountID}
	}
	a.emit(ctx, ActivityEventTokenRevoked, account, map[string]any{
		"record_id": record.ID.String(),
	})
	return nil
}

// issue persists the record before minting so no token exists without one
func (a *Authenticator) issue(ctx context.Context, req RequestContext, class TokenClass, account *Account, params MintParams) (*IssuedToken, error) {
	ctx, span := startSpan(ctx, "auth.issue_token", attribute.String("auth.class", string(class)))

	var accountID *uuid.UUID
	if account != nil {
		id := account.ID
		accountID = &id
	}

	record, err := a.records.Create(ctx, class, accountID, req.UserAgent)
	if err != nil {
		endSpan(span, "", err)
		return nil, err
	}

	params.Record = record
	params.Origin = req.Origin

	token, claims, err := a.codec.Mint(ctx, params)
	if err != nil {
		a.discard(ctx, record)
		endSpan(span, "", err)
		return nil, err
	}

	endSpan(span, StatusOK, nil)
	return &IssuedToken{Token: token, Record: record, Claims: claims}, nil
}

func (a *Authenticator) discard(ctx context.Context, record *TokenRecord) {
	if err := a.records.Delete(ctx, record); err != nil {
		a.logger.Warn("failed to discard token record %s: %v", record.ID, err)
	}
}

func (a *Authenticator) emit(ctx context.Context, kind ActivityEventType, account *Account, meta map[string]any) {
	event := newActivityEvent(kind, account, a.codec.Now(), meta)
	if err := normalizeActivitySink(a.activity).Record(ctx, event); err != nil {
		a.logger.Warn("activity sink error: %v", err)
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
