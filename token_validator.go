package auth

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// TokenValidator runs the token lifecycle state machine. It never
// deletes records, expired or dead tokens are left for the caller.
type TokenValidator struct {
	codec         *TokenCodec
	records       TokenRecordStore
	accounts      AccountStore
	logger        Logger
	bindUserAgent bool
}

func NewTokenValidator(codec *TokenCodec, records TokenRecordStore, accounts AccountStore) *TokenValidator {
	return &TokenValidator{
		codec:    codec,
		records:  records,
		accounts: accounts,
		logger:   defLogger{},
	}
}

func (v *TokenValidator) WithLogger(logger Logger) *TokenValidator {
	if logger != nil {
		v.logger = logger
	}
	return v
}

// WithUserAgentBinding rejects tokens presented with a user agent
// different from the one stored on the record
func (v *TokenValidator) WithUserAgentBinding(enabled bool) *TokenValidator {
	v.bindUserAgent = enabled
	return v
}

// ValidateToken validates a login token.
func (v *TokenValidator) ValidateToken(ctx context.Context, raw string, req RequestContext) (Outcome, error) {
	ctx, span := startSpan(ctx, "auth.validate_token", attribute.String("auth.class", string(TokenClassAuth)))
	out, err := v.validate(ctx, raw, req, TokenClassAuth)
	endSpan(span, out.Status, err)
	return out, err
}

// ValidateAnonymousToken validates a single purpose token. Anonymous
// tokens can not be renewed, once expired they are DEAD.
func (v *TokenValidator) ValidateAnonymousToken(ctx context.Context, raw string, req RequestContext) (Outcome, error) {
	ctx, span := startSpan(ctx, "auth.validate_anonymous_token", attribute.String("auth.class", string(TokenClassAnonymous)))
	out, err := v.validate(ctx, raw, req, TokenClassAnonymous)
	endSpan(span, out.Status, err)
	return out, err
}

// ValidateResetToken validates an anonymous token and requires an
// account whose reset reference points at its record.
func (v *TokenValidator) ValidateResetToken(ctx context.Context, raw string, req RequestContext) (Outcome, error) {
	return v.validateBackReference(ctx, raw, req, v.accounts.FindByResetToken)
}

// ValidateSignupToken is ValidateResetToken for the signup reference.
func (v *TokenValidator) ValidateSignupToken(ctx context.Context, raw string, req RequestContext) (Outcome, error) {
	return v.validateBackReference(ctx, raw, req, v.accounts.FindBySignupToken)
}

func (v *TokenValidator) validateBackReference(
	ctx context.Context,
	raw string,
	req RequestContext,
	lookup func(context.Context, uuid.UUID) (*Account, error),
) (Outcome, error) {
	out, err := v.ValidateAnonymousToken(ctx, raw, req)
	if err != nil || out.Status != StatusOK {
		return out, err
	}

	account, err := lookup(ctx, out.Record.ID)
	if err != nil {
		return Outcome{Record: out.Record, Status: StatusInvalid}, err
	}

	if account == nil {
		v.logger.Debug("no account references token record %s", out.Record.ID)
		return Outcome{Record: out.Record, Status: StatusInvalid}, nil
	}

	out.Account = account
	return out, nil
}

func (v *TokenValidator) validate(ctx context.Context, raw string, req RequestContext, class TokenClass) (Outcome, error) {
	if raw == "" {
		return invalidOutcome(), nil
	}

	claims := v.codec.Parse(raw)
	if claims == nil {
		v.logger.Debug("unable to parse token")
		return invalidOutcome(), nil
	}

	recordID, err := claims.RecordUUID()
	if err != nil {
		return invalidOutcome(), nil
	}

	record, err := v.records.FindByID(ctx, recordID)
	if err != nil {
		return invalidOutcome(), err
	}

	if record == nil {
		v.logger.Debug("token record %s not found", recordID)
		return invalidOutcome(), nil
	}

	out := Outcome{Record: record, Status: StatusInvalid}

	if record.Class != class {
		return out, nil
	}

	if record.AccountID != nil {
		account, err := v.accounts.FindByID(ctx, *record.AccountID)
		if err != nil {
			return out, err
		}
		if account == nil {
			v.logger.Debug("account %s of token record %s not found", *record.AccountID, record.ID)
			return out, nil
		}
		out.Account = account
	}

	if class == TokenClassAuth && out.Account != nil && !out.Account.IsActivated() {
		out.Status = StatusInactivatedUser
		return out, nil
	}

	if v.bindUserAgent && record.UserAgent != req.UserAgent {
		v.logger.Debug("token record %s presented with a different user agent", record.ID)
		return out, nil
	}

	check, err := v.codec.Verify(raw, VerifyParams{
		Issuer:   v.codec.Issuer(req.Origin),
		Audience: v.codec.Audience(req.BaseURL),
		TokenID:  record.UID,
	})
	if err != nil {
		return out, err
	}

	switch check {
	case TokenValid:
		out.Status = StatusOK
	case TokenExpired:
		if class == TokenClassAuth && claims.CanRenewAt(v.codec.Now()) {
			out.Status = StatusExpired
		} else {
			out.Status = StatusDead
		}
	default:
		out.Status = StatusInvalid
	}

	return out, nil
}
