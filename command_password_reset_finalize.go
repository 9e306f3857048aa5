package auth

import (
	"context"
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

// PasswordPolicy validates a new password, the error message is
// reported back to the client
type PasswordPolicy func(password string) error

// DefaultPasswordPolicy requires 8 to 100 characters
func DefaultPasswordPolicy(password string) error {
	return validation.Validate(password,
		validation.Required,
		validation.Length(8, 100),
	)
}

type FinalizePasswordResetMessage struct {
	Token           string         `json:"token" doc:"Reset password token"`
	Password        string         `json:"password" example:"some_secret_word" doc:"Password"`
	PasswordConfirm string         `json:"password_confirm" example:"some_secret_word" doc:"Password confirmation"`
	Request         RequestContext `json:"-"`
	OnResponse      func(resp *PasswordResponse)
}

func (p FinalizePasswordResetMessage) Type() string { return "account.password_reset.finalize" }

// Validate reports missing fields and mismatched confirmations
func (p FinalizePasswordResetMessage) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Token, validation.Required),
		validation.Field(&p.Password, validation.Required),
		validation.Field(
			&p.PasswordConfirm,
			validation.Required,
			validation.By(ValidateStringEquals(p.Password)),
		),
	)
}

type FinalizePasswordResetHandler struct {
	auth     *Authenticator
	accounts AccountStore
	policy   PasswordPolicy
	activity ActivitySink
	logger   Logger
}

// NewFinalizePasswordResetHandler creates a handler with sane defaults.
func NewFinalizePasswordResetHandler(auth *Authenticator, accounts AccountStore) *FinalizePasswordResetHandler {
	return &FinalizePasswordResetHandler{
		auth:     auth,
		accounts: accounts,
		policy:   DefaultPasswordPolicy,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithPasswordPolicy replaces DefaultPasswordPolicy
func (h *FinalizePasswordResetHandler) WithPasswordPolicy(policy PasswordPolicy) *FinalizePasswordResetHandler {
	if policy != nil {
		h.policy = policy
	}
	return h
}

// WithActivitySink sets the sink used to emit password reset events.
func (h *FinalizePasswordResetHandler) WithActivitySink(sink ActivitySink) *FinalizePasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *FinalizePasswordResetHandler) WithLogger(logger Logger) *FinalizePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset finalization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	resp := NewResetPasswordResponse(StatusInvalid)
	defer func() {
		if event.OnResponse != nil {
			event.OnResponse(resp)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if err := event.Validate(); err != nil {
		resp = NewResetPasswordResponse(StatusBadRequest)
		if msg := confirmationMessage(err); msg != "" {
			resp.Message = msg
			resp.Messages = []ValidationMessage{{Message: msg, Status: StatusBadRequest}}
		}
		return nil
	}

	out, err := h.auth.ValidateResetToken(ctx, event.Token, event.Request)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to validate password reset token")
	}

	if out.Status != StatusOK {
		resp = NewResetPasswordResponse(out.Status)
		return nil
	}

	account := out.Account
	if account == nil {
		return nil
	}

	if err := h.policy(event.Password); err != nil {
		resp = NewInvalidPasswordResponse([]ValidationMessage{{
			Message: err.Error(),
			Status:  StatusInvalidPassword,
		}})
		return nil
	}

	passwordHash, err := HashPassword(event.Password)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid new password provided")
	}

	if err := h.accounts.ResetPassword(ctx, account.ID, passwordHash); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update account password in database")
	}
	account.PasswordHash = passwordHash
	account.ResetTokenID = nil

	if _, err := h.auth.RevokeAllTokens(ctx, account); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to revoke login tokens after password reset")
	}

	if err := h.auth.RevokeToken(ctx, out.Record); err != nil {
		h.logger.Warn("failed to delete used reset token record %s: %v", out.Record.ID, err)
	}

	h.recordActivity(ctx, account)
	resp = NewResetPasswordResponse(StatusOK)

	return nil
}

func (h *FinalizePasswordResetHandler) recordActivity(ctx context.Context, account *Account) {
	event := newActivityEvent(ActivityEventPasswordResetSuccess, account, h.auth.Codec().Now(), nil)
	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during password reset: %v", err)
	}
}

// confirmationMessage returns the password_confirm rule message, if any
func confirmationMessage(err error) string {
	var errs validation.Errors
	if !errors.As(err, &errs) {
		return ""
	}

	fieldErr, ok := errs["password_confirm"]
	if !ok || fieldErr == nil {
		return ""
	}

	var richErr *goerrors.Error
	if goerrors.As(fieldErr, &richErr) {
		return richErr.Message
	}
	return fieldErr.Error()
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return goerrors.New(MessagePasswordMismatch, goerrors.CategoryValidation).
				WithTextCode("PASSWORD_MISMATCH")
		}
		return nil
	}
}
