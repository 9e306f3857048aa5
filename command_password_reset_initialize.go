package auth

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type InitializePasswordResetMessage struct {
	Email      string         `json:"email" example:"pepe.rone@example.com" doc:"Account email."`
	Request    RequestContext `json:"-"`
	OnResponse func(resp *InitializePasswordResetResponse)
}

func (p InitializePasswordResetMessage) Type() string { return "account.password_reset.request" }

// InitializePasswordResetResponse always reports OK. Account and Token
// are only set when a reset token was issued.
type InitializePasswordResetResponse struct {
	Account *Account
	Token   *IssuedToken
	Status  Status
}

// InitializePasswordResetHandler issues a reset token for a known email
// and hands it to the ResetMailer. Unknown emails are not reported.
type InitializePasswordResetHandler struct {
	auth     *Authenticator
	accounts AccountStore
	mailer   ResetMailer
	activity ActivitySink
	logger   Logger
}

func NewInitializePasswordResetHandler(auth *Authenticator, accounts AccountStore) *InitializePasswordResetHandler {
	return &InitializePasswordResetHandler{
		auth:     auth,
		accounts: accounts,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithResetMailer sets the hook used to deliver reset links
func (h *InitializePasswordResetHandler) WithResetMailer(mailer ResetMailer) *InitializePasswordResetHandler {
	h.mailer = mailer
	return h
}

// WithActivitySink sets the sink used to emit password reset events.
func (h *InitializePasswordResetHandler) WithActivitySink(sink ActivitySink) *InitializePasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *InitializePasswordResetHandler) WithLogger(logger Logger) *InitializePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	resp := &InitializePasswordResetResponse{Status: StatusOK}
	defer func() {
		if event.OnResponse != nil {
			event.OnResponse(resp)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	email := strings.TrimSpace(event.Email)
	if email == "" {
		return nil
	}

	account, err := h.accounts.FindByIdentifier(ctx, email)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account for password reset")
	}

	if account == nil {
		h.logger.Debug("password reset requested for unknown account")
		return nil
	}

	token, err := h.auth.GenerateResetToken(ctx, event.Request, account)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create password reset token")
	}

	resp.Account = account
	resp.Token = token

	if h.mailer != nil {
		if err := h.mailer.SendResetPasswordEmail(ctx, account, token.Token); err != nil {
			h.logger.Error("failed to send password reset email: %v", err)
		}
	}

	record := newActivityEvent(ActivityEventPasswordResetRequest, account, h.auth.Codec().Now(), map[string]any{
		"record_id": token.Record.ID.String(),
	})
	if err := normalizeActivitySink(h.activity).Record(ctx, record); err != nil {
		h.logger.Warn("activity sink error during password reset request: %v", err)
	}

	return nil
}
