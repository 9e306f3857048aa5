package auth

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type AccountActivationRequestMessage struct {
	Email      string         `json:"email" example:"pepe.rone@example.com" doc:"Account email."`
	Request    RequestContext `json:"-"`
	OnResponse func(resp *TokenResponse)
}

func (m AccountActivationRequestMessage) Type() string { return "account.activation.request" }

// AccountActivationRequestHandler issues a fresh signup token for an
// inactive account. It answers OK for unknown or active accounts too.
type AccountActivationRequestHandler struct {
	auth     *Authenticator
	accounts AccountStore
	mailer   SignupMailer
	logger   Logger
}

func NewAccountActivationRequestHandler(auth *Authenticator, accounts AccountStore) *AccountActivationRequestHandler {
	return &AccountActivationRequestHandler{
		auth:     auth,
		accounts: accounts,
		logger:   defLogger{},
	}
}

func (h *AccountActivationRequestHandler) WithSignupMailer(mailer SignupMailer) *AccountActivationRequestHandler {
	h.mailer = mailer
	return h
}

func (h *AccountActivationRequestHandler) WithLogger(logger Logger) *AccountActivationRequestHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *AccountActivationRequestHandler) Execute(ctx context.Context, event AccountActivationRequestMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during account activation request")
	default:
		return h.execute(ctx, event)
	}
}

func (h *AccountActivationRequestHandler) execute(ctx context.Context, event AccountActivationRequestMessage) error {
	resp := NewTokenResponse(StatusOK, nil, "").WithMessage(MessageActivationRequest)
	defer func() {
		if event.OnResponse != nil {
			event.OnResponse(resp)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	email := strings.TrimSpace(event.Email)
	if email == "" {
		resp = NewTokenResponse(StatusBadRequest, nil, "")
		return nil
	}

	account, err := h.accounts.FindByIdentifier(ctx, email)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account for activation request")
	}

	// unknown and already active accounts are not reported
	if account == nil || account.IsActivated() {
		return nil
	}

	previous := account.SignupTokenID

	token, err := h.auth.GenerateSignupToken(ctx, event.Request, account)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create signup token")
	}

	if previous != nil {
		if err := h.auth.RevokeToken(ctx, &TokenRecord{ID: *previous}); err != nil {
			h.logger.Warn("failed to delete replaced signup token record %s: %v", previous, err)
		}
	}

	if h.mailer != nil {
		if err := h.mailer.SendActivationEmail(ctx, account, token.Token); err != nil {
			h.logger.Error("failed to send activation email: %v", err)
		}
	}

	return nil
}
