package auth

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
)

type RegisterAccountMessage struct {
	FirstName  string                    `json:"first_name"`
	LastName   string                    `json:"last_name"`
	Username   string                    `json:"username"`
	Email      string                    `json:"email"`
	Password   string                    `json:"password"`
	Request    RequestContext            `json:"-"`
	OnResponse func(resp *TokenResponse) `json:"-"`
}

func (e RegisterAccountMessage) Type() string { return "account.register" }

func (e RegisterAccountMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Email, validation.Required, is.Email),
		validation.Field(&e.Password, validation.Required),
	)
}

// RegisterAccountHandler creates an inactive account and hands a signup
// token to the SignupMailer
type RegisterAccountHandler struct {
	auth      *Authenticator
	accounts  AccountStore
	registrar AccountRegistrar
	policy    PasswordPolicy
	mailer    SignupMailer
	activity  ActivitySink
	logger    Logger
	useHashid bool
}

func NewRegisterAccountHandler(auth *Authenticator, accounts AccountStore, registrar AccountRegistrar) *RegisterAccountHandler {
	return &RegisterAccountHandler{
		auth:      auth,
		accounts:  accounts,
		registrar: registrar,
		policy:    DefaultPasswordPolicy,
		activity:  noopActivitySink{},
		logger:    defLogger{},
	}
}

func (h *RegisterAccountHandler) WithPasswordPolicy(policy PasswordPolicy) *RegisterAccountHandler {
	if policy != nil {
		h.policy = policy
	}
	return h
}

func (h *RegisterAccountHandler) WithSignupMailer(mailer SignupMailer) *RegisterAccountHandler {
	h.mailer = mailer
	return h
}

func (h *RegisterAccountHandler) WithActivitySink(sink ActivitySink) *RegisterAccountHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *RegisterAccountHandler) WithLogger(logger Logger) *RegisterAccountHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithHashedIDs derives account ids from the email so the same email
// always maps to the same id
func (h *RegisterAccountHandler) WithHashedIDs(enabled bool) *RegisterAccountHandler {
	h.useHashid = enabled
	return h
}

func (h *RegisterAccountHandler) Execute(ctx context.Context, event RegisterAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterAccountHandler) execute(ctx context.Context, event RegisterAccountMessage) error {
	resp := NewTokenResponse(StatusBadRequest, nil, "")
	defer func() {
		if event.OnResponse != nil {
			event.OnResponse(resp)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if err := event.Validate(); err != nil {
		return nil
	}

	if err := h.policy(event.Password); err != nil {
		resp = NewTokenResponse(StatusInvalidPassword, nil, "").WithMessage(err.Error())
		return nil
	}

	email := strings.ToLower(strings.TrimSpace(event.Email))

	existing, err := h.accounts.FindByIdentifier(ctx, email)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up account for registration")
	}
	if existing != nil {
		resp = NewTokenResponse(StatusBadRequest, nil, "").WithMessage(MessageAccountExists)
		return nil
	}

	hash, err := HashPassword(event.Password)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	account := &Account{
		Email:        email,
		Username:     getUsername(event.Username, email),
		FirstName:    event.FirstName,
		LastName:     event.LastName,
		PasswordHash: hash,
		Role:         RoleMember,
	}

	if h.useHashid {
		if id, err := hashid.NewUUID(email); err == nil {
			account.ID = id
		}
	}

	if account, err = h.registrar.Register(ctx, account); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create account")
	}

	token, err := h.auth.GenerateSignupToken(ctx, event.Request, account)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create signup token")
	}

	if h.mailer != nil {
		if err := h.mailer.SendActivationEmail(ctx, account, token.Token); err != nil {
			h.logger.Error("failed to send activation email: %v", err)
		}
	}

	record := newActivityEvent(ActivityEventAccountRegistered, account, h.auth.Codec().Now(), map[string]any{
		"record_id": token.Record.ID.String(),
	})
	if err := normalizeActivitySink(h.activity).Record(ctx, record); err != nil {
		h.logger.Warn("activity sink error during registration: %v", err)
	}

	resp = NewTokenResponse(StatusOK, nil, "").WithMessage(MessageAccountRegistered)
	return nil
}

func getUsername(username, email string) string {
	if username != "" {
		return username
	}

	if strings.Contains(email, "@") {
		username = strings.Split(email, "@")[0]
	}

	return username
}
