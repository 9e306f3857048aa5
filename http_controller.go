package auth

import (
	"net/http"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// RegisterTokenRoutes mounts the JSON token endpoints on app
func RegisterTokenRoutes[T any](app router.Router[T], opts ...TokenControllerOption) *TokenController {

	controller := NewTokenController(opts...)

	app.Post(controller.Routes.Token, controller.CreateToken).
		SetName("token.create")
	app.Post(controller.Routes.AnonymousToken, controller.CreateAnonymousToken).
		SetName("token.anonymous")
	app.Get(controller.Routes.ValidateToken, controller.ValidateToken).
		SetName("token.validate")
	app.Post(controller.Routes.RefreshToken, controller.RefreshToken).
		SetName("token.refresh")

	app.Post(controller.Routes.Logout, controller.LogOut).
		SetName("sign-out.post")

	app.Post(controller.Routes.PasswordReset, controller.RequestPasswordReset).
		SetName("pwd-reset.post")
	app.Post(controller.Routes.PasswordResetConfirm, controller.ResetPassword).
		SetName("pwd-reset-do.post")
	app.Get(controller.Routes.PasswordResetValidate, controller.ValidateResetToken).
		SetName("pwd-reset-validate.get")

	app.Post(controller.Routes.Register, controller.RegisterAccount).
		SetName("register.post")
	app.Post(controller.Routes.Activate, controller.ActivateAccount).
		SetName("signup-activate.post")
	app.Post(controller.Routes.ActivationRequest, controller.RequestActivation).
		SetName("signup-resend.post")

	return controller
}

type TokenControllerRoutes struct {
	Token                 string
	AnonymousToken        string
	ValidateToken         string
	RefreshToken          string
	Logout                string
	PasswordReset         string
	PasswordResetConfirm  string
	PasswordResetValidate string
	Register              string
	Activate              string
	ActivationRequest     string
}

type TokenController struct {
	Debug        bool
	Logger       Logger
	Operations   *Operations
	Routes       *TokenControllerRoutes
	Headers      *HeaderExtractor
	ErrorHandler router.ErrorHandler
}

type TokenControllerOption func(*TokenController) *TokenController

func WithControllerOperations(ops *Operations) TokenControllerOption {
	return func(c *TokenController) *TokenController {
		c.Operations = ops
		return c
	}
}

func WithControllerLogger(logger Logger) TokenControllerOption {
	return func(c *TokenController) *TokenController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithControllerDebug(debug bool) TokenControllerOption {
	return func(c *TokenController) *TokenController {
		c.Debug = debug
		return c
	}
}

func WithControllerRoutes(routes *TokenControllerRoutes) TokenControllerOption {
	return func(c *TokenController) *TokenController {
		if routes != nil {
			c.Routes = routes
		}
		return c
	}
}

func WithControllerErrorHandler(handler router.ErrorHandler) TokenControllerOption {
	return func(c *TokenController) *TokenController {
		if handler != nil {
			c.ErrorHandler = handler
		}
		return c
	}
}

func WithControllerHeaderExtractor(h *HeaderExtractor) TokenControllerOption {
	return func(c *TokenController) *TokenController {
		if h != nil {
			c.Headers = h
		}
		return c
	}
}

func NewTokenController(opts ...TokenControllerOption) *TokenController {
	c := &TokenController{
		Logger:       defLogger{},
		ErrorHandler: defaultErrHandler,
		Headers:      NewHeaderExtractor(),
		Routes: &TokenControllerRoutes{
			Token:                 "/token",
			AnonymousToken:        "/token/anonymous",
			ValidateToken:         "/token/validate",
			RefreshToken:          "/token/refresh",
			Logout:                "/logout",
			PasswordReset:         "/password-reset",
			PasswordResetConfirm:  "/password-reset/confirm",
			PasswordResetValidate: "/password-reset/validate",
			Register:              "/signup",
			Activate:              "/signup/activate",
			ActivationRequest:     "/signup/resend",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Operations == nil {
		panic("Missing Operations in token controller...")
	}

	return c
}

type loginPayload struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

func (p loginPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Required),
		validation.Field(&p.Password, validation.Required),
	)
}

type emailPayload struct {
	Email string `json:"email" form:"email"`
}

func (p emailPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Required, is.Email),
	)
}

type resetConfirmPayload struct {
	Token           string `json:"token" form:"token"`
	Password        string `json:"password" form:"password"`
	PasswordConfirm string `json:"password_confirm" form:"password_confirm"`
}

type activatePayload struct {
	Token string `json:"token" form:"token"`
}

func (p activatePayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Token, validation.Required),
	)
}

func (a *TokenController) CreateToken(ctx router.Context) error {
	payload := new(loginPayload)
	if err := ctx.Bind(payload); err != nil {
		return a.sendToken(ctx, NewTokenResponse(StatusBadRequest, nil, ""))
	}

	if err := payload.Validate(); err != nil {
		return a.sendToken(ctx, NewTokenResponse(StatusBadLogin, nil, ""))
	}

	if a.Debug {
		a.Logger.Debug("token request for %s", print.MaybePrettyJSON(map[string]string{
			"email": payload.Email,
		}))
	}

	resp, err := a.Operations.CreateToken(ctx.Context(), a.requestContext(ctx), LoginData{
		Email:    payload.Email,
		Password: payload.Password,
	})
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}
	return a.sendToken(ctx, resp)
}

func (a *TokenController) CreateAnonymousToken(ctx router.Context) error {
	resp, err := a.Operations.CreateAnonymousToken(ctx.Context(), a.requestContext(ctx))
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}
	return a.sendToken(ctx, resp)
}

func (a *TokenController) ValidateToken(ctx router.Context) error {
	resp, err := a.Operations.ValidateToken(ctx.Context(), a.requestContext(ctx), a.bearer(ctx))
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}
	return a.sendToken(ctx, resp)
}

func (a *TokenController) RefreshToken(ctx router.Context) error {
	resp, err := a.Operations.RefreshToken(ctx.Context(), a.requestContext(ctx), a.bearer(ctx))
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}
	return a.sendToken(ctx, resp)
}

func (a *TokenController) LogOut(ctx router.Context) error {
	resp, err := a.Operations.LogOut(ctx.Context(), a.requestContext(ctx), a.bearer(ctx))
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}
	return a.sendToken(ctx, resp)
}

func (a *TokenController) RequestPasswordReset(ctx router.Context) error {
	payload := new(emailPayload)
	if err := ctx.Bind(payload); err != nil {
		return a.sendPassword(ctx, NewRequestResetPasswordResponse(StatusBadRequest))
	}

	// empty or malformed emails get the same OK answer as unknown ones
	resp, err := a.Operations.RequestPasswordReset(ctx.Context(), a.requestContext(ctx), payload.Email)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}
	return a.sendPassword(ctx, resp)
}

func (a *TokenController) ResetPassword(ctx router.Context) error {
	payload := new(resetConfirmPayload)
	if err := ctx.Bind(payload); err != nil {
		return a.sendPassword(ctx, NewResetPasswordResponse(StatusBadRequest))
	}

	resp, err := a.Operations.ResetPassword(
		ctx.Context(),
		a.requestContext(ctx),
		payload.Token,
		payload.Password,
		payload.PasswordConfirm,
	)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}
	return a.sendPassword(ctx, resp)
}

func (a *TokenController) ValidateResetToken(ctx router.Context) error {
	token := ctx.Query("token", "")
	if token == "" {
		token = a.bearer(ctx)
	}

	resp, err := a.Operations.ValidateResetToken(ctx.Context(), a.requestContext(ctx), token)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}
	return a.sendToken(ctx, resp)
}

func (a *TokenController) ActivateAccount(ctx router.Context) error {
	payload := new(activatePayload)
	if err := ctx.Bind(payload); err != nil {
		return a.sendToken(ctx, NewTokenResponse(StatusBadRequest, nil, ""))
	}

	if err := payload.Validate(); err != nil {
		return a.sendToken(ctx, NewTokenResponse(StatusBadRequest, nil, ""))
	}

	resp, err := a.Operations.ActivateAccount(ctx.Context(), a.requestContext(ctx), payload.Token)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}
	return a.sendToken(ctx, resp)
}

func (a *TokenController) RegisterAccount(ctx router.Context) error {
	payload := new(RegisterAccountMessage)
	if err := ctx.Bind(payload); err != nil {
		return a.sendToken(ctx, NewTokenResponse(StatusBadRequest, nil, ""))
	}

	resp, err := a.Operations.RegisterAccount(ctx.Context(), a.requestContext(ctx), *payload)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}
	return a.sendToken(ctx, resp)
}

func (a *TokenController) RequestActivation(ctx router.Context) error {
	payload := new(emailPayload)
	if err := ctx.Bind(payload); err != nil {
		return a.sendToken(ctx, NewTokenResponse(StatusBadRequest, nil, ""))
	}

	if err := payload.Validate(); err != nil {
		return a.sendToken(ctx, NewTokenResponse(StatusBadRequest, nil, ""))
	}

	resp, err := a.Operations.RequestActivation(ctx.Context(), a.requestContext(ctx), payload.Email)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}
	return a.sendToken(ctx, resp)
}

func (a *TokenController) requestContext(ctx router.Context) RequestContext {
	return RequestContext{
		Origin:     ctx.Header("Origin"),
		BaseURL:    a.Operations.Authenticator().Config().GetBaseURL(),
		UserAgent:  ctx.Header("User-Agent"),
		RemoteAddr: ctx.Header("X-Forwarded-For"),
	}
}

func (a *TokenController) bearer(ctx router.Context) string {
	return a.Headers.Extract(ctx.Header(AuthorizationHeader))
}

func (a *TokenController) statusCode(code int) int {
	if a.Operations.Authenticator().Config().GetPreferHTTPErrors() {
		return code
	}
	return router.StatusOK
}

func (a *TokenController) sendToken(ctx router.Context, resp *TokenResponse) error {
	return ctx.JSON(a.statusCode(resp.Code), resp)
}

func (a *TokenController) sendPassword(ctx router.Context, resp *PasswordResponse) error {
	return ctx.JSON(a.statusCode(resp.Code), resp)
}

func defaultErrHandler(c router.Context, err error) error {
	code := http.StatusInternalServerError
	textCode := "INTERNAL"
	message := err.Error()

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		if richErr.Code != 0 && !IsConfigurationError(err) {
			code = richErr.Code
		}
		if richErr.TextCode != "" {
			textCode = richErr.TextCode
		}
		message = richErr.Message
	}

	return c.JSON(code, map[string]any{
		"error":     strings.TrimSpace(message),
		"text_code": textCode,
		"code":      code,
	})
}
