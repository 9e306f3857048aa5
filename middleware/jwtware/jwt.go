package jwtware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/goliatone/go-router"

	auth "github.com/goliatone/go-auth-jwt"
)

var (
	defaultTokenLookup       = "header:" + auth.AuthorizationHeader
	ErrJWTMissingOrMalformed = errors.New("missing or malformed JWT")
)

// TokenValidator runs the stored token state machine. *auth.Authenticator
// satisfies it.
type TokenValidator interface {
	ValidateToken(ctx context.Context, raw string, req auth.RequestContext) (auth.Outcome, error)
}

// StatusError carries the validation status of a rejected token
type StatusError struct {
	Status auth.Status
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("token rejected: %s", e.Status)
}

// ValidationListener is invoked after a token has been validated but before authorization checks.
type ValidationListener func(ctx router.Context, out auth.Outcome) error

type Config struct {
	Filter         func(router.Context) bool
	SuccessHandler router.HandlerFunc
	ErrorHandler   router.ErrorHandler
	ContextKey     string
	TokenLookup    string
	AuthScheme     string
	// BaseURL is used as the expected audience when set
	BaseURL string
	// TokenValidator is required for token validation
	TokenValidator TokenValidator

	// RequiredRole specifies an exact role that must be present
	RequiredRole string
	// MinimumRole specifies the minimum role level required (uses role hierarchy)
	MinimumRole string
	// AllowAnonymous lets tokens without an account through when no role
	// check is configured
	AllowAnonymous bool

	ValidationListeners []ValidationListener
}

func New(config ...Config) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		cfg := GetDefaultConfig(config...)
		return func(ctx router.Context) error {
			if cfg.Filter != nil && cfg.Filter(ctx) {
				return ctx.Next()
			}

			raw, err := ExtractRawTokenFromContext(ctx, cfg.getExtractors())
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			out, err := cfg.TokenValidator.ValidateToken(ctx.Context(), raw, cfg.requestContext(ctx))
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			if out.Status != auth.StatusOK {
				return cfg.ErrorHandler(ctx, &StatusError{Status: out.Status})
			}

			if err := cfg.runValidationListeners(ctx, out); err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			if err := performAuthorizationChecks(out.Account, cfg); err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			if out.Account != nil {
				ctx.Locals(cfg.ContextKey, out.Account)
			}

			stdCtx := auth.WithTokenRecord(ctx.Context(), out.Record)
			if out.Account != nil {
				stdCtx = auth.WithAccount(stdCtx, out.Account)
			}
			ctx.SetContext(stdCtx)

			return cfg.SuccessHandler(ctx)
		}
	}
}

// performAuthorizationChecks performs RBAC authorization checks using the configured options
func performAuthorizationChecks(account *auth.Account, cfg Config) error {
	if cfg.RequiredRole == "" && cfg.MinimumRole == "" {
		if account == nil && !cfg.AllowAnonymous {
			return &StatusError{Status: auth.StatusInvalid}
		}
		return nil
	}

	if account == nil {
		return fmt.Errorf("access denied: anonymous tokens carry no role")
	}

	if cfg.RequiredRole != "" && account.Role != auth.UserRole(cfg.RequiredRole) {
		return fmt.Errorf("access denied: required role '%s' not found", cfg.RequiredRole)
	}

	if cfg.MinimumRole != "" && !account.Role.IsAtLeast(auth.UserRole(cfg.MinimumRole)) {
		return fmt.Errorf("access denied: minimum role '%s' required", cfg.MinimumRole)
	}

	return nil
}

func ExtractRawTokenFromContext(ctx router.Context, extractors []JWTExtractor) (string, error) {
	var raw string
	var err error

	for _, extractor := range extractors {
		raw, err = extractor(ctx)
		if raw != "" && err == nil {
			break
		}
	}

	return raw, err
}

func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(ctx router.Context) error {
			return ctx.Next()
		}
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = DefaultErrorHandler
	}

	if cfg.TokenValidator == nil {
		panic("AUTH: JWT middleware configuration: TokenValidator is required.")
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = auth.DefaultContextKey
	}

	if cfg.TokenLookup == "" {
		cfg.TokenLookup = defaultTokenLookup
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = auth.BearerScheme
	}

	return cfg
}

// DefaultErrorHandler answers with the token response of the failure
func DefaultErrorHandler(c router.Context, err error) error {
	if errors.Is(err, ErrJWTMissingOrMalformed) {
		return c.JSON(router.StatusBadRequest, auth.NewTokenResponse(auth.StatusBadRequest, nil, ""))
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return c.JSON(auth.HTTPCode(statusErr.Status), auth.NewTokenResponse(statusErr.Status, nil, ""))
	}

	if auth.IsConfigurationError(err) {
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"error": "authentication is misconfigured",
		})
	}

	return c.JSON(router.StatusUnauthorized, map[string]any{
		"error": err.Error(),
	})
}

func (cfg *Config) requestContext(ctx router.Context) auth.RequestContext {
	return auth.RequestContext{
		Origin:     ctx.Header("Origin"),
		BaseURL:    cfg.BaseURL,
		UserAgent:  ctx.Header("User-Agent"),
		RemoteAddr: ctx.Header("X-Forwarded-For"),
	}
}

func (cfg *Config) getExtractors() []JWTExtractor {
	return GetExtractors(cfg.TokenLookup, cfg.AuthScheme)
}

func (cfg *Config) runValidationListeners(ctx router.Context, out auth.Outcome) error {
	for _, listener := range cfg.ValidationListeners {
		if listener == nil {
			continue
		}
		if err := listener(ctx, out); err != nil {
			return err
		}
	}
	return nil
}

func GetExtractors(tokenLookup string, authSchemes ...string) []JWTExtractor {
	extractors := make([]JWTExtractor, 0)

	authScheme := auth.BearerScheme
	if len(authSchemes) > 0 {
		authScheme = authSchemes[0]
	}

	// header:Authorization,cookie:jwt,query:auth_token,param:token
	rootParts := strings.Split(tokenLookup, ",")
	for _, rootPart := range rootParts {
		parts := strings.Split(strings.TrimSpace(rootPart), ":")
		if len(parts) != 2 {
			continue
		}

		for i, el := range parts {
			parts[i] = strings.TrimSpace(el)
		}

		switch parts[0] {
		case "header":
			extractors = append(extractors, jwtFromHeader(parts[1], authScheme))
		case "query":
			extractors = append(extractors, jwtFromQuery(parts[1]))
		case "param":
			extractors = append(extractors, jwtFromParam(parts[1]))
		case "cookie":
			extractors = append(extractors, jwtFromCookie(parts[1]))
		}
	}

	return extractors
}

type JWTExtractor func(c router.Context) (string, error)

// jwtFromHeader returns a function that extracts token from the request header.
// The Authorization header falls back to the proxy variables known to
// auth.HeaderExtractor.
func jwtFromHeader(header string, authScheme string) func(c router.Context) (string, error) {
	headers := auth.NewHeaderExtractor()
	return func(c router.Context) (string, error) {
		a := c.Header(header)
		if strings.EqualFold(header, auth.AuthorizationHeader) && strings.EqualFold(authScheme, auth.BearerScheme) {
			if token := headers.Extract(a); token != "" {
				return token, nil
			}
			return "", ErrJWTMissingOrMalformed
		}

		l := len(authScheme)
		if l == 0 {
			return strings.TrimSpace(a), nil
		}
		if len(a) > l+1 && strings.EqualFold(a[:l], authScheme) {
			return strings.TrimSpace(a[l:]), nil
		}
		return "", ErrJWTMissingOrMalformed
	}
}

// jwtFromQuery returns a function that extracts token from the query string.
func jwtFromQuery(param string) func(c router.Context) (string, error) {
	return func(c router.Context) (string, error) {
		token := c.Query(param, "")
		if token == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return token, nil
	}
}

// jwtFromParam returns a function that extracts token from the url param string.
func jwtFromParam(param string) func(c router.Context) (string, error) {
	return func(c router.Context) (string, error) {
		token := c.Param(param)
		if token == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return token, nil
	}
}

// jwtFromCookie returns a function that extracts token from the named cookie.
func jwtFromCookie(name string) func(c router.Context) (string, error) {
	return func(c router.Context) (string, error) {
		token := c.Cookies(name)
		if token == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return token, nil
	}
}
