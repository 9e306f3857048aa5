package auth

import (
	"os"
	"strconv"
	"strings"
)

const (
	DefaultTokenExpiration  = 3600
	DefaultRenewExpiration  = 604800
	DefaultAnonymousAccount = "anonymous"
)

// Options is a static Config implementation. Zero durations fall back
// to the package defaults.
type Options struct {
	SignerKey             string   `json:"signer_key"`
	KeyPassword           string   `json:"key_password"`
	PublicKey             string   `json:"public_key"`
	BasePath              string   `json:"base_path"`
	SignerDomains         []string `json:"signer_domains"`
	Issuer                string   `json:"issuer"`
	BaseURL               string   `json:"base_url"`
	NotBefore             int      `json:"nbf_time"`
	TokenExpiration       int      `json:"nbf_expiration"`
	SignupTokenExpiration int      `json:"nbf_signup_expiration"`
	ResetTokenExpiration  int      `json:"nbf_reset_expiration"`
	RenewExpiration       int      `json:"nbf_refresh_expiration"`
	AnonymousAllowed      bool     `json:"anonymous_allowed"`
	AnonymousUsername     string   `json:"anonymous_username"`
	PreferHTTPErrors      bool     `json:"prefer_http_errors"`
	SubjectFields         []string `json:"subject_fields"`
	TokenPrefix           string   `json:"prefix"`
}

var _ Config = Options{}

func (o Options) GetSignerKey() string       { return o.SignerKey }
func (o Options) GetKeyPassword() string     { return o.KeyPassword }
func (o Options) GetPublicKey() string       { return o.PublicKey }
func (o Options) GetBasePath() string        { return o.BasePath }
func (o Options) GetSignerDomains() []string { return o.SignerDomains }
func (o Options) GetIssuer() string          { return o.Issuer }
func (o Options) GetBaseURL() string         { return o.BaseURL }
func (o Options) GetNotBefore() int          { return o.NotBefore }
func (o Options) GetTokenExpiration() int {
	return orDefault(o.TokenExpiration, DefaultTokenExpiration)
}
func (o Options) GetSignupTokenExpiration() int {
	return orDefault(o.SignupTokenExpiration, DefaultTokenExpiration)
}
func (o Options) GetResetTokenExpiration() int {
	return orDefault(o.ResetTokenExpiration, DefaultTokenExpiration)
}
func (o Options) GetRenewExpiration() int {
	return orDefault(o.RenewExpiration, DefaultRenewExpiration)
}
func (o Options) GetAnonymousAllowed() bool { return o.AnonymousAllowed }
func (o Options) GetAnonymousUsername() string {
	if o.AnonymousUsername == "" {
		return DefaultAnonymousAccount
	}
	return o.AnonymousUsername
}
func (o Options) GetPreferHTTPErrors() bool  { return o.PreferHTTPErrors }
func (o Options) GetSubjectFields() []string { return o.SubjectFields }
func (o Options) GetTokenPrefix() string     { return o.TokenPrefix }

// EnvConfig reads the configuration from environment variables on
// every getter call. Variables are prefixed, JWT_SIGNER_KEY by default.
type EnvConfig struct {
	Prefix string
	lookup func(string) string
}

var _ Config = (*EnvConfig)(nil)

// NewEnvConfig creates an EnvConfig using the JWT_ prefix
func NewEnvConfig() *EnvConfig {
	return &EnvConfig{Prefix: "JWT_", lookup: os.Getenv}
}

// WithLookup replaces os.Getenv, mostly useful in tests
func (e *EnvConfig) WithLookup(fn func(string) string) *EnvConfig {
	if fn != nil {
		e.lookup = fn
	}
	return e
}

func (e *EnvConfig) get(key string) string {
	lookup := e.lookup
	if lookup == nil {
		lookup = os.Getenv
	}
	return strings.TrimSpace(lookup(e.Prefix + key))
}

func (e *EnvConfig) getInt(key string, def int) int {
	v := e.get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return orDefault(n, def)
}

func (e *EnvConfig) getBool(key string) bool {
	b, _ := strconv.ParseBool(e.get(key))
	return b
}

func (e *EnvConfig) getList(key string) []string {
	var out []string
	for _, item := range strings.Split(e.get(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func (e *EnvConfig) GetSignerKey() string       { return e.get("SIGNER_KEY") }
func (e *EnvConfig) GetKeyPassword() string     { return e.get("KEY_PASSWORD") }
func (e *EnvConfig) GetPublicKey() string       { return e.get("PUBLIC_KEY") }
func (e *EnvConfig) GetBasePath() string        { return e.get("BASE_PATH") }
func (e *EnvConfig) GetSignerDomains() []string { return e.getList("SIGNER_DOMAINS") }
func (e *EnvConfig) GetIssuer() string          { return e.get("ISSUER") }
func (e *EnvConfig) GetBaseURL() string         { return e.get("BASE_URL") }
func (e *EnvConfig) GetNotBefore() int          { return e.getInt("NBF_TIME", 0) }
func (e *EnvConfig) GetTokenExpiration() int {
	return e.getInt("NBF_EXPIRATION", DefaultTokenExpiration)
}
func (e *EnvConfig) GetSignupTokenExpiration() int {
	return e.getInt("NBF_SIGNUP_EXPIRATION", DefaultTokenExpiration)
}
func (e *EnvConfig) GetResetTokenExpiration() int {
	return e.getInt("NBF_RESET_EXPIRATION", DefaultTokenExpiration)
}
func (e *EnvConfig) GetRenewExpiration() int {
	return e.getInt("NBF_REFRESH_EXPIRATION", DefaultRenewExpiration)
}
func (e *EnvConfig) GetAnonymousAllowed() bool { return e.getBool("ANONYMOUS_ALLOWED") }
func (e *EnvConfig) GetAnonymousUsername() string {
	if v := e.get("ANONYMOUS_USERNAME"); v != "" {
		return v
	}
	return DefaultAnonymousAccount
}
func (e *EnvConfig) GetPreferHTTPErrors() bool  { return e.getBool("PREFER_HTTP_ERRORS") }
func (e *EnvConfig) GetSubjectFields() []string { return e.getList("SUBJECT_FIELDS") }
func (e *EnvConfig) GetTokenPrefix() string     { return e.get("PREFIX") }

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
