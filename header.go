package auth

import (
	"os"
	"strings"
)

const (
	AuthorizationHeader = "Authorization"
	BearerScheme        = "Bearer"
)

// AuthorizationFallbacks are server variables some proxies and CGI
// setups use to carry the Authorization header after stripping it
var AuthorizationFallbacks = []string{"REDIRECT_HTTP_AUTHORIZATION", "HTTP_AUTHORIZATION"}

// HeaderExtractor pulls bearer tokens from requests
type HeaderExtractor struct {
	lookupEnv func(string) string
}

func NewHeaderExtractor() *HeaderExtractor {
	return &HeaderExtractor{lookupEnv: os.Getenv}
}

// WithEnvLookup replaces os.Getenv for the fallback variables
func (h *HeaderExtractor) WithEnvLookup(fn func(string) string) *HeaderExtractor {
	if fn != nil {
		h.lookupEnv = fn
	}
	return h
}

// Extract returns the bearer token from the header value or, when the
// header is empty, from the fallback variables. Scheme matching is case
// insensitive.
func (h *HeaderExtractor) Extract(header string) string {
	if strings.TrimSpace(header) == "" && h.lookupEnv != nil {
		for _, name := range AuthorizationFallbacks {
			if v := h.lookupEnv(name); strings.TrimSpace(v) != "" {
				header = v
				break
			}
		}
	}
	return BearerToken(header)
}

// BearerToken parses an Authorization header value
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) <= len(BearerScheme) || !strings.EqualFold(header[:len(BearerScheme)], BearerScheme) {
		return ""
	}
	rest := header[len(BearerScheme):]
	if rest[0] != ' ' && rest[0] != '\t' {
		return ""
	}
	return strings.TrimSpace(rest)
}
