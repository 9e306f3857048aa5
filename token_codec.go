package auth

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenCheck is the cryptographic and temporal verdict on a token
type TokenCheck int

const (
	// TokenRejected covers bad signatures, wrong issuer or audience,
	// jti mismatches and tokens used before nbf
	TokenRejected TokenCheck = iota
	// TokenValid passed every check
	TokenValid
	// TokenExpired failed only because exp is in the past
	TokenExpired
)

// MintParams describe a token to sign
type MintParams struct {
	Record    *TokenRecord
	Account   *Account
	Subject   Subject
	Origin    string
	TTL       time.Duration
	Renewable bool
}

// VerifyParams are the expectations a token is checked against
type VerifyParams struct {
	Issuer   string
	Audience string
	TokenID  string
}

// TokenCodec signs, parses and verifies tokens
type TokenCodec struct {
	cfg       Config
	logger    Logger
	now       func() time.Time
	decorator ClaimsDecorator
}

func NewTokenCodec(cfg Config) *TokenCodec {
	return &TokenCodec{
		cfg:       cfg,
		logger:    defLogger{},
		now:       time.Now,
		decorator: noopClaimsDecorator{},
	}
}

func (c *TokenCodec) WithLogger(logger Logger) *TokenCodec {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// WithClock replaces time.Now for minting and verification
func (c *TokenCodec) WithClock(now func() time.Time) *TokenCodec {
	if now != nil {
		c.now = now
	}
	return c
}

func (c *TokenCodec) WithClaimsDecorator(decorator ClaimsDecorator) *TokenCodec {
	c.decorator = normalizeClaimsDecorator(decorator)
	return c
}

// Now returns the codec clock
func (c *TokenCodec) Now() time.Time {
	return c.now()
}

// Issuer picks the origin when present, the configured issuer otherwise
func (c *TokenCodec) Issuer(origin string) string {
	if origin != "" {
		return origin
	}
	return c.cfg.GetIssuer()
}

// Audience is the base URL a token must be addressed to
func (c *TokenCodec) Audience(baseURL string) string {
	if baseURL != "" {
		return baseURL
	}
	if base := c.cfg.GetBaseURL(); base != "" {
		return base
	}
	if domains := c.cfg.GetSignerDomains(); len(domains) > 0 {
		return domains[0]
	}
	return ""
}

// mintAudience lists the permitted domains, or the base URL when no
// domain is configured
func (c *TokenCodec) mintAudience() jwt.ClaimStrings {
	if domains := c.cfg.GetSignerDomains(); len(domains) > 0 {
		return jwt.ClaimStrings(append([]string(nil), domains...))
	}
	if base := c.cfg.GetBaseURL(); base != "" {
		return jwt.ClaimStrings{base}
	}
	return nil
}

// Mint signs a token anchored on params.Record. The record must be
// persisted before the token is handed out.
func (c *TokenCodec) Mint(ctx context.Context, params MintParams) (string, *TokenClaims, error) {
	if params.Record == nil {
		return "", nil, withSource(ErrTokenSigning, errors.New("token record is required"), nil)
	}

	signer, err := ResolveSigner(c.cfg)
	if err != nil {
		return "", nil, err
	}

	subject, err := json.Marshal(params.Subject)
	if err != nil {
		return "", nil, withSource(ErrTokenSigning, err, nil)
	}

	now := c.now()
	ttl := params.TTL
	if ttl <= 0 {
		ttl = time.Duration(DefaultTokenExpiration) * time.Second
	}

	claims := &TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.Issuer(params.Origin),
			Subject:   string(subject),
			Audience:  c.mintAudience(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(time.Duration(c.cfg.GetNotBefore()) * time.Second)),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        params.Record.UID,
		},
		RecordID: params.Record.ID.String(),
	}

	if params.Renewable {
		claims.RenewExpiresAt = jwt.NewNumericDate(now.Add(time.Duration(c.cfg.GetRenewExpiration()) * time.Second))
	}

	snapshot := captureImmutableClaims(claims)
	if err := c.decorator.Decorate(ctx, params.Account, claims); err != nil {
		return "", nil, err
	}
	if err := snapshot.validate(claims); err != nil {
		return "", nil, err
	}

	token := jwt.NewWithClaims(signer.Method, claims)
	token.Header["jti"] = params.Record.UID

	signed, err := token.SignedString(signer.SigningKey)
	if err != nil {
		return "", nil, withSource(ErrTokenSigning, err, map[string]any{"alg": signer.Method.Alg()})
	}

	return signed, claims, nil
}

// Parse decodes the claims without verifying anything. It returns nil
// for anything that is not a well formed token.
func (c *TokenCodec) Parse(raw string) *TokenClaims {
	if raw == "" {
		return nil
	}

	claims := &TokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil
	}
	return claims
}

// Verify checks signature, issuer, audience, jti and the time window.
// Only configuration problems are returned as errors.
func (c *TokenCodec) Verify(raw string, params VerifyParams) (TokenCheck, error) {
	signer, err := ResolveSigner(c.cfg)
	if err != nil {
		return TokenRejected, err
	}

	claims := &TokenClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return signer.VerificationKey, nil
	},
		jwt.WithValidMethods([]string{signer.Method.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil || token == nil || !token.Valid {
		c.logger.Debug("token signature rejected: %v", err)
		return TokenRejected, nil
	}

	if jti, ok := token.Header["jti"].(string); ok && jti != claims.ID {
		c.logger.Debug("token jti header does not match claim")
		return TokenRejected, nil
	}

	if params.TokenID != "" && claims.ID != params.TokenID {
		c.logger.Debug("token jti does not match record")
		return TokenRejected, nil
	}

	opts := []jwt.ParserOption{
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	}
	if params.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(params.Issuer))
	}
	if params.Audience != "" {
		opts = append(opts, jwt.WithAudience(params.Audience))
	}

	if err := jwt.NewValidator(opts...).Validate(claims); err != nil {
		if isSolelyExpired(err) {
			return TokenExpired, nil
		}
		c.logger.Debug("token claims rejected: %v", err)
		return TokenRejected, nil
	}

	return TokenValid, nil
}

var nonExpiryClaimErrors = []error{
	jwt.ErrTokenNotValidYet,
	jwt.ErrTokenInvalidIssuer,
	jwt.ErrTokenInvalidAudience,
	jwt.ErrTokenUsedBeforeIssued,
	jwt.ErrTokenRequiredClaimMissing,
	jwt.ErrTokenInvalidSubject,
	jwt.ErrTokenInvalidId,
}

func isSolelyExpired(err error) bool {
	if !errors.Is(err, jwt.ErrTokenExpired) {
		return false
	}
	for _, other := range nonExpiryClaimErrors {
		if errors.Is(err, other) {
			return false
		}
	}
	return true
}
