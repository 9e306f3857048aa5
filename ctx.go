package auth

import (
	"context"

	"github.com/goliatone/go-router"
)

// DefaultContextKey is the router locals key holding the authenticated account
const DefaultContextKey = "account"

var accountCtxKey = &contextKey{"account"}
var claimsCtxKey = &contextKey{"claims"}
var recordCtxKey = &contextKey{"token_record"}

type contextKey struct {
	name string
}

// WithAccount sets the Account in the given context
func WithAccount(ctx context.Context, account *Account) context.Context {
	return context.WithValue(ctx, accountCtxKey, account)
}

// AccountFromContext finds the account from the context.
func AccountFromContext(ctx context.Context) (*Account, bool) {
	raw, ok := ctx.Value(accountCtxKey).(*Account)
	return raw, ok && raw != nil
}

// WithClaimsContext sets the TokenClaims in the given context
func WithClaimsContext(ctx context.Context, claims *TokenClaims) context.Context {
	return context.WithValue(ctx, claimsCtxKey, claims)
}

// GetClaims extracts the TokenClaims from the standard context
func GetClaims(ctx context.Context) (*TokenClaims, bool) {
	raw, ok := ctx.Value(claimsCtxKey).(*TokenClaims)
	return raw, ok && raw != nil
}

// WithTokenRecord sets the validated TokenRecord in the given context
func WithTokenRecord(ctx context.Context, record *TokenRecord) context.Context {
	return context.WithValue(ctx, recordCtxKey, record)
}

// TokenRecordFromContext returns the record of the token that
// authenticated the request
func TokenRecordFromContext(ctx context.Context) (*TokenRecord, bool) {
	raw, ok := ctx.Value(recordCtxKey).(*TokenRecord)
	return raw, ok && raw != nil
}

// GetRouterAccount extracts the Account from the router context
func GetRouterAccount(ctx router.Context, key string) (*Account, bool) {
	if key == "" {
		key = DefaultContextKey
	}
	raw := ctx.Locals(key)
	if raw == nil {
		return nil, false
	}
	account, ok := raw.(*Account)
	return account, ok && account != nil
}
