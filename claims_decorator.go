package auth

import "context"

// ClaimsDecorator can add extension claims (Metadata) before a token is
// signed. Registered claims, rid and rexp must be left untouched.
type ClaimsDecorator interface {
	Decorate(ctx context.Context, account *Account, claims *TokenClaims) error
}

// ClaimsDecoratorFunc adapts a function into a ClaimsDecorator.
type ClaimsDecoratorFunc func(ctx context.Context, account *Account, claims *TokenClaims) error

// Decorate satisfies the ClaimsDecorator interface.
func (f ClaimsDecoratorFunc) Decorate(ctx context.Context, account *Account, claims *TokenClaims) error {
	if f == nil {
		return nil
	}
	return f(ctx, account, claims)
}

type noopClaimsDecorator struct{}

func (noopClaimsDecorator) Decorate(context.Context, *Account, *TokenClaims) error {
	return nil
}

func normalizeClaimsDecorator(d ClaimsDecorator) ClaimsDecorator {
	if d == nil {
		return noopClaimsDecorator{}
	}
	return d
}
