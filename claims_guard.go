package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

type immutableClaimsSnapshot struct {
	subject  string
	issuer   string
	id       string
	recordID string
	audience []string
	dates    map[string]*jwt.NumericDate
}

func captureImmutableClaims(claims *TokenClaims) immutableClaimsSnapshot {
	var audienceCopy []string
	if len(claims.Audience) > 0 {
		audienceCopy = append(audienceCopy, claims.Audience...)
	}

	return immutableClaimsSnapshot{
		subject:  claims.RegisteredClaims.Subject,
		issuer:   claims.Issuer,
		id:       claims.ID,
		recordID: claims.RecordID,
		audience: audienceCopy,
		dates:    protectedDates(claims),
	}
}

func protectedDates(claims *TokenClaims) map[string]*jwt.NumericDate {
	dates := map[string]*jwt.NumericDate{}
	for name, date := range map[string]*jwt.NumericDate{
		"iat":  claims.IssuedAt,
		"nbf":  claims.NotBefore,
		"exp":  claims.ExpiresAt,
		"rexp": claims.RenewExpiresAt,
	} {
		if date != nil {
			copied := *date
			dates[name] = &copied
		} else {
			dates[name] = nil
		}
	}
	return dates
}

func (snap immutableClaimsSnapshot) validate(claims *TokenClaims) error {
	if claims.RegisteredClaims.Subject != snap.subject {
		return immutableClaimViolation("sub")
	}

	if claims.Issuer != snap.issuer {
		return immutableClaimViolation("iss")
	}

	if claims.ID != snap.id {
		return immutableClaimViolation("jti")
	}

	if claims.RecordID != snap.recordID {
		return immutableClaimViolation("rid")
	}

	if !audienceEqual(claims.Audience, snap.audience) {
		return immutableClaimViolation("aud")
	}

	for name, date := range protectedDates(claims) {
		if !numericDateEqual(date, snap.dates[name]) {
			return immutableClaimViolation(name)
		}
	}

	return nil
}

func numericDateEqual(a, b *jwt.NumericDate) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Time.Equal(b.Time)
}

func audienceEqual(a jwt.ClaimStrings, b []string) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}

func immutableClaimViolation(field string) error {
	clone := withSource(ErrImmutableClaimMutation, ErrImmutableClaimMutation, map[string]any{"claim": field})
	clone.Message = fmt.Sprintf("immutable claim mutated: %s", field)
	return clone
}
