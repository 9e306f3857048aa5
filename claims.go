package auth

import (
	"encoding/json"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SubjectTypeAnonymous marks tokens not tied to an account
const SubjectTypeAnonymous = "anonymous"

// TokenClaims are the claims carried by every token this package issues
type TokenClaims struct {
	jwt.RegisteredClaims
	// RenewExpiresAt is the end of the renewal window, absent for
	// tokens that can not be renewed
	RenewExpiresAt *jwt.NumericDate `json:"rexp,omitempty"`
	// RecordID is the id of the token record anchoring this token
	RecordID string         `json:"rid,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// RecordUUID parses the rid claim
func (c *TokenClaims) RecordUUID() (uuid.UUID, error) {
	return uuid.Parse(c.RecordID)
}

// DecodeSubject parses the JSON encoded sub claim
func (c *TokenClaims) DecodeSubject() (*Subject, error) {
	s := &Subject{}
	if err := json.Unmarshal([]byte(c.RegisteredClaims.Subject), s); err != nil {
		return nil, err
	}
	return s, nil
}

// CanRenewAt reports whether now is still inside the renewal window
func (c *TokenClaims) CanRenewAt(now time.Time) bool {
	if c.RenewExpiresAt == nil {
		return false
	}
	return now.Before(c.RenewExpiresAt.Time)
}

// Expires returns the expiration time
func (c *TokenClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// ClaimsMetadata exposes metadata extensions for optional context enrichment.
func (c *TokenClaims) ClaimsMetadata() map[string]any {
	return c.Metadata
}

// Subject is the JSON document stored in the sub claim
type Subject struct {
	Type     string
	ID       string
	UserName string
	Extra    map[string]any
}

// AnonymousSubject is the subject of tokens without an account
func AnonymousSubject() Subject {
	return Subject{Type: SubjectTypeAnonymous}
}

// SubjectForAccount builds the subject of an account token. Extra
// fields are keyed with a lower case first letter.
func SubjectForAccount(account *Account, fields []string) Subject {
	if account == nil {
		return AnonymousSubject()
	}

	s := Subject{
		Type:     "account",
		ID:       account.ID.String(),
		UserName: account.Email,
	}

	for _, field := range fields {
		if v, ok := account.SubjectField(field); ok {
			if s.Extra == nil {
				s.Extra = make(map[string]any)
			}
			s.Extra[lowerFirst(field)] = v
		}
	}

	return s
}

func (s Subject) IsAnonymous() bool {
	return s.Type == SubjectTypeAnonymous
}

func (s Subject) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Extra)+3)
	for k, v := range s.Extra {
		out[k] = v
	}
	out["type"] = s.Type
	if s.ID != "" {
		out["id"] = s.ID
	}
	if s.UserName != "" {
		out["userName"] = s.UserName
	}
	return json.Marshal(out)
}

func (s *Subject) UnmarshalJSON(data []byte) error {
	raw := map[string]any{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	s.Type, _ = raw["type"].(string)
	s.ID, _ = raw["id"].(string)
	s.UserName, _ = raw["userName"].(string)
	delete(raw, "type")
	delete(raw, "id")
	delete(raw, "userName")

	s.Extra = nil
	if len(raw) > 0 {
		s.Extra = raw
	}
	return nil
}
