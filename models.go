package auth

import (
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// TokenClass separates login tokens from single purpose tokens
type TokenClass string

const (
	// TokenClassAuth is a login session token
	TokenClassAuth TokenClass = "auth"
	// TokenClassAnonymous is a password reset or signup token
	TokenClassAnonymous TokenClass = "anonymous"
)

// Account is the account model
type Account struct {
	bun.BaseModel  `bun:"table:accounts,alias:acc"`
	ID             uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email          string         `bun:"email,notnull,unique" json:"email,omitempty"`
	Username       string         `bun:"username,notnull" json:"username,omitempty"`
	FirstName      string         `bun:"first_name,notnull" json:"first_name,omitempty"`
	LastName       string         `bun:"last_name,notnull" json:"last_name,omitempty"`
	Role           UserRole       `bun:"role,notnull" json:"role,omitempty"`
	PasswordHash   string         `bun:"password_hash" json:"-"`
	Activated      bool           `bun:"is_activated,notnull" json:"activated"`
	LoginAttempts  int            `bun:"login_attempts,notnull" json:"-"`
	LoginAttemptAt *time.Time     `bun:"login_attempt_at" json:"-"`
	LoggedInAt     *time.Time     `bun:"loggedin_at" json:"loggedin_at,omitempty"`
	ResetTokenID   *uuid.UUID     `bun:"reset_token_id,type:uuid" json:"-"`
	ResetToken     *TokenRecord   `bun:"rel:belongs-to,join:reset_token_id=id" json:"-"`
	SignupTokenID  *uuid.UUID     `bun:"signup_token_id,type:uuid" json:"-"`
	SignupToken    *TokenRecord   `bun:"rel:belongs-to,join:signup_token_id=id" json:"-"`
	AuthTokens     []*TokenRecord `bun:"rel:has-many,join:id=account_id" json:"-"`
	Metadata       map[string]any `bun:"metadata,type:text" json:"metadata,omitempty"`
	CreatedAt      *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time     `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// IsAdmin is true for admin and owner accounts
func (a *Account) IsAdmin() bool {
	return a != nil && a.Role.IsAdmin()
}

// IsActivated reports whether the account may use login tokens.
// Admins are always considered activated.
func (a *Account) IsActivated() bool {
	return a != nil && (a.Activated || a.IsAdmin())
}

// AddMetadata will append information to a metadata attribute
func (a *Account) AddMetadata(key string, val any) *Account {
	if a.Metadata == nil {
		a.Metadata = make(map[string]any)
	}
	a.Metadata[key] = val
	return a
}

// SubjectField resolves a configured subject field. Known attributes
// match case and separator insensitively, anything else is read from
// Metadata.
func (a *Account) SubjectField(name string) (any, bool) {
	if a == nil {
		return nil, false
	}

	switch normalizeFieldName(name) {
	case "email":
		return a.Email, true
	case "username":
		return a.Username, true
	case "firstname":
		return a.FirstName, true
	case "lastname":
		return a.LastName, true
	case "role":
		return string(a.Role), true
	case "activated", "isactivated":
		return a.Activated, true
	}

	v, ok := a.Metadata[name]
	return v, ok
}

func normalizeFieldName(name string) string {
	name = strings.ToLower(name)
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(name)
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}

// TokenRecord is the server side anchor of an issued token. A token is
// only ever valid while its record exists.
type TokenRecord struct {
	bun.BaseModel `bun:"table:token_records,alias:tkr"`
	ID            uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	UID           string     `bun:"uid,notnull,unique" json:"uid"`
	UserAgent     string     `bun:"user_agent" json:"user_agent,omitempty"`
	Class         TokenClass `bun:"class,notnull" json:"class"`
	AccountID     *uuid.UUID `bun:"account_id,type:uuid" json:"account_id,omitempty"`
	Account       *Account   `bun:"rel:belongs-to,join:account_id=id" json:"-"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

func (r *TokenRecord) IsAuth() bool {
	return r != nil && r.Class == TokenClassAuth
}

func (r *TokenRecord) IsAnonymous() bool {
	return r != nil && r.Class == TokenClassAnonymous
}

// BelongsTo reports whether the record was issued for the account
func (r *TokenRecord) BelongsTo(account *Account) bool {
	if r == nil || account == nil || r.AccountID == nil {
		return false
	}
	return *r.AccountID == account.ID
}
