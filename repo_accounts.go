package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var ResetAccountPasswordSQL = `UPDATE "accounts"
SET
	"password_hash" = ?,
	"reset_token_id" = NULL,
	"updated_at" = ?
WHERE
	"id" = ?;`

var ActivateAccountSQL = `UPDATE "accounts"
SET
	"is_activated" = TRUE,
	"signup_token_id" = NULL,
	"updated_at" = ?
WHERE
	"id" = ?;`

// Accounts is the bun backed AccountStore
type Accounts interface {
	repository.Repository[*Account]
	AccountStore

	FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Account, error)
	ResetPasswordTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, passwordHash string) error
	ActivateTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID) error
	Register(ctx context.Context, account *Account) (*Account, error)
	RegisterTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error)
}

type accounts struct {
	repository.Repository[*Account]
	db  *bun.DB
	now func() time.Time
}

var (
	_ Accounts                        = (*accounts)(nil)
	_ repository.Repository[*Account] = (*accounts)(nil)
)

type AccountsOption func(*accounts)

func WithAccountsClock(now func() time.Time) AccountsOption {
	return func(a *accounts) {
		if now != nil {
			a.now = now
		}
	}
}

func NewAccountsRepository(db *bun.DB, opts ...AccountsOption) Accounts {
	repo := repository.NewRepository[*Account](db, repository.ModelHandlers[*Account]{
		NewRecord: func() *Account { return &Account{} },
		GetID: func(a *Account) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Account, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	out := &accounts{
		Repository: repo,
		db:         db,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(out)
		}
	}
	return out
}

func (a *accounts) Register(ctx context.Context, account *Account) (*Account, error) {
	return a.RegisterTx(ctx, a.db, account)
}

func (a *accounts) RegisterTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error) {
	prepareAccountDefaults(account)
	return a.Repository.CreateTx(ctx, tx, account)
}

func (a *accounts) FindByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	return a.FindByIDTx(ctx, a.db, id)
}

func (a *accounts) FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Account, error) {
	return a.findOne(ctx, tx, "id", id)
}

func (a *accounts) FindByIdentifier(ctx context.Context, identifier string) (*Account, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, nil
	}

	for _, opt := range resolveAccountIdentifier(identifier) {
		account, err := a.findOne(ctx, a.db, opt.column, opt.value)
		if err != nil {
			return nil, err
		}
		if account != nil {
			return account, nil
		}
	}

	return nil, nil
}

func (a *accounts) FindByResetToken(ctx context.Context, recordID uuid.UUID) (*Account, error) {
	return a.findOne(ctx, a.db, "reset_token_id", recordID)
}

func (a *accounts) FindBySignupToken(ctx context.Context, recordID uuid.UUID) (*Account, error) {
	return a.findOne(ctx, a.db, "signup_token_id", recordID)
}

func (a *accounts) findOne(ctx context.Context, tx bun.IDB, column string, value any) (*Account, error) {
	record := &Account{}
	err := tx.NewSelect().
		Model(record).
		Where(fmt.Sprintf("?TableAlias.%s = ?", column), value).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

func (a *accounts) SetResetToken(ctx context.Context, accountID uuid.UUID, recordID *uuid.UUID) error {
	return a.setTokenReference(ctx, "reset_token_id", accountID, recordID)
}

func (a *accounts) SetSignupToken(ctx context.Context, accountID uuid.UUID, recordID *uuid.UUID) error {
	return a.setTokenReference(ctx, "signup_token_id", accountID, recordID)
}

func (a *accounts) setTokenReference(ctx context.Context, column string, accountID uuid.UUID, recordID *uuid.UUID) error {
	_, err := a.db.NewRaw(
		fmt.Sprintf(`UPDATE "accounts" SET %q = ?, "updated_at" = ? WHERE "id" = ?;`, column),
		recordID, a.now().UTC(), accountID,
	).Exec(ctx)
	return err
}

func (a *accounts) Activate(ctx context.Context, accountID uuid.UUID) error {
	return a.ActivateTx(ctx, a.db, accountID)
}

func (a *accounts) ActivateTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID) error {
	_, err := tx.NewRaw(ActivateAccountSQL, a.now().UTC(), accountID).Exec(ctx)
	return err
}

func (a *accounts) ResetPassword(ctx context.Context, accountID uuid.UUID, passwordHash string) error {
	return a.ResetPasswordTx(ctx, a.db, accountID, passwordHash)
}

func (a *accounts) ResetPasswordTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, passwordHash string) error {
	res, err := tx.NewRaw(ResetAccountPasswordSQL, passwordHash, a.now().UTC(), accountID).Exec(ctx)
	if err != nil {
		return err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": accountID.String(),
			})
	}

	return nil
}

func (a *accounts) TrackSuccessfulLogin(ctx context.Context, account *Account) error {
	// NOTE: the ORM update skips zero values, it would not reset
	// login_attempt_at and login_attempts.
	_, err := a.db.NewRaw(`
		UPDATE "accounts"
		SET
			"loggedin_at" = ?,
			"login_attempt_at" = NULL,
			"login_attempts" = 0
		WHERE
			"id" = ?;
	`, a.now().UTC(), account.ID).Exec(ctx)

	return err
}

func (a *accounts) TrackAttemptedLogin(ctx context.Context, account *Account) error {
	_, err := a.db.NewRaw(`
		UPDATE "accounts"
		SET
			"login_attempt_at" = ?,
			"login_attempts" = ?
		WHERE
			"id" = ?;
	`, a.now().UTC(), account.LoginAttempts+1, account.ID).Exec(ctx)

	return err
}

type identifierOption struct {
	column string
	value  any
}

func resolveAccountIdentifier(identifier string) []identifierOption {
	if id, err := uuid.Parse(identifier); err == nil {
		return []identifierOption{{column: "id", value: id}}
	}

	if _, err := mail.ParseAddress(identifier); err == nil {
		return []identifierOption{{column: "email", value: strings.ToLower(identifier)}}
	}

	return []identifierOption{{column: "username", value: identifier}}
}

func prepareAccountDefaults(account *Account) {
	if account == nil {
		return
	}
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	account.Email = strings.ToLower(strings.TrimSpace(account.Email))
	if account.Role == "" {
		account.Role = RoleMember
	}
	if account.Username == "" {
		account.Username = account.Email
	}
}
