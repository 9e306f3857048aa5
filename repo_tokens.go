package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var DeleteAuthTokensSQL = `DELETE FROM "token_records"
WHERE
	"account_id" = ?
AND
	"class" = ?;`

var DeleteTokenRecordSQL = `DELETE FROM "token_records" WHERE "id" = ?;`

// TokenRecords is the bun backed TokenRecordStore
type TokenRecords interface {
	TokenRecordStore

	CreateTx(ctx context.Context, tx bun.IDB, class TokenClass, accountID *uuid.UUID, userAgent string) (*TokenRecord, error)
	DeleteTx(ctx context.Context, tx bun.IDB, record *TokenRecord) error
	DeleteAuthTokensTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID) (int, error)
}

type tokenRecords struct {
	db     *bun.DB
	prefix func() string
	newUID func() string
	now    func() time.Time
}

var _ TokenRecords = (*tokenRecords)(nil)

type TokenRecordsOption func(*tokenRecords)

// WithTokenPrefix reads the uid prefix on every insert
func WithTokenPrefix(prefix func() string) TokenRecordsOption {
	return func(r *tokenRecords) {
		if prefix != nil {
			r.prefix = prefix
		}
	}
}

// WithUIDGenerator replaces the random uid source
func WithUIDGenerator(gen func() string) TokenRecordsOption {
	return func(r *tokenRecords) {
		if gen != nil {
			r.newUID = gen
		}
	}
}

func WithRecordsClock(now func() time.Time) TokenRecordsOption {
	return func(r *tokenRecords) {
		if now != nil {
			r.now = now
		}
	}
}

func NewTokenRecordsRepository(db *bun.DB, opts ...TokenRecordsOption) TokenRecords {
	repo := &tokenRecords{
		db:     db,
		prefix: func() string { return "" },
		newUID: func() string { return uuid.NewString() },
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repo)
		}
	}
	return repo
}

func (r *tokenRecords) Create(ctx context.Context, class TokenClass, accountID *uuid.UUID, userAgent string) (*TokenRecord, error) {
	return r.CreateTx(ctx, r.db, class, accountID, userAgent)
}

func (r *tokenRecords) CreateTx(ctx context.Context, tx bun.IDB, class TokenClass, accountID *uuid.UUID, userAgent string) (*TokenRecord, error) {
	createdAt := r.now().UTC()
	record := &TokenRecord{
		ID:        uuid.New(),
		UID:       r.prefix() + r.newUID(),
		UserAgent: userAgent,
		Class:     class,
		AccountID: accountID,
		CreatedAt: &createdAt,
	}

	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, withSource(ErrTokenRecordConflict, err, map[string]any{"uid": record.UID})
		}
		return nil, err
	}

	return record, nil
}

func (r *tokenRecords) FindByID(ctx context.Context, id uuid.UUID) (*TokenRecord, error) {
	record := &TokenRecord{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

func (r *tokenRecords) Delete(ctx context.Context, record *TokenRecord) error {
	return r.DeleteTx(ctx, r.db, record)
}

func (r *tokenRecords) DeleteTx(ctx context.Context, tx bun.IDB, record *TokenRecord) error {
	if record == nil {
		return nil
	}
	_, err := tx.NewRaw(DeleteTokenRecordSQL, record.ID).Exec(ctx)
	return err
}

func (r *tokenRecords) DeleteAuthTokens(ctx context.Context, accountID uuid.UUID) (int, error) {
	return r.DeleteAuthTokensTx(ctx, r.db, accountID)
}

func (r *tokenRecords) DeleteAuthTokensTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID) (int, error) {
	res, err := tx.NewRaw(DeleteAuthTokensSQL, accountID, TokenClassAuth).Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return int(n), nil
}

func (r *tokenRecords) ListAuthTokens(ctx context.Context, accountID uuid.UUID) ([]*TokenRecord, error) {
	var records []*TokenRecord
	err := r.db.NewSelect().
		Model(&records).
		Where("?TableAlias.account_id = ?", accountID).
		Where("?TableAlias.class = ?", TokenClassAuth).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return records, nil
}

func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "sqlstate 23505")
}
