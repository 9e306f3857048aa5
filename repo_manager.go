package auth

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Accounts() Accounts
	TokenRecords() TokenRecords
}

type mngr struct {
	db           *bun.DB
	accounts     Accounts
	tokenRecords TokenRecords
}

// NewRepositoryManager wires the bun repositories. The token uid prefix
// is read from cfg on every insert.
func NewRepositoryManager(db *bun.DB, cfg Config) RepositoryManager {
	var opts []TokenRecordsOption
	if cfg != nil {
		opts = append(opts, WithTokenPrefix(cfg.GetTokenPrefix))
	}
	return &mngr{
		db:           db,
		accounts:     NewAccountsRepository(db),
		tokenRecords: NewTokenRecordsRepository(db, opts...),
	}
}

func (m mngr) Validate() error {
	if m.accounts == nil {
		return errors.New("repository accounts should be initialized")
	}

	if m.tokenRecords == nil {
		return errors.New("repository tokenRecords should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Accounts() Accounts {
	return m.accounts
}

func (m mngr) TokenRecords() TokenRecords {
	return m.tokenRecords
}
