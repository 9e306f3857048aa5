package auth_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	auth "github.com/goliatone/go-auth-jwt"
)

func setupDB(t *testing.T) *bun.DB {
	t.Helper()

	db, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	require.NoError(t, err)

	require.NoError(t, auth.Migrate(context.Background(), db, "sqlite3"))

	bunDB := bun.NewDB(db, sqlitedialect.New())
	t.Cleanup(func() {
		_ = bunDB.Close()
	})
	return bunDB
}

func registerAccount(t *testing.T, repo auth.Accounts, email string) *auth.Account {
	t.Helper()

	hash, err := auth.HashPassword(testPassword)
	require.NoError(t, err)

	account, err := repo.Register(context.Background(), &auth.Account{
		Email:        email,
		FirstName:    "Pepe",
		LastName:     "Rone",
		PasswordHash: hash,
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, account.ID)
	return account
}

func TestAccountsRepository_FindByIdentifier(t *testing.T) {
	ctx := context.Background()
	repo := auth.NewAccountsRepository(setupDB(t))

	account := registerAccount(t, repo, "  Pepe.Rone@Example.com ")
	assert.Equal(t, "pepe.rone@example.com", account.Email)
	assert.Equal(t, "pepe.rone@example.com", account.Username)
	assert.Equal(t, auth.RoleMember, account.Role)
	assert.False(t, account.Activated)

	for _, identifier := range []string{
		"pepe.rone@example.com",
		"PEPE.RONE@EXAMPLE.COM",
		account.ID.String(),
	} {
		found, err := repo.FindByIdentifier(ctx, identifier)
		require.NoError(t, err, identifier)
		require.NotNil(t, found, identifier)
		assert.Equal(t, account.ID, found.ID, identifier)
	}

	found, err := repo.FindByIdentifier(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, found)

	found, err = repo.FindByIdentifier(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, found)

	found, err = repo.FindByID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestAccountsRepository_DuplicateEmail(t *testing.T) {
	repo := auth.NewAccountsRepository(setupDB(t))
	registerAccount(t, repo, "dup@example.com")

	_, err := repo.Register(context.Background(), &auth.Account{Email: "DUP@example.com"})
	assert.Error(t, err)
}

func TestAccountsRepository_TokenReferences(t *testing.T) {
	ctx := context.Background()
	repo := auth.NewAccountsRepository(setupDB(t))
	account := registerAccount(t, repo, "user@example.com")

	resetID := uuid.New()
	signupID := uuid.New()

	require.NoError(t, repo.SetResetToken(ctx, account.ID, &resetID))
	require.NoError(t, repo.SetSignupToken(ctx, account.ID, &signupID))

	found, err := repo.FindByResetToken(ctx, resetID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, account.ID, found.ID)

	found, err = repo.FindBySignupToken(ctx, signupID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, account.ID, found.ID)

	found, err = repo.FindByResetToken(ctx, signupID)
	require.NoError(t, err)
	assert.Nil(t, found)

	require.NoError(t, repo.Activate(ctx, account.ID))

	found, err = repo.FindByID(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, found.Activated)
	assert.Nil(t, found.SignupTokenID)

	require.NoError(t, repo.ResetPassword(ctx, account.ID, "new-hash"))

	found, err = repo.FindByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", found.PasswordHash)
	assert.Nil(t, found.ResetTokenID)

	require.NoError(t, repo.SetResetToken(ctx, account.ID, nil))
}

func TestAccountsRepository_ResetPasswordUnknownAccount(t *testing.T) {
	repo := auth.NewAccountsRepository(setupDB(t))

	err := repo.ResetPassword(context.Background(), uuid.New(), "hash")
	require.Error(t, err)
	assert.True(t, repository.IsRecordNotFound(err))
}

func TestAccountsRepository_TrackLogins(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	repo := auth.NewAccountsRepository(setupDB(t), auth.WithAccountsClock(clock.Now))
	account := registerAccount(t, repo, "user@example.com")

	require.NoError(t, repo.TrackAttemptedLogin(ctx, account))

	found, err := repo.FindByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, found.LoginAttempts)
	require.NotNil(t, found.LoginAttemptAt)
	assert.True(t, found.LoginAttemptAt.Equal(t0))

	require.NoError(t, repo.TrackAttemptedLogin(ctx, found))

	found, err = repo.FindByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, found.LoginAttempts)

	clock.Advance(time.Minute)
	require.NoError(t, repo.TrackSuccessfulLogin(ctx, found))

	found, err = repo.FindByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, found.LoginAttempts)
	assert.Nil(t, found.LoginAttemptAt)
	require.NotNil(t, found.LoggedInAt)
	assert.True(t, found.LoggedInAt.Equal(t0.Add(time.Minute)))
}

func TestTokenRecordsRepository(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	accounts := auth.NewAccountsRepository(db)
	records := auth.NewTokenRecordsRepository(db, auth.WithTokenPrefix(func() string { return "tk_" }))

	account := registerAccount(t, accounts, "user@example.com")
	other := registerAccount(t, accounts, "other@example.com")

	first, err := records.Create(ctx, auth.TokenClassAuth, &account.ID, testAgent)
	require.NoError(t, err)
	assert.Contains(t, first.UID, "tk_")
	assert.Equal(t, testAgent, first.UserAgent)

	second, err := records.Create(ctx, auth.TokenClassAuth, &account.ID, testAgent)
	require.NoError(t, err)
	assert.NotEqual(t, first.UID, second.UID)

	single, err := records.Create(ctx, auth.TokenClassAnonymous, nil, testAgent)
	require.NoError(t, err)
	assert.Nil(t, single.AccountID)

	kept, err := records.Create(ctx, auth.TokenClassAuth, &other.ID, "")
	require.NoError(t, err)

	found, err := records.FindByID(ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, first.UID, found.UID)
	assert.Equal(t, auth.TokenClassAuth, found.Class)
	require.NotNil(t, found.AccountID)
	assert.Equal(t, account.ID, *found.AccountID)

	listed, err := records.ListAuthTokens(ctx, account.ID)
	require.NoError(t, err)
	assert.Len(t, listed, 2)

	n, err := records.DeleteAuthTokens(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = records.DeleteAuthTokens(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	for _, id := range []uuid.UUID{single.ID, kept.ID} {
		found, err := records.FindByID(ctx, id)
		require.NoError(t, err)
		assert.NotNil(t, found)
	}

	require.NoError(t, records.Delete(ctx, single))

	found, err = records.FindByID(ctx, single.ID)
	require.NoError(t, err)
	assert.Nil(t, found)

	require.NoError(t, records.Delete(ctx, single), "deleting twice is a no-op")
}

func TestTokenRecordsRepository_UIDConflict(t *testing.T) {
	ctx := context.Background()
	records := auth.NewTokenRecordsRepository(setupDB(t), auth.WithUIDGenerator(func() string {
		return "fixed"
	}))

	_, err := records.Create(ctx, auth.TokenClassAnonymous, nil, "")
	require.NoError(t, err)

	_, err = records.Create(ctx, auth.TokenClassAnonymous, nil, "")
	require.Error(t, err)

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, auth.TextCodeTokenRecordConflict, richErr.TextCode)
}

func TestRepositoryManager_RunInTx(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	mngr := auth.NewRepositoryManager(db, auth.Options{TokenPrefix: "tx_"})
	require.NoError(t, mngr.Validate())

	account := registerAccount(t, mngr.Accounts(), "user@example.com")

	var created *auth.TokenRecord
	err := mngr.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := mngr.TokenRecords().CreateTx(ctx, tx, auth.TokenClassAnonymous, nil, "")
		if err != nil {
			return err
		}
		created = record
		return mngr.Accounts().ActivateTx(ctx, tx, account.ID)
	})
	require.NoError(t, err)
	assert.Contains(t, created.UID, "tx_")

	found, err := mngr.Accounts().FindByID(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, found.Activated)
}

func TestAuthenticatorWithBunStores(t *testing.T) {
	ctx := context.Background()
	opts := defaultOptions()
	clock := newTestClock()

	mngr := auth.NewRepositoryManager(setupDB(t), &opts)
	account := registerAccount(t, mngr.Accounts(), "user@example.com")

	authenticator := auth.NewAuthenticator(&opts, mngr.TokenRecords(), mngr.Accounts()).
		WithClock(clock.Now).
		WithSubAuthenticators(auth.NewPasswordAuthenticator(mngr.Accounts()).WithClock(clock.Now))
	ops := auth.NewOperations(authenticator, mngr.Accounts())
	req := auth.RequestContext{UserAgent: testAgent}

	signup, err := authenticator.GenerateSignupToken(ctx, req, account)
	require.NoError(t, err)

	login, err := ops.CreateToken(ctx, req, auth.LoginData{Email: account.Email, Password: testPassword})
	require.NoError(t, err)
	require.Equal(t, auth.StatusOK, login.Status)

	out, err := authenticator.ValidateToken(ctx, login.Token, req)
	require.NoError(t, err)
	assert.Equal(t, auth.StatusInactivatedUser, out.Status)

	activated, err := ops.ActivateAccount(ctx, req, signup.Token)
	require.NoError(t, err)
	require.Equal(t, auth.StatusOK, activated.Status)

	out, err = authenticator.ValidateToken(ctx, login.Token, req)
	require.NoError(t, err)
	assert.Equal(t, auth.StatusOK, out.Status)

	clock.Advance(time.Hour)
	out, err = authenticator.ValidateToken(ctx, login.Token, req)
	require.NoError(t, err)
	assert.Equal(t, auth.StatusExpired, out.Status)

	loggedOut, err := ops.LogOut(ctx, req, login.Token)
	require.NoError(t, err)
	assert.Equal(t, auth.StatusExpired, loggedOut.Status, "only OK tokens can log out")

	refreshed, err := ops.RefreshToken(ctx, req, login.Token)
	require.NoError(t, err)
	require.Equal(t, auth.StatusOK, refreshed.Status)

	loggedOut, err = ops.LogOut(ctx, req, refreshed.Token)
	require.NoError(t, err)
	assert.Equal(t, auth.StatusDead, loggedOut.Status)

	out, err = authenticator.ValidateToken(ctx, login.Token, req)
	require.NoError(t, err)
	assert.Equal(t, auth.StatusInvalid, out.Status)
	assert.Nil(t, out.Record)
}

func TestTokenRecordsRepository_CascadeOnAccountDelete(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	opts := defaultOptions()

	mngr := auth.NewRepositoryManager(db, &opts)
	account := registerAccount(t, mngr.Accounts(), "cascade@example.com")

	authenticator := auth.NewAuthenticator(&opts, mngr.TokenRecords(), mngr.Accounts())
	req := auth.RequestContext{UserAgent: testAgent}

	issued, err := authenticator.GenerateToken(ctx, req, account)
	require.NoError(t, err)

	_, err = db.NewDelete().
		Model((*auth.Account)(nil)).
		Where("id = ?", account.ID).
		Exec(ctx)
	require.NoError(t, err)

	record, err := mngr.TokenRecords().FindByID(ctx, issued.Record.ID)
	require.NoError(t, err)
	assert.Nil(t, record, "records are deleted with their account")

	out, err := authenticator.ValidateToken(ctx, issued.Token, req)
	require.NoError(t, err)
	assert.Equal(t, auth.StatusInvalid, out.Status)
}
