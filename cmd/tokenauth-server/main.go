package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"go.uber.org/zap"

	auth "github.com/goliatone/go-auth-jwt"
	"github.com/goliatone/go-auth-jwt/middleware/jwtware"
)

const (
	defaultAddr = ":8080"
	defaultDSN  = "file:tokenauth.db?cache=shared"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	debug := os.Getenv("DEBUG") == "true"

	zlog, err := newLogger(debug)
	if err != nil {
		panic(err)
	}
	defer zlog.Sync()

	logger := zapLogger{log: zlog.Sugar()}
	cfg := auth.NewEnvConfig()

	if _, err := auth.ResolveSigner(cfg); err != nil {
		zlog.Fatal("invalid signer configuration", zap.Error(err))
	}

	ctx := context.Background()

	db, err := openDatabase(ctx, getenv("DATABASE_URL", defaultDSN))
	if err != nil {
		zlog.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	repo := auth.NewRepositoryManager(db, cfg)
	repo.MustValidate()

	if err := seedAdmin(ctx, repo.Accounts(), logger); err != nil {
		zlog.Fatal("failed to seed admin account", zap.Error(err))
	}

	authenticator := auth.NewAuthenticator(cfg, repo.TokenRecords(), repo.Accounts()).
		WithLogger(logger).
		WithSubAuthenticators(
			auth.NewPasswordAuthenticator(repo.Accounts()).WithLogger(logger),
			auth.NewAnonymousAuthenticator(cfg, repo.Accounts()),
		).
		WithActivitySink(auth.ActivitySinkFunc(func(_ context.Context, event auth.ActivityEvent) error {
			zlog.Info("auth activity",
				zap.String("event", string(event.EventType)),
				zap.String("account_id", event.AccountID),
			)
			return nil
		}))

	mailer := loggingMailer{log: zlog, baseURL: cfg.GetBaseURL()}
	ops := auth.NewOperations(authenticator, repo.Accounts()).
		WithLogger(logger).
		WithResetMailer(mailer).
		WithSignupMailer(mailer).
		WithHashedAccountIDs(os.Getenv("HASHED_ACCOUNT_IDS") == "true")

	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:      true,
			EnablePrintRoutes: debug,
			StrictRouting:     false,
		}))
	})

	auth.RegisterTokenRoutes(srv.Router(),
		auth.WithControllerOperations(ops),
		auth.WithControllerLogger(logger),
		auth.WithControllerDebug(debug),
	)

	protected := jwtware.New(jwtware.Config{
		TokenValidator: authenticator,
		BaseURL:        cfg.GetBaseURL(),
	})

	srv.Router().Get("/me", func(c router.Context) error {
		account, ok := auth.GetRouterAccount(c, auth.DefaultContextKey)
		if !ok {
			return c.JSON(router.StatusUnauthorized, auth.NewTokenResponse(auth.StatusInvalid, nil, ""))
		}
		if debug {
			logger.Debug("profile: %s", print.MaybePrettyJSON(account))
		}
		return c.JSON(router.StatusOK, account)
	}, protected)

	addr := getenv("HTTP_ADDR", defaultAddr)
	zlog.Info("starting token server", zap.String("addr", addr))

	srv.Serve(addr)

	WaitExitSignal()
}

// openDatabase picks the driver from the DSN scheme and applies the
// embedded migrations
func openDatabase(ctx context.Context, dsn string) (*bun.DB, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		sqldb, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, err
		}
		if err := auth.Migrate(ctx, sqldb, "postgres"); err != nil {
			sqldb.Close()
			return nil, err
		}
		return bun.NewDB(sqldb, pgdialect.New()), nil
	}

	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, err
	}
	sqldb.SetMaxOpenConns(1)

	// sqlite leaves foreign keys off unless asked, token records must
	// cascade with their account
	if _, err := sqldb.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		sqldb.Close()
		return nil, err
	}

	if err := auth.Migrate(ctx, sqldb, "sqlite3"); err != nil {
		sqldb.Close()
		return nil, err
	}
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// seedAdmin registers ADMIN_EMAIL with ADMIN_PASSWORD when both are set
// and the account does not exist yet
func seedAdmin(ctx context.Context, accounts auth.Accounts, logger auth.Logger) error {
	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		return nil
	}

	existing, err := accounts.FindByIdentifier(ctx, email)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	_, err = accounts.Register(ctx, &auth.Account{
		Email:        email,
		PasswordHash: hash,
		Role:         auth.RoleAdmin,
		Activated:    true,
	})
	if err == nil {
		logger.Info("seeded admin account %s", email)
	}
	return err
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(
		ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
