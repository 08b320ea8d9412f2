// Package bootstrap wires the shared infrastructure a conversation bot
// needs before it can serve updates: environment, logger, database and
// the conversation store.
package bootstrap

import (
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"

	coreconfig "github.com/m3rciful/convoflow/core/config"
	"github.com/m3rciful/convoflow/core/conversation"
	coredatabase "github.com/m3rciful/convoflow/core/database"
	"github.com/m3rciful/convoflow/core/logger"
	"github.com/m3rciful/convoflow/core/storage"
)

// Options control the generic bootstrap pipeline shared between bots.
type Options struct {
	Config   *coreconfig.Config
	Database coredatabase.Config

	// EnvFiles are loaded into the process environment before anything
	// else. Missing files are skipped.
	EnvFiles []string

	LoggerInit func(*coreconfig.Config) error
	Connect    func(coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(coredatabase.Config) error
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
type Result struct {
	DB    *sqlx.DB
	Store conversation.Store
}

// LoadEnv loads the given dotenv files into the environment, skipping
// files that do not exist. Call it before config.Load so env overrides
// pick up the values.
func LoadEnv(files ...string) error {
	for _, f := range files {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("bootstrap: load env %s: %w", f, err)
		}
	}
	return nil
}

// Run initializes the logger, connects to the database, applies the
// schema, and builds the conversation store.
func Run(opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}

	if err := LoadEnv(opts.EnvFiles...); err != nil {
		return nil, err
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.Init
	}
	if err := loggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	connect := opts.Connect
	if connect == nil {
		connect = coredatabase.Connect
	}
	db, err := connect(opts.Database)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}

	migrate := opts.Migrate
	if migrate == nil {
		migrate = coredatabase.RunMigrations
	}
	if err := migrate(opts.Database); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
	}

	store := storage.New(db)
	if opts.Database.Driver == coredatabase.DriverSQLite {
		// Migrations cover postgres only; sqlite bootstraps its own schema.
		if err := store.EnsureSchema(logger.Background()); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("bootstrap: schema setup failed: %w", err)
		}
	}

	return &Result{DB: db, Store: store}, nil
}
