// Command migrate applies the OlieHub PostgreSQL schema migrations.
package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	_ "github.com/lib/pq"
	"github.com/oliehub/backend/internal/infrastructure/config"
	"github.com/oliehub/backend/internal/infrastructure/logger"
	"github.com/oliehub/backend/internal/infrastructure/migration"
	"github.com/oliehub/backend/migrations"
	"go.uber.org/zap"
)

const usage = `OlieHub database migration tool

Usage:
  migrate [flags] <command> [arguments]

Commands:
  up                    Apply all pending migrations
  down [n]              Roll back n migrations, or all of them
  version               Show current migration version
  force <version>       Mark a version as applied (repairs a dirty state)
  create <name> [desc]  Create the next sequential migration file pair
  list                  List migrations in the directory

Flags:
  -path string          Migrations directory (default: embedded set; ./migrations for create/list)
  -log-level string     Log level: debug, info, warn, error (default: info)

The database is read from the OLIE_DATABASE_* environment variables.`

var errUsage = errors.New("bad usage")

// dbCommand runs against an open migrator
type dbCommand func(m *migration.Migrator, log *zap.Logger, args []string) error

var dbCommands = map[string]dbCommand{
	"up": func(m *migration.Migrator, _ *zap.Logger, _ []string) error {
		return m.Up()
	},
	"down": func(m *migration.Migrator, _ *zap.Logger, args []string) error {
		if len(args) == 0 {
			return m.Down()
		}
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return fmt.Errorf("%w: down takes a positive count, got %q", errUsage, args[0])
		}
		return m.Steps(-n)
	},
	"version": func(m *migration.Migrator, log *zap.Logger, _ []string) error {
		version, dirty, err := m.Version()
		if err != nil {
			return err
		}
		log.Info("Current migration version", zap.Uint("version", version), zap.Bool("dirty", dirty))
		return nil
	},
	"force": func(m *migration.Migrator, _ *zap.Logger, args []string) error {
		if len(args) == 0 {
			return fmt.Errorf("%w: force needs a version", errUsage)
		}
		version, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("%w: invalid version %q", errUsage, args[0])
		}
		return m.Force(version)
	},
}

func main() {
	path := flag.String("path", "", "Read migrations from this directory instead of the embedded set")
	level := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		fmt.Println(usage)
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		Level:      *level,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	err = run(log, *path, args[0], args[1:])
	_ = log.Sync()
	if errors.Is(err, errUsage) {
		fmt.Println(usage)
	}
	if err != nil {
		log.Error("migrate failed", zap.String("command", args[0]), zap.Error(err))
		os.Exit(1)
	}
}

func run(log *zap.Logger, path, command string, args []string) error {
	dir := path
	if dir == "" {
		dir = "migrations"
	}

	switch command {
	case "create":
		if len(args) == 0 {
			return fmt.Errorf("%w: create needs a name", errUsage)
		}
		description := ""
		if len(args) > 1 {
			description = args[1]
		}
		mf, err := migration.CreateMigration(dir, args[0], description)
		if err != nil {
			return err
		}
		log.Info("Migration created", zap.String("version", mf.Version),
			zap.String("up_file", mf.UpPath), zap.String("down_file", mf.DownPath))
		return nil
	case "list":
		list, err := migration.ListMigrations(dir)
		if err != nil {
			return err
		}
		log.Info("Available migrations", zap.Int("count", len(list)))
		for _, name := range list {
			fmt.Println("  -", name)
		}
		return nil
	}

	cmd, ok := dbCommands[command]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, command)
	}

	m, closeDB, err := openMigrator(log, path)
	if err != nil {
		return err
	}
	defer closeDB()
	return cmd(m, log, args)
}

// openMigrator connects to PostgreSQL and reads migrations from path, or from the embedded set
func openMigrator(log *zap.Logger, path string) (*migration.Migrator, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}
	if cfg.Database.Driver == "sqlite" {
		return nil, nil, errors.New("SQL migrations target PostgreSQL; sqlite databases are created with auto-migrate")
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}

	var m *migration.Migrator
	if path != "" {
		abs, absErr := filepath.Abs(path)
		if absErr != nil {
			_ = db.Close()
			return nil, nil, absErr
		}
		log.Info("Using migrations directory", zap.String("path", abs))
		m, err = migration.New(db, abs, log)
	} else {
		m, err = migration.NewFromFS(db, migrations.FS, log)
	}
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("create migrator: %w", err)
	}
	return m, func() {
		_ = m.Close()
		_ = db.Close()
	}, nil
}
