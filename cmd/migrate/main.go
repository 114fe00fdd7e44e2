// Command migrate manages the order sync schema with golang-migrate.
package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/erp/ordersync/internal/infrastructure/config"
	"github.com/erp/ordersync/internal/infrastructure/logger"
	"github.com/erp/ordersync/internal/infrastructure/migration"
)

const defaultMigrationsDir = "migrations"

var errUsage = errors.New("invalid usage")

// command is one CLI verb. Commands with a nil migrate func work on files only.
type command struct {
	files   func(dir string, args []string, log *zap.Logger) error
	migrate func(m *migration.Migrator, args []string, log *zap.Logger) error
}

var commands = map[string]command{
	"up":      {migrate: func(m *migration.Migrator, _ []string, _ *zap.Logger) error { return m.Up() }},
	"down":    {migrate: func(m *migration.Migrator, _ []string, _ *zap.Logger) error { return m.Down() }},
	"steps":   {migrate: runSteps},
	"step":    {migrate: runSteps},
	"goto":    {migrate: runGoTo},
	"version": {migrate: runVersion},
	"force":   {migrate: runForce},
	"drop":    {migrate: runDrop},
	"create":  {files: runCreate},
	"list":    {files: runList},
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			printUsage()
		}
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}
}

func run(argv []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	dir := fs.String("path", "", "Path to migrations directory (default: ./migrations)")
	table := fs.String("table", migration.DefaultMigrationsTable, "Schema version table")
	logLevel := fs.String("log-level", "info", "Log level (debug, info, warn, error)")
	if err := fs.Parse(argv); err != nil {
		return errUsage
	}
	args := fs.Args()
	if len(args) == 0 {
		return errUsage
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}

	// A missing .env is fine; real environments set variables directly.
	_ = godotenv.Load()

	log, err := logger.New(logger.Config{
		Level:      *logLevel,
		Format:     "console",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync(log) }()

	migrationsDir, err := resolveMigrationsDir(*dir)
	if err != nil {
		return err
	}
	log.Debug("Migration CLI started",
		zap.String("command", args[0]),
		zap.String("migrations_path", migrationsDir),
	)

	if cmd.files != nil {
		return cmd.files(migrationsDir, args[1:], log)
	}

	m, err := openMigrator(migrationsDir, *table, log)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	return cmd.migrate(m, args[1:], log)
}

// resolveMigrationsDir returns an absolute path to dir, or to ./migrations
// or the repo-relative migrations directory next to the binary.
func resolveMigrationsDir(dir string) (string, error) {
	if dir == "" {
		dir = defaultMigrationsDir
		if _, err := os.Stat(dir); err != nil {
			if exe, err := os.Executable(); err == nil {
				candidate := filepath.Join(filepath.Dir(exe), "..", "..", defaultMigrationsDir)
				if _, err := os.Stat(candidate); err == nil {
					dir = candidate
				}
			}
		}
	}
	return filepath.Abs(dir)
}

func openMigrator(dir, table string, log *zap.Logger) (*migration.Migrator, error) {
	dbCfg, err := config.LoadDatabase()
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("postgres", dbCfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database %s/%s: %w", dbCfg.Host, dbCfg.DBName, err)
	}
	m, err := migration.New(db, migration.Config{MigrationsPath: dir, MigrationsTable: table}, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return m, nil
}

func intArg(args []string, what string) (int, error) {
	if len(args) < 1 {
		return 0, fmt.Errorf("%w: %s required", errUsage, what)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s %q", errUsage, what, args[0])
	}
	return n, nil
}

func runSteps(m *migration.Migrator, args []string, _ *zap.Logger) error {
	n, err := intArg(args, "step count")
	if err != nil {
		return err
	}
	return m.Steps(n)
}

func runGoTo(m *migration.Migrator, args []string, _ *zap.Logger) error {
	v, err := intArg(args, "version")
	if err != nil {
		return err
	}
	if v < 0 {
		return fmt.Errorf("%w: version must not be negative", errUsage)
	}
	return m.GoTo(uint(v))
}

func runForce(m *migration.Migrator, args []string, _ *zap.Logger) error {
	v, err := intArg(args, "version")
	if err != nil {
		return err
	}
	return m.Force(v)
}

func runVersion(m *migration.Migrator, _ []string, log *zap.Logger) error {
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	if version == 0 {
		log.Info("No migrations applied")
		return nil
	}
	log.Info("Current migration version", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

func runDrop(m *migration.Migrator, args []string, _ *zap.Logger) error {
	fs := flag.NewFlagSet("drop", flag.ContinueOnError)
	confirm := fs.Bool("confirm", false, "confirm dropping every object")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if !*confirm {
		return errors.New("drop removes every database object; rerun as 'migrate drop -confirm'")
	}
	return m.Drop()
}

func runCreate(dir string, args []string, log *zap.Logger) error {
	if len(args) < 1 {
		return fmt.Errorf("%w: migration name required", errUsage)
	}
	description := ""
	if len(args) > 1 {
		description = args[1]
	}
	pair, err := migration.Create(dir, args[0], description)
	if err != nil {
		return err
	}
	log.Info("Migration created",
		zap.Uint64("version", pair.Version),
		zap.String("up_file", pair.UpPath),
		zap.String("down_file", pair.DownPath),
	)
	return nil
}

func runList(dir string, _ []string, log *zap.Logger) error {
	names, err := migration.List(dir)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		log.Info("No migrations found")
		return nil
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Order sync schema migrations

Usage:
  migrate [flags] <command> [arguments]

Commands:
  up                    Apply all pending migrations
  down                  Roll back all migrations
  steps <n>             Apply n migrations (negative rolls back)
  goto <version>        Migrate to a specific version
  version               Show the current version
  force <version>       Set the version without migrating, to clear a dirty state
  drop -confirm         Drop every database object
  create <name> [desc]  Create the next migration file pair
  list                  List migration files

Flags:
  -path string          Migrations directory (default: ./migrations)
  -table string         Schema version table (default: ordersync_schema_migrations)
  -log-level string     debug, info, warn or error (default: info)

Database settings come from ERP_DATABASE_HOST, ERP_DATABASE_PORT,
ERP_DATABASE_USER, ERP_DATABASE_PASSWORD, ERP_DATABASE_DBNAME and
ERP_DATABASE_SSLMODE. A .env file in the working directory is loaded first.`)
}
