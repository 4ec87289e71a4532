package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"sync"

	"github.com/pressly/goose/v3"
)

// DefaultDir is the on-disk location used by the migrate CLI.
const DefaultDir = "pkg/migrate/migrations"

const embeddedDir = "migrations"

//go:embed migrations/*.sql
var embedded embed.FS

var (
	errNoDB  = errors.New("db is required")
	errNoDir = errors.New("dir is required")

	// goose keeps dialect and base FS in package globals
	gooseMu sync.Mutex
)

// withGoose runs fn with goose configured for postgres over fsys. A nil fsys
// reads dir from disk.
func withGoose(fsys fs.FS, fn func() error) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := goose.SetDialect(string(goose.DialectPostgres)); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	goose.SetBaseFS(fsys)
	defer goose.SetBaseFS(nil)
	return fn()
}

// Run executes a goose command ("up", "down", "status", ...) against the
// SQL files in dir.
func Run(ctx context.Context, db *sql.DB, dir, command string, args ...string) error {
	return run(ctx, db, nil, dir, command, args...)
}

// RunEmbedded runs command against the migrations compiled into the binary,
// so deployed services do not need the SQL files on disk.
func RunEmbedded(ctx context.Context, db *sql.DB, command string, args ...string) error {
	return run(ctx, db, embedded, embeddedDir, command, args...)
}

func run(ctx context.Context, db *sql.DB, fsys fs.FS, dir, command string, args ...string) error {
	switch {
	case db == nil:
		return errNoDB
	case dir == "":
		return errNoDir
	}
	return withGoose(fsys, func() error {
		// status output goes to stdout through goose's own logger
		if err := goose.RunContext(ctx, command, db, dir, args...); err != nil {
			return fmt.Errorf("goose %s: %w", command, err)
		}
		return nil
	})
}

// MigrateToVersion moves the schema up or down until it sits at version,
// given as the YYYYMMDDHHMMSS prefix of a migration file.
func MigrateToVersion(ctx context.Context, db *sql.DB, dir, version string) error {
	if db == nil {
		return errNoDB
	}
	target, err := strconv.ParseInt(version, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", version, err)
	}

	return withGoose(nil, func() error {
		current, err := goose.GetDBVersionContext(ctx, db)
		if err != nil {
			return fmt.Errorf("get db version: %w", err)
		}
		step, direction := goose.UpToContext, "up-to"
		switch {
		case current == target:
			return nil
		case current > target:
			step, direction = goose.DownToContext, "down-to"
		}
		if err := step(ctx, db, dir, target); err != nil {
			return fmt.Errorf("goose %s %d: %w", direction, target, err)
		}
		return nil
	})
}

// EmbeddedFiles lists the migration files compiled into the binary, oldest first.
func EmbeddedFiles() ([]string, error) {
	names, err := fs.Glob(embedded, embeddedDir+"/*.sql")
	if err != nil {
		return nil, fmt.Errorf("read embedded migrations: %w", err)
	}
	for i, name := range names {
		names[i] = name[len(embeddedDir)+1:]
	}
	return names, nil
}
