// Command migrate manages the storefront Postgres schema with goose.
//
//	migrate [-dir path] [-embedded] up|down|status|validate
//	migrate -name add_cart_notes create
//	migrate -version 20260105090300 version
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/persiashop/storefront-backend/pkg/config"
	"github.com/persiashop/storefront-backend/pkg/db"
	"github.com/persiashop/storefront-backend/pkg/logger"
	"github.com/persiashop/storefront-backend/pkg/migrate"
)

type options struct {
	dir      string
	name     string
	version  string
	embedded bool
}

// offline commands never open a database connection.
var offline = map[string]func(options) (string, error){
	"create": func(o options) (string, error) {
		if o.name == "" {
			return "", errors.New("-name is required for create")
		}
		path, err := migrate.CreateSQLMigration(o.dir, o.name)
		return "created " + path, err
	},
	"validate": func(o options) (string, error) {
		return "migrations valid", migrate.ValidateDir(o.dir)
	},
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})
	_ = godotenv.Load()

	var opts options
	flag.StringVar(&opts.dir, "dir", migrate.DefaultDir, "goose migrations directory")
	flag.StringVar(&opts.name, "name", "", "migration name for create")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for the version command")
	flag.BoolVar(&opts.embedded, "embedded", false, "use the migrations compiled into the binary")
	flag.Parse()

	command := flag.Arg(0)
	if command == "" {
		command = "up"
	}

	cfg, err := config.Load()
	exitOn(context.Background(), logg, "load config", err)
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"command":  command,
		"dir":      opts.dir,
		"embedded": opts.embedded,
	})

	if run, ok := offline[command]; ok {
		msg, err := run(opts)
		exitOn(ctx, logg, command, err)
		logg.Info(ctx, msg)
		return
	}

	client, err := db.New(ctx, cfg.DB, logg)
	exitOn(ctx, logg, "connect database", err)
	defer client.Close()
	sqlDB, err := client.DB().DB()
	exitOn(ctx, logg, "unwrap sql.DB", err)

	exitOn(ctx, logg, command, runOnline(ctx, sqlDB, command, opts))
	logg.Info(ctx, "migrate finished")
}

func runOnline(ctx context.Context, sqlDB *sql.DB, command string, opts options) error {
	switch command {
	case "up", "down", "status":
		if opts.embedded {
			return migrate.RunEmbedded(ctx, sqlDB, command)
		}
		return migrate.Run(ctx, sqlDB, opts.dir, command)
	case "version":
		if opts.version == "" {
			return errors.New("-version is required for the version command")
		}
		return migrate.MigrateToVersion(ctx, sqlDB, opts.dir, opts.version)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func exitOn(ctx context.Context, logg *logger.Logger, step string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, "migrate: "+step+" failed", err)
	os.Exit(1)
}
