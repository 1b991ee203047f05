package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/campuscart/marketplace-backend/pkg/config"
	"github.com/campuscart/marketplace-backend/pkg/db"
	"github.com/campuscart/marketplace-backend/pkg/logger"
	"github.com/campuscart/marketplace-backend/pkg/migrate"
)

type options struct {
	cmd      string
	dir      string
	name     string
	version  string
	embedded bool
}

var errUsage = errors.New("usage")

func main() {
	opts := options{}
	flag.StringVar(&opts.cmd, "cmd", "up", "up|down|redo|status|version|create|validate")
	flag.StringVar(&opts.dir, "dir", migrate.DefaultDir, "migrations directory on disk")
	flag.StringVar(&opts.name, "name", "", "migration name for -cmd=create")
	flag.StringVar(&opts.version, "version", "", "target YYYYMMDDHHMMSS for -cmd=version")
	flag.BoolVar(&opts.embedded, "embedded", false, "use the migrations compiled into this binary instead of -dir")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, err)
			flag.Usage()
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "campuscart migrate %s: %v\n", opts.cmd, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"cmd":      opts.cmd,
		"dir":      opts.dir,
		"embedded": opts.embedded,
	})

	switch opts.cmd {
	case "create":
		if opts.name == "" {
			return fmt.Errorf("%w: -name is required for create", errUsage)
		}
		path, err := migrate.CreateSQLMigration(opts.dir, opts.name, time.Now())
		if err != nil {
			return err
		}
		logg.Info(logg.WithField(ctx, "path", path), "migration created")
		return nil
	case "validate":
		if opts.embedded {
			err = migrate.ValidateEmbedded()
		} else {
			err = migrate.ValidateDir(opts.dir)
		}
		if err != nil {
			return err
		}
		logg.Info(ctx, "migrations valid")
		return nil
	}

	if cfg.DB.Driver != config.DBDriverPostgres {
		return fmt.Errorf("goose migrations require the postgres driver, got %q", cfg.DB.Driver)
	}

	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("sql handle: %w", err)
	}

	source := migrate.Embedded()
	if !opts.embedded {
		source = os.DirFS(opts.dir)
	}
	runner, err := migrate.NewRunner(sqlDB, source)
	if err != nil {
		return err
	}

	steps, err := apply(ctx, runner, opts)
	for _, step := range steps {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"version":     step.Version,
			"migration":   step.Name,
			"applied":     step.Applied,
			"duration_ms": step.Duration.Milliseconds(),
		}), "migration step")
	}
	if err != nil {
		return err
	}
	logg.Info(logg.WithField(ctx, "steps", len(steps)), "migration command finished")
	return nil
}

func apply(ctx context.Context, runner *migrate.Runner, opts options) ([]migrate.Step, error) {
	switch opts.cmd {
	case "up", "down", "redo", "status":
		return runner.Execute(ctx, opts.cmd)
	case "version":
		if opts.version == "" {
			return nil, fmt.Errorf("%w: -version is required for version", errUsage)
		}
		target, err := migrate.ParseVersion(opts.version)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errUsage, err)
		}
		return runner.To(ctx, target)
	default:
		return nil, fmt.Errorf("%w: unknown -cmd %q", errUsage, opts.cmd)
	}
}
