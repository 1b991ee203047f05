// Package bootstrap starts a CampusCart process: environment, config,
// logger, signal handling and the shared infrastructure clients.
package bootstrap

import (
	"context"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/campuscart/marketplace-backend/pkg/config"
	"github.com/campuscart/marketplace-backend/pkg/db"
	"github.com/campuscart/marketplace-backend/pkg/logger"
	"github.com/campuscart/marketplace-backend/pkg/migrate"
	"github.com/campuscart/marketplace-backend/pkg/redis"
)

// Runtime owns a process's config, logger and cleanup. Closers run in
// reverse registration order on Close or Fatal.
type Runtime struct {
	Config *config.Config
	Logger *logger.Logger
	Ctx    context.Context

	stop    context.CancelFunc
	closers []closer
}

type closer struct {
	name string
	fn   func() error
}

// Start loads .env and config and returns a runtime whose context ends on
// SIGINT or SIGTERM. Config errors exit the process.
func Start(service string) *Runtime {
	logg := logger.New(logger.Options{ServiceName: service})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}
	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = service

	rt := &Runtime{
		Config: cfg,
		Logger: logger.New(logger.Options{
			ServiceName: service,
			Level:       logger.ParseLevel(cfg.App.LogLevel),
			Format:      cfg.App.LogFormat,
			WarnStack:   cfg.App.LogWarnStack,
		}),
	}
	rt.Ctx, rt.stop = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	return rt
}

// Defer registers fn to run when the process shuts down.
func (rt *Runtime) Defer(name string, fn func() error) {
	rt.closers = append(rt.closers, closer{name: name, fn: fn})
}

func (rt *Runtime) Close() {
	for _, c := range slices.Backward(rt.closers) {
		if err := c.fn(); err != nil {
			rt.Logger.Error(context.Background(), "error closing "+c.name, err)
		}
	}
	rt.closers = nil
	rt.stop()
}

// Fatal logs err, releases everything registered so far and exits 1.
func (rt *Runtime) Fatal(msg string, err error) {
	rt.Logger.Error(rt.Ctx, msg, err)
	rt.Close()
	os.Exit(1)
}

// Check exits through Fatal with "failed to <what>" when err is set.
func (rt *Runtime) Check(what string, err error) {
	if err != nil {
		rt.Fatal("failed to "+what, err)
	}
}

// Database opens the primary database and, in dev, applies migrations.
func (rt *Runtime) Database() *db.Client {
	client, err := db.New(rt.Ctx, rt.Config.DB, rt.Logger)
	rt.Check("bootstrap database", err)
	rt.Defer("database", client.Close)
	rt.Check("run dev migrations", migrate.MaybeRunDev(rt.Ctx, rt.Config, rt.Logger, client))
	return client
}

func (rt *Runtime) Redis() *redis.Client {
	client, err := redis.New(rt.Ctx, rt.Config.Redis, rt.Logger)
	rt.Check("bootstrap redis", err)
	rt.Defer("redis", client.Close)
	return client
}
