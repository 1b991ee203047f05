package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strconv"
	"time"

	"github.com/pressly/goose/v3"
)

const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var embedded embed.FS

const embeddedDir = "migrations"

// Embedded returns the migrations compiled into the binary, rooted at the
// migration files themselves.
func Embedded() fs.FS {
	sub, err := fs.Sub(embedded, embeddedDir)
	if err != nil {
		panic(fmt.Sprintf("migrate: embedded migrations: %v", err))
	}
	return sub
}

// Step describes one migration touched or inspected by a command.
type Step struct {
	Version  int64
	Name     string
	Applied  bool
	Duration time.Duration
}

// Runner applies Postgres migrations from one source. The caller keeps
// ownership of the *sql.DB. SQLite databases are bootstrapped from the models
// instead since the SQL uses Postgres enum types.
type Runner struct {
	provider *goose.Provider
}

func NewRunner(db *sql.DB, source fs.FS) (*Runner, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if source == nil {
		return nil, errors.New("migration source is required")
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, source)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return &Runner{provider: provider}, nil
}

// Execute runs up, down, redo or status and reports the affected migrations.
func (r *Runner) Execute(ctx context.Context, command string) ([]Step, error) {
	switch command {
	case "up":
		return collect(r.provider.Up(ctx))
	case "down":
		res, err := r.provider.Down(ctx)
		return collect([]*goose.MigrationResult{res}, err)
	case "redo":
		down, err := r.provider.Down(ctx)
		if err != nil {
			return collect([]*goose.MigrationResult{down}, err)
		}
		up, err := r.provider.UpByOne(ctx)
		return collect([]*goose.MigrationResult{down, up}, err)
	case "status":
		statuses, err := r.provider.Status(ctx)
		if err != nil {
			return nil, fmt.Errorf("goose status: %w", err)
		}
		steps := make([]Step, 0, len(statuses))
		for _, st := range statuses {
			steps = append(steps, Step{
				Version: st.Source.Version,
				Name:    path.Base(st.Source.Path),
				Applied: st.State == goose.StateApplied,
			})
		}
		return steps, nil
	default:
		return nil, fmt.Errorf("unsupported migrate command %q", command)
	}
}

// To migrates up or down until the database sits at target.
func (r *Runner) To(ctx context.Context, target int64) ([]Step, error) {
	current, err := r.provider.GetDBVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("get db version: %w", err)
	}
	switch {
	case current < target:
		return collect(r.provider.UpTo(ctx, target))
	case current > target:
		return collect(r.provider.DownTo(ctx, target))
	default:
		return nil, nil
	}
}

// ParseVersion accepts the YYYYMMDDHHMMSS prefix used in migration file names.
func ParseVersion(raw string) (int64, error) {
	version, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || len(raw) != len(versionLayout) {
		return 0, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS)", raw)
	}
	return version, nil
}

// Run applies command from dir on disk.
func Run(ctx context.Context, db *sql.DB, dir, command string) error {
	if dir == "" {
		return errors.New("dir is required")
	}
	return runOnce(ctx, db, os.DirFS(dir), command)
}

// RunEmbedded applies command from the compiled-in migrations so binaries do
// not depend on the working directory.
func RunEmbedded(ctx context.Context, db *sql.DB, command string) error {
	return runOnce(ctx, db, Embedded(), command)
}

func runOnce(ctx context.Context, db *sql.DB, source fs.FS, command string) error {
	runner, err := NewRunner(db, source)
	if err != nil {
		return err
	}
	_, err = runner.Execute(ctx, command)
	return err
}

func collect(results []*goose.MigrationResult, err error) ([]Step, error) {
	steps := make([]Step, 0, len(results))
	for _, res := range results {
		if res == nil || res.Source == nil {
			continue
		}
		steps = append(steps, Step{
			Version:  res.Source.Version,
			Name:     path.Base(res.Source.Path),
			Applied:  res.Direction == "up" && res.Error == nil,
			Duration: res.Duration,
		})
	}
	if err != nil {
		return steps, fmt.Errorf("goose: %w", err)
	}
	return steps, nil
}
