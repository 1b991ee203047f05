package migrate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const versionLayout = "20060102150405"

var unsafeNameRe = regexp.MustCompile(`[^a-z0-9]+`)

const migrationTemplate = `-- %[1]s
-- +goose Up
-- +goose StatementBegin
SELECT 'up %[2]s';
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
SELECT 'down %[2]s';
-- +goose StatementEnd
`

// SanitizeName turns free text such as "Add refund ref" into add_refund_ref.
func SanitizeName(name string) string {
	slug := unsafeNameRe.ReplaceAllString(strings.ToLower(name), "_")
	return strings.Trim(slug, "_")
}

// CreateSQLMigration writes an empty goose migration stamped with now (UTC)
// and returns its path. Names already present in dir are rejected so the
// validator never sees two migrations with the same intent.
func CreateSQLMigration(dir, name string, now time.Time) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("dir is required")
	}
	slug := SanitizeName(name)
	if slug == "" {
		return "", fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %q: %w", dir, err)
	}

	existing, err := fs.Glob(os.DirFS(dir), "*_"+slug+".sql")
	if err != nil {
		return "", err
	}
	if len(existing) > 0 {
		return "", fmt.Errorf("migration %q already exists as %s", slug, existing[0])
	}

	file := fmt.Sprintf("%s_%s.sql", now.UTC().Format(versionLayout), slug)
	full := filepath.Join(dir, file)
	body := fmt.Sprintf(migrationTemplate, file, slug)

	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("migration version collision: %s", full)
		}
		return "", fmt.Errorf("create %q: %w", full, err)
	}
	if _, err := f.WriteString(body); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write %q: %w", full, err)
	}
	return full, f.Close()
}
