package migrate

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"regexp"
	"strings"

	"go.uber.org/multierr"
)

var migrationFileRe = regexp.MustCompile(`^(\d{14})_([a-z0-9_]+)\.sql$`)

var requiredMarkers = []string{"-- +goose Up", "-- +goose Down"}

// ValidateDir checks the migrations under dir on disk.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	return ValidateFS(os.DirFS(dir), ".")
}

// ValidateEmbedded checks the migrations compiled into the binary.
func ValidateEmbedded() error {
	return ValidateFS(embedded, embeddedDir)
}

// ValidateFS reports every malformed migration in root rather than stopping
// at the first one: bad file names, reused versions or names, and files
// missing a goose section.
func ValidateFS(fsys fs.FS, root string) error {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return fmt.Errorf("read migrations %q: %w", root, err)
	}

	var (
		errs     error
		versions = map[string]string{}
		names    = map[string]string{}
	)
	for _, entry := range entries {
		file := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(file, ".sql") {
			continue
		}

		parts := migrationFileRe.FindStringSubmatch(file)
		if parts == nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: expected <YYYYMMDDHHMMSS>_<snake_name>.sql", file))
			continue
		}
		version, name := parts[1], parts[2]
		if prev, ok := versions[version]; ok {
			errs = multierr.Append(errs, fmt.Errorf("%s: version %s already used by %s", file, version, prev))
		}
		versions[version] = file
		if prev, ok := names[name]; ok {
			errs = multierr.Append(errs, fmt.Errorf("%s: name %q already used by %s", file, name, prev))
		}
		names[name] = file

		body, err := fs.ReadFile(fsys, path.Join(root, file))
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", file, err))
			continue
		}
		errs = multierr.Append(errs, checkSections(file, string(body)))
	}
	return errs
}

func checkSections(file, body string) error {
	var errs error
	last := -1
	for _, marker := range requiredMarkers {
		idx := strings.Index(body, marker)
		if idx < 0 {
			errs = multierr.Append(errs, fmt.Errorf("%s: missing %q", file, marker))
			continue
		}
		if idx < last {
			errs = multierr.Append(errs, fmt.Errorf("%s: %q must follow the up section", file, marker))
		}
		last = idx
	}
	return errs
}
