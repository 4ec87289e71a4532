package migrate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"text/template"

	"github.com/pressly/goose/v3"
)

var unsafeNameChars = regexp.MustCompile(`[^a-z0-9]+`)

var sqlTemplate = template.Must(template.New("storefront.sql").Parse(`-- +goose Up
-- +goose StatementBegin
-- version {{.Version}}
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- +goose StatementEnd
`))

// CreateSQLMigration writes <dir>/<YYYYMMDDHHMMSS>_<name>.sql through goose and
// returns its path. The name is lower-cased and reduced to [a-z0-9_].
func CreateSQLMigration(dir, name string) (string, error) {
	if dir == "" {
		return "", errors.New("dir is required")
	}
	slug := strings.Trim(unsafeNameChars.ReplaceAllString(strings.ToLower(name), "_"), "_")
	if slug == "" {
		return "", fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}

	before, err := filepath.Glob(filepath.Join(dir, "*_"+slug+".sql"))
	if err != nil {
		return "", err
	}
	goose.SetSequential(false)
	if err := goose.CreateWithTemplate(nil, dir, sqlTemplate, slug, "sql"); err != nil {
		return "", fmt.Errorf("goose create %q: %w", slug, err)
	}
	after, err := filepath.Glob(filepath.Join(dir, "*_"+slug+".sql"))
	if err != nil {
		return "", err
	}
	for _, path := range after {
		if !slices.Contains(before, path) {
			return path, nil
		}
	}
	return "", fmt.Errorf("migration %q already exists in %s", slug, dir)
}
