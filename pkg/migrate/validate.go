package migrate

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var sqlFileRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

const (
	annotationUp    = "-- +goose Up"
	annotationDown  = "-- +goose Down"
	annotationBegin = "-- +goose StatementBegin"
	annotationEnd   = "-- +goose StatementEnd"
)

// ValidateDir checks migration filenames, unique versions and goose annotations.
func ValidateDir(dir string) error {
	if dir == "" {
		return errNoDir
	}
	paths, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return err
	}

	versions := make(map[string]string, len(paths))
	for _, path := range paths {
		name := filepath.Base(path)
		m := sqlFileRe.FindStringSubmatch(name)
		if m == nil {
			return fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
		}
		if prev, dup := versions[m[1]]; dup {
			return fmt.Errorf("duplicate migration version %s in %q and %q", m[1], prev, name)
		}
		versions[m[1]] = name

		if err := checkAnnotations(path); err != nil {
			return fmt.Errorf("migration %q: %w", name, err)
		}
	}
	return nil
}

// checkAnnotations walks the file once: Up must come before Down and every
// StatementBegin must be closed inside the same section.
func checkAnnotations(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var sawUp, sawDown, open bool
	scanner := bufio.NewScanner(f)
	for line := 1; scanner.Scan(); line++ {
		switch strings.TrimSpace(scanner.Text()) {
		case annotationUp:
			sawUp = true
		case annotationDown:
			if !sawUp {
				return fmt.Errorf("line %d: Down before Up", line)
			}
			if open {
				return fmt.Errorf("line %d: Up section ends inside a StatementBegin block", line)
			}
			sawDown = true
		case annotationBegin:
			if open {
				return fmt.Errorf("line %d: nested StatementBegin", line)
			}
			open = true
		case annotationEnd:
			if !open {
				return fmt.Errorf("line %d: StatementEnd without StatementBegin", line)
			}
			open = false
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	switch {
	case !sawUp:
		return fmt.Errorf("missing %q", annotationUp)
	case !sawDown:
		return fmt.Errorf("missing %q", annotationDown)
	case open:
		return fmt.Errorf("unterminated StatementBegin")
	}
	return nil
}
