package migrate

import (
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"sort"
	"strings"
)

var (
	sqlFileRe     = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)
	createTableRe = regexp.MustCompile(`(?i)create\s+table\s+(?:if\s+not\s+exists\s+)?"?([a-z0-9_]+)"?`)
)

// RequiredTables are the tables the gorm snapshot persister reads and writes.
var RequiredTables = []string{"basket_snapshots"}

// ValidateDir validates the migrations in dir. See ValidateFS.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	if err := ValidateFS(os.DirFS(dir), "."); err != nil {
		return fmt.Errorf("%s: %w", dir, err)
	}
	return nil
}

// ValidateFS checks filenames and versions, goose Up/Down sections with balanced statement
// blocks, and that the Up sections create every table in RequiredTables.
func ValidateFS(fsys fs.FS, dir string) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("read dir %q: %w", dir, err)
	}

	seen := map[string]string{}
	created := map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}

		m := sqlFileRe.FindStringSubmatch(name)
		if m == nil {
			return fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
		}
		if prev, ok := seen[m[1]]; ok {
			return fmt.Errorf("duplicate migration version %s in %q and %q", m[1], prev, name)
		}
		seen[m[1]] = name

		b, err := fs.ReadFile(fsys, joinPath(dir, name))
		if err != nil {
			return fmt.Errorf("read file %q: %w", name, err)
		}
		up, err := checkSections(name, string(b))
		if err != nil {
			return err
		}
		for _, match := range createTableRe.FindAllStringSubmatch(up, -1) {
			created[strings.ToLower(match[1])] = true
		}
	}

	if len(seen) == 0 {
		return fmt.Errorf("no migrations found")
	}
	var missing []string
	for _, table := range RequiredTables {
		if !created[table] {
			missing = append(missing, table)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("no migration creates required tables: %s", strings.Join(missing, ", "))
	}
	return nil
}

// checkSections returns the Up section of a migration.
func checkSections(name, txt string) (string, error) {
	upIdx := strings.Index(txt, "-- +goose Up")
	if upIdx < 0 {
		return "", fmt.Errorf("migration %q missing \"-- +goose Up\"", name)
	}
	downIdx := strings.Index(txt, "-- +goose Down")
	if downIdx < 0 {
		return "", fmt.Errorf("migration %q missing \"-- +goose Down\"", name)
	}
	if downIdx < upIdx {
		return "", fmt.Errorf("migration %q has Down before Up", name)
	}
	if begin, end := strings.Count(txt, "-- +goose StatementBegin"), strings.Count(txt, "-- +goose StatementEnd"); begin != end {
		return "", fmt.Errorf("migration %q has %d StatementBegin but %d StatementEnd", name, begin, end)
	}
	return txt[upIdx:downIdx], nil
}

func joinPath(dir, name string) string {
	if dir == "" || dir == "." {
		return name
	}
	return dir + "/" + name
}
