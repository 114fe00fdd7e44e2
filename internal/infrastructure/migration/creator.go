package migration

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"text/template"
	"time"
)

const (
	upSuffix   = ".up.sql"
	downSuffix = ".down.sql"
)

var scaffold = template.Must(template.New("scaffold").Parse(
	`-- {{.Pair.Label}} {{.Direction}}: {{.Pair.Name}}
-- Generated {{.Pair.CreatedAt.Format "2006-01-02T15:04:05Z07:00"}}
{{- with .Pair.Description}}
-- {{.}}
{{- end}}

BEGIN;

COMMIT;
`))

// Pair is a generated up/down migration
type Pair struct {
	Version     uint64
	Name        string
	Description string
	CreatedAt   time.Time
	UpPath      string
	DownPath    string
}

// Label is the zero-padded version used as the file prefix
func (p *Pair) Label() string {
	return fmt.Sprintf("%06d", p.Version)
}

// Create writes the next sequential up/down pair for name into dir,
// creating dir when missing. Existing files are never overwritten.
func Create(dir, name, description string) (*Pair, error) {
	slug := slugify(name)
	if slug == "" {
		return nil, fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create migrations directory: %w", err)
	}

	existing, err := List(dir)
	if err != nil {
		return nil, err
	}
	latest, err := latestVersion(existing)
	if err != nil {
		return nil, err
	}

	p := &Pair{
		Version:     latest + 1,
		Name:        name,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
	base := filepath.Join(dir, p.Label()+"_"+slug)
	p.UpPath, p.DownPath = base+upSuffix, base+downSuffix

	if err := writeScaffold(p.UpPath, p, "up"); err != nil {
		return nil, err
	}
	if err := writeScaffold(p.DownPath, p, "down"); err != nil {
		_ = os.Remove(p.UpPath)
		return nil, err
	}
	return p, nil
}

// List returns the sorted base names of every up migration in dir.
// A missing dir holds no migrations.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if base, ok := strings.CutSuffix(e.Name(), upSuffix); ok && base != "" {
			names = append(names, base)
		}
	}
	slices.Sort(names)
	return names, nil
}

func latestVersion(names []string) (uint64, error) {
	var latest uint64
	for _, name := range names {
		prefix, _, _ := strings.Cut(name, "_")
		v, err := strconv.ParseUint(prefix, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("migration %q has a non-numeric version", name)
		}
		latest = max(latest, v)
	}
	return latest, nil
}

func writeScaffold(path string, p *Pair, direction string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s migration: %w", direction, err)
	}
	defer f.Close()

	data := struct {
		Pair      *Pair
		Direction string
	}{p, direction}
	if err := scaffold.Execute(f, data); err != nil {
		return fmt.Errorf("failed to write %s migration: %w", direction, err)
	}
	return nil
}

// slugify lowercases name and joins its alphanumeric runs with single underscores
func slugify(name string) string {
	words := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return r == ' ' || r == '-' || r == '_'
	})
	parts := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.Map(func(r rune) rune {
			if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
				return r
			}
			return -1
		}, w)
		if w != "" {
			parts = append(parts, w)
		}
	}
	return strings.Join(parts, "_")
}
