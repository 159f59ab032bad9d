package casefile

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DirRepository loads case files (.json, .yaml, .yml) from a directory tree.
// Files are re-read on every lookup so authors can edit cases between runs.
type DirRepository struct {
	root   string
	logger *slog.Logger
}

func NewDirRepository(root string, logger *slog.Logger) *DirRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &DirRepository{root: root, logger: logger}
}

// List returns every parseable case under the root, sorted by id.
// Unparseable files are logged and skipped.
func (r *DirRepository) List(ctx context.Context) ([]*Case, error) {
	var cases []*Case
	err := filepath.WalkDir(r.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || !isCaseFile(path) {
			return nil
		}
		c, err := LoadFile(path)
		if err != nil {
			r.logger.Warn("skipping case file", "path", path, "error", err)
			return nil
		}
		r.labelFromPath(c, path)
		cases = append(cases, c)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", r.root, err)
	}
	sort.Slice(cases, func(i, j int) bool { return cases[i].ID < cases[j].ID })
	return cases, nil
}

// GetCase resolves key by exact id first, then by case-insensitive substring
// of id, station name, diagnosis or file name.
func (r *DirRepository) GetCase(ctx context.Context, key string) (*Case, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("empty key: %w", ErrNotFound)
	}
	cases, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range cases {
		if c.ID == key {
			return c, nil
		}
	}
	needle := strings.ToLower(key)
	for _, c := range cases {
		stem := strings.TrimSuffix(filepath.Base(c.Path), filepath.Ext(c.Path))
		if strings.Contains(strings.ToLower(c.ID), needle) ||
			strings.Contains(strings.ToLower(c.StationName), needle) ||
			strings.Contains(strings.ToLower(c.Diagnosis), needle) ||
			strings.Contains(strings.ToLower(stem), needle) {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%q: %w", key, ErrNotFound)
}

// LoadFile parses a single case file. The format is chosen by extension.
func LoadFile(path string) (*Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Case
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &c)
	default:
		err = json.Unmarshal(data, &c)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if c.ID == "" {
		c.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	c.Path = path
	return Enrich(&c), nil
}

// labelFromPath derives category/sub-category from <category>/<x>/<sub>/file.
func (r *DirRepository) labelFromPath(c *Case, path string) {
	rel, err := filepath.Rel(r.root, filepath.Dir(path))
	if err != nil || rel == "." {
		return
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if c.SubCategory == "" {
		c.SubCategory = parts[len(parts)-1]
	}
	if c.Category == "" && len(parts) >= 3 {
		c.Category = parts[len(parts)-3]
	}
}

func isCaseFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}
