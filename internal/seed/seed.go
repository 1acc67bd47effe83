// Package seed loads content items from a file into the content pool.
package seed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	yaml "go.yaml.in/yaml/v3"
)

// ErrNoEntries is returned by Load for a file without entries.
var ErrNoEntries = errors.New("seed file has no entries")

// Entry is one content item as written in a seed file.
type Entry struct {
	Content  string `json:"content" yaml:"content"`
	Author   string `json:"author" yaml:"author"`
	Category string `json:"category" yaml:"category"`
}

// Load reads entries from a YAML (.yaml, .yml) or JSON file.
func Load(path string) ([]Entry, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	entries, err := Parse(filepath.Ext(path), data)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrNoEntries
	}
	return entries, nil
}

// Parse decodes entries according to the file extension ext.
func Parse(ext string, data []byte) ([]Entry, error) {
	var entries []Entry
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("yaml unmarshal: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("json unmarshal: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported seed format %q", ext)
	}
	return entries, nil
}

type contentInserter interface {
	Insert(ctx context.Context, body, author, category string) (bool, error)
}

type cacheInvalidator interface {
	Delete(ctx context.Context, key string) error
}

// Result counts what a seeding pass did.
type Result struct {
	Created int
	Skipped int
}

type Seeder struct {
	store  contentInserter
	cache  cacheInvalidator
	logger zerolog.Logger
}

// NewSeeder builds a Seeder; cache may be nil.
func NewSeeder(store contentInserter, cache cacheInvalidator, logger zerolog.Logger) *Seeder {
	logger = logger.With().Str("component", "Seeder").Logger()
	return &Seeder{store: store, cache: cache, logger: logger}
}

// Run inserts every entry whose body is not yet in the pool. Blank bodies
// are skipped.
func (s *Seeder) Run(ctx context.Context, entries []Entry, cacheKey string) (Result, error) {
	var res Result
	for _, e := range entries {
		body := strings.TrimSpace(e.Content)
		if body == "" {
			res.Skipped++
			continue
		}
		created, err := s.store.Insert(ctx, body, strings.TrimSpace(e.Author), strings.TrimSpace(e.Category))
		if err != nil {
			return res, fmt.Errorf("insert %q: %w", body, err)
		}
		if created {
			res.Created++
		} else {
			res.Skipped++
		}
	}

	if res.Created > 0 && s.cache != nil {
		if err := s.cache.Delete(ctx, cacheKey); err != nil {
			s.logger.Warn().Err(err).Str("key", cacheKey).Msg("failed to invalidate content cache")
		}
	}

	s.logger.Info().
		Int("created", res.Created).
		Int("skipped", res.Skipped).
		Msg("content seeding finished")
	return res, nil
}
