// Package ratecache stores fetched exchange rates on disk, one JSON file per
// coin, so rate data survives process restarts. Each entry carries the time
// it was fetched; the rate service judges freshness against its configured
// window.
package ratecache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/epconsortium/cryptomarket/internal/domain"
)

const (
	dirPermissions  = 0o755
	filePermissions = 0o644
)

// Cache is a directory of per-coin rate files.
type Cache struct {
	dir    string
	logger *zap.Logger
}

// New ensures the cache directory exists and returns the cache.
func New(dir string, logger *zap.Logger) (*Cache, error) {
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, errors.Wrapf(err, "create cache directory %s", dir)
	}
	return &Cache{dir: dir, logger: logger}, nil
}

// Load reads all cached entries of the coin. A coin never cached yields an
// empty map, not an error.
func (c *Cache) Load(symbol string) (map[domain.Day]domain.CachedRate, error) {
	raw, err := os.ReadFile(c.file(symbol))
	if errors.Is(err, os.ErrNotExist) {
		return map[domain.Day]domain.CachedRate{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read cache for %s", symbol)
	}

	entries := make(map[domain.Day]domain.CachedRate)
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, errors.Wrapf(err, "decode cache for %s", symbol)
	}
	return entries, nil
}

// Save merges the entries into the coin's cache file. Existing days not
// mentioned are kept.
func (c *Cache) Save(symbol string, entries map[domain.Day]domain.CachedRate) error {
	current, err := c.Load(symbol)
	if err != nil {
		c.logger.Warn("cache unreadable, rewriting from scratch", zap.String("coin", symbol), zap.Error(err))
		current = make(map[domain.Day]domain.CachedRate)
	}
	for day, entry := range entries {
		current[day] = entry
	}

	raw, err := json.MarshalIndent(current, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "encode cache for %s", symbol)
	}
	if err := os.WriteFile(c.file(symbol), raw, filePermissions); err != nil {
		return errors.Wrapf(err, "write cache for %s", symbol)
	}
	return nil
}

func (c *Cache) file(symbol string) string {
	return filepath.Join(c.dir, strings.ToLower(symbol)+".json")
}
