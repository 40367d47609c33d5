package source

import (
	"crypto/sha1"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"fortio.org/log"
	"github.com/google/go-github/v62/github"
)

// CachedContentResponse is the on-disk form of one GetContents answer.
type CachedContentResponse struct {
	Found       bool
	FileContent *github.RepositoryContent
}

// Cache is a directory of JSON files keyed by a hash of the request.
type Cache struct {
	Dir     string
	Enabled bool
}

// DefaultCacheDir returns (and creates) the user cache directory for luabundle.
func DefaultCacheDir() (string, error) {
	userCacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user cache directory: %w", err)
	}
	cacheDir := filepath.Join(userCacheDir, "luabundle_cache")
	log.LogVf("Using cache directory: %s", cacheDir)
	return cacheDir, os.MkdirAll(cacheDir, 0o755)
}

// Clear removes the cache directory.
func (c *Cache) Clear() error {
	if c.Dir == "" {
		return errors.New("cache directory not initialized")
	}
	log.Infof("Clearing cache directory: %s", c.Dir)
	return os.RemoveAll(c.Dir)
}

// Key generates the cache file name for the given request parts.
func (c *Cache) Key(parts ...string) string {
	h := sha1.New()
	for _, p := range parts {
		_, _ = io.WriteString(h, p)
		_, _ = io.WriteString(h, "|")
	}
	return filepath.Join(c.Dir, fmt.Sprintf("%x.json", h.Sum(nil)))
}

// Read loads key into target. A missing or corrupt entry is a miss, not an error.
func (c *Cache) Read(key string, target any) (bool, error) {
	if !c.Enabled {
		return false, nil
	}
	data, err := os.ReadFile(key)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("error reading cache file %s: %w", key, err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		log.Warnf("Error unmarshaling cache file %s, ignoring cache: %v", key, err)
		return false, nil
	}
	return true, nil
}

// Write stores data under key.
func (c *Cache) Write(key string, data any) error {
	if !c.Enabled {
		return nil
	}
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data for cache key %s: %w", key, err)
	}
	if err := os.MkdirAll(filepath.Dir(key), 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	if err := os.WriteFile(key, jsonData, 0o644); err != nil {
		return fmt.Errorf("failed to write cache file %s: %w", key, err)
	}
	log.LogVf("Cache write: %s", key)
	return nil
}
