package names

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultCacheFile is the cache file name kept in the output directory.
const DefaultCacheFile = "uuid.cache"

// ErrUnreadable is returned by Save when Load failed to read an existing file.
var ErrUnreadable = errors.New("name cache could not be read")

// Cache is the persistent owner id -> display name mapping. It is read once,
// grows during a run, and is written back wholesale. Entries are never removed.
type Cache struct {
	path    string
	loaded  bool
	readErr error
	entries map[string]string
	order   []string
}

// NewCache creates a cache backed by the file at path. Nothing is read until
// Load is called.
func NewCache(path string) *Cache {
	return &Cache{
		path:    path,
		entries: make(map[string]string),
	}
}

// Path returns the backing file.
func (cache *Cache) Path() string {
	return cache.path
}

// Loaded reports whether Load has run.
func (cache *Cache) Loaded() bool {
	return cache.loaded
}

// Load reads `id:name` lines from the backing file. A missing file is an
// empty cache. Lines that do not split into exactly two parts are skipped,
// whatever their length. Entries already in memory win over the file. Load
// only reads once; a file that could not be read is never overwritten by Save.
func (cache *Cache) Load() error {
	if cache.loaded {
		return cache.readErr
	}
	cache.loaded = true

	data, err := os.ReadFile(cache.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		cache.readErr = fmt.Errorf("failed to read name cache %s: %w", cache.path, err)
		return cache.readErr
	}

	for _, line := range strings.Split(string(data), "\n") {
		components := strings.Split(strings.TrimRight(line, "\r"), ":")
		if len(components) != 2 {
			continue
		}
		if _, exists := cache.entries[components[0]]; exists {
			continue
		}
		cache.put(components[0], components[1])
	}
	return nil
}

// Get returns the cached name for an owner id.
func (cache *Cache) Get(ownerID string) (string, bool) {
	name, found := cache.entries[ownerID]
	return name, found
}

// Set records a resolved name.
func (cache *Cache) Set(ownerID, name string) {
	if _, exists := cache.entries[ownerID]; exists {
		cache.entries[ownerID] = name
		return
	}
	cache.put(ownerID, name)
}

func (cache *Cache) put(ownerID, name string) {
	cache.entries[ownerID] = name
	cache.order = append(cache.order, ownerID)
}

// Len returns the number of cached names.
func (cache *Cache) Len() int {
	return len(cache.entries)
}

// Save writes every entry, in insertion order, replacing the backing file.
// Entries that cannot be represented as a single `id:name` line are skipped
// and returned so the caller can report them. A cache whose file could not
// be read refuses to save.
func (cache *Cache) Save() (skipped []string, err error) {
	if cache.readErr != nil {
		return nil, fmt.Errorf("not overwriting %s: %w", cache.path, ErrUnreadable)
	}

	var buffer bytes.Buffer
	for _, ownerID := range cache.order {
		name := cache.entries[ownerID]
		if strings.ContainsAny(ownerID, ":\r\n") || strings.ContainsAny(name, ":\r\n") {
			skipped = append(skipped, ownerID)
			continue
		}
		buffer.WriteString(ownerID)
		buffer.WriteByte(':')
		buffer.WriteString(name)
		buffer.WriteByte('\n')
	}

	if err := os.MkdirAll(filepath.Dir(cache.path), 0o755); err != nil {
		return skipped, fmt.Errorf("failed to create cache directory: %w", err)
	}

	tempPath := cache.path + ".tmp"
	if err := os.WriteFile(tempPath, buffer.Bytes(), 0o644); err != nil {
		return skipped, fmt.Errorf("failed to write name cache %s: %w", tempPath, err)
	}
	if err := os.Rename(tempPath, cache.path); err != nil {
		_ = os.Remove(tempPath)
		return skipped, fmt.Errorf("failed to replace name cache %s: %w", cache.path, err)
	}
	return skipped, nil
}
