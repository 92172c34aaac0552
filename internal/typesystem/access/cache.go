package access

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/hybris-tools/tsls/internal/typesystem/items"
)

// cachedFile is a parsed declaration file with the hash of the content it was parsed from
type cachedFile struct {
	File     *items.File
	Hash     string
	CachedAt time.Time
}

// FileCache keeps parsed declaration files between rebuilds so only changed files are
// parsed again
type FileCache struct {
	entries map[string]*cachedFile
	mu      sync.RWMutex
}

// NewFileCache creates an empty cache
func NewFileCache() *FileCache {
	return &FileCache{
		entries: make(map[string]*cachedFile),
	}
}

// Get returns the cached file for uri when it was parsed from content with the given hash
func (fc *FileCache) Get(uri, hash string) (*items.File, bool) {
	fc.mu.RLock()
	defer fc.mu.RUnlock()

	entry, exists := fc.entries[uri]
	if !exists || entry.Hash != hash {
		return nil, false
	}
	return entry.File, true
}

// Set stores a parsed file
func (fc *FileCache) Set(uri string, f *items.File, hash string) {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	fc.entries[uri] = &cachedFile{
		File:     f,
		Hash:     hash,
		CachedAt: time.Now(),
	}
}

// Invalidate removes an entry from the cache
func (fc *FileCache) Invalidate(uri string) {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	delete(fc.entries, uri)
}

// Retain drops every entry whose uri is not in keep and returns how many were dropped
func (fc *FileCache) Retain(keep map[string]bool) int {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	pruned := 0
	for uri := range fc.entries {
		if !keep[uri] {
			delete(fc.entries, uri)
			pruned++
		}
	}
	return pruned
}

// Size returns the number of cached entries
func (fc *FileCache) Size() int {
	fc.mu.RLock()
	defer fc.mu.RUnlock()

	return len(fc.entries)
}

// HashContent computes a SHA-256 hash of the given content
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
