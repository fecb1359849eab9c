package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"storyreel-pipeline/types"
)

// Cache is a content-addressable store of downloaded visuals, keyed by a
// hash of the normalized query so near-duplicate queries across scenes
// reuse the same download. Reads are lock-free; writes are serialized per
// key and promoted by rename, so a crash mid-write never leaves a corrupt
// committed entry.
type Cache struct {
	dir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex // per-key write locks
}

// New opens (and creates if needed) a cache directory
func New(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Cache{dir: dir, locks: make(map[string]*sync.Mutex)}, nil
}

// NormalizeQuery case-folds and collapses whitespace so that queries which
// differ only in casing/spacing share one cache entry
func NormalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

// Key returns the cache key (hex sha256 prefix) for a query
func Key(query string) string {
	sum := sha256.Sum256([]byte(NormalizeQuery(query)))
	return hex.EncodeToString(sum[:])[:16]
}

// Get looks up a committed entry for the query. It returns the entry and
// true only when both the sidecar and the media file are present.
func (c *Cache) Get(query string) (*types.CacheEntry, bool) {
	key := Key(query)
	data, err := os.ReadFile(c.sidecarPath(key))
	if err != nil {
		return nil, false
	}
	var entry types.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false
	}
	if _, err := os.Stat(entry.LocalPath); err != nil {
		return nil, false
	}
	return &entry, true
}

// Put commits an already-validated source file under the query's key. The
// file is copied to a temp path inside the cache dir first and promoted by
// rename, and the sidecar is written only after the media file is in place.
func (c *Cache) Put(query, sourceFile, kind string) (*types.CacheEntry, error) {
	key := Key(query)
	lock := c.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	// Another worker may have resolved the same normalized query already
	if entry, ok := c.Get(query); ok {
		return entry, nil
	}

	ext := filepath.Ext(sourceFile)
	if ext == "" {
		ext = ".bin"
	}
	finalPath := filepath.Join(c.dir, key+ext)

	size, err := copyToTemp(sourceFile, finalPath)
	if err != nil {
		return nil, err
	}

	entry := &types.CacheEntry{
		QueryHash: key,
		LocalPath: finalPath,
		Kind:      kind,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		SizeBytes: size,
	}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(c.sidecarPath(key), data, 0644); err != nil {
		return nil, fmt.Errorf("write cache sidecar: %w", err)
	}

	log.Printf("[cache] Committed %s (%d bytes) for query key %s", filepath.Base(finalPath), size, key)
	return entry, nil
}

func (c *Cache) sidecarPath(key string) string {
	return filepath.Join(c.dir, key+".json")
}

func (c *Cache) keyLock(key string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	lock, ok := c.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[key] = lock
	}
	return lock
}

// copyToTemp copies src next to dst under a temp name, syncs, then renames
func copyToTemp(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".cache-*.tmp")
	if err != nil {
		return 0, err
	}
	tmpName := tmp.Name()

	size, err := io.Copy(tmp, in)
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpName)
		return 0, fmt.Errorf("stage cache file: %w", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return 0, fmt.Errorf("promote cache file: %w", err)
	}
	return size, nil
}
