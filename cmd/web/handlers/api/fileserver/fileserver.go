// Package fileserver serves media files with validators, conditional
// requests and byte ranges.
package fileserver

import (
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// ETagMode determines how ETags are computed.
type ETagMode int

const (
	// ETagWeakStat derives a weak ETag from modtime and size. Segments and
	// playlists use it since hashing every request of a stream is wasteful.
	ETagWeakStat ETagMode = iota
	// ETagStrongSHA256 hashes the content. Used for small images.
	ETagStrongSHA256
)

type etagEntry struct {
	size    int64
	modTime time.Time
	mode    ETagMode
	etag    string
}

// DefaultETagCacheEntries bounds the cache of a FileServer.
const DefaultETagCacheEntries = 1024

// ETagCache memoizes content-hash ETags per path. An entry is recomputed when
// the file's size or modtime changes, so a re-run conversion invalidates it.
// At most maxEntries are kept; inserting into a full cache evicts an
// arbitrary entry.
type ETagCache struct {
	mu         sync.RWMutex
	entries    map[string]etagEntry
	maxEntries int
}

func NewETagCache(maxEntries int) *ETagCache {
	if maxEntries <= 0 {
		maxEntries = DefaultETagCacheEntries
	}
	return &ETagCache{entries: make(map[string]etagEntry), maxEntries: maxEntries}
}

// ETag computes or retrieves a cached ETag for the given file. Weak stat
// ETags are cheap to derive and are never cached.
func (c *ETagCache) ETag(path string, info os.FileInfo, mode ETagMode) (string, error) {
	if mode == ETagWeakStat {
		return computeETag(path, info, mode)
	}

	c.mu.RLock()
	e, ok := c.entries[path]
	c.mu.RUnlock()
	if ok && e.size == info.Size() && e.modTime.Equal(info.ModTime()) && e.mode == mode {
		return e.etag, nil
	}

	etag, err := computeETag(path, info, mode)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	if _, exists := c.entries[path]; !exists && len(c.entries) >= c.maxEntries {
		for k := range c.entries {
			delete(c.entries, k)
			break
		}
	}
	c.entries[path] = etagEntry{size: info.Size(), modTime: info.ModTime(), mode: mode, etag: etag}
	c.mu.Unlock()
	return etag, nil
}

// Len reports the number of cached entries.
func (c *ETagCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func computeETag(path string, info os.FileInfo, mode ETagMode) (string, error) {
	switch mode {
	case ETagWeakStat:
		return fmt.Sprintf(`W/"%x-%x"`, info.ModTime().UnixNano(), info.Size()), nil
	case ETagStrongSHA256:
		f, err := os.Open(path)
		if err != nil {
			return "", err
		}
		defer f.Close()
		h := sha256.New()
		if _, err := io.Copy(h, f); err != nil {
			return "", err
		}
		return fmt.Sprintf(`"%x"`, h.Sum(nil)), nil
	default:
		return "", fmt.Errorf("unknown etag mode: %d", mode)
	}
}

// FileServer serves files from disk.
type FileServer struct {
	cache *ETagCache
}

func NewFileServer() *FileServer {
	return &FileServer{cache: NewETagCache(DefaultETagCacheEntries)}
}

// ServeDiskFileWithCache serves absPath with the given content type and
// Cache-Control. It answers If-None-Match and If-Modified-Since with 304 and
// delegates Range handling to http.ServeContent.
func (fs *FileServer) ServeDiskFileWithCache(c echo.Context, absPath, contentType, cacheControl string, etagMode ETagMode) error {
	f, err := os.Open(absPath)
	if err != nil {
		return echo.ErrNotFound
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		return echo.ErrNotFound
	}

	etag := ""
	if fs.cache != nil {
		if v, err := fs.cache.ETag(absPath, info, etagMode); err == nil {
			etag = v
		}
	}

	h := c.Response().Header()
	h.Set(echo.HeaderCacheControl, cacheControl)
	if etag != "" {
		h.Set("ETag", etag)
		if etagMatches(c.Request().Header.Get("If-None-Match"), etag) {
			return c.NoContent(http.StatusNotModified)
		}
	}
	if contentType != "" {
		h.Set(echo.HeaderContentType, contentType)
	}

	// ServeContent handles If-Modified-Since, Range and HEAD.
	http.ServeContent(c.Response(), c.Request(), filepath.Base(absPath), info.ModTime(), f)
	return nil
}

// etagMatches implements the weak comparison If-None-Match asks for.
func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	want := strings.TrimPrefix(etag, "W/")
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == want {
			return true
		}
	}
	return false
}
