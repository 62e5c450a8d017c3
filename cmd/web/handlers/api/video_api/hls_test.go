package video_api

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"videoflix.systems/videoflix/cmd/web/handlers/api/fileserver"
	"videoflix.systems/videoflix/internal/media"
)

func newStreamingServer(root string) *echo.Echo {
	lib := media.NewLibrary(media.Layout{Root: root})
	fs := fileserver.NewFileServer()

	e := echo.New()
	e.GET("/api/video/:id/master.m3u8", HandleMasterPlaylist(lib, fs))
	e.GET("/api/video/:id/:resolution/index.m3u8", HandlePlaylist(lib, fs))
	e.GET("/api/video/:id/:resolution/:segment", HandleSegment(lib, fs))
	e.GET("/media/thumbnails/:file", HandleThumbnail(lib, fs))
	return e
}

func get(e *echo.Echo, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func write(t *testing.T, path string, content []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, content, 0o644))
}

func TestSegmentServedOnlyAfterConversion(t *testing.T) {
	root := t.TempDir()
	e := newStreamingServer(root)

	rec := get(e, "/api/video/7/480p/0000.ts")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	segment := []byte{0x47, 0x40, 0x00, 0x10, 0xde, 0xad, 0xbe, 0xef}
	write(t, filepath.Join(root, "hls", "7", "480p", "0000.ts"), segment)

	rec = get(e, "/api/video/7/480p/0000.ts")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "video/MP2T", rec.Header().Get("Content-Type"))
	assert.Equal(t, segment, rec.Body.Bytes())
	assert.Equal(t, "public, max-age=300", rec.Header().Get("Cache-Control"))
}

func TestSegmentRewrittenByRerunIsRevalidated(t *testing.T) {
	root := t.TempDir()
	e := newStreamingServer(root)
	path := filepath.Join(root, "hls", "7", "480p", "0000.ts")

	write(t, path, []byte{0x47, 0x00, 0x01})
	first := get(e, "/api/video/7/480p/0000.ts")
	require.Equal(t, http.StatusOK, first.Code)
	assert.NotContains(t, first.Header().Get("Cache-Control"), "immutable")
	etag := first.Header().Get("ETag")
	require.NotEmpty(t, etag)

	rerun := []byte{0x47, 0x40, 0x00, 0x10, 0xca, 0xfe}
	write(t, path, rerun)
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/video/7/480p/0000.ts", nil)
	req.Header.Set("If-None-Match", etag)
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, rerun, rec.Body.Bytes())
	assert.NotEqual(t, etag, rec.Header().Get("ETag"))
}

func TestPlaylists(t *testing.T) {
	root := t.TempDir()
	e := newStreamingServer(root)

	playlist := "#EXTM3U\n#EXT-X-TARGETDURATION:4\n#EXTINF:4.0,\n0000.ts\n#EXT-X-ENDLIST\n"
	master := "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=1400000,RESOLUTION=854x480\n480p/index.m3u8\n"
	write(t, filepath.Join(root, "hls", "3", "720p", "index.m3u8"), []byte(playlist))
	write(t, filepath.Join(root, "hls", "3", "master.m3u8"), []byte(master))

	rec := get(e, "/api/video/3/720p/index.m3u8")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/vnd.apple.mpegurl", rec.Header().Get("Content-Type"))
	assert.Equal(t, playlist, rec.Body.String())

	rec = get(e, "/api/video/3/master.m3u8")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, master, rec.Body.String())

	assert.Equal(t, http.StatusNotFound, get(e, "/api/video/3/1080p/index.m3u8").Code)
	assert.Equal(t, http.StatusNotFound, get(e, "/api/video/4/master.m3u8").Code)
}

func TestStreamingRejectsInvalidInput(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "hls", "1", "480p", "0000.ts"), []byte("x"))
	write(t, filepath.Join(root, "secret.txt"), []byte("x"))
	e := newStreamingServer(root)

	for _, target := range []string{
		"/api/video/0/480p/0000.ts",
		"/api/video/-1/480p/0000.ts",
		"/api/video/abc/480p/0000.ts",
		"/api/video/1/480/0000.ts",
		"/api/video/1/480p/0.ts",
		"/api/video/1/480p/0000.mp4",
		"/api/video/1/480p/..%2F..%2F..%2Fsecret.txt",
		"/api/video/1/..%2F480p/index.m3u8",
	} {
		rec := get(e, target)
		assert.Equal(t, http.StatusNotFound, rec.Code, target)
		assert.NotContains(t, rec.Body.String(), root, target)
	}
}

func TestThumbnail(t *testing.T) {
	root := t.TempDir()
	jpeg := []byte{0xff, 0xd8, 0xff, 0xe0, 0x00}
	write(t, filepath.Join(root, "thumbnails", "12.jpg"), jpeg)
	e := newStreamingServer(root)

	rec := get(e, "/media/thumbnails/12.jpg")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, jpeg, rec.Body.Bytes())

	assert.Equal(t, http.StatusNotFound, get(e, "/media/thumbnails/13.jpg").Code)
	assert.Equal(t, http.StatusNotFound, get(e, "/media/thumbnails/x.jpg").Code)
}
