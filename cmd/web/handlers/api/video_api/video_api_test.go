package video_api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"videoflix.systems/videoflix/internal/catalog"
	"videoflix.systems/videoflix/internal/db"
	"videoflix.systems/videoflix/internal/media"
)

type fakeCatalog struct {
	videos  map[int64]*db.Video
	jobs    map[int64]*db.ConversionJob
	created []catalog.NewVideo
	updates []catalog.VideoUpdate
	err     error
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{videos: map[int64]*db.Video{}, jobs: map[int64]*db.ConversionJob{}}
}

func (f *fakeCatalog) ListVideos(ctx context.Context) ([]*db.Video, error) {
	var out []*db.Video
	for id := int64(len(f.videos)); id > 0; id-- {
		if v, ok := f.videos[id]; ok {
			out = append(out, v)
		}
	}
	return out, f.err
}

func (f *fakeCatalog) GetVideo(ctx context.Context, id int64) (*db.Video, error) {
	if v, ok := f.videos[id]; ok {
		return v, nil
	}
	return nil, catalog.ErrNotFound
}

func (f *fakeCatalog) CreateVideo(ctx context.Context, in catalog.NewVideo) (*db.Video, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	if in.Title == "" {
		return nil, false, fmt.Errorf("%w: title is required", catalog.ErrInvalid)
	}
	f.created = append(f.created, in)
	v := &db.Video{
		ID:        int64(len(f.videos) + 1),
		Title:     in.Title,
		Category:  catalog.NormalizeCategory(in.Category),
		CreatedAt: pgtype.Timestamptz{Time: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), Valid: true},
	}
	if in.SourceFile != "" {
		src := in.SourceFile
		v.SourceFile = &src
	}
	f.videos[v.ID] = v
	return v, v.SourceFile != nil, nil
}

func (f *fakeCatalog) UpdateVideo(ctx context.Context, id int64, in catalog.VideoUpdate) (*db.Video, error) {
	v, ok := f.videos[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	f.updates = append(f.updates, in)
	if in.Title != nil {
		v.Title = *in.Title
	}
	return v, nil
}

func (f *fakeCatalog) LatestConversion(ctx context.Context, videoID int64) (*db.ConversionJob, error) {
	if j, ok := f.jobs[videoID]; ok {
		return j, nil
	}
	return nil, catalog.ErrNoConversion
}

func (f *fakeCatalog) RetryConversion(ctx context.Context, videoID int64) (*db.ConversionJob, error) {
	j, err := f.LatestConversion(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if j.Status != db.ConversionJobStatusFailed {
		return nil, catalog.ErrNotRetryable
	}
	j.Status = db.ConversionJobStatusPending
	j.LastError = nil
	return j, nil
}

func newAPIServer(cat Catalog, root string) *echo.Echo {
	e := echo.New()
	e.GET("/api/video/", HandleIndex(cat))
	e.POST("/api/video/", HandleCreate(cat, media.Layout{Root: root}))
	e.GET("/api/video/:id", HandleGet(cat))
	e.PATCH("/api/video/:id", HandleUpdate(cat))
	e.GET("/api/video/:id/conversion", HandleConversion(cat))
	e.POST("/api/video/:id/conversion/retry", HandleConversionRetry(cat))
	return e
}

func do(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func multipartUpload(t *testing.T, fields map[string]string, fileName string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if fileName != "" {
		fw, err := w.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/video/", &body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
}

func TestIndexAndGet(t *testing.T) {
	cat := newFakeCatalog()
	thumb := "http://127.0.0.1:8000/media/thumbnails/1.jpg"
	src := "videos/a.mp4"
	cat.videos[1] = &db.Video{ID: 1, Title: "A", Description: "**bold**", Category: "Drama", SourceFile: &src, ThumbnailUrl: &thumb}
	cat.videos[2] = &db.Video{ID: 2, Title: "B", Category: "Comedy"}
	e := newAPIServer(cat, t.TempDir())

	rec := do(e, httptest.NewRequest(http.MethodGet, "/api/video/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.EqualValues(t, 2, list[0]["id"])
	assert.Nil(t, list[0]["thumbnail_url"])
	assert.Equal(t, thumb, list[1]["thumbnail_url"])
	assert.Equal(t, src, list[1]["video_file"])
	assert.Contains(t, list[1]["description_html"], "<strong>bold</strong>")

	rec = do(e, httptest.NewRequest(http.MethodGet, "/api/video/2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"title":"B"`)

	assert.Equal(t, http.StatusNotFound, do(e, httptest.NewRequest(http.MethodGet, "/api/video/9", nil)).Code)
	assert.Equal(t, http.StatusNotFound, do(e, httptest.NewRequest(http.MethodGet, "/api/video/x", nil)).Code)
}

func TestCreateStoresUploadAndQueues(t *testing.T) {
	root := t.TempDir()
	cat := newFakeCatalog()
	e := newAPIServer(cat, root)

	content := []byte("fake mp4 payload")
	rec := do(e, multipartUpload(t, map[string]string{"title": "Trailer", "category": "drama"}, "../My Trailer.MP4", content))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"conversion_queued":true`)

	require.Len(t, cat.created, 1)
	assert.Equal(t, "videos/My-Trailer.mp4", cat.created[0].SourceFile)
	got, err := os.ReadFile(filepath.Join(root, "videos", "My-Trailer.mp4"))
	require.NoError(t, err)
	assert.Equal(t, content, got)

	// Same name again must not overwrite the first file.
	rec = do(e, multipartUpload(t, map[string]string{"title": "Trailer 2", "category": "drama"}, "My Trailer.mp4", []byte("other")))
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, cat.created, 2)
	second := cat.created[1].SourceFile
	assert.NotEqual(t, cat.created[0].SourceFile, second)
	assert.True(t, strings.HasPrefix(second, "videos/My-Trailer_"), second)
	assert.True(t, strings.HasSuffix(second, ".mp4"), second)

	got, err = os.ReadFile(filepath.Join(root, "videos", "My-Trailer.mp4"))
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestCreateWithoutFileQueuesNothing(t *testing.T) {
	cat := newFakeCatalog()
	e := newAPIServer(cat, t.TempDir())

	rec := do(e, multipartUpload(t, map[string]string{"title": "Metadata only", "category": "news"}, "", nil))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"conversion_queued":false`)
	require.Len(t, cat.created, 1)
	assert.Empty(t, cat.created[0].SourceFile)
}

func TestCreateInvalidRemovesUpload(t *testing.T) {
	root := t.TempDir()
	cat := newFakeCatalog()
	e := newAPIServer(cat, root)

	rec := do(e, multipartUpload(t, map[string]string{"category": "drama"}, "clip.mp4", []byte("x")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	entries, err := os.ReadDir(filepath.Join(root, "videos"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUpdateMetadata(t *testing.T) {
	cat := newFakeCatalog()
	cat.videos[1] = &db.Video{ID: 1, Title: "Old", Category: "Drama"}
	e := newAPIServer(cat, t.TempDir())

	req := httptest.NewRequest(http.MethodPatch, "/api/video/1", strings.NewReader(`{"title":"New"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := do(e, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"title":"New"`)
	require.Len(t, cat.updates, 1)
	assert.Nil(t, cat.updates[0].Category)

	req = httptest.NewRequest(http.MethodPatch, "/api/video/5", strings.NewReader(`{"title":"New"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	assert.Equal(t, http.StatusNotFound, do(e, req).Code)
}

func TestConversionStatusAndRetry(t *testing.T) {
	cat := newFakeCatalog()
	reason := "rendition 720p: ffmpeg: exit status 1"
	cat.jobs[1] = &db.ConversionJob{ID: 10, VideoID: 1, Status: db.ConversionJobStatusFailed, Attempts: 1, LastError: &reason}
	cat.jobs[2] = &db.ConversionJob{ID: 11, VideoID: 2, Status: db.ConversionJobStatusSucceeded, Attempts: 1}
	e := newAPIServer(cat, t.TempDir())

	rec := do(e, httptest.NewRequest(http.MethodGet, "/api/video/1/conversion", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"failed"`)
	assert.Contains(t, rec.Body.String(), reason)

	assert.Equal(t, http.StatusNotFound, do(e, httptest.NewRequest(http.MethodGet, "/api/video/3/conversion", nil)).Code)

	rec = do(e, httptest.NewRequest(http.MethodPost, "/api/video/1/conversion/retry", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"queued"`)

	assert.Equal(t, http.StatusConflict, do(e, httptest.NewRequest(http.MethodPost, "/api/video/2/conversion/retry", nil)).Code)
	assert.Equal(t, http.StatusNotFound, do(e, httptest.NewRequest(http.MethodPost, "/api/video/3/conversion/retry", nil)).Code)
}
