package video_api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"videoflix.systems/videoflix/cmd/web/handlers/common"
	"videoflix.systems/videoflix/internal/catalog"
	"videoflix.systems/videoflix/internal/media"
	"videoflix.systems/videoflix/internal/metrics"
	"videoflix.systems/videoflix/pkg/utils/filename"
)

// HandleCreate stores an uploaded source file under videos/ and creates the
// catalog record. A record carrying a file gets exactly one conversion job.
// Route: POST /api/video/
func HandleCreate(cat Catalog, layout media.Layout) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		in := catalog.NewVideo{
			Title:       c.FormValue("title"),
			Description: c.FormValue("description"),
			Category:    c.FormValue("category"),
		}

		var stored string
		fh, err := c.FormFile("file")
		switch {
		case err == nil:
			name, size, err := storeUpload(layout.VideoDir(), fh)
			if err != nil {
				slog.Error("failed to store upload", "filename", fh.Filename, "error", err)
				return common.ErrInternal("failed to store upload")
			}
			stored = filepath.Join(layout.VideoDir(), name)
			in.SourceFile = media.SourceRef(name)
			metrics.UploadBytesTotal.Add(float64(size))
			uploader := ""
			if s, ok := common.SessionFromContext(ctx); ok {
				uploader = s.Email
			}
			slog.Info("Upload stored", "file", in.SourceFile, "size", humanize.IBytes(uint64(size)), "uploader", uploader)
		case errors.Is(err, http.ErrMissingFile):
		default:
			return common.ErrBadRequest("invalid multipart body")
		}

		video, queued, err := cat.CreateVideo(ctx, in)
		if err != nil {
			if stored != "" {
				_ = os.Remove(stored)
			}
			return catalogError(err, "failed to create video", "title", in.Title)
		}

		return c.JSON(http.StatusCreated, map[string]any{
			"video":             newVideoView(video),
			"conversion_queued": queued,
		})
	}
}

// storeUpload copies the upload into dir under a sanitised name. An existing
// file is never overwritten; a short random suffix is added instead.
func storeUpload(dir string, fh *multipart.FileHeader) (string, int64, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, err
	}
	src, err := fh.Open()
	if err != nil {
		return "", 0, err
	}
	defer src.Close()

	name := filename.ForUpload(fh.Filename)
	dst, err := os.OpenFile(filepath.Join(dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, os.ErrExist) {
		ext := filepath.Ext(name)
		name = fmt.Sprintf("%s_%s%s", strings.TrimSuffix(name, ext), uuid.NewString()[:8], ext)
		dst, err = os.OpenFile(filepath.Join(dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	}
	if err != nil {
		return "", 0, err
	}

	n, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(filepath.Join(dir, name))
		return "", 0, err
	}
	return name, n, nil
}
