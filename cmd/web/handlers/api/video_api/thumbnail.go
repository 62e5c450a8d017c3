package video_api

import (
	"github.com/labstack/echo/v4"
	"videoflix.systems/videoflix/cmd/web/handlers/api/fileserver"
	"videoflix.systems/videoflix/internal/media"
)

// HandleThumbnail serves a generated poster frame.
// Route: GET /media/thumbnails/:file
func HandleThumbnail(lib *media.Library, fs *fileserver.FileServer) echo.HandlerFunc {
	return func(c echo.Context) error {
		return serveAsset(c, fs, "public, max-age=3600", fileserver.ETagStrongSHA256)(lib.Thumbnail(c.Param("file")))
	}
}
