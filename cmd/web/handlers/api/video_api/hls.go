package video_api

import (
	"errors"
	"log/slog"

	"github.com/labstack/echo/v4"
	"videoflix.systems/videoflix/cmd/web/handlers/api/fileserver"
	"videoflix.systems/videoflix/cmd/web/handlers/common"
	"videoflix.systems/videoflix/internal/media"
)

// Reruns rewrite segments in place, so neither kind may be cached as immutable.
const (
	playlistCacheControl = "public, max-age=60"
	segmentCacheControl  = "public, max-age=300"
)

// HandleMasterPlaylist serves the multi-variant playlist of a video.
// Route: GET /api/video/:id/master.m3u8
func HandleMasterPlaylist(lib *media.Library, fs *fileserver.FileServer) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := common.RequireIDParam(c, "id")
		if err != nil {
			return err
		}
		return serveAsset(c, fs, playlistCacheControl, fileserver.ETagWeakStat)(lib.Master(id))
	}
}

// HandlePlaylist serves the media playlist of one rendition.
// Route: GET /api/video/:id/:resolution/index.m3u8
func HandlePlaylist(lib *media.Library, fs *fileserver.FileServer) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := common.RequireIDParam(c, "id")
		if err != nil {
			return err
		}
		return serveAsset(c, fs, playlistCacheControl, fileserver.ETagWeakStat)(lib.Playlist(id, c.Param("resolution")))
	}
}

// HandleSegment serves one MPEG-TS segment of a rendition.
// Route: GET /api/video/:id/:resolution/:segment
func HandleSegment(lib *media.Library, fs *fileserver.FileServer) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := common.RequireIDParam(c, "id")
		if err != nil {
			return err
		}
		return serveAsset(c, fs, segmentCacheControl, fileserver.ETagWeakStat)(lib.Segment(id, c.Param("resolution"), c.Param("segment")))
	}
}

func serveAsset(c echo.Context, fs *fileserver.FileServer, cacheControl string, mode fileserver.ETagMode) func(media.Asset, error) error {
	return func(asset media.Asset, err error) error {
		if err != nil {
			if !errors.Is(err, media.ErrNotFound) {
				slog.Error("failed to resolve media asset", "path", c.Request().URL.Path, "error", err)
			}
			return common.ErrNotFound("not found")
		}
		return fs.ServeDiskFileWithCache(c, asset.Path, asset.ContentType, cacheControl, mode)
	}
}
