package video_api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"videoflix.systems/videoflix/cmd/web/handlers/common"
)

// HandleIndex lists all videos, newest first.
// Route: GET /api/video/
func HandleIndex(cat Catalog) echo.HandlerFunc {
	return func(c echo.Context) error {
		videos, err := cat.ListVideos(c.Request().Context())
		if err != nil {
			return catalogError(err, "failed to list videos")
		}
		out := make([]videoView, 0, len(videos))
		for _, v := range videos {
			out = append(out, newVideoView(v))
		}
		return c.JSON(http.StatusOK, out)
	}
}

// HandleGet returns one video.
// Route: GET /api/video/:id
func HandleGet(cat Catalog) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := common.RequireIDParam(c, "id")
		if err != nil {
			return err
		}
		video, err := cat.GetVideo(c.Request().Context(), id)
		if err != nil {
			return catalogError(err, "failed to load video", "video_id", id)
		}
		return c.JSON(http.StatusOK, newVideoView(video))
	}
}
