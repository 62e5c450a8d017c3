package video_api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"videoflix.systems/videoflix/cmd/web/handlers/common"
	"videoflix.systems/videoflix/internal/catalog"
)

type updateRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Category    *string `json:"category"`
}

// HandleUpdate changes video metadata. It never queues a conversion.
// Route: PATCH /api/video/:id
func HandleUpdate(cat Catalog) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := common.RequireIDParam(c, "id")
		if err != nil {
			return err
		}
		var req updateRequest
		if err := (&echo.DefaultBinder{}).BindBody(c, &req); err != nil {
			return common.ErrBadRequest("invalid body")
		}

		video, err := cat.UpdateVideo(c.Request().Context(), id, catalog.VideoUpdate{
			Title:       req.Title,
			Description: req.Description,
			Category:    req.Category,
		})
		if err != nil {
			return catalogError(err, "failed to update video", "video_id", id)
		}
		return c.JSON(http.StatusOK, newVideoView(video))
	}
}
