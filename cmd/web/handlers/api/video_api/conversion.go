package video_api

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"videoflix.systems/videoflix/cmd/web/handlers/common"
)

// HandleConversion reports the latest conversion job of a video.
// Route: GET /api/video/:id/conversion
func HandleConversion(cat Catalog) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := common.RequireIDParam(c, "id")
		if err != nil {
			return err
		}
		job, err := cat.LatestConversion(c.Request().Context(), id)
		if err != nil {
			return catalogError(err, "failed to load conversion", "video_id", id)
		}
		return c.JSON(http.StatusOK, newConversionView(job))
	}
}

// HandleConversionRetry puts a failed conversion back in the queue.
// Route: POST /api/video/:id/conversion/retry
func HandleConversionRetry(cat Catalog) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := common.RequireIDParam(c, "id")
		if err != nil {
			return err
		}
		job, err := cat.RetryConversion(c.Request().Context(), id)
		if err != nil {
			return catalogError(err, "failed to retry conversion", "video_id", id)
		}
		slog.Info("Conversion retry requested", "video_id", id, "job_id", job.ID)
		return c.JSON(http.StatusOK, map[string]any{
			"status": "queued",
			"job":    newConversionView(job),
		})
	}
}
