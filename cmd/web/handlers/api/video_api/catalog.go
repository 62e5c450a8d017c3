// Package video_api provides the catalog and streaming handlers of /api/video.
package video_api

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"videoflix.systems/videoflix/cmd/web/handlers/common"
	"videoflix.systems/videoflix/internal/catalog"
	"videoflix.systems/videoflix/internal/db"
	"videoflix.systems/videoflix/pkg/utils/markdown"
)

// Catalog is the part of catalog.Service the handlers use.
type Catalog interface {
	ListVideos(ctx context.Context) ([]*db.Video, error)
	GetVideo(ctx context.Context, id int64) (*db.Video, error)
	CreateVideo(ctx context.Context, in catalog.NewVideo) (*db.Video, bool, error)
	UpdateVideo(ctx context.Context, id int64, in catalog.VideoUpdate) (*db.Video, error)
	LatestConversion(ctx context.Context, videoID int64) (*db.ConversionJob, error)
	RetryConversion(ctx context.Context, videoID int64) (*db.ConversionJob, error)
}

var _ Catalog = (*catalog.Service)(nil)

type videoView struct {
	ID              int64      `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	DescriptionHTML string     `json:"description_html"`
	Category        string     `json:"category"`
	CreatedAt       *time.Time `json:"created_at"`
	ThumbnailURL    *string    `json:"thumbnail_url"`
	VideoFile       *string    `json:"video_file"`
	DurationSeconds *float64   `json:"duration_seconds"`
}

func newVideoView(v *db.Video) videoView {
	return videoView{
		ID:              v.ID,
		Title:           v.Title,
		Description:     v.Description,
		DescriptionHTML: string(markdown.HTML(v.Description)),
		Category:        v.Category,
		CreatedAt:       db.NilTimePtr(v.CreatedAt),
		ThumbnailURL:    v.ThumbnailUrl,
		VideoFile:       v.SourceFile,
		DurationSeconds: v.DurationSeconds,
	}
}

type conversionView struct {
	ID         int64      `json:"id"`
	VideoID    int64      `json:"video_id"`
	Status     string     `json:"status"`
	Attempts   int32      `json:"attempts"`
	LastError  *string    `json:"last_error"`
	StartedAt  *time.Time `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
	CreatedAt  *time.Time `json:"created_at"`
	UpdatedAt  *time.Time `json:"updated_at"`
}

func newConversionView(j *db.ConversionJob) conversionView {
	return conversionView{
		ID:         j.ID,
		VideoID:    j.VideoID,
		Status:     string(j.Status),
		Attempts:   j.Attempts,
		LastError:  j.LastError,
		StartedAt:  db.NilTimePtr(j.StartedAt),
		FinishedAt: db.NilTimePtr(j.FinishedAt),
		CreatedAt:  db.NilTimePtr(j.CreatedAt),
		UpdatedAt:  db.NilTimePtr(j.UpdatedAt),
	}
}

// catalogError maps catalog errors onto HTTP errors. Unexpected errors are
// logged and reported generically.
func catalogError(err error, msg string, attrs ...any) error {
	switch {
	case errors.Is(err, catalog.ErrNotFound), errors.Is(err, catalog.ErrNoConversion):
		return common.ErrNotFound("not found")
	case errors.Is(err, catalog.ErrInvalid):
		return common.ErrBadRequest(err.Error())
	case errors.Is(err, catalog.ErrNotRetryable):
		return common.ErrConflict("conversion is not in a failed state")
	default:
		slog.Error(msg, append(attrs, "error", err)...)
		return echo.ErrInternalServerError
	}
}
