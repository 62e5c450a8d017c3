// Package catalog stores video records and couples record creation with
// conversion job submission.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"videoflix.systems/videoflix/internal/db"
	"videoflix.systems/videoflix/internal/dispatch"
	"videoflix.systems/videoflix/internal/jobs"
)

var (
	ErrNotFound     = errors.New("catalog: video not found")
	ErrInvalid      = errors.New("catalog: invalid video")
	ErrNoConversion = errors.New("catalog: no conversion job for video")
	ErrNotRetryable = errors.New("catalog: conversion is not in a failed state")
)

// NewVideo is the input of CreateVideo. SourceFile is a media-root relative
// reference ("videos/<file>") or empty.
type NewVideo struct {
	Title       string `validate:"required,max=255"`
	Description string
	Category    string `validate:"required,max=100"`
	SourceFile  string `validate:"omitempty,max=1024"`
}

// VideoUpdate changes metadata only. Nil fields are left untouched.
type VideoUpdate struct {
	Title       *string `validate:"omitempty,min=1,max=255"`
	Description *string
	Category    *string `validate:"omitempty,min=1,max=100"`
}

// Service is the catalog storage service.
type Service struct {
	dbc        *db.DatabaseConnection
	dispatcher *dispatch.Dispatcher
	validate   *validator.Validate
}

func NewService(dbc *db.DatabaseConnection, dispatcher *dispatch.Dispatcher) *Service {
	return &Service{
		dbc:        dbc,
		dispatcher: dispatcher,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
}

// NormalizeCategory trims and title-cases a category name.
func NormalizeCategory(category string) string {
	fields := strings.Fields(category)
	return cases.Title(language.English).String(strings.Join(fields, " "))
}

// CreateVideo inserts the record and, when it carries a source file, the
// conversion job in the same transaction. It reports whether a job was
// queued.
func (s *Service) CreateVideo(ctx context.Context, in NewVideo) (*db.Video, bool, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Category = NormalizeCategory(in.Category)
	in.SourceFile = strings.TrimSpace(in.SourceFile)
	if err := s.validate.Struct(in); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	q, tx, err := s.dbc.NewWithTX(ctx)
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	params := &db.InsertVideoParams{
		Title:       in.Title,
		Description: in.Description,
		Category:    in.Category,
	}
	if in.SourceFile != "" {
		params.SourceFile = &in.SourceFile
	}
	video, err := q.InsertVideo(ctx, params)
	if err != nil {
		return nil, false, fmt.Errorf("insert video: %w", err)
	}

	queued, err := s.dispatcher.WithEnqueuer(jobs.NewTxEnqueuer(q)).OnVideoPersisted(ctx, video, true)
	if err != nil {
		return nil, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("commit video: %w", err)
	}
	slog.Info("Video created", "video_id", video.ID, "title", video.Title, "conversion_queued", queued)
	return video, queued, nil
}

// UpdateVideo changes title, description or category. The source file is
// immutable and updates never queue a conversion.
func (s *Service) UpdateVideo(ctx context.Context, id int64, in VideoUpdate) (*db.Video, error) {
	if in.Title != nil {
		t := strings.TrimSpace(*in.Title)
		in.Title = &t
	}
	if in.Category != nil {
		c := NormalizeCategory(*in.Category)
		in.Category = &c
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	video, err := s.dbc.Queries(ctx).UpdateVideoMetadata(ctx, &db.UpdateVideoMetadataParams{
		ID:          id,
		Title:       in.Title,
		Description: in.Description,
		Category:    in.Category,
	})
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update video %d: %w", id, err)
	}

	if _, err := s.dispatcher.OnVideoPersisted(ctx, video, false); err != nil {
		return nil, err
	}
	return video, nil
}

func (s *Service) GetVideo(ctx context.Context, id int64) (*db.Video, error) {
	video, err := s.dbc.Queries(ctx).GetVideoByID(ctx, id)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get video %d: %w", id, err)
	}
	return video, nil
}

// ListVideos returns all videos, newest first.
func (s *Service) ListVideos(ctx context.Context) ([]*db.Video, error) {
	return s.dbc.Queries(ctx).ListVideos(ctx)
}

// UpdateThumbnailURL sets thumbnail_url and nothing else.
func (s *Service) UpdateThumbnailURL(ctx context.Context, id int64, url string) error {
	n, err := s.dbc.Queries(ctx).UpdateVideoThumbnailURL(ctx, &db.UpdateVideoThumbnailURLParams{ID: id, ThumbnailUrl: &url})
	if err != nil {
		return fmt.Errorf("update thumbnail url for video %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateDuration sets duration_seconds and nothing else.
func (s *Service) UpdateDuration(ctx context.Context, id int64, seconds float64) error {
	n, err := s.dbc.Queries(ctx).UpdateVideoDuration(ctx, &db.UpdateVideoDurationParams{ID: id, DurationSeconds: &seconds})
	if err != nil {
		return fmt.Errorf("update duration for video %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// LatestConversion returns the most recent conversion job of a video.
func (s *Service) LatestConversion(ctx context.Context, videoID int64) (*db.ConversionJob, error) {
	job, err := s.dbc.Queries(ctx).GetLatestConversionJobForVideo(ctx, videoID)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrNoConversion
		}
		return nil, err
	}
	return job, nil
}

// RetryConversion re-queues the latest conversion of a video if it failed.
func (s *Service) RetryConversion(ctx context.Context, videoID int64) (*db.ConversionJob, error) {
	job, err := s.LatestConversion(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if job.Status != db.ConversionJobStatusFailed {
		return nil, ErrNotRetryable
	}

	ok, err := jobs.NewQueue(s.dbc.Queries(ctx)).Retry(ctx, job.ID)
	if err != nil {
		return nil, fmt.Errorf("retry conversion job %d: %w", job.ID, err)
	}
	if !ok {
		return nil, ErrNotRetryable
	}
	slog.Info("Conversion re-queued", "video_id", videoID, "job_id", job.ID)
	return s.LatestConversion(ctx, videoID)
}
