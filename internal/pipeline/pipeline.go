// Package pipeline converts an uploaded source video into HLS renditions, a
// master playlist and a thumbnail, then records the thumbnail URL on the
// catalog record.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"videoflix.systems/videoflix/internal/media"
	"videoflix.systems/videoflix/internal/metrics"
	"videoflix.systems/videoflix/pkg/ffmpeg"
)

// Transcoder runs one ffmpeg command to completion.
type Transcoder interface {
	Exec(ctx context.Context, cmd *ffmpeg.Command) error
}

// Prober reads source metadata.
type Prober interface {
	Probe(ctx context.Context, path string) (*ffmpeg.ProbeResult, error)
}

// Store receives the single-field updates the pipeline makes to a video.
type Store interface {
	UpdateThumbnailURL(ctx context.Context, videoID int64, url string) error
	UpdateDuration(ctx context.Context, videoID int64, seconds float64) error
}

// Options tune a Pipeline. Zero values fall back to defaults.
type Options struct {
	SegmentSeconds  int
	ThumbnailOffset time.Duration
	MediaBaseURL    string
}

// Pipeline converts one video at a time. It is safe for concurrent use on
// different videos; callers serialise work on the same video.
type Pipeline struct {
	layout     media.Layout
	transcoder Transcoder
	prober     Prober
	store      Store
	opts       Options
	tracer     trace.Tracer
}

// New builds a Pipeline. prober may be nil, in which case duration probing
// is skipped.
func New(layout media.Layout, transcoder Transcoder, prober Prober, store Store, opts Options) *Pipeline {
	if opts.SegmentSeconds <= 0 {
		opts.SegmentSeconds = ffmpeg.DefaultSegmentSeconds
	}
	if opts.ThumbnailOffset <= 0 {
		opts.ThumbnailOffset = ffmpeg.DefaultThumbnailOffset
	}
	return &Pipeline{
		layout:     layout,
		transcoder: transcoder,
		prober:     prober,
		store:      store,
		opts:       opts,
		tracer:     otel.Tracer("videoflix/pipeline"),
	}
}

// Convert produces every rendition of videoID from sourceFile (a reference
// relative to the media root, e.g. "videos/clip.mp4"). Renditions run in
// order and the first failure stops the run; the thumbnail and the catalog
// update only happen after all renditions succeed. Reruns overwrite earlier
// output in place.
func (p *Pipeline) Convert(ctx context.Context, videoID int64, sourceFile string) (err error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.convert", trace.WithAttributes(
		attribute.Int64("video.id", videoID),
		attribute.String("video.source_file", sourceFile),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	metrics.ConversionsInFlight.Inc()
	defer metrics.ConversionsInFlight.Dec()

	start := time.Now()
	source := p.layout.SourcePath(sourceFile)
	info, statErr := os.Stat(source)
	if statErr != nil || !info.Mode().IsRegular() {
		slog.Warn("source file missing, skipping conversion", "video_id", videoID, "source", source)
		metrics.ConversionsTotal.WithLabelValues("source_missing").Inc()
		return ErrSourceMissing
	}
	slog.Info("Starting conversion", "video_id", videoID, "source", source, "size", humanize.Bytes(uint64(info.Size())))

	p.probeDuration(ctx, videoID, source)

	variants := make([]ffmpeg.VideoVariant, 0, 3)
	for _, r := range media.Renditions() {
		if err := p.renderRendition(ctx, videoID, source, r); err != nil {
			return p.fail(videoID, err)
		}
		variants = append(variants, ffmpeg.VideoVariant{
			Width:        r.Width,
			Height:       r.Height,
			Bandwidth:    r.Bandwidth,
			Name:         r.Label,
			PlaylistFile: r.Label + "/" + media.PlaylistName,
		})
	}

	if err := p.stage(ctx, StageMasterPlaylist, func(context.Context) error {
		return ffmpeg.WriteMasterPlaylist(p.layout.MasterPlaylistPath(videoID), variants)
	}); err != nil {
		return p.fail(videoID, newFailure(videoID, StageMasterPlaylist, err))
	}

	if err := p.stage(ctx, StageThumbnail, func(ctx context.Context) error {
		return p.extractThumbnail(ctx, videoID, source)
	}); err != nil {
		return p.fail(videoID, newFailure(videoID, StageThumbnail, err))
	}

	url := media.ThumbnailURL(p.opts.MediaBaseURL, videoID)
	if err := p.store.UpdateThumbnailURL(ctx, videoID, url); err != nil {
		metrics.ConversionsTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("record thumbnail url for video %d: %w", videoID, err)
	}

	metrics.ConversionsTotal.WithLabelValues("succeeded").Inc()
	slog.Info("Conversion complete", "video_id", videoID, "thumbnail_url", url, "elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

func (p *Pipeline) renderRendition(ctx context.Context, videoID int64, source string, r media.Rendition) error {
	stage := RenditionStage(r.Label)
	err := p.stage(ctx, stage, func(ctx context.Context) error {
		dir := p.layout.RenditionDir(videoID, r.Label)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create rendition dir: %w", err)
		}
		cmd := ffmpeg.HLSRendition(source,
			p.layout.PlaylistPath(videoID, r.Label),
			p.layout.SegmentPattern(videoID, r.Label),
			r.Width, r.Height, p.opts.SegmentSeconds)
		return p.transcoder.Exec(ctx, cmd)
	})
	if err != nil {
		return newFailure(videoID, stage, err)
	}
	slog.Debug("rendition written", "video_id", videoID, "resolution", r.Label)
	return nil
}

func (p *Pipeline) extractThumbnail(ctx context.Context, videoID int64, source string) error {
	if err := os.MkdirAll(p.layout.ThumbnailDir(), 0o755); err != nil {
		return fmt.Errorf("create thumbnail dir: %w", err)
	}
	out := p.layout.ThumbnailPath(videoID)
	if err := p.transcoder.Exec(ctx, ffmpeg.Thumbnail(source, out, p.opts.ThumbnailOffset)); err != nil {
		return err
	}
	// ffmpeg exits 0 without writing a frame when the offset is past the end.
	if info, err := os.Stat(out); err != nil || info.Size() == 0 {
		return fmt.Errorf("thumbnail %s was not written", filepath.Base(out))
	}
	return nil
}

// probeDuration records the source duration. Failures are logged only.
func (p *Pipeline) probeDuration(ctx context.Context, videoID int64, source string) {
	if p.prober == nil {
		return
	}
	res, err := p.prober.Probe(ctx, source)
	if err != nil {
		slog.Warn("ffprobe failed", "video_id", videoID, "error", err)
		return
	}
	if res.Duration <= 0 {
		return
	}
	if err := p.store.UpdateDuration(ctx, videoID, res.Duration); err != nil {
		slog.Warn("failed to record duration", "video_id", videoID, "error", err)
	}
}

// stage runs fn inside a span and records its duration.
func (p *Pipeline) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := p.tracer.Start(ctx, "pipeline."+name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	metrics.ConversionStageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, name+" failed")
	}
	return err
}

func (p *Pipeline) fail(videoID int64, err error) error {
	metrics.ConversionsTotal.WithLabelValues("failed").Inc()

	var tf *TranscodeFailure
	if errors.As(err, &tf) {
		slog.Error("conversion failed",
			"video_id", videoID,
			"stage", tf.Stage,
			"command", tf.Command,
			"stderr", stderrTail(tf.Stderr, 5),
			"error", tf.Err,
		)
	}
	return err
}
