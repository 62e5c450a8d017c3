// Package dispatch decides whether a persisted video needs a conversion job
// and submits it.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"videoflix.systems/videoflix/internal/db"
	"videoflix.systems/videoflix/internal/media"
	"videoflix.systems/videoflix/internal/metrics"
)

// Enqueuer submits one conversion job.
type Enqueuer interface {
	Enqueue(ctx context.Context, videoID int64, sourceFile string) (int64, error)
}

// Dispatcher is the post-creation hook of the catalog.
type Dispatcher struct {
	layout   media.Layout
	enqueuer Enqueuer
}

func New(layout media.Layout, enqueuer Enqueuer) *Dispatcher {
	return &Dispatcher{layout: layout, enqueuer: enqueuer}
}

// WithEnqueuer returns a copy of d that submits through e. The catalog uses
// it to bind submissions to the creating transaction.
func (d *Dispatcher) WithEnqueuer(e Enqueuer) *Dispatcher {
	return &Dispatcher{layout: d.layout, enqueuer: e}
}

// OnVideoPersisted submits exactly one conversion job when video was just
// created with a source file that exists on disk. It reports whether a job
// was submitted. Updates never submit.
func (d *Dispatcher) OnVideoPersisted(ctx context.Context, video *db.Video, created bool) (bool, error) {
	if video == nil || video.SourceFile == nil || strings.TrimSpace(*video.SourceFile) == "" {
		metrics.DispatchTotal.WithLabelValues("no_source").Inc()
		return false, nil
	}
	if !created {
		metrics.DispatchTotal.WithLabelValues("not_created").Inc()
		return false, nil
	}

	sourceFile := *video.SourceFile
	path := d.layout.SourcePath(sourceFile)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		slog.Warn("source file not found, conversion not queued", "video_id", video.ID, "source", path)
		metrics.DispatchTotal.WithLabelValues("missing_file").Inc()
		return false, nil
	}

	jobID, err := d.enqueuer.Enqueue(ctx, video.ID, sourceFile)
	if err != nil {
		metrics.DispatchTotal.WithLabelValues("error").Inc()
		return false, fmt.Errorf("enqueue conversion for video %d: %w", video.ID, err)
	}

	metrics.DispatchTotal.WithLabelValues("enqueued").Inc()
	slog.Info("Conversion queued", "video_id", video.ID, "job_id", jobID, "source", sourceFile)
	return true, nil
}
