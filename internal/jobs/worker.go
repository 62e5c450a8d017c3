package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"videoflix.systems/videoflix/internal/db"
	"videoflix.systems/videoflix/internal/metrics"
	"videoflix.systems/videoflix/internal/pipeline"
)

// Store is the subset of Queue a Worker needs.
type Store interface {
	Dequeue(ctx context.Context, workerID string) (*db.ConversionJob, error)
	Succeed(ctx context.Context, jobID int64) error
	Fail(ctx context.Context, jobID int64, reason string) error
	Release(ctx context.Context, jobID int64, delay time.Duration) error
}

// Locker grants the per-video lease.
type Locker interface {
	TryLock(ctx context.Context, videoID int64) (unlock func(), ok bool, err error)
}

// Converter runs the conversion pipeline for one video.
type Converter interface {
	Convert(ctx context.Context, videoID int64, sourceFile string) error
}

// Worker pulls jobs one at a time and runs each to completion.
type Worker struct {
	ID        string
	store     Store
	locker    Locker
	converter Converter

	// PollInterval bounds how long an idle worker waits without a wake-up.
	PollInterval time.Duration
	// ErrorBackoff is the pause after a failed dequeue.
	ErrorBackoff time.Duration

	// LeaseRetryDelay is how long a job whose video is leased elsewhere stays
	// out of the queue.
	LeaseRetryDelay time.Duration
}

func NewWorker(id string, store Store, locker Locker, converter Converter) *Worker {
	return &Worker{
		ID:           id,
		store:        store,
		locker:       locker,
		converter:    converter,
		PollInterval:    5 * time.Second,
		ErrorBackoff:    2 * time.Second,
		LeaseRetryDelay: 30 * time.Second,
	}
}

// Run drains the queue, then waits for a wake-up, the poll interval or ctx.
// It returns nil when ctx is cancelled.
func (w *Worker) Run(ctx context.Context, wake <-chan struct{}) error {
	slog.Info("Worker started", "worker", w.ID)
	for {
		if ctx.Err() != nil {
			slog.Info("Worker stopping", "worker", w.ID)
			return nil
		}

		for ctx.Err() == nil {
			worked, err := w.ProcessNext(ctx)
			if err != nil {
				if ctx.Err() != nil {
					break
				}
				slog.Error("conversion queue error", "worker", w.ID, "error", err)
				wait(ctx, w.ErrorBackoff)
				break
			}
			if !worked {
				break
			}
		}

		select {
		case <-ctx.Done():
		case <-wake:
		case <-time.After(w.PollInterval):
		}
	}
}

// ProcessNext claims and handles at most one job. It reports whether a job
// was claimed. Only queue and lease errors are returned; conversion failures
// are recorded on the job. A job whose video is leased by another worker is
// released with LeaseRetryDelay so the next due job can run.
func (w *Worker) ProcessNext(ctx context.Context) (bool, error) {
	job, err := w.store.Dequeue(ctx, w.ID)
	if err != nil {
		if errors.Is(err, ErrNoJob) {
			return false, nil
		}
		return false, err
	}
	metrics.JobsDequeuedTotal.Inc()

	log := slog.With("worker", w.ID, "job_id", job.ID, "video_id", job.VideoID, "attempt", job.Attempts)

	if job.JobName != JobConvertVideoToHLS {
		log.Error("unknown job kind", "job_name", job.JobName)
		w.fail(ctx, job, fmt.Sprintf("unknown job kind %q", job.JobName))
		return true, nil
	}

	unlock, ok, err := w.locker.TryLock(ctx, job.VideoID)
	if err != nil || !ok {
		if relErr := w.store.Release(context.WithoutCancel(ctx), job.ID, w.LeaseRetryDelay); relErr != nil {
			log.Error("failed to release job", "error", relErr)
		}
		if err != nil {
			return false, fmt.Errorf("video lease for job %d: %w", job.ID, err)
		}
		log.Info("video lease busy, job released", "retry_in", w.LeaseRetryDelay)
		metrics.JobsLeaseBusyTotal.Inc()
		return true, nil
	}
	defer unlock()

	log.Info("Processing conversion job", "source", job.SourceFile)
	start := time.Now()
	convErr := w.converter.Convert(ctx, job.VideoID, job.SourceFile)

	if convErr != nil && ctx.Err() != nil {
		// Shutdown: the job stays processing and the stale sweep requeues it.
		log.Warn("conversion interrupted", "error", convErr)
		return true, nil
	}

	if convErr != nil {
		log.Error("conversion job failed", "elapsed", time.Since(start).Round(time.Millisecond), "error", convErr)
		w.fail(ctx, job, failureReason(convErr))
		return true, nil
	}

	if err := w.store.Succeed(ctx, job.ID); err != nil {
		log.Error("failed to mark job succeeded", "error", err)
		return true, nil
	}
	log.Info("Conversion job succeeded", "elapsed", time.Since(start).Round(time.Millisecond))
	return true, nil
}

func (w *Worker) fail(ctx context.Context, job *db.ConversionJob, reason string) {
	if err := w.store.Fail(ctx, job.ID, reason); err != nil {
		slog.Error("failed to mark job failed", "worker", w.ID, "job_id", job.ID, "error", err)
	}
}

func failureReason(err error) string {
	var tf *pipeline.TranscodeFailure
	if errors.As(err, &tf) {
		return tf.Summary()
	}
	return err.Error()
}
