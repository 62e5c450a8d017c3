package jobs

import (
	"context"
	"log/slog"
	"time"

	"videoflix.systems/videoflix/internal/db"
	"videoflix.systems/videoflix/internal/metrics"
)

// Sweeper is the subset of Queue used by the maintenance loop.
type Sweeper interface {
	StaleJobs(ctx context.Context, staleAfter time.Duration) ([]*db.ConversionJob, error)
	Recover(ctx context.Context, jobID int64) (bool, error)
	FailExhausted(ctx context.Context, maxAttempts int) (int64, error)
}

// MaintenanceOptions configure the periodic sweeps.
type MaintenanceOptions struct {
	StaleAfter  time.Duration
	MaxAttempts int
	Interval    time.Duration
}

// Sweep recovers stuck jobs, then fails jobs that exhausted their attempts.
// A stale job is only stuck if nobody holds its video lease; a long
// conversion that is still running keeps its job.
func Sweep(ctx context.Context, s Sweeper, locker Locker, opts MaintenanceOptions) {
	if n := recoverStuck(ctx, s, locker, opts.StaleAfter); n > 0 {
		metrics.JobsRecoveredTotal.Add(float64(n))
		slog.Warn("recovered stuck conversion jobs", "count", n)
	}

	if opts.MaxAttempts <= 0 {
		return
	}
	if n, err := s.FailExhausted(ctx, opts.MaxAttempts); err != nil {
		slog.Error("failed to fail exhausted conversion jobs", "error", err)
	} else if n > 0 {
		metrics.JobsExhaustedTotal.Add(float64(n))
		slog.Warn("permanently failed conversion jobs exceeding max attempts", "count", n, "max_attempts", opts.MaxAttempts)
	}
}

func recoverStuck(ctx context.Context, s Sweeper, locker Locker, staleAfter time.Duration) int {
	stale, err := s.StaleJobs(ctx, staleAfter)
	if err != nil {
		slog.Error("failed to list stale conversion jobs", "error", err)
		return 0
	}

	recovered := 0
	for _, job := range stale {
		unlock, ok, err := locker.TryLock(ctx, job.VideoID)
		if err != nil {
			slog.Error("failed to probe video lease", "job_id", job.ID, "video_id", job.VideoID, "error", err)
			continue
		}
		if !ok {
			slog.Info("stale conversion job is still leased, leaving it running", "job_id", job.ID, "video_id", job.VideoID)
			continue
		}
		done, err := s.Recover(ctx, job.ID)
		unlock()
		if err != nil {
			slog.Error("failed to recover conversion job", "job_id", job.ID, "error", err)
			continue
		}
		if done {
			recovered++
		}
	}
	return recovered
}

// RunMaintenance sweeps immediately and then every Interval until ctx ends.
func RunMaintenance(ctx context.Context, s Sweeper, locker Locker, opts MaintenanceOptions) error {
	if opts.Interval <= 0 {
		opts.Interval = 2 * time.Minute
	}

	Sweep(ctx, s, locker, opts)

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			Sweep(ctx, s, locker, opts)
		}
	}
}
