// Package jobs is the durable conversion job channel: a Postgres table
// consumed with FOR UPDATE SKIP LOCKED, woken by LISTEN/NOTIFY.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"videoflix.systems/videoflix/internal/db"
)

// JobConvertVideoToHLS is the only job kind.
const JobConvertVideoToHLS = "convert_video_to_hls"

// NotifyChannel is the channel the conversion_jobs trigger notifies.
const NotifyChannel = "conversion_jobs"

// ErrNoJob is returned by Dequeue when nothing is pending.
var ErrNoJob = errors.New("jobs: no pending job")

// TxEnqueuer submits jobs through whatever DBTX its queries are bound to,
// typically the transaction that created the video.
type TxEnqueuer struct {
	q db.Querier
}

func NewTxEnqueuer(q db.Querier) *TxEnqueuer {
	return &TxEnqueuer{q: q}
}

// Enqueue inserts a pending convert_video_to_hls job and returns its id.
func (e *TxEnqueuer) Enqueue(ctx context.Context, videoID int64, sourceFile string) (int64, error) {
	job, err := e.q.EnqueueConversionJob(ctx, &db.EnqueueConversionJobParams{
		VideoID:    videoID,
		JobName:    JobConvertVideoToHLS,
		SourceFile: sourceFile,
	})
	if err != nil {
		return 0, fmt.Errorf("insert conversion job: %w", err)
	}
	return job.ID, nil
}

// Queue is the worker side of the job channel.
type Queue struct {
	q db.Querier
}

func NewQueue(q db.Querier) *Queue {
	return &Queue{q: q}
}

// Dequeue claims the oldest pending job for workerID.
func (q *Queue) Dequeue(ctx context.Context, workerID string) (*db.ConversionJob, error) {
	job, err := q.q.DequeueConversionJob(ctx, &workerID)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrNoJob
		}
		return nil, err
	}
	return job, nil
}

func (q *Queue) Succeed(ctx context.Context, jobID int64) error {
	return q.q.MarkConversionJobSucceeded(ctx, jobID)
}

func (q *Queue) Fail(ctx context.Context, jobID int64, reason string) error {
	return q.q.MarkConversionJobFailed(ctx, &db.MarkConversionJobFailedParams{ID: jobID, LastError: &reason})
}

// Release hands a claimed job back to the queue without counting the attempt.
// It is not dequeued again before delay has passed.
func (q *Queue) Release(ctx context.Context, jobID int64, delay time.Duration) error {
	return q.q.ReleaseConversionJob(ctx, &db.ReleaseConversionJobParams{ID: jobID, DelaySeconds: delay.Seconds()})
}

// StaleJobs lists jobs processing for longer than staleAfter.
func (q *Queue) StaleJobs(ctx context.Context, staleAfter time.Duration) ([]*db.ConversionJob, error) {
	return q.q.ListStaleConversionJobs(ctx, staleAfter.Seconds())
}

// Recover returns a processing job to pending. It reports false when the job
// left processing in the meantime.
func (q *Queue) Recover(ctx context.Context, jobID int64) (bool, error) {
	n, err := q.q.RecoverConversionJob(ctx, jobID)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// FailExhausted permanently fails pending jobs that already used maxAttempts.
func (q *Queue) FailExhausted(ctx context.Context, maxAttempts int) (int64, error) {
	return q.q.FailExhaustedConversionJobs(ctx, int32(maxAttempts))
}

// Retry re-queues a failed job. It reports false when the job is not failed.
func (q *Queue) Retry(ctx context.Context, jobID int64) (bool, error) {
	n, err := q.q.RetryConversionJob(ctx, jobID)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
