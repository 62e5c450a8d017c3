package db

import (
	"context"
)

const conversionJobColumns = `id, video_id, job_name, source_file, status, attempts, last_error, locked_by, started_at, finished_at, created_at, updated_at`

func scanConversionJob(row interface{ Scan(...any) error }) (*ConversionJob, error) {
	var i ConversionJob
	err := row.Scan(
		&i.ID,
		&i.VideoID,
		&i.JobName,
		&i.SourceFile,
		&i.Status,
		&i.Attempts,
		&i.LastError,
		&i.LockedBy,
		&i.StartedAt,
		&i.FinishedAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return &i, err
}

const advisoryUnlock = `-- name: AdvisoryUnlock :one
SELECT pg_advisory_unlock($1::bigint)
`

func (q *Queries) AdvisoryUnlock(ctx context.Context, key int64) (bool, error) {
	row := q.db.QueryRow(ctx, advisoryUnlock, key)
	var pg_advisory_unlock bool
	err := row.Scan(&pg_advisory_unlock)
	return pg_advisory_unlock, err
}

const dequeueConversionJob = `-- name: DequeueConversionJob :one
UPDATE conversion_jobs
SET status = 'processing',
    attempts = attempts + 1,
    locked_by = $1,
    started_at = now(),
    finished_at = NULL,
    updated_at = now()
WHERE id = (
    SELECT id
    FROM conversion_jobs
    WHERE status = 'pending'
      AND run_after <= now()
    ORDER BY run_after, id
    FOR UPDATE SKIP LOCKED
    LIMIT 1
)
RETURNING ` + conversionJobColumns + `
`

// DequeueConversionJob claims the oldest pending job that is due. Returns pgx.ErrNoRows when the queue is empty.
func (q *Queries) DequeueConversionJob(ctx context.Context, lockedBy *string) (*ConversionJob, error) {
	return scanConversionJob(q.db.QueryRow(ctx, dequeueConversionJob, lockedBy))
}

const enqueueConversionJob = `-- name: EnqueueConversionJob :one
INSERT INTO conversion_jobs (video_id, job_name, source_file)
VALUES ($1, $2, $3)
RETURNING ` + conversionJobColumns + `
`

type EnqueueConversionJobParams struct {
	VideoID    int64  `json:"video_id"`
	JobName    string `json:"job_name"`
	SourceFile string `json:"source_file"`
}

func (q *Queries) EnqueueConversionJob(ctx context.Context, arg *EnqueueConversionJobParams) (*ConversionJob, error) {
	return scanConversionJob(q.db.QueryRow(ctx, enqueueConversionJob, arg.VideoID, arg.JobName, arg.SourceFile))
}

const failExhaustedConversionJobs = `-- name: FailExhaustedConversionJobs :execrows
UPDATE conversion_jobs
SET status = 'failed',
    last_error = COALESCE(last_error, 'maximum attempts exceeded'),
    finished_at = now(),
    updated_at = now()
WHERE status = 'pending'
  AND attempts >= $1::int
`

func (q *Queries) FailExhaustedConversionJobs(ctx context.Context, maxAttempts int32) (int64, error) {
	result, err := q.db.Exec(ctx, failExhaustedConversionJobs, maxAttempts)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const getLatestConversionJobForVideo = `-- name: GetLatestConversionJobForVideo :one
SELECT ` + conversionJobColumns + `
FROM conversion_jobs
WHERE video_id = $1
ORDER BY id DESC
LIMIT 1
`

func (q *Queries) GetLatestConversionJobForVideo(ctx context.Context, videoID int64) (*ConversionJob, error) {
	return scanConversionJob(q.db.QueryRow(ctx, getLatestConversionJobForVideo, videoID))
}

const listenConversionJobs = `-- name: ListenConversionJobs :exec
LISTEN conversion_jobs
`

func (q *Queries) ListenConversionJobs(ctx context.Context) error {
	_, err := q.db.Exec(ctx, listenConversionJobs)
	return err
}

const markConversionJobFailed = `-- name: MarkConversionJobFailed :exec
UPDATE conversion_jobs
SET status = 'failed',
    last_error = $2,
    locked_by = NULL,
    finished_at = now(),
    updated_at = now()
WHERE id = $1
`

type MarkConversionJobFailedParams struct {
	ID        int64   `json:"id"`
	LastError *string `json:"last_error"`
}

func (q *Queries) MarkConversionJobFailed(ctx context.Context, arg *MarkConversionJobFailedParams) error {
	_, err := q.db.Exec(ctx, markConversionJobFailed, arg.ID, arg.LastError)
	return err
}

const markConversionJobSucceeded = `-- name: MarkConversionJobSucceeded :exec
UPDATE conversion_jobs
SET status = 'succeeded',
    last_error = NULL,
    locked_by = NULL,
    finished_at = now(),
    updated_at = now()
WHERE id = $1
`

func (q *Queries) MarkConversionJobSucceeded(ctx context.Context, id int64) error {
	_, err := q.db.Exec(ctx, markConversionJobSucceeded, id)
	return err
}

const listStaleConversionJobs = `-- name: ListStaleConversionJobs :many
SELECT ` + conversionJobColumns + `
FROM conversion_jobs
WHERE status = 'processing'
  AND started_at < now() - make_interval(secs => $1::double precision)
ORDER BY id
`

// ListStaleConversionJobs returns jobs that have been processing for longer than staleSeconds.
func (q *Queries) ListStaleConversionJobs(ctx context.Context, staleSeconds float64) ([]*ConversionJob, error) {
	rows, err := q.db.Query(ctx, listStaleConversionJobs, staleSeconds)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*ConversionJob
	for rows.Next() {
		i, err := scanConversionJob(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const recoverConversionJob = `-- name: RecoverConversionJob :execrows
UPDATE conversion_jobs
SET status = 'pending',
    locked_by = NULL,
    last_error = 'recovered after worker stopped responding',
    run_after = now(),
    updated_at = now()
WHERE id = $1
  AND status = 'processing'
`

// RecoverConversionJob returns one processing job to the queue.
func (q *Queries) RecoverConversionJob(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.Exec(ctx, recoverConversionJob, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const releaseConversionJob = `-- name: ReleaseConversionJob :exec
UPDATE conversion_jobs
SET status = 'pending',
    attempts = GREATEST(attempts - 1, 0),
    locked_by = NULL,
    started_at = NULL,
    run_after = now() + make_interval(secs => $2::double precision),
    updated_at = now()
WHERE id = $1
  AND status = 'processing'
`

type ReleaseConversionJobParams struct {
	ID           int64   `json:"id"`
	DelaySeconds float64 `json:"delay_seconds"`
}

// ReleaseConversionJob hands a claimed job back without counting the attempt.
// The job is not due again until DelaySeconds have passed.
func (q *Queries) ReleaseConversionJob(ctx context.Context, arg *ReleaseConversionJobParams) error {
	_, err := q.db.Exec(ctx, releaseConversionJob, arg.ID, arg.DelaySeconds)
	return err
}

const retryConversionJob = `-- name: RetryConversionJob :execrows
UPDATE conversion_jobs
SET status = 'pending',
    attempts = 0,
    last_error = NULL,
    locked_by = NULL,
    started_at = NULL,
    finished_at = NULL,
    run_after = now(),
    updated_at = now()
WHERE id = $1
  AND status = 'failed'
`

func (q *Queries) RetryConversionJob(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.Exec(ctx, retryConversionJob, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const tryAdvisoryLock = `-- name: TryAdvisoryLock :one
SELECT pg_try_advisory_lock($1::bigint)
`

func (q *Queries) TryAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	row := q.db.QueryRow(ctx, tryAdvisoryLock, key)
	var pg_try_advisory_lock bool
	err := row.Scan(&pg_try_advisory_lock)
	return pg_try_advisory_lock, err
}
