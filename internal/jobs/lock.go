package jobs

import (
	"context"
	"hash/fnv"
	"log/slog"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
	"videoflix.systems/videoflix/internal/db"
)

func advisoryLockID(scope, id string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(scope))
	_, _ = h.Write([]byte(":"))
	_, _ = h.Write([]byte(id))
	return int64(h.Sum64())
}

// VideoLockID is the advisory lock key guarding conversions of one video.
func VideoLockID(videoID int64) int64 {
	return advisoryLockID("conversion", strconv.FormatInt(videoID, 10))
}

// PgLocker takes session-level advisory locks on a dedicated pooled
// connection, so the lock lives exactly as long as the lease.
type PgLocker struct {
	pool *pgxpool.Pool
}

func NewPgLocker(pool *pgxpool.Pool) *PgLocker {
	return &PgLocker{pool: pool}
}

// TryLock attempts the per-video lease. When ok is true the caller must call
// unlock once the conversion has finished.
func (l *PgLocker) TryLock(ctx context.Context, videoID int64) (unlock func(), ok bool, err error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, false, err
	}
	q := db.New(conn)
	key := VideoLockID(videoID)

	acquired, err := q.TryAdvisoryLock(ctx, key)
	if err != nil || !acquired {
		conn.Release()
		return nil, false, err
	}

	return func() {
		// ctx may already be cancelled at shutdown; the unlock must still run.
		if _, err := q.AdvisoryUnlock(context.WithoutCancel(ctx), key); err != nil {
			slog.Warn("advisory unlock failed", "video_id", videoID, "error", err)
			// A connection still holding the lock must not go back to the pool.
			_ = conn.Conn().Close(context.WithoutCancel(ctx))
		}
		conn.Release()
	}, true, nil
}
