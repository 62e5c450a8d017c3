package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"videoflix.systems/videoflix/internal/db"
)

const listenRetryDelay = 2 * time.Second

// ListenAndSignal holds a dedicated connection LISTENing on channel and
// performs a non-blocking send on signalCh for every notification. It
// reconnects until ctx is done.
func ListenAndSignal(ctx context.Context, dsn string, channel string, signalCh chan<- struct{}) {
	for {
		if ctx.Err() != nil {
			return
		}

		// Parse using pgxpool so pool_* DSN params are consumed client-side.
		poolConf, err := pgxpool.ParseConfig(dsn)
		if err != nil {
			slog.Error("listen parse config failed", "channel", channel, "error", err)
			return
		}

		conn, err := pgx.ConnectConfig(ctx, poolConf.ConnConfig)
		if err != nil {
			slog.Error("listen connect failed", "channel", channel, "error", err)
			if !wait(ctx, listenRetryDelay) {
				return
			}
			continue
		}

		q := db.New(conn)
		switch channel {
		case NotifyChannel:
			err = q.ListenConversionJobs(ctx)
		default:
			err = fmt.Errorf("unsupported listen channel: %s", channel)
		}
		if err != nil {
			slog.Error("LISTEN failed", "channel", channel, "error", err)
			_ = conn.Close(context.WithoutCancel(ctx))
			if !wait(ctx, listenRetryDelay) {
				return
			}
			continue
		}
		slog.Info("Listening for job notifications", "channel", channel)

		for {
			if _, err := conn.WaitForNotification(ctx); err != nil {
				_ = conn.Close(context.WithoutCancel(ctx))
				if ctx.Err() != nil {
					return
				}
				slog.Error("wait for notification failed", "channel", channel, "error", err)
				break
			}

			select {
			case signalCh <- struct{}{}:
			default:
			}
		}
	}
}

// wait sleeps for d and reports false if ctx ended first.
func wait(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
