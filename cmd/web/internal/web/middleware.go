package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
	"videoflix.systems/videoflix/cmd/web/auth"
	"videoflix.systems/videoflix/cmd/web/ctxkeys"
	"videoflix.systems/videoflix/cmd/web/handlers/common"
	"videoflix.systems/videoflix/internal/db"
	"videoflix.systems/videoflix/internal/metrics"
)

// SessionChecker answers the two questions a session cookie cannot: whether
// its token id was revoked by a logout and whether its user is still active.
type SessionChecker interface {
	IsSessionRevoked(ctx context.Context, tokenID pgtype.UUID) (bool, error)
	IsUserActive(ctx context.Context, id pgtype.UUID) (bool, error)
}

var accessRank = map[auth.AccessLevel]int{
	auth.AccessUnauthenticated: 0,
	auth.AccessUser:            1,
	auth.AccessAdmin:           2,
}

// requireAccess loads the session cookie, validates it against the
// database and rejects requests below level with 401 or 403.
func (s *Webserver) requireAccess(level auth.AccessLevel) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()

			sess, err := s.sessionManager.GetSession(c.Request())
			if err != nil {
				if errors.Is(err, auth.ErrAccessExpired) {
					return echo.NewHTTPError(http.StatusUnauthorized, "access expired, refresh the session")
				}
				return common.ErrUnauthorized()
			}

			ok, err := s.sessionValid(ctx, sess)
			if err != nil {
				slog.Error("session validation failed", "user_id", sess.UserID, "error", err)
				return common.ErrInternal("session validation failed")
			}
			if !ok {
				if err := s.sessionManager.ClearSession(c.Response().Writer, c.Request()); err != nil {
					slog.Warn("failed to clear session cookie", "error", err)
				}
				return common.ErrUnauthorized()
			}

			if accessRank[sess.AccessLevel] < accessRank[level] {
				return common.ErrForbidden()
			}

			c.Set("accessLevel", string(sess.AccessLevel))
			ctx = context.WithValue(ctx, ctxkeys.AccessLevel, string(sess.AccessLevel))
			ctx = context.WithValue(ctx, ctxkeys.Session, sess)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func (s *Webserver) sessionValid(ctx context.Context, sess *auth.Session) (bool, error) {
	if s.sessions == nil {
		return false, errors.New("no session store configured")
	}
	revoked, err := s.sessions.IsSessionRevoked(ctx, db.PgUUID(sess.TokenID))
	if err != nil {
		return false, err
	}
	if revoked {
		return false, nil
	}

	var uid pgtype.UUID
	if err := uid.Scan(sess.UserID); err != nil {
		return false, nil
	}
	active, err := s.sessions.IsUserActive(ctx, uid)
	if err != nil {
		if db.IsNoRows(err) {
			return false, nil
		}
		return false, err
	}
	return active, nil
}

// metricsMiddleware records request counts and latencies keyed by the route
// template, so ids and segment names do not blow up label cardinality.
func metricsMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)

		status := c.Response().Status
		var he *echo.HTTPError
		if err != nil && errors.As(err, &he) {
			status = he.Code
		} else if err != nil && !c.Response().Committed {
			status = http.StatusInternalServerError
		}

		path := c.Path()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request().Method
		metrics.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		return err
	}
}

func requestLogLevel(path string, status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	case isNoisyPath(path):
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// isNoisyPath reports routes a player hits many times per minute.
func isNoisyPath(path string) bool {
	switch path {
	case "/healthz", "/metrics", "/media/thumbnails/:file":
		return true
	}
	return strings.HasSuffix(path, ".m3u8") || strings.HasSuffix(path, "/:segment")
}

// ipRateLimiter keeps one token bucket per client address.
type ipRateLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*limiterEntry
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newIPRateLimiter(rps float64, burst int) *ipRateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &ipRateLimiter{
		limit:    rate.Limit(rps),
		burst:    burst,
		limiters: make(map[string]*limiterEntry),
	}
}

func (l *ipRateLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.limiters[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = e
	}
	e.lastSeen = time.Now()
	return e.limiter.Allow()
}

// evictIdle drops buckets not used for idle. An evicted bucket comes back
// full, which is what an idle client would have anyway.
func (l *ipRateLimiter) evictIdle(idle time.Duration) {
	cutoff := time.Now().Add(-idle)
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, e := range l.limiters {
		if e.lastSeen.Before(cutoff) {
			delete(l.limiters, k)
		}
	}
}

func (l *ipRateLimiter) middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !l.allow(c.RealIP()) {
			c.Response().Header().Set("Retry-After", "1")
			event := strings.Trim(strings.TrimPrefix(c.Path(), "/api/"), "/")
			metrics.AuthEventsTotal.WithLabelValues(event, "rate_limited").Inc()
			return c.JSON(http.StatusTooManyRequests, common.Detail{Detail: "Too many requests."})
		}
		return next(c)
	}
}
