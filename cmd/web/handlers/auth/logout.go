package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/labstack/echo/v4"
	webauth "videoflix.systems/videoflix/cmd/web/auth"
	"videoflix.systems/videoflix/cmd/web/handlers/common"
	"videoflix.systems/videoflix/internal/db"
	"videoflix.systems/videoflix/internal/metrics"
)

// HandleLogout revokes the session's token id so the cookie can no longer be
// refreshed, then clears it.
func HandleLogout(sm *webauth.SessionManager, dbc *db.DatabaseConnection) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		if !sm.HasSessionCookie(c.Request()) {
			return c.JSON(http.StatusBadRequest, common.Detail{Detail: "Refresh token not found."})
		}

		s, err := sm.GetSession(c.Request())
		if s != nil && (err == nil || errors.Is(err, webauth.ErrAccessExpired)) {
			params := &db.RevokeSessionParams{
				TokenID:   db.PgUUID(s.TokenID),
				ExpiresAt: pgtype.Timestamptz{Time: s.ExpiresAt(), Valid: true},
			}
			if err := params.UserID.Scan(s.UserID); err != nil {
				slog.Warn("session carries a malformed user id", "error", err)
			} else if err := dbc.Queries(ctx).RevokeSession(ctx, params); err != nil {
				slog.Error("failed to revoke session", "token_id", s.TokenID, "error", err)
				return common.ErrInternal("logout failed")
			}
		}

		if err := sm.ClearSession(c.Response().Writer, c.Request()); err != nil {
			slog.Warn("failed to clear session cookie", "error", err)
		}
		metrics.AuthEventsTotal.WithLabelValues("logout", "ok").Inc()
		return c.JSON(http.StatusOK, common.Detail{
			Detail: "Logout successful! All tokens will be deleted. Refresh token is now invalid.",
		})
	}
}
