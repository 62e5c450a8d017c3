package auth

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/labstack/echo/v4"
	webauth "videoflix.systems/videoflix/cmd/web/auth"
	"videoflix.systems/videoflix/cmd/web/handlers/common"
	"videoflix.systems/videoflix/internal/db"
	"videoflix.systems/videoflix/internal/metrics"
)

type refreshResponse struct {
	Detail          string    `json:"detail"`
	AccessExpiresAt time.Time `json:"access_expires_at"`
}

// HandleRefresh reopens the access window of a session that is still within
// its refresh lifetime and has not been revoked.
func HandleRefresh(sm *webauth.SessionManager, dbc *db.DatabaseConnection) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		if !sm.HasSessionCookie(c.Request()) {
			return c.JSON(http.StatusBadRequest, common.Detail{Detail: "Refresh token not found."})
		}
		unauthorized := func() error {
			metrics.AuthEventsTotal.WithLabelValues("refresh", "rejected").Inc()
			return c.JSON(http.StatusUnauthorized, common.Detail{Detail: "Unauthorized."})
		}

		s, _ := sm.GetSession(c.Request())
		if s == nil {
			return unauthorized()
		}

		q := dbc.Queries(ctx)
		revoked, err := q.IsSessionRevoked(ctx, db.PgUUID(s.TokenID))
		if err != nil {
			slog.Error("failed to check session revocation", "token_id", s.TokenID, "error", err)
			return common.ErrInternal("refresh failed")
		}
		if revoked {
			return unauthorized()
		}

		var userID pgtype.UUID
		if err := userID.Scan(s.UserID); err != nil {
			return unauthorized()
		}
		active, err := q.IsUserActive(ctx, userID)
		if err != nil || !active {
			if err != nil && !db.IsNoRows(err) {
				slog.Error("failed to check user state", "user_id", s.UserID, "error", err)
			}
			return unauthorized()
		}

		refreshed, err := sm.Refresh(c.Response().Writer, c.Request())
		if err != nil {
			return unauthorized()
		}

		metrics.AuthEventsTotal.WithLabelValues("refresh", "ok").Inc()
		return c.JSON(http.StatusOK, refreshResponse{
			Detail:          "Token refreshed",
			AccessExpiresAt: refreshed.AccessExpiresAt,
		})
	}
}
