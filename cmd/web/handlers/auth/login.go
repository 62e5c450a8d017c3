package auth

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	webauth "videoflix.systems/videoflix/cmd/web/auth"
	"videoflix.systems/videoflix/cmd/web/handlers/common"
	"videoflix.systems/videoflix/internal/db"
	"videoflix.systems/videoflix/internal/metrics"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type loginResponse struct {
	Detail string    `json:"detail"`
	User   loginUser `json:"user"`
}

func HandleLogin(sm *webauth.SessionManager, dbc *db.DatabaseConnection) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		invalid := func(result string) error {
			metrics.AuthEventsTotal.WithLabelValues("login", result).Inc()
			return c.JSON(http.StatusBadRequest, common.Detail{Detail: genericInputError})
		}

		var req loginRequest
		if err := c.Bind(&req); err != nil {
			return invalid("invalid")
		}
		req.Email = normalizeEmail(req.Email)
		if err := validate.Struct(req); err != nil {
			return invalid("invalid")
		}

		user, err := dbc.Queries(ctx).SelectUserByEmail(ctx, req.Email)
		if err != nil {
			if !db.IsNoRows(err) {
				slog.Error("failed to look up user", "error", err)
			}
			return invalid("rejected")
		}

		matches, err := user.Password.Matches(req.Password)
		if err != nil {
			slog.Error("failed to verify password", "user_id", uuid.UUID(user.ID.Bytes), "error", err)
			return invalid("rejected")
		}
		if !matches || !user.IsActive {
			return invalid("rejected")
		}

		accessLevel := webauth.AccessUser
		if user.Role == db.UserRoleAdmin {
			accessLevel = webauth.AccessAdmin
		}

		userID := uuid.UUID(user.ID.Bytes).String()
		if _, err := sm.SaveSession(c.Response().Writer, c.Request(), userID, user.Email, accessLevel); err != nil {
			slog.Error("failed to save session", "error", err)
			return common.ErrInternal("login failed")
		}

		metrics.AuthEventsTotal.WithLabelValues("login", "ok").Inc()
		return c.JSON(http.StatusOK, loginResponse{
			Detail: "Login successful",
			User:   loginUser{ID: userID, Username: user.Email},
		})
	}
}
