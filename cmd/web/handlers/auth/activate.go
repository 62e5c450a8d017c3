package auth

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"videoflix.systems/videoflix/internal/db"
	"videoflix.systems/videoflix/internal/metrics"
)

type messageBody struct {
	Message string `json:"message"`
}

// HandleActivate consumes the activation token of an inactive account.
func HandleActivate(dbc *db.DatabaseConnection) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		failed := messageBody{Message: "Activation failed."}

		userID, err := DecodeUID(c.Param("uidb64"))
		if err != nil {
			metrics.AuthEventsTotal.WithLabelValues("activate", "invalid").Inc()
			return c.JSON(http.StatusBadRequest, failed)
		}
		token, err := uuid.Parse(c.Param("token"))
		if err != nil {
			metrics.AuthEventsTotal.WithLabelValues("activate", "invalid").Inc()
			return c.JSON(http.StatusBadRequest, failed)
		}

		n, err := dbc.Queries(ctx).ActivateUser(ctx, &db.ActivateUserParams{
			ID:              db.PgUUID(userID),
			ActivationToken: db.PgUUID(token),
		})
		if err != nil {
			slog.Error("failed to activate user", "user_id", userID, "error", err)
			return c.JSON(http.StatusBadRequest, failed)
		}
		if n == 0 {
			metrics.AuthEventsTotal.WithLabelValues("activate", "invalid").Inc()
			return c.JSON(http.StatusBadRequest, failed)
		}

		metrics.AuthEventsTotal.WithLabelValues("activate", "ok").Inc()
		slog.Info("User activated", "user_id", userID)
		return c.JSON(http.StatusOK, messageBody{Message: "Account successfully activated."})
	}
}
