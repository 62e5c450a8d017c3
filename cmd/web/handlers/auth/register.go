package auth

import (
	"encoding/base64"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"videoflix.systems/videoflix/cmd/web/handlers/common"
	"videoflix.systems/videoflix/internal/db"
	"videoflix.systems/videoflix/internal/mailer"
	"videoflix.systems/videoflix/internal/metrics"
	"videoflix.systems/videoflix/pkg/utils/passwords"
)

type registerRequest struct {
	Email             string `json:"email" validate:"required,email,max=254"`
	Password          string `json:"password" validate:"required,min=8,max=512"`
	ConfirmedPassword string `json:"confirmed_password" validate:"required"`
}

type userBody struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type registerResponse struct {
	User  userBody `json:"user"`
	Token string   `json:"token"`
}

// EncodeUID is the url-safe form of a user id used in activation links.
func EncodeUID(id uuid.UUID) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id.String()))
}

// DecodeUID reverses EncodeUID.
func DecodeUID(uidb64 string) (uuid.UUID, error) {
	raw, err := base64.RawURLEncoding.DecodeString(uidb64)
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(string(raw))
}

// HandleRegister creates an inactive account and mails its activation link.
// The very first account becomes an admin.
func HandleRegister(dbc *db.DatabaseConnection, m mailer.Mailer, frontendBaseURL string) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		var req registerRequest
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, common.Detail{Detail: genericInputError})
		}
		req.Email = normalizeEmail(req.Email)
		if err := validate.Struct(req); err != nil {
			metrics.AuthEventsTotal.WithLabelValues("register", "invalid").Inc()
			return c.JSON(http.StatusBadRequest, common.Detail{Detail: genericInputError})
		}
		if err := passwords.Confirm(req.Password, req.ConfirmedPassword); err != nil {
			metrics.AuthEventsTotal.WithLabelValues("register", "invalid").Inc()
			return c.JSON(http.StatusBadRequest, map[string]string{"confirmed_password": "Passwords do not match."})
		}

		q := dbc.Queries(ctx)
		userCount, err := q.CountUsers(ctx)
		if err != nil {
			slog.Error("failed to count users", "error", err)
			return common.ErrInternal("registration failed")
		}
		role := db.UserRoleUser
		if userCount == 0 {
			role = db.UserRoleAdmin
		}

		user, err := q.NewUser(ctx, db.NewUserParams{
			Email:    req.Email,
			Password: req.Password,
			Role:     role,
		})
		if err != nil {
			if db.IsUniqueViolation(err) {
				metrics.AuthEventsTotal.WithLabelValues("register", "duplicate").Inc()
				return c.JSON(http.StatusBadRequest, common.Detail{Detail: genericInputError})
			}
			slog.Error("failed to create user", "error", err)
			return common.ErrInternal("registration failed")
		}

		userID := uuid.UUID(user.ID.Bytes)
		token := uuid.UUID(user.ActivationToken.Bytes).String()
		link := mailer.ActivationLink(frontendBaseURL, EncodeUID(userID), token)
		if err := m.SendActivation(ctx, user.Email, link); err != nil {
			slog.Error("failed to send activation mail", "user_id", userID, "error", err)
		}

		metrics.AuthEventsTotal.WithLabelValues("register", "ok").Inc()
		slog.Info("User registered", "user_id", userID, "role", role)
		return c.JSON(http.StatusCreated, registerResponse{
			User:  userBody{ID: userID.String(), Email: user.Email},
			Token: token,
		})
	}
}
