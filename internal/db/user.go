package db

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"videoflix.systems/videoflix/pkg/utils/passwords"
)

// NewUserParams contains the parameters for registering a user
type NewUserParams struct {
	Email    string
	Password string // plaintext password
	Role     UserRole
}

// NewUser hashes the password and inserts an inactive user carrying a fresh
// activation token.
func (q *Queries) NewUser(ctx context.Context, params NewUserParams) (*User, error) {
	hashedPassword, err := passwords.NewPassword(passwords.PasswordInput{
		Password: params.Password,
	})
	if err != nil {
		return nil, err
	}

	role := params.Role
	if role == "" {
		role = UserRoleUser
	}

	return q.insertUser(ctx, &insertUserParams{
		ID:              PgUUID(uuid.New()),
		Email:           strings.ToLower(strings.TrimSpace(params.Email)),
		Password:        hashedPassword,
		Role:            role,
		ActivationToken: PgUUID(uuid.New()),
	})
}

// PgUUID converts a google uuid into its pgtype form.
func PgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}
