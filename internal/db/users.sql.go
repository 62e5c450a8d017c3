package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
	"videoflix.systems/videoflix/pkg/utils/passwords"
)

const userColumns = `id, email, password, role, is_active, activation_token, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var i User
	err := row.Scan(
		&i.ID,
		&i.Email,
		&i.Password,
		&i.Role,
		&i.IsActive,
		&i.ActivationToken,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return &i, err
}

const activateUser = `-- name: ActivateUser :execrows
UPDATE users
SET is_active = true,
    activation_token = NULL,
    updated_at = now()
WHERE id = $1
  AND activation_token = $2
  AND NOT is_active
`

type ActivateUserParams struct {
	ID              pgtype.UUID `json:"id"`
	ActivationToken pgtype.UUID `json:"activation_token"`
}

func (q *Queries) ActivateUser(ctx context.Context, arg *ActivateUserParams) (int64, error) {
	result, err := q.db.Exec(ctx, activateUser, arg.ID, arg.ActivationToken)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const isUserActive = `-- name: IsUserActive :one
SELECT is_active
FROM users
WHERE id = $1
`

func (q *Queries) IsUserActive(ctx context.Context, id pgtype.UUID) (bool, error) {
	row := q.db.QueryRow(ctx, isUserActive, id)
	var is_active bool
	err := row.Scan(&is_active)
	return is_active, err
}

const countUsers = `-- name: CountUsers :one
SELECT count(*)
FROM users
`

func (q *Queries) CountUsers(ctx context.Context) (int64, error) {
	row := q.db.QueryRow(ctx, countUsers)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const insertUser = `-- name: insertUser :one
INSERT INTO users (id, email, password, role, activation_token)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + userColumns + `
`

type insertUserParams struct {
	ID              pgtype.UUID        `json:"id"`
	Email           string             `json:"email"`
	Password        passwords.Password `json:"password"`
	Role            UserRole           `json:"role"`
	ActivationToken pgtype.UUID        `json:"activation_token"`
}

func (q *Queries) insertUser(ctx context.Context, arg *insertUserParams) (*User, error) {
	return scanUser(q.db.QueryRow(ctx, insertUser,
		arg.ID,
		arg.Email,
		arg.Password,
		arg.Role,
		arg.ActivationToken,
	))
}

const selectUserByEmail = `-- name: SelectUserByEmail :one
SELECT ` + userColumns + `
FROM users
WHERE lower(email) = lower($1)
`

func (q *Queries) SelectUserByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(q.db.QueryRow(ctx, selectUserByEmail, email))
}
