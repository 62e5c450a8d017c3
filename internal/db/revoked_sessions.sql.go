package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const isSessionRevoked = `-- name: IsSessionRevoked :one
SELECT EXISTS (
    SELECT 1
    FROM revoked_sessions
    WHERE token_id = $1
      AND expires_at > now()
)
`

func (q *Queries) IsSessionRevoked(ctx context.Context, tokenID pgtype.UUID) (bool, error) {
	row := q.db.QueryRow(ctx, isSessionRevoked, tokenID)
	var exists bool
	err := row.Scan(&exists)
	return exists, err
}

const purgeExpiredRevokedSessions = `-- name: PurgeExpiredRevokedSessions :execrows
DELETE FROM revoked_sessions
WHERE expires_at <= now()
`

func (q *Queries) PurgeExpiredRevokedSessions(ctx context.Context) (int64, error) {
	result, err := q.db.Exec(ctx, purgeExpiredRevokedSessions)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const revokeSession = `-- name: RevokeSession :exec
INSERT INTO revoked_sessions (token_id, user_id, expires_at)
VALUES ($1, $2, $3)
ON CONFLICT (token_id) DO NOTHING
`

type RevokeSessionParams struct {
	TokenID   pgtype.UUID        `json:"token_id"`
	UserID    pgtype.UUID        `json:"user_id"`
	ExpiresAt pgtype.Timestamptz `json:"expires_at"`
}

func (q *Queries) RevokeSession(ctx context.Context, arg *RevokeSessionParams) error {
	_, err := q.db.Exec(ctx, revokeSession, arg.TokenID, arg.UserID, arg.ExpiresAt)
	return err
}
