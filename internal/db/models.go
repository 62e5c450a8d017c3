package db

import (
	"database/sql/driver"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"videoflix.systems/videoflix/pkg/utils/passwords"
)

type ConversionJobStatus string

const (
	ConversionJobStatusPending    ConversionJobStatus = "pending"
	ConversionJobStatusProcessing ConversionJobStatus = "processing"
	ConversionJobStatusSucceeded  ConversionJobStatus = "succeeded"
	ConversionJobStatusFailed     ConversionJobStatus = "failed"
)

func (e *ConversionJobStatus) Scan(src interface{}) error {
	switch s := src.(type) {
	case []byte:
		*e = ConversionJobStatus(s)
	case string:
		*e = ConversionJobStatus(s)
	default:
		return fmt.Errorf("unsupported scan type for ConversionJobStatus: %T", src)
	}
	return nil
}

func (e ConversionJobStatus) Value() (driver.Value, error) {
	return string(e), nil
}

type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

func (e *UserRole) Scan(src interface{}) error {
	switch s := src.(type) {
	case []byte:
		*e = UserRole(s)
	case string:
		*e = UserRole(s)
	default:
		return fmt.Errorf("unsupported scan type for UserRole: %T", src)
	}
	return nil
}

func (e UserRole) Value() (driver.Value, error) {
	return string(e), nil
}

type ConversionJob struct {
	ID         int64               `json:"id"`
	VideoID    int64               `json:"video_id"`
	JobName    string              `json:"job_name"`
	SourceFile string              `json:"source_file"`
	Status     ConversionJobStatus `json:"status"`
	Attempts   int32               `json:"attempts"`
	LastError  *string             `json:"last_error"`
	LockedBy   *string             `json:"locked_by"`
	StartedAt  pgtype.Timestamptz  `json:"started_at"`
	FinishedAt pgtype.Timestamptz  `json:"finished_at"`
	CreatedAt  pgtype.Timestamptz  `json:"created_at"`
	UpdatedAt  pgtype.Timestamptz  `json:"updated_at"`
}

type RevokedSession struct {
	TokenID   pgtype.UUID        `json:"token_id"`
	UserID    pgtype.UUID        `json:"user_id"`
	RevokedAt pgtype.Timestamptz `json:"revoked_at"`
	ExpiresAt pgtype.Timestamptz `json:"expires_at"`
}

type User struct {
	ID              pgtype.UUID        `json:"id"`
	Email           string             `json:"email"`
	Password        passwords.Password `json:"-"`
	Role            UserRole           `json:"role"`
	IsActive        bool               `json:"is_active"`
	ActivationToken pgtype.UUID        `json:"activation_token"`
	CreatedAt       pgtype.Timestamptz `json:"created_at"`
	UpdatedAt       pgtype.Timestamptz `json:"updated_at"`
}

type Video struct {
	ID              int64              `json:"id"`
	Title           string             `json:"title"`
	Description     string             `json:"description"`
	Category        string             `json:"category"`
	CreatedAt       pgtype.Timestamptz `json:"created_at"`
	SourceFile      *string            `json:"source_file"`
	ThumbnailUrl    *string            `json:"thumbnail_url"`
	DurationSeconds *float64           `json:"duration_seconds"`
}
