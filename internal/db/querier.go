package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

type Querier interface {
	ActivateUser(ctx context.Context, arg *ActivateUserParams) (int64, error)
	AdvisoryUnlock(ctx context.Context, key int64) (bool, error)
	CountUsers(ctx context.Context) (int64, error)
	DequeueConversionJob(ctx context.Context, lockedBy *string) (*ConversionJob, error)
	EnqueueConversionJob(ctx context.Context, arg *EnqueueConversionJobParams) (*ConversionJob, error)
	FailExhaustedConversionJobs(ctx context.Context, maxAttempts int32) (int64, error)
	GetLatestConversionJobForVideo(ctx context.Context, videoID int64) (*ConversionJob, error)
	GetVideoByID(ctx context.Context, id int64) (*Video, error)
	InsertVideo(ctx context.Context, arg *InsertVideoParams) (*Video, error)
	IsUserActive(ctx context.Context, id pgtype.UUID) (bool, error)
	IsSessionRevoked(ctx context.Context, tokenID pgtype.UUID) (bool, error)
	ListStaleConversionJobs(ctx context.Context, staleSeconds float64) ([]*ConversionJob, error)
	ListVideos(ctx context.Context) ([]*Video, error)
	ListenConversionJobs(ctx context.Context) error
	MarkConversionJobFailed(ctx context.Context, arg *MarkConversionJobFailedParams) error
	MarkConversionJobSucceeded(ctx context.Context, id int64) error
	PurgeExpiredRevokedSessions(ctx context.Context) (int64, error)
	RecoverConversionJob(ctx context.Context, id int64) (int64, error)
	ReleaseConversionJob(ctx context.Context, arg *ReleaseConversionJobParams) error
	RetryConversionJob(ctx context.Context, id int64) (int64, error)
	RevokeSession(ctx context.Context, arg *RevokeSessionParams) error
	SelectUserByEmail(ctx context.Context, email string) (*User, error)
	TryAdvisoryLock(ctx context.Context, key int64) (bool, error)
	UpdateVideoDuration(ctx context.Context, arg *UpdateVideoDurationParams) (int64, error)
	UpdateVideoMetadata(ctx context.Context, arg *UpdateVideoMetadataParams) (*Video, error)
	UpdateVideoThumbnailURL(ctx context.Context, arg *UpdateVideoThumbnailURLParams) (int64, error)
}

var _ Querier = (*Queries)(nil)
