package db

import (
	"context"
)

const getVideoByID = `-- name: GetVideoByID :one
SELECT id, title, description, category, created_at, source_file, thumbnail_url, duration_seconds
FROM videos
WHERE id = $1
`

func (q *Queries) GetVideoByID(ctx context.Context, id int64) (*Video, error) {
	row := q.db.QueryRow(ctx, getVideoByID, id)
	var i Video
	err := row.Scan(
		&i.ID,
		&i.Title,
		&i.Description,
		&i.Category,
		&i.CreatedAt,
		&i.SourceFile,
		&i.ThumbnailUrl,
		&i.DurationSeconds,
	)
	return &i, err
}

const insertVideo = `-- name: InsertVideo :one
INSERT INTO videos (title, description, category, source_file)
VALUES ($1, $2, $3, $4)
RETURNING id, title, description, category, created_at, source_file, thumbnail_url, duration_seconds
`

type InsertVideoParams struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	SourceFile  *string `json:"source_file"`
}

func (q *Queries) InsertVideo(ctx context.Context, arg *InsertVideoParams) (*Video, error) {
	row := q.db.QueryRow(ctx, insertVideo,
		arg.Title,
		arg.Description,
		arg.Category,
		arg.SourceFile,
	)
	var i Video
	err := row.Scan(
		&i.ID,
		&i.Title,
		&i.Description,
		&i.Category,
		&i.CreatedAt,
		&i.SourceFile,
		&i.ThumbnailUrl,
		&i.DurationSeconds,
	)
	return &i, err
}

const listVideos = `-- name: ListVideos :many
SELECT id, title, description, category, created_at, source_file, thumbnail_url, duration_seconds
FROM videos
ORDER BY created_at DESC, id DESC
`

func (q *Queries) ListVideos(ctx context.Context) ([]*Video, error) {
	rows, err := q.db.Query(ctx, listVideos)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []*Video{}
	for rows.Next() {
		var i Video
		if err := rows.Scan(
			&i.ID,
			&i.Title,
			&i.Description,
			&i.Category,
			&i.CreatedAt,
			&i.SourceFile,
			&i.ThumbnailUrl,
			&i.DurationSeconds,
		); err != nil {
			return nil, err
		}
		items = append(items, &i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateVideoDuration = `-- name: UpdateVideoDuration :execrows
UPDATE videos
SET duration_seconds = $2
WHERE id = $1
`

type UpdateVideoDurationParams struct {
	ID              int64    `json:"id"`
	DurationSeconds *float64 `json:"duration_seconds"`
}

func (q *Queries) UpdateVideoDuration(ctx context.Context, arg *UpdateVideoDurationParams) (int64, error) {
	result, err := q.db.Exec(ctx, updateVideoDuration, arg.ID, arg.DurationSeconds)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const updateVideoMetadata = `-- name: UpdateVideoMetadata :one
UPDATE videos
SET title = COALESCE($2, title),
    description = COALESCE($3, description),
    category = COALESCE($4, category)
WHERE id = $1
RETURNING id, title, description, category, created_at, source_file, thumbnail_url, duration_seconds
`

type UpdateVideoMetadataParams struct {
	ID          int64   `json:"id"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Category    *string `json:"category"`
}

func (q *Queries) UpdateVideoMetadata(ctx context.Context, arg *UpdateVideoMetadataParams) (*Video, error) {
	row := q.db.QueryRow(ctx, updateVideoMetadata,
		arg.ID,
		arg.Title,
		arg.Description,
		arg.Category,
	)
	var i Video
	err := row.Scan(
		&i.ID,
		&i.Title,
		&i.Description,
		&i.Category,
		&i.CreatedAt,
		&i.SourceFile,
		&i.ThumbnailUrl,
		&i.DurationSeconds,
	)
	return &i, err
}

const updateVideoThumbnailURL = `-- name: UpdateVideoThumbnailURL :execrows
UPDATE videos
SET thumbnail_url = $2
WHERE id = $1
`

type UpdateVideoThumbnailURLParams struct {
	ID           int64   `json:"id"`
	ThumbnailUrl *string `json:"thumbnail_url"`
}

func (q *Queries) UpdateVideoThumbnailURL(ctx context.Context, arg *UpdateVideoThumbnailURLParams) (int64, error) {
	result, err := q.db.Exec(ctx, updateVideoThumbnailURL, arg.ID, arg.ThumbnailUrl)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
