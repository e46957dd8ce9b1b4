package upload

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vidshare/service/internal/db"
)

const uploadColumns = `id::text, user_id, title, description, video_blob_ref, thumbnail_url, created_at`

// Repository stores upload records in PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// Create inserts u and returns the stored record with its assigned ID.
func (r *Repository) Create(ctx context.Context, u *Upload) (*Upload, error) {
	row := r.db.QueryRow(ctx,
		`INSERT INTO uploads (user_id, title, description, video_blob_ref, thumbnail_url)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+uploadColumns,
		u.UserID, u.Title, u.Description, u.VideoBlobRef, u.ThumbnailURL,
	)
	created, err := scanUpload(row)
	if err != nil {
		return nil, fmt.Errorf("create upload: %w", err)
	}
	return &created, nil
}

// FindByID fetches an upload. Unknown and malformed IDs both yield ErrNotFound.
func (r *Repository) FindByID(ctx context.Context, id string) (*Upload, error) {
	u, err := scanUpload(r.db.QueryRow(ctx,
		`SELECT `+uploadColumns+` FROM uploads WHERE id = $1`,
		id,
	))
	if errors.Is(err, pgx.ErrNoRows) || db.IsInvalidText(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get upload by id: %w", err)
	}
	return &u, nil
}

// FindAll returns every upload, newest first.
func (r *Repository) FindAll(ctx context.Context) ([]Upload, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+uploadColumns+` FROM uploads ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	uploads, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Upload, error) {
		return scanUpload(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan uploads: %w", err)
	}
	return uploads, nil
}

func scanUpload(row pgx.Row) (Upload, error) {
	var u Upload
	err := row.Scan(&u.ID, &u.UserID, &u.Title, &u.Description, &u.VideoBlobRef, &u.ThumbnailURL, &u.CreatedAt)
	return u, err
}
