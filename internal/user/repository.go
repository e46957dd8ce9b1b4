// Package user reads user accounts and maintains their upload references.
// Accounts themselves are created and owned by another service.
package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// User is an account that owns uploads.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Uploads   []string  `json:"uploads"`
	CreatedAt time.Time `json:"createdAt"`
}

// ErrNotFound is returned when a user does not exist.
var ErrNotFound = errors.New("user not found")

// Repository handles all user database operations.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetByID fetches a user and its upload references.
func (r *Repository) GetByID(ctx context.Context, id string) (*User, error) {
	u := &User{}
	err := r.db.QueryRow(ctx,
		`SELECT id::text, username, COALESCE(uploads::text[], '{}'), created_at
		 FROM users WHERE id::text = $1`,
		id,
	).Scan(&u.ID, &u.Username, &u.Uploads, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

// AppendUpload pushes uploadID onto the user's upload references. It reports
// whether a user row matched; a missing user is not an error.
func (r *Repository) AppendUpload(ctx context.Context, userID, uploadID string) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET uploads = array_append(uploads, $2::uuid)
		 WHERE id::text = $1`,
		userID, uploadID,
	)
	if err != nil {
		return false, fmt.Errorf("append upload reference: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
