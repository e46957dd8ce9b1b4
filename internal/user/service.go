package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// store is the persistence the Service needs; *Repository implements it.
type store interface {
	GetByID(ctx context.Context, id string) (*User, error)
	AppendUpload(ctx context.Context, userID, uploadID string) (bool, error)
}

// Service contains business logic for user upload references.
type Service struct {
	repo store
}

// NewService creates a new user Service.
func NewService(repo store) *Service {
	return &Service{repo: repo}
}

// GetByID returns a user by their UUID.
func (s *Service) GetByID(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// AppendUpload records uploadID in the owner's upload collection. Owners are a
// weak reference: an unknown owner leaves the upload unlinked and is only logged.
func (s *Service) AppendUpload(ctx context.Context, ownerID, uploadID string) error {
	if ownerID == "" {
		log.Info().Str("upload_id", uploadID).Msg("upload has no owner, nothing to link")
		return nil
	}
	matched, err := s.repo.AppendUpload(ctx, ownerID, uploadID)
	if err != nil {
		return fmt.Errorf("link upload to owner: %w", err)
	}
	if !matched {
		log.Warn().Str("user_id", ownerID).Str("upload_id", uploadID).Msg("upload owner not found, reference not recorded")
	}
	return nil
}

// IsNotFound returns true when the error indicates a user was not found.
func (s *Service) IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
