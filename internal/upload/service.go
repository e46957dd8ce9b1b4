package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/vidshare/service/internal/storage"
)

// MetadataStore persists upload records.
type MetadataStore interface {
	Create(ctx context.Context, u *Upload) (*Upload, error)
	// FindByID returns ErrNotFound when no record matches.
	FindByID(ctx context.Context, id string) (*Upload, error)
	FindAll(ctx context.Context) ([]Upload, error)
}

// OwnerLinker appends an upload to its owner's collection of upload references.
type OwnerLinker interface {
	AppendUpload(ctx context.Context, ownerID, uploadID string) error
}

// FileRemover deletes a local temporary file.
type FileRemover interface {
	Remove(path string) error
}

// Source is a local file holding one submitted part.
type Source struct {
	Path        string
	Size        int64
	ContentType string
}

// NewUpload is a validated submission ready to be stored.
type NewUpload struct {
	OwnerID     string
	Title       string
	Description string
	Video       Source
	Thumbnail   Source
}

// Service stores and retrieves uploads.
type Service struct {
	repo       MetadataStore
	owners     OwnerLinker
	videos     storage.Storage
	thumbnails storage.Storage
	files      FileRemover
}

// NewService creates a new upload Service.
func NewService(repo MetadataStore, owners OwnerLinker, videos, thumbnails storage.Storage, files FileRemover) *Service {
	return &Service{
		repo:       repo,
		owners:     owners,
		videos:     videos,
		thumbnails: thumbnails,
		files:      files,
	}
}

// step is one fallible action of the upload saga. Steps are never
// compensated; orphan names what a completed step leaves behind if a later
// step fails, and is empty when nothing is left.
type step struct {
	name   string
	run    func(ctx context.Context) error
	orphan func() string
}

// runSteps executes steps in order and stops at the first failure.
func runSteps(ctx context.Context, steps []step) error {
	for i, st := range steps {
		if err := st.run(ctx); err != nil {
			var orphans []string
			for _, done := range steps[:i] {
				if done.orphan == nil {
					continue
				}
				if o := done.orphan(); o != "" {
					orphans = append(orphans, o)
				}
			}
			return &StorageWriteError{Step: st.name, Orphans: orphans, Err: err}
		}
	}
	return nil
}

// Create writes the video blob, then the thumbnail blob, then the metadata
// record, then links the record to its owner. Each step waits for the previous
// one; a record is only created once both blobs are stored.
//
// Client disconnects do not cancel the saga: once started it runs to
// completion or failure.
func (s *Service) Create(ctx context.Context, in NewUpload) (*Upload, error) {
	ctx = context.WithoutCancel(ctx)

	videoKey := filepath.Base(in.Video.Path)
	thumbnailKey := filepath.Base(in.Thumbnail.Path)

	var (
		thumbnailURL string
		created      *Upload
	)

	steps := []step{
		{
			name: "put-video",
			run: func(ctx context.Context) error {
				if _, err := putFile(ctx, s.videos, videoKey, in.Video, "video/mp4"); err != nil {
					return err
				}
				s.removeLocal(in.Video.Path)
				return nil
			},
			orphan: func() string { return "video/" + videoKey },
		},
		{
			name: "put-thumbnail",
			run: func(ctx context.Context) error {
				url, err := putFile(ctx, s.thumbnails, thumbnailKey, in.Thumbnail, "application/octet-stream")
				if err != nil {
					return err
				}
				thumbnailURL = url
				s.removeLocal(in.Thumbnail.Path)
				return nil
			},
			orphan: func() string { return "thumbnail/" + thumbnailKey },
		},
		{
			name: "create-record",
			run: func(ctx context.Context) error {
				u, err := s.repo.Create(ctx, &Upload{
					UserID:       in.OwnerID,
					Title:        in.Title,
					Description:  in.Description,
					VideoBlobRef: videoKey,
					ThumbnailURL: thumbnailURL,
				})
				if err != nil {
					return err
				}
				created = u
				return nil
			},
		},
		{
			name: "link-owner",
			run: func(ctx context.Context) error {
				return s.owners.AppendUpload(ctx, in.OwnerID, created.ID)
			},
		},
	}

	if err := runSteps(ctx, steps); err != nil {
		var swe *StorageWriteError
		if errors.As(err, &swe) && len(swe.Orphans) > 0 {
			log.Warn().Str("step", swe.Step).Strs("orphans", swe.Orphans).
				Msg("upload aborted; blobs already written are left in storage")
		}
		return nil, err
	}

	log.Info().Str("upload_id", created.ID).Str("blob", videoKey).Str("user_id", in.OwnerID).Msg("upload stored")
	return created, nil
}

// putFile uploads the local file at src.Path under key and returns the blob's URL.
func putFile(ctx context.Context, store storage.Storage, key string, src Source, fallbackType string) (string, error) {
	f, err := os.Open(src.Path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", key, err)
	}
	defer f.Close()

	size := src.Size
	if size < 0 {
		info, err := f.Stat()
		if err != nil {
			return "", fmt.Errorf("stat %s: %w", key, err)
		}
		size = info.Size()
	}

	contentType := src.ContentType
	if contentType == "" {
		contentType = fallbackType
	}

	url, err := store.Put(ctx, key, f, size, contentType)
	if err != nil {
		return "", fmt.Errorf("store %s: %w", key, err)
	}
	return url, nil
}

// removeLocal deletes a temporary file whose blob is already stored. Failures
// are logged and never fail the upload.
func (s *Service) removeLocal(path string) {
	if err := s.files.Remove(path); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("remove temp file")
	}
}

// List returns all uploads, newest first.
func (s *Service) List(ctx context.Context) ([]Upload, error) {
	uploads, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	return uploads, nil
}

// Open looks up an upload and opens its video blob for reading. It returns
// ErrNotFound without touching blob storage when the record does not exist.
// The caller must close the returned stream.
func (s *Service) Open(ctx context.Context, id string) (*Upload, io.ReadCloser, error) {
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	body, err := s.videos.Get(ctx, u.VideoBlobRef)
	if err != nil {
		return nil, nil, fmt.Errorf("open video %q: %w", u.VideoBlobRef, err)
	}
	return u, body, nil
}
