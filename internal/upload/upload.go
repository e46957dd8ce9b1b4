// Package upload accepts video submissions, stores their blobs and metadata,
// and streams stored videos back to clients.
package upload

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Upload is the metadata record of one stored video.
type Upload struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userID"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	VideoBlobRef string    `json:"videoBlobRef"`
	ThumbnailURL string    `json:"thumbnailURL"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ErrNotFound is returned when no upload exists for an ID.
var ErrNotFound = errors.New("upload not found")

// StorageWriteError reports the saga step that failed. Orphans lists blobs
// written by earlier steps; they are left in storage.
type StorageWriteError struct {
	Step    string
	Orphans []string
	Err     error
}

func (e *StorageWriteError) Error() string {
	msg := fmt.Sprintf("upload step %s: %v", e.Step, e.Err)
	if len(e.Orphans) > 0 {
		msg += " (orphaned: " + strings.Join(e.Orphans, ", ") + ")"
	}
	return msg
}

func (e *StorageWriteError) Unwrap() error { return e.Err }
