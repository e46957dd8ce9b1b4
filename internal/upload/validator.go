package upload

import "fmt"

// Default size limits, in bytes. A part is rejected only when strictly larger.
const (
	MaxVideoSize     int64 = 50 * 1024 * 1024
	MaxThumbnailSize int64 = 5 * 1024 * 1024
)

// Rejection is the reason a submission failed validation.
type Rejection int

const (
	MissingParts Rejection = iota + 1
	VideoTooLarge
	ThumbnailTooLarge
)

func (r Rejection) String() string {
	switch r {
	case MissingParts:
		return "MissingParts"
	case VideoTooLarge:
		return "VideoTooLarge"
	case ThumbnailTooLarge:
		return "ThumbnailTooLarge"
	default:
		return fmt.Sprintf("Rejection(%d)", int(r))
	}
}

// Limits caps the size of each file part.
type Limits struct {
	MaxVideoBytes     int64
	MaxThumbnailBytes int64
}

// DefaultLimits returns the 50 MiB video / 5 MiB thumbnail limits.
func DefaultLimits() Limits {
	return Limits{MaxVideoBytes: MaxVideoSize, MaxThumbnailBytes: MaxThumbnailSize}
}

// Part describes one received file part.
type Part struct {
	Present bool
	Size    int64
}

// Submission is what the validator sees of a multipart upload.
type Submission struct {
	Video       Part
	Thumbnail   Part
	OwnerID     string
	Title       string
	Description string
}

// ValidationError is a user-correctable rejection; its message is safe to return to clients.
type ValidationError struct {
	Rejection Rejection
	Limit     int64
}

func (e *ValidationError) Error() string {
	switch e.Rejection {
	case MissingParts:
		return "Video and thumbnail required"
	case VideoTooLarge:
		return fmt.Sprintf("Video must be less than %s", formatMB(e.Limit))
	case ThumbnailTooLarge:
		return fmt.Sprintf("Thumbnail must be less than %s", formatMB(e.Limit))
	default:
		return "invalid submission"
	}
}

// Validate checks presence, then video size, then thumbnail size, and reports
// only the first failure.
func Validate(s Submission, l Limits) error {
	if !s.Video.Present || !s.Thumbnail.Present {
		return &ValidationError{Rejection: MissingParts}
	}
	if s.Video.Size > l.MaxVideoBytes {
		return &ValidationError{Rejection: VideoTooLarge, Limit: l.MaxVideoBytes}
	}
	if s.Thumbnail.Size > l.MaxThumbnailBytes {
		return &ValidationError{Rejection: ThumbnailTooLarge, Limit: l.MaxThumbnailBytes}
	}
	return nil
}

func formatMB(n int64) string {
	const mb = 1024 * 1024
	if n%mb == 0 {
		return fmt.Sprintf("%dMB", n/mb)
	}
	return fmt.Sprintf("%d bytes", n)
}
