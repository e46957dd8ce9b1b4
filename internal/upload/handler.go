package upload

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/vidshare/service/internal/middleware"
	"github.com/vidshare/service/internal/response"
	"github.com/vidshare/service/internal/stream"
)

const (
	// DefaultMaxRequestBytes caps a whole multipart body. Oversize parts are
	// drained up to this cap so the client still gets a part-specific message.
	DefaultMaxRequestBytes int64 = 1 << 30

	maxFieldBytes = 1 << 20
)

var (
	errUnexpectedField = errors.New("unexpected field")
	safeExt            = regexp.MustCompile(`^\.[A-Za-z0-9]{1,10}$`)
)

// TempFiles creates and releases the local buffers for received file parts.
type TempFiles interface {
	Create(ext string) (*os.File, error)
	Release(paths ...string)
}

// HandlerOptions tunes request intake and streaming.
type HandlerOptions struct {
	Limits          Limits
	MaxRequestBytes int64
	Stream          stream.Options
}

// Handler holds HTTP handlers for upload endpoints.
type Handler struct {
	svc   *Service
	files TempFiles
	opts  HandlerOptions
}

// NewHandler creates a new upload Handler.
func NewHandler(svc *Service, files TempFiles, opts HandlerOptions) *Handler {
	if opts.Limits == (Limits{}) {
		opts.Limits = DefaultLimits()
	}
	if opts.MaxRequestBytes <= 0 {
		opts.MaxRequestBytes = DefaultMaxRequestBytes
	}
	return &Handler{svc: svc, files: files, opts: opts}
}

// Register mounts the upload routes on r. createMW wraps only the upload route.
func (h *Handler) Register(r chi.Router, createMW ...func(http.Handler) http.Handler) {
	r.Route("/uploads", func(r chi.Router) {
		r.Get("/", h.List)
		r.With(createMW...).Post("/upload", h.Create)
		r.Get("/{id}", h.Get)
	})
}

// List godoc
//
//	@Summary		List uploads
//	@Description	Returns every upload record, newest first.
//	@Tags			uploads
//	@Produce		json
//	@Success		200	{array}		Upload
//	@Failure		404	{object}	response.Message
//	@Failure		500	{object}	response.Message
//	@Router			/uploads [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	uploads, err := h.svc.List(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("list uploads")
		response.InternalError(w, "Failed to fetch uploads")
		return
	}
	if len(uploads) == 0 {
		response.NotFound(w, "No uploads found")
		return
	}
	response.OK(w, uploads)
}

// Get godoc
//
//	@Summary		Download a video
//	@Description	Streams the stored video as an attachment.
//	@Tags			uploads
//	@Produce		video/mp4
//	@Param			id	path		string	true	"Upload ID"
//	@Success		200	{file}		binary
//	@Failure		404	{object}	response.Message
//	@Failure		500	{object}	response.Message
//	@Router			/uploads/{id} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	u, body, err := h.svc.Open(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(w, "Upload not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("upload_id", id).Msg("open upload")
		response.InternalError(w, "Failed to retrieve video")
		return
	}

	rc := http.NewResponseController(w)
	// Videos can outlive the server's write timeout.
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		log.Debug().Err(err).Msg("clear write deadline")
	}

	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition", "attachment; filename="+u.VideoBlobRef)
	w.WriteHeader(http.StatusOK)

	n, err := stream.Relay(r.Context(), &responseSink{w: w, rc: rc}, body, h.opts.Stream)
	if err == nil {
		return
	}
	if r.Context().Err() != nil {
		log.Info().Str("upload_id", id).Int64("bytes", n).Msg("client went away during stream")
		return
	}
	// Headers are gone; the only way left to signal failure is to drop the connection.
	log.Error().Err(err).Str("upload_id", id).Int64("bytes", n).Msg("stream video")
	panic(http.ErrAbortHandler)
}

// Create godoc
//
//	@Summary		Upload a video
//	@Description	Stores a video (max 50MB) and a thumbnail (max 5MB) and records their metadata.
//	@Tags			uploads
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			userID		formData	string	true	"Owner user ID"
//	@Param			title		formData	string	false	"Title"
//	@Param			description	formData	string	false	"Description"
//	@Param			video		formData	file	true	"Video file"
//	@Param			thumbnail	formData	file	true	"Thumbnail image"
//	@Success		201			{object}	Upload
//	@Failure		400			{object}	response.Message
//	@Failure		413			{object}	response.Message
//	@Failure		500			{object}	response.Message
//	@Router			/uploads/upload [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	// The server write deadline starts when headers are read; receiving and
	// storing a large video can outlast it before the 201 is written.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		log.Debug().Err(err).Msg("clear write deadline")
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxRequestBytes)

	in, err := h.receive(r)
	// Request-scope fallback: drops buffers the saga did not consume.
	defer h.files.Release(in.paths()...)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			response.TooLarge(w, "Request body too large")
		case errors.Is(err, errUnexpectedField):
			response.BadRequest(w, "Unexpected field")
		default:
			log.Warn().Err(err).Msg("read upload form")
			response.BadRequest(w, "Invalid multipart form")
		}
		return
	}

	// Owners are optional; without one the upload is stored unlinked.
	ownerID := in.fields["userID"]
	if ownerID == "" {
		ownerID, _ = middleware.UserID(r.Context())
	}

	sub := in.submission(ownerID)
	if err := Validate(sub, h.opts.Limits); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	created, err := h.svc.Create(r.Context(), NewUpload{
		OwnerID:     ownerID,
		Title:       sub.Title,
		Description: sub.Description,
		Video:       in.video.source(),
		Thumbnail:   in.thumbnail.source(),
	})
	if err != nil {
		log.Error().Err(err).Str("user_id", ownerID).Msg("create upload")
		response.InternalError(w, "Failed to save upload")
		return
	}

	response.Created(w, created)
}

// receivedFile is a file part spooled to a temporary file.
type receivedFile struct {
	path        string
	size        int64
	contentType string
}

func (f *receivedFile) source() Source {
	return Source{Path: f.path, Size: f.size, ContentType: f.contentType}
}

// received is the parsed form. It is never nil, even on error, so its files
// can be released.
type received struct {
	fields    map[string]string
	video     *receivedFile
	thumbnail *receivedFile
}

func (rc *received) paths() []string {
	var out []string
	for _, f := range []*receivedFile{rc.video, rc.thumbnail} {
		if f != nil {
			out = append(out, f.path)
		}
	}
	return out
}

func (rc *received) submission(ownerID string) Submission {
	s := Submission{
		OwnerID:     ownerID,
		Title:       rc.fields["title"],
		Description: rc.fields["description"],
	}
	if rc.video != nil {
		s.Video = Part{Present: true, Size: rc.video.size}
	}
	if rc.thumbnail != nil {
		s.Thumbnail = Part{Present: true, Size: rc.thumbnail.size}
	}
	return s
}

// receive reads the multipart body, spooling at most one video and one
// thumbnail to temporary files. A part larger than its limit is stored only up
// to limit+1 bytes; the rest is drained so its true size is known.
func (h *Handler) receive(r *http.Request) (*received, error) {
	in := &received{fields: make(map[string]string)}

	mr, err := r.MultipartReader()
	if errors.Is(err, http.ErrNotMultipart) {
		// No parts at all; validation reports the missing files.
		return in, nil
	}
	if err != nil {
		return in, err
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return in, nil
		}
		if err != nil {
			return in, err
		}

		name := part.FormName()
		if part.FileName() == "" {
			value, err := io.ReadAll(io.LimitReader(part, maxFieldBytes))
			if err != nil {
				return in, err
			}
			in.fields[name] = string(value)
			continue
		}

		var slot **receivedFile
		var limit int64
		switch name {
		case "video":
			slot, limit = &in.video, h.opts.Limits.MaxVideoBytes
		case "thumbnail":
			slot, limit = &in.thumbnail, h.opts.Limits.MaxThumbnailBytes
		default:
			return in, fmt.Errorf("%w: %q", errUnexpectedField, name)
		}
		if *slot != nil {
			return in, fmt.Errorf("%w: second %q file", errUnexpectedField, name)
		}

		f, err := h.spool(part, limit)
		if f != nil {
			*slot = f
		}
		if err != nil {
			return in, err
		}
	}
}

func (h *Handler) spool(part *multipart.Part, limit int64) (*receivedFile, error) {
	ext := strings.ToLower(filepath.Ext(part.FileName()))
	if !safeExt.MatchString(ext) {
		ext = ""
	}

	tmp, err := h.files.Create(ext)
	if err != nil {
		return nil, err
	}
	f := &receivedFile{path: tmp.Name(), contentType: part.Header.Get("Content-Type")}

	n, err := io.Copy(tmp, io.LimitReader(part, limit+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	f.size = n
	if err != nil {
		return f, err
	}

	if n > limit {
		rest, err := io.Copy(io.Discard, part)
		f.size += rest
		if err != nil {
			return f, err
		}
	}
	return f, nil
}

// responseSink flushes through http.ResponseController so wrapped writers work.
type responseSink struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

func (s *responseSink) Write(p []byte) (int, error) { return s.w.Write(p) }

func (s *responseSink) Flush() error {
	if err := s.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return nil
}

var _ stream.Flusher = (*responseSink)(nil)
