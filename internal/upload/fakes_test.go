package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vidshare/service/internal/storage"
)

// journal records the order of adapter calls across fakes.
type journal struct {
	mu    sync.Mutex
	calls []string
}

func (j *journal) add(call string) {
	if j == nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.calls = append(j.calls, call)
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.calls...)
}

// memBlobs is an in-memory storage.Storage.
type memBlobs struct {
	name    string
	log     *journal
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	gets    int
}

var _ storage.Storage = (*memBlobs)(nil)

func newMemBlobs(name string, log *journal) *memBlobs {
	return &memBlobs{name: name, log: log, objects: make(map[string][]byte)}
}

func (m *memBlobs) Put(_ context.Context, key string, r io.Reader, size int64, _ string) (string, error) {
	m.log.add("put-" + m.name)
	if m.putErr != nil {
		return "", m.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if size >= 0 && int64(len(data)) != size {
		return "", fmt.Errorf("size mismatch: got %d want %d", len(data), size)
	}
	m.mu.Lock()
	m.objects[key] = data
	m.mu.Unlock()
	return m.PublicURL(key), nil
}

func (m *memBlobs) Get(_ context.Context, key string) (io.ReadCloser, error) {
	m.log.add("get-" + m.name)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memBlobs) PublicURL(key string) string {
	return "http://blobs.test/" + m.name + "/" + key
}

func (m *memBlobs) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m *memBlobs) getCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gets
}

// memStore is an in-memory MetadataStore.
type memStore struct {
	log       *journal
	mu        sync.Mutex
	records   []Upload
	createErr error
}

func (s *memStore) Create(_ context.Context, u *Upload) (*Upload, error) {
	s.log.add("create-record")
	if s.createErr != nil {
		return nil, s.createErr
	}
	if u.VideoBlobRef == "" || u.ThumbnailURL == "" {
		return nil, fmt.Errorf("record missing blob reference")
	}
	rec := *u
	rec.ID = uuid.NewString()
	rec.CreatedAt = time.Now()
	s.mu.Lock()
	s.records = append(s.records, rec)
	s.mu.Unlock()
	return &rec, nil
}

func (s *memStore) FindByID(_ context.Context, id string) (*Upload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.ID == id {
			rec := r
			return &rec, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memStore) FindAll(_ context.Context) ([]Upload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Upload{}, s.records...), nil
}

// memOwners is an in-memory OwnerLinker.
type memOwners struct {
	log     *journal
	mu      sync.Mutex
	links   map[string][]string
	linkErr error
}

func (o *memOwners) AppendUpload(_ context.Context, ownerID, uploadID string) error {
	o.log.add("link-owner")
	if o.linkErr != nil {
		return o.linkErr
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.links == nil {
		o.links = make(map[string][]string)
	}
	o.links[ownerID] = append(o.links[ownerID], uploadID)
	return nil
}

// failingRemover wraps a FileRemover and always fails after delegating.
type failingRemover struct {
	inner FileRemover
	log   *journal
}

func (f *failingRemover) Remove(path string) error {
	f.log.add("remove-" + kind(path))
	_ = f.inner.Remove(path)
	return fmt.Errorf("remove %s: already gone", path)
}

// recordingRemover logs removals before delegating.
type recordingRemover struct {
	inner FileRemover
	log   *journal
}

func (r *recordingRemover) Remove(path string) error {
	r.log.add("remove-" + kind(path))
	return r.inner.Remove(path)
}

func kind(path string) string {
	switch {
	case strings.HasSuffix(path, ".mp4"):
		return "video"
	default:
		return "thumbnail"
	}
}
