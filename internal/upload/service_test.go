package upload

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidshare/service/internal/storage"
	"github.com/vidshare/service/internal/tempfile"
)

type serviceFixture struct {
	dir        string
	log        *journal
	videos     *memBlobs
	thumbnails *memBlobs
	store      *memStore
	owners     *memOwners
	files      *tempfile.Manager
	svc        *Service
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	dir := t.TempDir()
	files, err := tempfile.NewManager(dir)
	require.NoError(t, err)

	f := &serviceFixture{dir: dir, log: &journal{}, files: files}
	f.videos = newMemBlobs("video", f.log)
	f.thumbnails = newMemBlobs("thumbnail", f.log)
	f.store = &memStore{log: f.log}
	f.owners = &memOwners{log: f.log}
	f.svc = NewService(f.store, f.owners, f.videos, f.thumbnails, &recordingRemover{inner: files, log: f.log})
	return f
}

func (f *serviceFixture) spool(t *testing.T, ext string, data []byte) Source {
	t.Helper()
	tmp, err := f.files.Create(ext)
	require.NoError(t, err)
	_, err = tmp.Write(data)
	require.NoError(t, err)
	require.NoError(t, tmp.Close())
	return Source{Path: tmp.Name(), Size: int64(len(data))}
}

func (f *serviceFixture) newUpload(t *testing.T) NewUpload {
	return NewUpload{
		OwnerID:     "user-1",
		Title:       "Cats",
		Description: "cats being cats",
		Video:       f.spool(t, ".mp4", []byte("video-bytes")),
		Thumbnail:   f.spool(t, ".png", []byte("thumb-bytes")),
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestCreateRunsStepsInOrder(t *testing.T) {
	f := newServiceFixture(t)
	in := f.newUpload(t)

	rec, err := f.svc.Create(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"put-video", "remove-video",
		"put-thumbnail", "remove-thumbnail",
		"create-record", "link-owner",
	}, f.log.list())

	videoKey := filepath.Base(in.Video.Path)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "user-1", rec.UserID)
	assert.Equal(t, videoKey, rec.VideoBlobRef)
	assert.Equal(t, f.thumbnails.PublicURL(filepath.Base(in.Thumbnail.Path)), rec.ThumbnailURL)
	assert.Equal(t, []string{rec.ID}, f.owners.links["user-1"])

	assert.False(t, fileExists(in.Video.Path))
	assert.False(t, fileExists(in.Thumbnail.Path))
}

func TestCreateVideoWriteFailure(t *testing.T) {
	f := newServiceFixture(t)
	f.videos.putErr = errors.New("bucket unavailable")
	in := f.newUpload(t)

	rec, err := f.svc.Create(context.Background(), in)
	assert.Nil(t, rec)

	var swe *StorageWriteError
	require.ErrorAs(t, err, &swe)
	assert.Equal(t, "put-video", swe.Step)
	assert.Empty(t, swe.Orphans)

	assert.Equal(t, []string{"put-video"}, f.log.list())
	assert.Empty(t, f.store.records)
	assert.True(t, fileExists(in.Video.Path), "buffer is kept until its write succeeds")
}

func TestCreateThumbnailWriteFailureKeepsVideoBlob(t *testing.T) {
	f := newServiceFixture(t)
	f.thumbnails.putErr = errors.New("bucket unavailable")
	in := f.newUpload(t)

	_, err := f.svc.Create(context.Background(), in)

	var swe *StorageWriteError
	require.ErrorAs(t, err, &swe)
	assert.Equal(t, "put-thumbnail", swe.Step)
	assert.Equal(t, []string{"video/" + filepath.Base(in.Video.Path)}, swe.Orphans)

	assert.Equal(t, []string{"put-video", "remove-video", "put-thumbnail"}, f.log.list())
	assert.Empty(t, f.store.records)
	assert.Len(t, f.videos.keys(), 1, "no compensation: the video blob stays")
}

func TestCreateRecordFailureLeavesBothBlobs(t *testing.T) {
	f := newServiceFixture(t)
	f.store.createErr = errors.New("insert failed")
	in := f.newUpload(t)

	_, err := f.svc.Create(context.Background(), in)

	var swe *StorageWriteError
	require.ErrorAs(t, err, &swe)
	assert.Equal(t, "create-record", swe.Step)
	assert.Len(t, swe.Orphans, 2)
	assert.ErrorIs(t, err, f.store.createErr)

	all, err := f.svc.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Len(t, f.videos.keys(), 1)
	assert.Len(t, f.thumbnails.keys(), 1)
	assert.NotContains(t, f.log.list(), "link-owner")
}

func TestCreateLinkFailure(t *testing.T) {
	f := newServiceFixture(t)
	f.owners.linkErr = errors.New("update failed")

	_, err := f.svc.Create(context.Background(), f.newUpload(t))

	var swe *StorageWriteError
	require.ErrorAs(t, err, &swe)
	assert.Equal(t, "link-owner", swe.Step)
	assert.Len(t, f.store.records, 1)
}

func TestCreateIgnoresTempCleanupFailure(t *testing.T) {
	f := newServiceFixture(t)
	f.svc.files = &failingRemover{inner: f.files, log: f.log}

	rec, err := f.svc.Create(context.Background(), f.newUpload(t))
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
}

func TestCreateIgnoresClientCancellation(t *testing.T) {
	f := newServiceFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec, err := f.svc.Create(ctx, f.newUpload(t))
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
}

func TestOpenRoundTrip(t *testing.T) {
	f := newServiceFixture(t)
	rec, err := f.svc.Create(context.Background(), f.newUpload(t))
	require.NoError(t, err)

	u, body, err := f.svc.Open(context.Background(), rec.ID)
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "video-bytes", string(data))
	assert.Equal(t, rec.VideoBlobRef, u.VideoBlobRef)
}

func TestOpenUnknownIDSkipsBlobStore(t *testing.T) {
	f := newServiceFixture(t)

	_, _, err := f.svc.Open(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, f.videos.getCount())
}

func TestOpenMissingBlob(t *testing.T) {
	f := newServiceFixture(t)
	f.store.records = []Upload{{ID: "u1", VideoBlobRef: "gone.mp4", ThumbnailURL: "x"}}

	_, _, err := f.svc.Open(context.Background(), "u1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.NotErrorIs(t, err, ErrNotFound)
}
