package snapshots

import (
	"archive/zip"
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexus-mind/nexus-memory/internal/storage"
	"github.com/nexus-mind/nexus-memory/pkg/apperror"
)

// fakeExporter emits a fixed number of NDJSON lines per table.
type fakeExporter struct {
	episodes    int
	traces      int
	episodesErr error
	tracesErr   error
}

func (f *fakeExporter) ExportEpisodes(_ context.Context, w io.Writer) (int, error) {
	if f.episodesErr != nil {
		return 0, f.episodesErr
	}
	return writeLines(w, "episode", f.episodes)
}

func (f *fakeExporter) ExportTraces(_ context.Context, w io.Writer) (int, error) {
	if f.tracesErr != nil {
		return 0, f.tracesErr
	}
	return writeLines(w, "trace", f.traces)
}

func writeLines(w io.Writer, kind string, n int) (int, error) {
	for i := 0; i < n; i++ {
		if _, err := fmt.Fprintf(w, "{\"kind\":%q,\"seq\":%d}\n", kind, i); err != nil {
			return i, err
		}
	}
	return n, nil
}

// memUploader drains uploads into memory so tests can unzip them.
type memUploader struct {
	mu        sync.Mutex
	enabled   bool
	uploadErr error
	objects   map[string][]byte
	deleted   []string
}

func newMemUploader() *memUploader {
	return &memUploader{enabled: true, objects: make(map[string][]byte)}
}

func (m *memUploader) Enabled() bool { return m.enabled }

func (m *memUploader) Upload(_ context.Context, key string, data io.Reader, _ int64, _ storage.UploadOptions) (*storage.UploadResult, error) {
	if m.uploadErr != nil {
		return nil, m.uploadErr
	}
	buf, err := io.ReadAll(data)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.objects[key] = buf
	m.mu.Unlock()
	return &storage.UploadResult{Key: key, Bucket: "test"}, nil
}

func (m *memUploader) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	m.deleted = append(m.deleted, key)
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

func (m *memUploader) object(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[key]
	return b, ok
}

// lenientUploader keeps whatever bytes arrived before a stream error,
// mimicking a store that saw a clean EOF ahead of the failure.
type lenientUploader struct {
	memUploader
}

func (l *lenientUploader) Upload(_ context.Context, key string, data io.Reader, _ int64, _ storage.UploadOptions) (*storage.UploadResult, error) {
	buf, _ := io.ReadAll(data)
	l.mu.Lock()
	l.objects[key] = buf
	l.mu.Unlock()
	return &storage.UploadResult{Key: key, Bucket: "test"}, nil
}

func newTestCreator(exporter exportStore, store objectStore) *Creator {
	return &Creator{
		exporter: exporter,
		storage:  store,
		log:      slog.Default(),
	}
}

func TestCreateArchive_RoundTrip(t *testing.T) {
	uploader := newMemUploader()
	creator := newTestCreator(&fakeExporter{episodes: 3, traces: 2}, uploader)
	id := uuid.New()

	result, err := creator.CreateArchive(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, 3, result.EpisodeCount)
	assert.Equal(t, 2, result.TraceCount)
	assert.Equal(t, StorageKey(id), result.StorageKey)

	buf, ok := uploader.object(StorageKey(id))
	require.True(t, ok, "archive should be stored under the snapshot key")
	assert.Equal(t, int64(len(buf)), result.SizeBytes)

	zr, err := zip.NewReader(bytes.NewReader(buf), int64(len(buf)))
	require.NoError(t, err)
	require.Len(t, zr.File, 3)

	assert.Equal(t, 3, countLines(t, zr, "episodes.ndjson"))
	assert.Equal(t, 2, countLines(t, zr, "traces.ndjson"))

	f, err := zr.Open("manifest.json")
	require.NoError(t, err)
	defer f.Close()

	var manifest Manifest
	require.NoError(t, json.NewDecoder(f).Decode(&manifest))
	assert.Equal(t, "1.0.0", manifest.Version)
	assert.Equal(t, id.String(), manifest.SnapshotID)
	assert.Equal(t, 3, manifest.EpisodeCount)
	assert.Equal(t, 2, manifest.TraceCount)
	assert.Equal(t, []string{"episodes.ndjson", "traces.ndjson"}, manifest.Files)
}

func TestCreateArchive_UploadFailureUnblocksWriter(t *testing.T) {
	uploader := newMemUploader()
	uploader.uploadErr = errors.New("bucket offline")
	creator := newTestCreator(&fakeExporter{episodes: 1, traces: 1}, uploader)

	done := make(chan struct{})
	var err error
	go func() {
		_, err = creator.CreateArchive(context.Background(), uuid.New())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("CreateArchive did not return after the upload failed")
	}

	require.Error(t, err)
	assert.ErrorIs(t, err, uploader.uploadErr)
	assert.Empty(t, uploader.deleted)
}

func TestCreateArchive_ExportFailureAbortsUpload(t *testing.T) {
	exportErr := errors.New("traces table unreadable")
	uploader := newMemUploader()
	creator := newTestCreator(&fakeExporter{episodes: 2, tracesErr: exportErr}, uploader)
	id := uuid.New()

	_, err := creator.CreateArchive(context.Background(), id)
	require.Error(t, err)
	assert.ErrorIs(t, err, exportErr)

	_, stored := uploader.object(StorageKey(id))
	assert.False(t, stored, "no archive should survive a failed export")
}

func TestCreateArchive_TruncatedUploadIsDeleted(t *testing.T) {
	exportErr := errors.New("episodes table unreadable")
	uploader := &lenientUploader{memUploader: memUploader{enabled: true, objects: make(map[string][]byte)}}
	creator := newTestCreator(&fakeExporter{episodesErr: exportErr}, uploader)
	id := uuid.New()

	_, err := creator.CreateArchive(context.Background(), id)
	require.Error(t, err)
	assert.ErrorIs(t, err, exportErr)

	assert.Equal(t, []string{StorageKey(id)}, uploader.deleted)
	_, stored := uploader.object(StorageKey(id))
	assert.False(t, stored)
}

func countLines(t *testing.T, zr *zip.Reader, name string) int {
	t.Helper()
	f, err := zr.Open(name)
	require.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(f)
	n := 0
	for scanner.Scan() {
		n++
	}
	require.NoError(t, scanner.Err())
	return n
}

// fakeCatalog records catalog writes so tests can observe the async
// lifecycle.
type fakeCatalog struct {
	mu        sync.Mutex
	insertErr error
	inserted  []*Snapshot
	ready     []readyCall
	failed    []failedCall
	listRows  []*Snapshot
	listErr   error
	byID      *Snapshot
	byIDErr   error
}

type readyCall struct {
	id       uuid.UUID
	episodes int
	traces   int
	size     int64
}

type failedCall struct {
	id      uuid.UUID
	message string
}

func (f *fakeCatalog) Insert(_ context.Context, snap *Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, snap)
	return nil
}

func (f *fakeCatalog) MarkReady(_ context.Context, id uuid.UUID, episodes, traces int, size int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ready = append(f.ready, readyCall{id: id, episodes: episodes, traces: traces, size: size})
	return nil
}

func (f *fakeCatalog) MarkFailed(_ context.Context, id uuid.UUID, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, failedCall{id: id, message: message})
	return nil
}

func (f *fakeCatalog) List(_ context.Context) ([]*Snapshot, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.listRows, nil
}

func (f *fakeCatalog) ByID(_ context.Context, _ uuid.UUID) (*Snapshot, error) {
	if f.byIDErr != nil {
		return nil, f.byIDErr
	}
	return f.byID, nil
}

func (f *fakeCatalog) readyCalls() []readyCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]readyCall(nil), f.ready...)
}

func (f *fakeCatalog) failedCalls() []failedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]failedCall(nil), f.failed...)
}

// fakeArchiver returns a canned result without touching storage.
type fakeArchiver struct {
	mu      sync.Mutex
	enabled bool
	result  *ArchiveResult
	err     error
	calls   int
}

func (f *fakeArchiver) Enabled() bool { return f.enabled }

func (f *fakeArchiver) CreateArchive(_ context.Context, _ uuid.UUID) (*ArchiveResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeArchiver) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestService_Create_RequiresStorage(t *testing.T) {
	svc := NewService(&fakeCatalog{}, &fakeArchiver{enabled: false}, slog.Default())

	_, err := svc.Create(context.Background())
	require.Error(t, err)

	appErr, ok := err.(*apperror.Error)
	require.True(t, ok)
	assert.Equal(t, http.StatusServiceUnavailable, appErr.HTTPStatus)
}

func TestService_Create_FinishesInBackground(t *testing.T) {
	catalog := &fakeCatalog{}
	archiver := &fakeArchiver{
		enabled: true,
		result:  &ArchiveResult{EpisodeCount: 7, TraceCount: 4, SizeBytes: 2048},
	}
	svc := NewService(catalog, archiver, slog.Default())

	resp, err := svc.Create(context.Background())
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, StatusCreating, resp.Status)
	assert.Equal(t, "snapshot creation started", resp.Message)

	require.Len(t, catalog.inserted, 1)
	snap := catalog.inserted[0]
	assert.Equal(t, resp.SnapshotID, snap.ID)
	assert.Equal(t, StatusCreating, snap.Status)
	require.NotNil(t, snap.StorageKey)
	assert.Equal(t, StorageKey(snap.ID), *snap.StorageKey)

	require.Eventually(t, func() bool {
		return len(catalog.readyCalls()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	call := catalog.readyCalls()[0]
	assert.Equal(t, snap.ID, call.id)
	assert.Equal(t, 7, call.episodes)
	assert.Equal(t, 4, call.traces)
	assert.Equal(t, int64(2048), call.size)
	assert.Empty(t, catalog.failedCalls())
}

func TestService_Create_ArchiveFailureMarksFailed(t *testing.T) {
	catalog := &fakeCatalog{}
	archiver := &fakeArchiver{enabled: true, err: errors.New("write archive: disk full")}
	svc := NewService(catalog, archiver, slog.Default())

	resp, err := svc.Create(context.Background())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(catalog.failedCalls()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	call := catalog.failedCalls()[0]
	assert.Equal(t, resp.SnapshotID, call.id)
	assert.Equal(t, "write archive: disk full", call.message)
	assert.Empty(t, catalog.readyCalls())
}

func TestService_Create_InsertFailureStopsArchive(t *testing.T) {
	catalog := &fakeCatalog{insertErr: apperror.ErrDatabase}
	archiver := &fakeArchiver{enabled: true}
	svc := NewService(catalog, archiver, slog.Default())

	_, err := svc.Create(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, archiver.callCount())
}

func TestService_List(t *testing.T) {
	catalog := &fakeCatalog{listRows: []*Snapshot{
		{ID: uuid.New(), Status: StatusReady},
		{ID: uuid.New(), Status: StatusFailed},
	}}
	svc := NewService(catalog, &fakeArchiver{enabled: true}, slog.Default())

	resp, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.Count)
	assert.Len(t, resp.Snapshots, 2)
}

func TestService_Get_NotFound(t *testing.T) {
	catalog := &fakeCatalog{byIDErr: apperror.ErrNotFound.WithMessage("snapshot not found")}
	svc := NewService(catalog, &fakeArchiver{enabled: true}, slog.Default())

	_, err := svc.Get(context.Background(), uuid.New())
	require.Error(t, err)

	appErr, ok := err.(*apperror.Error)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, appErr.HTTPStatus)
}

func TestHandler_Create(t *testing.T) {
	catalog := &fakeCatalog{}
	svc := NewService(catalog, &fakeArchiver{enabled: true, result: &ArchiveResult{}}, slog.Default())
	h := NewHandler(svc)
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/memory/snapshots", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	var resp CreateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, StatusCreating, resp.Status)
}

func TestHandler_Get_RejectsBadID(t *testing.T) {
	svc := NewService(&fakeCatalog{}, &fakeArchiver{enabled: true}, slog.Default())
	h := NewHandler(svc)
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/memory/snapshots/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")

	err := h.Get(c)
	require.Error(t, err)

	appErr, ok := err.(*apperror.Error)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnprocessableEntity, appErr.HTTPStatus)
}

func TestHandler_List(t *testing.T) {
	catalog := &fakeCatalog{listRows: []*Snapshot{{ID: uuid.New(), Status: StatusReady}}}
	svc := NewService(catalog, &fakeArchiver{enabled: true}, slog.Default())
	h := NewHandler(svc)
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/memory/snapshots", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.List(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp ListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 1, resp.Count)
}
