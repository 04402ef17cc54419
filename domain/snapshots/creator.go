package snapshots

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nexus-mind/nexus-memory/internal/storage"
	"github.com/nexus-mind/nexus-memory/internal/version"
	"github.com/nexus-mind/nexus-memory/pkg/logger"
)

// manifestVersion is the snapshot archive format version.
const manifestVersion = "1.0.0"

// objectStore is the slice of the storage service the creator uses.
type objectStore interface {
	Enabled() bool
	Upload(ctx context.Context, key string, data io.Reader, size int64, opts storage.UploadOptions) (*storage.UploadResult, error)
	Delete(ctx context.Context, key string) error
}

// exportStore streams memory tables as NDJSON.
type exportStore interface {
	ExportEpisodes(ctx context.Context, w io.Writer) (int, error)
	ExportTraces(ctx context.Context, w io.Writer) (int, error)
}

// Creator builds snapshot archives and streams them to object storage
type Creator struct {
	exporter exportStore
	storage  objectStore
	log      *slog.Logger
}

// NewCreator creates a new snapshot creator
func NewCreator(exporter *Exporter, storageSvc *storage.Service, log *slog.Logger) *Creator {
	return &Creator{
		exporter: exporter,
		storage:  storageSvc,
		log:      log.With(logger.Scope("snapshots.creator")),
	}
}

// ArchiveResult describes a finished snapshot archive.
type ArchiveResult struct {
	EpisodeCount int
	TraceCount   int
	SizeBytes    int64
	StorageKey   string
}

// Enabled reports whether object storage is configured.
func (c *Creator) Enabled() bool {
	return c.storage.Enabled()
}

type archiveOutcome struct {
	episodes int
	traces   int
	err      error
}

// CreateArchive zips the memory tables and streams the archive to
// object storage without buffering it on disk.
func (c *Creator) CreateArchive(ctx context.Context, id uuid.UUID) (*ArchiveResult, error) {
	key := StorageKey(id)

	c.log.Info("starting snapshot archive",
		slog.String("snapshot_id", id.String()),
		slog.String("storage_key", key),
	)

	// Pipe the ZIP straight into the upload.
	pr, pw := io.Pipe()
	counter := &countingWriter{w: pw}

	done := make(chan archiveOutcome, 1)
	go func() {
		episodes, traces, err := c.writeArchive(ctx, counter, id)
		// A nil error closes the pipe with EOF; a failure propagates
		// to the reading side so the upload aborts instead of storing
		// a truncated archive.
		pw.CloseWithError(err)
		done <- archiveOutcome{episodes: episodes, traces: traces, err: err}
	}()

	_, uploadErr := c.storage.Upload(ctx, key, pr, -1, storage.UploadOptions{
		ContentType: "application/zip",
	})
	if uploadErr != nil {
		// Unblock the archive goroutine if it is still writing.
		pr.CloseWithError(uploadErr)
	}

	outcome := <-done
	if outcome.err != nil {
		if uploadErr == nil {
			// The truncated object made it to storage; remove it.
			_ = c.storage.Delete(ctx, key)
		}
		return nil, fmt.Errorf("write archive: %w", outcome.err)
	}
	if uploadErr != nil {
		c.log.Error("failed to upload snapshot",
			slog.String("snapshot_id", id.String()),
			logger.Error(uploadErr),
		)
		return nil, fmt.Errorf("upload snapshot: %w", uploadErr)
	}

	c.log.Info("snapshot uploaded",
		slog.String("snapshot_id", id.String()),
		slog.Int("episodes", outcome.episodes),
		slog.Int("traces", outcome.traces),
		slog.Int64("size_bytes", counter.n),
	)

	return &ArchiveResult{
		EpisodeCount: outcome.episodes,
		TraceCount:   outcome.traces,
		SizeBytes:    counter.n,
		StorageKey:   key,
	}, nil
}

// writeArchive writes the ZIP entries in order: episodes, traces, then
// the manifest describing both.
func (c *Creator) writeArchive(ctx context.Context, w io.Writer, id uuid.UUID) (int, int, error) {
	zw := zip.NewWriter(w)

	f, err := zw.Create("episodes.ndjson")
	if err != nil {
		return 0, 0, fmt.Errorf("create episodes entry: %w", err)
	}
	episodes, err := c.exporter.ExportEpisodes(ctx, f)
	if err != nil {
		return episodes, 0, err
	}

	f, err = zw.Create("traces.ndjson")
	if err != nil {
		return episodes, 0, fmt.Errorf("create traces entry: %w", err)
	}
	traces, err := c.exporter.ExportTraces(ctx, f)
	if err != nil {
		return episodes, traces, err
	}

	if err := c.writeManifest(zw, id, episodes, traces); err != nil {
		return episodes, traces, err
	}

	if err := zw.Close(); err != nil {
		return episodes, traces, fmt.Errorf("close archive: %w", err)
	}

	return episodes, traces, nil
}

// writeManifest creates the manifest.json entry
func (c *Creator) writeManifest(zw *zip.Writer, id uuid.UUID, episodes, traces int) error {
	manifest := Manifest{
		Version:       manifestVersion,
		ServerVersion: version.Version,
		SnapshotID:    id.String(),
		CreatedAt:     time.Now().UTC(),
		EpisodeCount:  episodes,
		TraceCount:    traces,
		Files:         []string{"episodes.ndjson", "traces.ndjson"},
	}

	f, err := zw.Create("manifest.json")
	if err != nil {
		return fmt.Errorf("create manifest file: %w", err)
	}

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(manifest); err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	return nil
}

// countingWriter records how many bytes reach the pipe so the catalog
// can store the archive size; the streaming upload never reports one.
type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}
