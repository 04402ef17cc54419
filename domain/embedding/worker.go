package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nexus-mind/nexus-memory/internal/config"
	"github.com/nexus-mind/nexus-memory/internal/jobs"
	"github.com/nexus-mind/nexus-memory/pkg/logger"
	"github.com/nexus-mind/nexus-memory/pkg/syshealth"
	"github.com/nexus-mind/nexus-memory/pkg/tracing"
)

// maxEncodeChars bounds the text handed to the encoder. Episode content
// itself is stored in full; only the embedding input is truncated.
const maxEncodeChars = 4000

// jobQueue is the slice of queue operations the worker needs.
type jobQueue interface {
	Claim(ctx context.Context, batchSize int) ([]jobs.ClaimedJob, error)
	MarkFailed(ctx context.Context, id uuid.UUID, retryCount int, errMsg string) error
	RecoverStale(ctx context.Context, staleThresholdMinutes int) (int, error)
}

// episodeStore is the episode access the worker needs.
type episodeStore interface {
	EpisodeContent(ctx context.Context, id uuid.UUID) (string, bool, error)
	StoreEmbedding(ctx context.Context, jobID, episodeID uuid.UUID, vec []float32, version string) error
}

// textEncoder produces vectors for episode content.
type textEncoder interface {
	Encode(ctx context.Context, text string) ([]float32, error)
	Version() string
}

// Worker drains the embedding job queue. The polling loop, shutdown and
// batch metrics come from the generic jobs.Worker; this type adds the
// claim/encode/store pipeline and health-adaptive concurrency.
type Worker struct {
	queue  jobQueue
	repo   episodeStore
	enc    textEncoder
	cfg    config.WorkerConfig
	log    *slog.Logger
	scaler *syshealth.ConcurrencyScaler
	loop   *jobs.Worker
}

// NewWorker creates a new embedding worker. scaler may be nil, in which
// case the static WORKER_CONCURRENCY applies.
func NewWorker(
	queue jobQueue,
	repo episodeStore,
	enc textEncoder,
	cfg config.WorkerConfig,
	log *slog.Logger,
	scaler *syshealth.ConcurrencyScaler,
) *Worker {
	w := &Worker{
		queue:  queue,
		repo:   repo,
		enc:    enc,
		cfg:    cfg,
		log:    log.With(logger.Scope("embedding.worker")),
		scaler: scaler,
	}

	w.loop = jobs.NewWorker(jobs.WorkerConfig{
		Name:                  "embedding",
		PollInterval:          cfg.PollInterval(),
		BatchSize:             cfg.BatchSize,
		StaleThresholdMinutes: cfg.StaleThresholdMin,
		RecoverStaleOnStart:   true,
	}, log, w.processBatch)

	return w
}

// Start begins the worker's polling loop
func (w *Worker) Start(ctx context.Context) error {
	if !w.cfg.Enabled {
		w.log.Info("embedding worker not started (WORKER_ENABLED=false)")
		return nil
	}

	// Recover stale jobs on startup
	go w.recoverStaleOnStartup(ctx)

	return w.loop.Start(ctx)
}

// Stop gracefully stops the worker, waiting for the current batch to complete
func (w *Worker) Stop(ctx context.Context) error {
	return w.loop.Stop(ctx)
}

// IsRunning returns whether the worker is currently running
func (w *Worker) IsRunning() bool {
	return w.loop.IsRunning()
}

// Metrics returns current worker metrics
func (w *Worker) Metrics() jobs.WorkerMetrics {
	return w.loop.Metrics()
}

// recoverStaleOnStartup requeues jobs a previous process left in processing
func (w *Worker) recoverStaleOnStartup(ctx context.Context) {
	recovered, err := w.queue.RecoverStale(ctx, w.cfg.StaleThresholdMin)
	if err != nil {
		w.log.Warn("failed to recover stale jobs on startup",
			slog.String("error", err.Error()))
		return
	}
	if recovered > 0 {
		w.log.Info("recovered stale embedding jobs on startup",
			slog.Int("count", recovered))
	}
}

// processBatch claims and processes one batch. A claim error is returned to
// the loop so it backs off while the queue is unreachable; per-job failures
// are absorbed into job state transitions.
func (w *Worker) processBatch(ctx context.Context) error {
	claimed, err := w.queue.Claim(ctx, w.cfg.BatchSize)
	if err != nil {
		return err
	}

	if len(claimed) == 0 {
		return nil
	}

	concurrency := w.cfg.Concurrency
	if w.scaler != nil {
		concurrency = w.scaler.GetConcurrency(w.cfg.Concurrency)
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for _, job := range claimed {
		sem <- struct{}{}
		wg.Add(1)
		go func(j jobs.ClaimedJob) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := w.processJob(ctx, j); err != nil {
				w.log.Warn("process job failed",
					slog.String("job_id", j.ID.String()),
					slog.String("episode_id", j.EntityID.String()),
					slog.Int("retry_count", j.RetryCount),
					slog.String("error", err.Error()))
			}
		}(job)
	}
	wg.Wait()

	return nil
}

// processJob embeds a single episode
func (w *Worker) processJob(ctx context.Context, job jobs.ClaimedJob) error {
	ctx, span := tracing.Start(ctx, "embedding.encode_episode",
		attribute.String("memory.job.id", job.ID.String()),
		attribute.String("memory.episode.id", job.EntityID.String()),
	)
	defer span.End()

	startTime := time.Now()

	content, found, err := w.repo.EpisodeContent(ctx, job.EntityID)
	if err != nil {
		return w.fail(ctx, job, fmt.Errorf("fetch episode: %w", err))
	}
	if !found {
		return w.fail(ctx, job, fmt.Errorf("episode not found: %s", job.EntityID))
	}

	text := truncateForEncoding(content)

	encodeStart := time.Now()
	vec, err := w.enc.Encode(ctx, text)
	encodeDurationMs := time.Since(encodeStart).Milliseconds()
	if err != nil {
		return w.fail(ctx, job, fmt.Errorf("encode: %w", err))
	}
	if len(vec) == 0 {
		return w.fail(ctx, job, fmt.Errorf("encoder returned empty vector"))
	}

	if err := w.repo.StoreEmbedding(ctx, job.ID, job.EntityID, vec, w.enc.Version()); err != nil {
		return w.fail(ctx, job, fmt.Errorf("store embedding: %w", err))
	}

	JobsProcessed.Inc()
	w.loop.IncrementSuccess()

	w.log.Debug("embedded episode",
		slog.String("episode_id", job.EntityID.String()),
		slog.Int("dimensions", len(vec)),
		slog.Int("text_length", len(text)),
		slog.Int64("encode_duration_ms", encodeDurationMs),
		slog.Int64("total_duration_ms", time.Since(startTime).Milliseconds()))

	return nil
}

// fail records a job failure and hands the job back to the queue, which
// decides between another attempt and the dead state.
func (w *Worker) fail(ctx context.Context, job jobs.ClaimedJob, cause error) error {
	span := trace.SpanFromContext(ctx)
	span.RecordError(cause)
	span.SetStatus(codes.Error, cause.Error())

	JobsFailed.Inc()
	if job.RetryCount >= w.cfg.MaxRetries {
		JobsDead.Inc()
	}

	if markErr := w.queue.MarkFailed(ctx, job.ID, job.RetryCount, cause.Error()); markErr != nil {
		w.log.Error("failed to mark job as failed",
			slog.String("job_id", job.ID.String()),
			slog.String("error", markErr.Error()))
	}
	w.loop.IncrementFailure()

	return cause
}

// truncateForEncoding caps encoder input at maxEncodeChars characters
func truncateForEncoding(content string) string {
	runes := []rune(content)
	if len(runes) <= maxEncodeChars {
		return content
	}
	return string(runes[:maxEncodeChars])
}
