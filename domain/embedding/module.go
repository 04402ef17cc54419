package embedding

import (
	"context"
	"log/slog"

	"github.com/uptrace/bun"
	"go.uber.org/fx"

	"github.com/nexus-mind/nexus-memory/internal/config"
	"github.com/nexus-mind/nexus-memory/internal/jobs"
	"github.com/nexus-mind/nexus-memory/pkg/encoder"
	"github.com/nexus-mind/nexus-memory/pkg/logger"
	"github.com/nexus-mind/nexus-memory/pkg/syshealth"
)

// Module provides the embedding pipeline: the queue over
// queue.embedding_jobs and the worker pool that drains it. The queue is
// exported to the rest of the app for stats and stale-job recovery.
var Module = fx.Module("embedding",
	fx.Provide(
		NewRepository,
		provideQueue,
		provideScaler,
		provideWorker,
	),
	fx.Invoke(RegisterWorkerLifecycle),
)

// provideQueue creates the embedding job queue over the shared table
func provideQueue(db bun.IDB, cfg *config.Config, log *slog.Logger) *jobs.Queue {
	return jobs.NewQueue(db, jobs.QueueConfig{
		TableName:      "queue.embedding_jobs",
		EntityIDColumn: "episode_id",
		MaxRetries:     cfg.Worker.MaxRetries,
		BatchSize:      cfg.Worker.BatchSize,
	}, log.With(logger.Scope("embedding.queue")))
}

// provideScaler creates the health-adaptive concurrency scaler for the worker
func provideScaler(monitor syshealth.Monitor, cfg *config.Config) *syshealth.ConcurrencyScaler {
	return syshealth.NewConcurrencyScaler(monitor, "embedding", cfg.Worker.Adaptive, 1, cfg.Worker.Concurrency)
}

// provideWorker creates the embedding worker with fx
func provideWorker(
	queue *jobs.Queue,
	repo *Repository,
	enc *encoder.Service,
	cfg *config.Config,
	log *slog.Logger,
	scaler *syshealth.ConcurrencyScaler,
) *Worker {
	return NewWorker(queue, repo, enc, cfg.Worker, log, scaler)
}

// RegisterWorkerLifecycle registers the worker with fx lifecycle
func RegisterWorkerLifecycle(lc fx.Lifecycle, worker *Worker) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			// Use context.Background() - fx lifecycle context has a 15s timeout
			return worker.Start(context.Background())
		},
		OnStop: func(ctx context.Context) error {
			return worker.Stop(ctx)
		},
	})
}
