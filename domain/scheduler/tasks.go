package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/nexus-mind/nexus-memory/domain/consolidation"
	"github.com/nexus-mind/nexus-memory/domain/snapshots"
	"github.com/nexus-mind/nexus-memory/pkg/logger"
)

// consolidator runs a consolidation pass over a day of episodes.
type consolidator interface {
	Run(ctx context.Context, req *consolidation.RunRequest) (*consolidation.Report, error)
}

// ConsolidationTask runs the nightly consolidation pass. With no target
// date set the service consolidates the previous UTC day.
type ConsolidationTask struct {
	svc consolidator
	log *slog.Logger
}

// NewConsolidationTask creates the nightly consolidation task.
func NewConsolidationTask(svc consolidator, log *slog.Logger) *ConsolidationTask {
	return &ConsolidationTask{
		svc: svc,
		log: log.With(logger.Scope("scheduler.consolidation")),
	}
}

// Run consolidates the previous day.
func (t *ConsolidationTask) Run(ctx context.Context) error {
	report, err := t.svc.Run(ctx, &consolidation.RunRequest{})
	if err != nil {
		return err
	}

	t.log.Info("nightly consolidation finished",
		slog.String("date", report.Date),
		slog.Int("episodes_processed", report.EpisodesProcessed),
		slog.Int("breakthroughs", report.BreakthroughsDetected),
		slog.Int("episodes_boosted", report.EpisodesBoosted),
		slog.Int("traces_created", report.TracesCreated),
		slog.Int64("duration_ms", report.DurationMs))

	return nil
}

// staleRecoverer resets jobs stuck in the processing state.
type staleRecoverer interface {
	RecoverStale(ctx context.Context, staleThresholdMinutes int) (int, error)
}

// StaleJobRecoveryTask requeues embedding jobs whose worker died mid-run.
// A job counts as stale once it has been processing longer than the
// configured threshold.
type StaleJobRecoveryTask struct {
	queue        staleRecoverer
	staleMinutes int
	log          *slog.Logger
}

// NewStaleJobRecoveryTask creates the stale job recovery task.
func NewStaleJobRecoveryTask(queue staleRecoverer, staleMinutes int, log *slog.Logger) *StaleJobRecoveryTask {
	return &StaleJobRecoveryTask{
		queue:        queue,
		staleMinutes: staleMinutes,
		log:          log.With(logger.Scope("scheduler.stale_jobs")),
	}
}

// Run moves stale processing jobs back to pending.
func (t *StaleJobRecoveryTask) Run(ctx context.Context) error {
	start := time.Now()

	recovered, err := t.queue.RecoverStale(ctx, t.staleMinutes)
	if err != nil {
		return err
	}

	if recovered > 0 {
		t.log.Info("recovered stale jobs",
			slog.Int("count", recovered),
			slog.Int("threshold_minutes", t.staleMinutes),
			slog.Duration("duration", time.Since(start)))
	} else {
		t.log.Debug("no stale jobs found",
			slog.Duration("duration", time.Since(start)))
	}

	return nil
}

// snapshotTaker starts a snapshot export.
type snapshotTaker interface {
	Create(ctx context.Context) (*snapshots.CreateResponse, error)
}

// SnapshotTask triggers the weekly snapshot export. The snapshot service
// builds the archive in the background; this task only starts the run.
type SnapshotTask struct {
	svc snapshotTaker
	log *slog.Logger
}

// NewSnapshotTask creates the weekly snapshot task.
func NewSnapshotTask(svc snapshotTaker, log *slog.Logger) *SnapshotTask {
	return &SnapshotTask{
		svc: svc,
		log: log.With(logger.Scope("scheduler.snapshots")),
	}
}

// Run starts a snapshot.
func (t *SnapshotTask) Run(ctx context.Context) error {
	resp, err := t.svc.Create(ctx)
	if err != nil {
		return err
	}

	t.log.Info("weekly snapshot started",
		slog.String("snapshot_id", resp.SnapshotID.String()))

	return nil
}
