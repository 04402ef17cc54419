package scheduler

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/nexus-mind/nexus-memory/domain/consolidation"
	"github.com/nexus-mind/nexus-memory/domain/snapshots"
	"github.com/nexus-mind/nexus-memory/internal/config"
	"github.com/nexus-mind/nexus-memory/internal/jobs"
	"github.com/nexus-mind/nexus-memory/pkg/logger"
)

// Module provides the maintenance scheduler.
var Module = fx.Module("scheduler",
	fx.Provide(NewScheduler),
	fx.Invoke(
		RegisterTasks,
		RegisterSchedulerLifecycle,
	),
)

// TaskParams collects everything the scheduled tasks need.
type TaskParams struct {
	fx.In
	Scheduler     *Scheduler
	Consolidation *consolidation.Service
	Snapshots     *snapshots.Service
	Queue         *jobs.Queue
	Cfg           *config.Config
	Log           *slog.Logger
}

// RegisterTasks registers the recurring maintenance tasks. A task that
// fails to register is logged and skipped so one bad schedule does not
// take the rest down.
func RegisterTasks(p TaskParams) error {
	if !p.Cfg.Scheduler.Enabled {
		p.Log.Info("scheduler disabled, skipping task registration")
		return nil
	}

	consolidationTask := NewConsolidationTask(p.Consolidation, p.Log)
	if err := p.Scheduler.AddTask("consolidation.nightly",
		p.Cfg.Scheduler.ConsolidationSchedule, consolidationTask.Run); err != nil {
		p.Log.Error("could not register consolidation task", logger.Error(err))
	}

	staleTask := NewStaleJobRecoveryTask(p.Queue, p.Cfg.Worker.StaleThresholdMin, p.Log)
	if err := p.Scheduler.AddTask("jobs.recover_stale",
		p.Cfg.Scheduler.StaleRecoverySchedule, staleTask.Run); err != nil {
		p.Log.Error("could not register stale job recovery task", logger.Error(err))
	}

	if p.Snapshots.Enabled() {
		snapshotTask := NewSnapshotTask(p.Snapshots, p.Log)
		if err := p.Scheduler.AddTask("snapshots.weekly",
			p.Cfg.Scheduler.SnapshotSchedule, snapshotTask.Run); err != nil {
			p.Log.Error("could not register snapshot task", logger.Error(err))
		}
	} else {
		p.Log.Info("snapshot storage not configured, weekly snapshot task skipped")
	}

	p.Log.Info("scheduled tasks registered",
		slog.Any("tasks", p.Scheduler.ListTasks()))

	return nil
}

// RegisterSchedulerLifecycle ties the scheduler to application start and stop.
func RegisterSchedulerLifecycle(lc fx.Lifecycle, scheduler *Scheduler, cfg *config.Config) {
	if !cfg.Scheduler.Enabled {
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return scheduler.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return scheduler.Stop(ctx)
		},
	})
}
