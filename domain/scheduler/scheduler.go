package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nexus-mind/nexus-memory/pkg/logger"
)

// taskTimeout bounds a single task run. Nightly consolidation over a large
// day of episodes is the slowest task; anything past this is stuck.
const taskTimeout = 30 * time.Minute

// TaskFunc is the function signature for scheduled tasks.
type TaskFunc func(ctx context.Context) error

type taskEntry struct {
	id       cron.EntryID
	schedule string
}

// Scheduler runs recurring maintenance tasks on cron schedules.
// Expressions use six fields (with seconds) or the @every directive.
type Scheduler struct {
	cron    *cron.Cron
	log     *slog.Logger
	tasks   map[string]taskEntry
	mu      sync.RWMutex
	running bool
}

// NewScheduler creates a stopped scheduler with no tasks.
func NewScheduler(log *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:  cron.New(cron.WithSeconds()),
		log:   log.With(logger.Scope("scheduler")),
		tasks: make(map[string]taskEntry),
	}
}

// Start begins executing registered tasks.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	s.cron.Start()
	s.running = true
	s.log.Info("scheduler started", slog.Int("tasks", len(s.tasks)))

	return nil
}

// Stop halts the scheduler, waiting for in-flight tasks until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
		s.log.Info("scheduler stopped")
	case <-ctx.Done():
		s.log.Warn("scheduler stop timeout, tasks still in flight")
	}

	s.running = false
	return nil
}

// AddTask registers a task under a unique name. The schedule is a six-field
// cron expression ("second minute hour day-of-month month day-of-week") or
// an @every directive. Registering an existing name replaces the old entry.
func (s *Scheduler) AddTask(name string, schedule string, task TaskFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.tasks[name]; ok {
		s.cron.Remove(entry.id)
		delete(s.tasks, name)
	}

	id, err := s.cron.AddFunc(schedule, func() {
		s.runTask(name, task)
	})
	if err != nil {
		return err
	}

	s.tasks[name] = taskEntry{id: id, schedule: schedule}
	s.log.Info("task registered",
		slog.String("name", name),
		slog.String("schedule", schedule))

	return nil
}

// RemoveTask unregisters a task. Unknown names are a no-op.
func (s *Scheduler) RemoveTask(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.tasks[name]; ok {
		s.cron.Remove(entry.id)
		delete(s.tasks, name)
		s.log.Info("task removed", slog.String("name", name))
	}
}

func (s *Scheduler) runTask(name string, task TaskFunc) {
	start := time.Now()
	s.log.Debug("task starting", slog.String("name", name))

	ctx, cancel := context.WithTimeout(context.Background(), taskTimeout)
	defer cancel()

	if err := task(ctx); err != nil {
		s.log.Error("task failed",
			slog.String("name", name),
			logger.Error(err),
			slog.Duration("duration", time.Since(start)))
		return
	}

	s.log.Debug("task completed",
		slog.String("name", name),
		slog.Duration("duration", time.Since(start)))
}

// ListTasks returns the names of all registered tasks.
func (s *Scheduler) ListTasks() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		names = append(names, name)
	}
	return names
}

// TaskInfo describes one registered task.
type TaskInfo struct {
	Name     string    `json:"name"`
	Schedule string    `json:"schedule"`
	NextRun  time.Time `json:"next_run"`
	PrevRun  time.Time `json:"prev_run,omitempty"`
}

// GetTaskInfo returns the schedule and run times of every registered task.
func (s *Scheduler) GetTaskInfo() []TaskInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var info []TaskInfo
	entries := s.cron.Entries()

	for name, task := range s.tasks {
		for _, entry := range entries {
			if entry.ID == task.id {
				info = append(info, TaskInfo{
					Name:     name,
					Schedule: task.schedule,
					NextRun:  entry.Next,
					PrevRun:  entry.Prev,
				})
				break
			}
		}
	}

	return info
}

// IsRunning reports whether the scheduler has been started.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}
