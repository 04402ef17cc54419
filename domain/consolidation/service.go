package consolidation

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/nexus-mind/nexus-memory/domain/episodes"
	"github.com/nexus-mind/nexus-memory/pkg/apperror"
	"github.com/nexus-mind/nexus-memory/pkg/logger"
	"github.com/nexus-mind/nexus-memory/pkg/tracing"
)

// maxTopBreakthroughs caps the report highlight list.
const maxTopBreakthroughs = 5

// previewLength bounds content previews in the report.
const previewLength = 80

// runStore is the persistence surface the run orchestration needs.
type runStore interface {
	FetchDay(ctx context.Context, start, end time.Time) ([]*Episode, error)
	PersistRun(ctx context.Context, boosted []*Episode, traces []*Trace, stampedAt time.Time) error
	ReplaySample(ctx context.Context, params ReplayParams) ([]*ReplayRow, error)
}

// cacheInvalidator drops cached reads made stale by a run.
type cacheInvalidator interface {
	InvalidatePrefix(ctx context.Context, prefix string)
}

// Service orchestrates consolidation runs: resolve the target day,
// run the engine pipeline, persist the results and assemble the report.
type Service struct {
	repo   runStore
	engine *Engine
	cache  cacheInvalidator
	log    *slog.Logger

	now func() time.Time
}

// NewService creates a new consolidation service
func NewService(repo runStore, engine *Engine, cacheSvc cacheInvalidator, log *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		engine: engine,
		cache:  cacheSvc,
		log:    log.With(logger.Scope("consolidation")),
		now:    time.Now,
	}
}

// Run consolidates one day of episodes. An empty target date means the
// previous UTC day, which is what the nightly schedule passes. Reruns
// are safe: boosts recompute from the stored base salience and the
// metadata merge overwrites the previous run's keys.
func (s *Service) Run(ctx context.Context, req *RunRequest) (*Report, error) {
	day, err := s.resolveDay(req.TargetDate)
	if err != nil {
		return nil, err
	}
	started := s.now()

	ctx, span := tracing.Start(ctx, "consolidation.run",
		attribute.String("memory.consolidation.date", day.Format("2006-01-02")),
	)
	defer span.End()

	eps, err := s.repo.FetchDay(ctx, day, day.Add(24*time.Hour))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	breakthroughs := s.engine.DetectBreakthroughs(eps)
	chains := s.engine.TraceChains(breakthroughs, eps)
	s.engine.Consolidate(chains)
	traces := s.engine.BuildTraces(chains, started)

	var boosted []*Episode
	for _, ep := range eps {
		if ep.Boosted {
			boosted = append(boosted, ep)
		}
	}

	if len(boosted) > 0 || len(traces) > 0 {
		if err := s.repo.PersistRun(ctx, boosted, traces, started); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		s.cache.InvalidatePrefix(ctx, episodes.RecentCachePrefix)
	}

	report := &Report{
		Date:                  day.Format("2006-01-02"),
		EpisodesProcessed:     len(eps),
		BreakthroughsDetected: len(breakthroughs),
		ChainsTraced:          len(chains),
		EpisodesBoosted:       len(boosted),
		TracesCreated:         len(traces),
		ReplayedEpisodes:      s.replay(ctx, len(chains)),
		TopBreakthroughs:      topBreakthroughs(breakthroughs),
	}
	report.AvgBoost, report.MaxBoost = boostStats(boosted)
	report.DurationMs = s.now().Sub(started).Milliseconds()

	s.log.Info("consolidation run complete",
		slog.String("date", report.Date),
		slog.Int("episodes", report.EpisodesProcessed),
		slog.Int("breakthroughs", report.BreakthroughsDetected),
		slog.Int("chains", report.ChainsTraced),
		slog.Int("boosted", report.EpisodesBoosted),
		slog.Int("traces", report.TracesCreated),
		slog.Int("replayed", report.ReplayedEpisodes),
		slog.Int64("duration_ms", report.DurationMs))

	return report, nil
}

// resolveDay parses the requested date or defaults to yesterday.
func (s *Service) resolveDay(target string) (time.Time, error) {
	if target == "" {
		y := s.now().UTC().AddDate(0, 0, -1)
		return time.Date(y.Year(), y.Month(), y.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	day, err := time.Parse("2006-01-02", target)
	if err != nil {
		return time.Time{}, apperror.ErrValidation.WithMessage("target_date must use the YYYY-MM-DD format")
	}
	return day, nil
}

// replay surfaces a random sample of older consolidated episodes, the
// interleaving step that keeps strengthened memories from crowding out
// everything else. The sample is read-only; a failure here downgrades
// to zero rather than voiding the already-persisted run.
func (s *Service) replay(ctx context.Context, chains int) int {
	params := s.engine.ReplayParams(chains)
	if params.Limit <= 0 {
		return 0
	}

	rows, err := s.repo.ReplaySample(ctx, params)
	if err != nil {
		s.log.Warn("replay sample failed, continuing without replay", logger.Error(err))
		return 0
	}
	for _, row := range rows {
		s.log.Debug("replaying episode",
			slog.String("episode_id", row.ID.String()),
			slog.Time("created_at", row.CreatedAt))
	}
	return len(rows)
}

func topBreakthroughs(breakthroughs []*Episode) []TopBreakthrough {
	top := make([]TopBreakthrough, 0, maxTopBreakthroughs)
	for _, b := range breakthroughs {
		if len(top) == maxTopBreakthroughs {
			break
		}
		top = append(top, TopBreakthrough{
			EpisodeID:      b.ID,
			ContentPreview: preview(b.Content),
			Score:          b.BreakthroughScore,
		})
	}
	return top
}

// boostStats reports the realized salience gain across the boosted
// episodes, after the cap and the [0, 1] clamp.
func boostStats(boosted []*Episode) (avg, max float64) {
	if len(boosted) == 0 {
		return 0, 0
	}
	var sum float64
	for _, ep := range boosted {
		gain := ep.ConsolidatedSalience - ep.Salience
		sum += gain
		if gain > max {
			max = gain
		}
	}
	return sum / float64(len(boosted)), max
}

func preview(s string) string {
	runes := []rune(s)
	if len(runes) <= previewLength {
		return s
	}
	return string(runes[:previewLength])
}
