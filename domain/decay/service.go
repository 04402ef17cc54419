package decay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nexus-mind/nexus-memory/internal/config"
	"github.com/nexus-mind/nexus-memory/pkg/apperror"
	"github.com/nexus-mind/nexus-memory/pkg/logger"
)

const (
	defaultAnalyzeLimit = 1000
	defaultThreshold    = 0.2
	defaultMinAgeDays   = 30
	defaultMaxPrune     = 100

	// recentAccessDays protects anything read back this recently.
	recentAccessDays = 7

	previewLength = 80
)

// protectedTags always shield an episode from pruning.
var protectedTags = map[string]bool{
	"milestone":     true,
	"critical":      true,
	"protected":     true,
	"consciousness": true,
}

// bandLabels name the five analysis buckets, ascending.
var bandLabels = [5]string{"0.0-0.2", "0.2-0.4", "0.4-0.6", "0.6-0.8", "0.8-1.0"}

// candidateStore is the repository surface the service needs.
type candidateStore interface {
	AnalyzeBands(ctx context.Context, limit, minAgeDays int) (*BandCounts, error)
	LowestScored(ctx context.Context, limit int) ([]*CandidateRow, error)
}

// Service answers decay analysis and the gated pruning workflow.
type Service struct {
	repo  candidateStore
	model Model
	log   *slog.Logger

	// now is swappable so protection rules are testable.
	now func() time.Time
}

// NewService creates a new decay service
func NewService(repo candidateStore, cfg *config.Config, log *slog.Logger) *Service {
	return &Service{
		repo:  repo,
		model: NewModel(cfg.Tuning.Decay),
		log:   log.With(logger.Scope("decay")),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Analyze buckets a sample of episodes into decay-score bands.
func (s *Service) Analyze(ctx context.Context, req *AnalyzeRequest) (*AnalyzeResponse, error) {
	limit := req.Limit
	if limit == 0 {
		limit = defaultAnalyzeLimit
	}
	if limit < 1 {
		return nil, apperror.ErrValidation.WithMessage("limit must be positive")
	}
	if req.MinAgeDays < 0 {
		return nil, apperror.ErrValidation.WithMessage("min_age_days must not be negative")
	}

	counts, err := s.repo.AnalyzeBands(ctx, limit, req.MinAgeDays)
	if err != nil {
		return nil, err
	}

	bands := make(map[string]int, len(bandLabels))
	for i, label := range bandLabels {
		bands[label] = counts.Bands[i]
	}

	s.log.Info("decay analysis served",
		slog.Int("analyzed", counts.Analyzed),
		slog.Int("min_age_days", req.MinAgeDays))

	return &AnalyzeResponse{
		Success:    true,
		Analyzed:   counts.Analyzed,
		MinAgeDays: req.MinAgeDays,
		Bands:      bands,
		VeryLow:    counts.Bands[0],
		VeryHigh:   counts.VeryHigh,
	}, nil
}

// Preview lists the weakest episodes under the threshold, each
// annotated with its protection verdict. Nothing is written.
func (s *Service) Preview(ctx context.Context, req *PreviewRequest) (*PreviewResponse, error) {
	threshold, minAge, maxCount, err := pruneParams(req.MinScoreThreshold, req.MinAgeDays, req.MaxPruneCount)
	if err != nil {
		return nil, err
	}

	candidates, err := s.collectCandidates(ctx, threshold, minAge, maxCount)
	if err != nil {
		return nil, err
	}

	protected := 0
	for _, c := range candidates {
		if c.IsProtected {
			protected++
		}
	}

	return &PreviewResponse{
		Success:         true,
		Threshold:       threshold,
		MinAgeDays:      minAge,
		TotalCandidates: len(candidates),
		ProtectedCount:  protected,
		PrunableCount:   len(candidates) - protected,
		Candidates:      candidates,
	}, nil
}

// Execute counts what a prune would remove. The deletion path is
// reserved: dry_run=false fails with NotImplemented, always.
func (s *Service) Execute(ctx context.Context, req *ExecuteRequest) (*ExecuteResponse, error) {
	dryRun := true
	if req.DryRun != nil {
		dryRun = *req.DryRun
	}
	if !dryRun {
		return nil, apperror.ErrNotImplemented.WithMessage("pruning deletion is not enabled; run with dry_run=true")
	}

	threshold, minAge, maxCount, err := pruneParams(req.MinScoreThreshold, req.MinAgeDays, req.MaxPruneCount)
	if err != nil {
		return nil, err
	}

	candidates, err := s.collectCandidates(ctx, threshold, minAge, maxCount)
	if err != nil {
		return nil, err
	}

	protected := 0
	for _, c := range candidates {
		if c.IsProtected {
			protected++
		}
	}
	wouldPrune := len(candidates) - protected

	s.log.Info("pruning dry run served",
		slog.Int("would_prune", wouldPrune),
		slog.Int("protected", protected),
		slog.Float64("threshold", threshold))

	return &ExecuteResponse{
		Success:        true,
		DryRun:         true,
		WouldPrune:     wouldPrune,
		ProtectedCount: protected,
		Message:        fmt.Sprintf("dry run: %d episodes would be pruned, no writes performed", wouldPrune),
	}, nil
}

// collectCandidates rescores the procedure-ranked rows with the tuned
// model, drops rows at or above the threshold and annotates the rest.
func (s *Service) collectCandidates(ctx context.Context, threshold float64, minAge, maxCount int) ([]*PruneCandidate, error) {
	rows, err := s.repo.LowestScored(ctx, maxCount)
	if err != nil {
		return nil, err
	}

	now := s.now()
	candidates := make([]*PruneCandidate, 0, len(rows))
	for _, row := range rows {
		score := s.model.Score(row.ImportanceScore, row.CreatedAt, row.Metadata.Access(), now)
		if score >= threshold {
			continue
		}

		ageDays := int(now.Sub(row.CreatedAt).Hours() / 24)
		isProtected, reason := s.protection(row, minAge, now)

		tags := row.Tags
		if tags == nil {
			tags = []string{}
		}
		candidates = append(candidates, &PruneCandidate{
			EpisodeID:        row.ID,
			ContentPreview:   truncate(row.Content, previewLength),
			DecayScore:       score,
			ImportanceScore:  row.ImportanceScore,
			AgeDays:          ageDays,
			Tags:             tags,
			CreatedAt:        row.CreatedAt,
			IsProtected:      isProtected,
			ProtectionReason: reason,
		})
	}
	return candidates, nil
}

// protection applies the hard safety rules in order. The first rule
// that fires names the reason.
func (s *Service) protection(row *CandidateRow, minAgeDays int, now time.Time) (bool, string) {
	if row.ImportanceScore > 0.8 {
		return true, "importance above 0.8"
	}
	for _, tag := range row.Tags {
		if protectedTags[tag] {
			return true, "protected tag: " + tag
		}
	}
	if now.Sub(row.CreatedAt) < time.Duration(minAgeDays)*24*time.Hour {
		return true, fmt.Sprintf("younger than %d days", minAgeDays)
	}
	if at := row.Metadata.Access(); !at.LastAccessed.IsZero() &&
		now.Sub(at.LastAccessed) <= recentAccessDays*24*time.Hour {
		return true, "accessed within 7 days"
	}
	return false, ""
}

func pruneParams(threshold *float64, minAge, maxCount *int) (float64, int, int, error) {
	th := defaultThreshold
	if threshold != nil {
		th = *threshold
	}
	if th < 0 || th > 1 {
		return 0, 0, 0, apperror.ErrValidation.WithMessage("min_score_threshold must be between 0 and 1")
	}

	age := defaultMinAgeDays
	if minAge != nil {
		age = *minAge
	}
	if age < 0 {
		return 0, 0, 0, apperror.ErrValidation.WithMessage("min_age_days must not be negative")
	}

	count := defaultMaxPrune
	if maxCount != nil {
		count = *maxCount
	}
	if count < 1 {
		return 0, 0, 0, apperror.ErrValidation.WithMessage("max_prune_count must be positive")
	}

	return th, age, count, nil
}

// truncate cuts content to at most n runes for list previews.
func truncate(content string, n int) string {
	runes := []rune(content)
	if len(runes) <= n {
		return content
	}
	return string(runes[:n])
}
