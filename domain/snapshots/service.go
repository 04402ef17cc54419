package snapshots

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/nexus-mind/nexus-memory/pkg/apperror"
	"github.com/nexus-mind/nexus-memory/pkg/logger"
)

// snapshotStore is the slice of the repository the service uses.
type snapshotStore interface {
	Insert(ctx context.Context, snap *Snapshot) error
	MarkReady(ctx context.Context, id uuid.UUID, episodes, traces int, size int64) error
	MarkFailed(ctx context.Context, id uuid.UUID, message string) error
	List(ctx context.Context) ([]*Snapshot, error)
	ByID(ctx context.Context, id uuid.UUID) (*Snapshot, error)
}

// archiver builds and uploads snapshot archives.
type archiver interface {
	Enabled() bool
	CreateArchive(ctx context.Context, id uuid.UUID) (*ArchiveResult, error)
}

// Service coordinates the snapshot catalog and archive creation.
type Service struct {
	repo     snapshotStore
	archiver archiver
	log      *slog.Logger
}

// NewService creates a new snapshot service
func NewService(repo snapshotStore, archiver archiver, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		archiver: archiver,
		log:      log.With(logger.Scope("snapshots.service")),
	}
}

// Enabled reports whether snapshots can be created.
func (s *Service) Enabled() bool {
	return s.archiver.Enabled()
}

// Create registers a snapshot and starts building the archive in the
// background. Callers poll the catalog for completion.
func (s *Service) Create(ctx context.Context) (*CreateResponse, error) {
	if !s.archiver.Enabled() {
		return nil, apperror.ErrStorageUnavailable.WithMessage("snapshot storage is not configured")
	}

	id := uuid.New()
	key := StorageKey(id)
	snap := &Snapshot{
		ID:         id,
		Status:     StatusCreating,
		StorageKey: &key,
	}

	if err := s.repo.Insert(ctx, snap); err != nil {
		return nil, err
	}

	// The request context ends with the HTTP response; the archive
	// keeps building after it.
	go s.execute(context.Background(), snap.ID)

	s.log.Info("snapshot accepted", slog.String("snapshot_id", snap.ID.String()))

	return &CreateResponse{
		Success:    true,
		SnapshotID: snap.ID,
		Status:     StatusCreating,
		Message:    "snapshot creation started",
	}, nil
}

func (s *Service) execute(ctx context.Context, id uuid.UUID) {
	result, err := s.archiver.CreateArchive(ctx, id)
	if err != nil {
		s.log.Error("snapshot creation failed",
			slog.String("snapshot_id", id.String()),
			logger.Error(err),
		)
		if markErr := s.repo.MarkFailed(ctx, id, err.Error()); markErr != nil {
			s.log.Error("could not record snapshot failure",
				slog.String("snapshot_id", id.String()),
				logger.Error(markErr),
			)
		}
		return
	}

	if err := s.repo.MarkReady(ctx, id, result.EpisodeCount, result.TraceCount, result.SizeBytes); err != nil {
		s.log.Error("could not finalize snapshot",
			slog.String("snapshot_id", id.String()),
			logger.Error(err),
		)
	}
}

// List returns all snapshots, newest first.
func (s *Service) List(ctx context.Context) (*ListResponse, error) {
	snaps, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	return &ListResponse{
		Success:   true,
		Count:     len(snaps),
		Snapshots: snaps,
	}, nil
}

// Get returns a single snapshot by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Snapshot, error) {
	return s.repo.ByID(ctx, id)
}
