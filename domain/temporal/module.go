package temporal

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/nexus-mind/nexus-memory/domain/episodes"
)

// Module provides temporal reasoning dependencies via fx
var Module = fx.Module("temporal",
	fx.Provide(
		NewRepository,
		provideService,
		NewHandler,
	),
	fx.Invoke(RegisterRoutes),
)

// provideService wires the concrete episode repository and ingestion
// service into the temporal service
func provideService(
	repo *Repository,
	episodesRepo *episodes.Repository,
	episodesSvc *episodes.Service,
	log *slog.Logger,
) *Service {
	return NewService(repo, episodesRepo, episodesSvc, log)
}
