package search

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/nexus-mind/nexus-memory/domain/episodes"
	"github.com/nexus-mind/nexus-memory/domain/facts"
	"github.com/nexus-mind/nexus-memory/pkg/encoder"
)

// Module provides search dependencies via fx
var Module = fx.Module("search",
	fx.Provide(
		NewRepository,
		provideService,
		NewHandler,
	),
	fx.Invoke(RegisterRoutes),
)

// provideService wires the concrete repositories and services into the
// search service
func provideService(
	repo *Repository,
	episodesRepo *episodes.Repository,
	factsSvc *facts.Service,
	enc *encoder.Service,
	log *slog.Logger,
) *Service {
	return NewService(repo, episodesRepo, factsSvc, enc, log)
}
