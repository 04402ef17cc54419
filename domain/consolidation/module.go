package consolidation

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/nexus-mind/nexus-memory/internal/cache"
	"github.com/nexus-mind/nexus-memory/internal/config"
)

// Module provides consolidation dependencies via fx
var Module = fx.Module("consolidation",
	fx.Provide(
		NewRepository,
		provideService,
		NewHandler,
	),
	fx.Invoke(RegisterRoutes),
)

// provideService builds the engine from the loaded tuning and wires the
// concrete cache into the service
func provideService(
	repo *Repository,
	cfg *config.Config,
	cacheSvc *cache.Service,
	log *slog.Logger,
) *Service {
	return NewService(repo, NewEngine(cfg.Tuning.Consolidation), cacheSvc, log)
}
