package decay

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/nexus-mind/nexus-memory/internal/config"
)

// Module provides decay analysis dependencies via fx
var Module = fx.Module("decay",
	fx.Provide(
		NewRepository,
		provideService,
		NewHandler,
	),
	fx.Invoke(RegisterRoutes),
)

// provideService wires the concrete repository into the decay service
func provideService(repo *Repository, cfg *config.Config, log *slog.Logger) *Service {
	return NewService(repo, cfg, log)
}
