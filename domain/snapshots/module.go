package snapshots

import (
	"log/slog"

	"go.uber.org/fx"
)

// Module provides snapshot dependencies via fx
var Module = fx.Module("snapshots",
	fx.Provide(
		NewRepository,
		NewExporter,
		NewCreator,
		provideService,
		NewHandler,
	),
	fx.Invoke(RegisterRoutes),
)

// provideService wires the concrete repository and creator into the
// service's narrower interfaces
func provideService(
	repo *Repository,
	creator *Creator,
	log *slog.Logger,
) *Service {
	return NewService(repo, creator, log)
}
