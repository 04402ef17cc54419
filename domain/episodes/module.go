package episodes

import (
	"go.uber.org/fx"
)

// Module provides episode dependencies via fx
var Module = fx.Module("episodes",
	fx.Provide(
		NewRepository,
		NewService,
		NewHandler,
	),
	fx.Invoke(RegisterRoutes),
)
