package facts

import (
	"go.uber.org/fx"
)

// Module provides fact dependencies via fx
var Module = fx.Module("facts",
	fx.Provide(
		NewRepository,
		NewService,
		NewHandler,
	),
	fx.Invoke(RegisterRoutes),
)
