package syshealth

import (
	"context"
	"log/slog"

	"github.com/uptrace/bun"
	"go.uber.org/fx"
)

// Module provides the system health monitor and runs its collection loop
// for the lifetime of the app. Workers derive their concurrency from it
// through per-worker ConcurrencyScalers.
var Module = fx.Module("syshealth",
	fx.Provide(provideMonitor),
	fx.Invoke(registerMonitor),
)

func provideMonitor(db bun.IDB, log *slog.Logger) Monitor {
	return NewMonitor(DefaultConfig(), db, log)
}

func registerMonitor(lc fx.Lifecycle, m Monitor) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error { return m.Start() },
		OnStop:  func(context.Context) error { return m.Stop() },
	})
}
