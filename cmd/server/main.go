// Package main provides the entry point for the nexus-memory server,
// a long-term episodic memory service backed by Postgres and pgvector.
package main

import (
	"log/slog"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/nexus-mind/nexus-memory/domain/consolidation"
	"github.com/nexus-mind/nexus-memory/domain/decay"
	"github.com/nexus-mind/nexus-memory/domain/embedding"
	"github.com/nexus-mind/nexus-memory/domain/episodes"
	"github.com/nexus-mind/nexus-memory/domain/facts"
	"github.com/nexus-mind/nexus-memory/domain/health"
	"github.com/nexus-mind/nexus-memory/domain/scheduler"
	"github.com/nexus-mind/nexus-memory/domain/search"
	"github.com/nexus-mind/nexus-memory/domain/snapshots"
	"github.com/nexus-mind/nexus-memory/domain/temporal"
	"github.com/nexus-mind/nexus-memory/domain/tracing"
	"github.com/nexus-mind/nexus-memory/internal/cache"
	"github.com/nexus-mind/nexus-memory/internal/config"
	"github.com/nexus-mind/nexus-memory/internal/database"
	"github.com/nexus-mind/nexus-memory/internal/migrate"
	"github.com/nexus-mind/nexus-memory/internal/server"
	"github.com/nexus-mind/nexus-memory/internal/storage"
	"github.com/nexus-mind/nexus-memory/pkg/encoder"
	"github.com/nexus-mind/nexus-memory/pkg/logger"
	"github.com/nexus-mind/nexus-memory/pkg/syshealth"
)

func main() {
	// Load .env files if present (for local development)
	// Order matters: .env.local overrides .env
	// Note: Load() won't overwrite existing vars, Overload() will
	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local") // Overload ensures local values take precedence

	fx.New(
		// Logging
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log}
		}),

		// Infrastructure modules. fx runs OnStart hooks in registration
		// order, so migrate stays ahead of everything that touches the schema.
		logger.Module,
		config.Module,
		database.Module,
		migrate.Module,
		cache.Module,
		storage.Module,

		// Embedding encoder (remote service when ENCODER_URL is set,
		// built-in deterministic encoder otherwise)
		encoder.Module,

		// System load monitor (drives embedding worker concurrency)
		syshealth.Module,

		// HTTP server
		server.Module,

		// OpenTelemetry tracing (no-op without an OTLP endpoint)
		tracing.Module,

		// Domain modules
		health.Module,
		episodes.Module,
		embedding.Module,
		search.Module,
		temporal.Module,
		facts.Module,
		decay.Module,
		consolidation.Module,
		snapshots.Module,

		// Scheduler module (cron-based maintenance tasks)
		scheduler.Module,
	).Run()
}
