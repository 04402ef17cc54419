package encoder

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/nexus-mind/nexus-memory/internal/config"
	"github.com/nexus-mind/nexus-memory/pkg/encoder/remote"
	"github.com/nexus-mind/nexus-memory/pkg/logger"
)

// Module provides the encoder fx.Module
var Module = fx.Module("encoder",
	fx.Provide(NewService),
)

// Service provides embedding generation with automatic client selection
type Service struct {
	client  Client
	version string
	dim     int
	log     *slog.Logger
	remote  bool
}

// NewLocalService creates a service backed by the built-in encoder (for testing)
func NewLocalService(log *slog.Logger) *Service {
	return &Service{
		client:  NewLocalClient(Dimension),
		version: "local-hash@v1",
		dim:     Dimension,
		log:     log,
	}
}

// NewService creates a new encoder service. The built-in deterministic
// encoder is always available; a remote encoder replaces it on startup
// when ENCODER_URL is configured.
func NewService(lc fx.Lifecycle, cfg *config.Config, log *slog.Logger) *Service {
	encCfg := cfg.Encoder
	log = log.With(logger.Scope("encoder"))

	svc := &Service{
		client:  NewLocalClient(encCfg.Dimension),
		version: encCfg.Version,
		dim:     encCfg.Dimension,
		log:     log,
	}

	if !encCfg.UseRemote() {
		log.Info("using built-in deterministic encoder",
			slog.String("version", encCfg.Version),
			slog.Int("dimension", encCfg.Dimension),
		)
		return svc
	}

	// Initialize remote client on startup
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			opts := []remote.ClientOption{
				remote.WithLogger(log),
				remote.WithMaxRetries(encCfg.MaxRetries),
				remote.WithMaxConcurrent(encCfg.MaxConcurrent),
			}
			if encCfg.RPM > 0 {
				opts = append(opts, remote.WithRateLimit(encCfg.RPM))
			}

			client, err := remote.NewClient(remote.Config{
				BaseURL: encCfg.URL,
				Model:   encCfg.Version,
				Timeout: encCfg.Timeout,
			}, opts...)
			if err != nil {
				log.Error("failed to initialize remote encoder, keeping built-in",
					logger.Error(err),
				)
				// Keep local client
				return nil // Don't fail startup
			}

			svc.client = client
			svc.remote = true
			log.Info("remote encoder initialized",
				slog.String("url", encCfg.URL),
				slog.String("version", encCfg.Version),
			)
			return nil
		},
	})

	return svc
}

// IsRemote returns true when a remote encoder is in use
func (s *Service) IsRemote() bool {
	return s.remote
}

// Version returns the encoder version tag written alongside embeddings
func (s *Service) Version() string {
	return s.version
}

// Dimension returns the vector dimension this service produces
func (s *Service) Dimension() int {
	return s.dim
}

// Encode generates an embedding for a single text
func (s *Service) Encode(ctx context.Context, text string) ([]float32, error) {
	return s.client.Encode(ctx, text)
}

// EncodeBatch generates embeddings for multiple texts
func (s *Service) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return s.client.EncodeBatch(ctx, texts)
}
