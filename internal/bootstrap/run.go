package bootstrap

import (
	"context"
	"time"

	"squash-booking-bot/internal/config"
	"squash-booking-bot/internal/console"
	"squash-booking-bot/internal/health"
	"squash-booking-bot/internal/session"
	"squash-booking-bot/internal/telegram"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const sweepInterval = time.Minute

func runBot(
	lc fx.Lifecycle,
	conf *config.Config,
	logger *zap.Logger,
	_ *sdktrace.TracerProvider,
	registry *session.Registry,
	poller *telegram.Poller,
	consoleInterface *console.Interface,
	healthServer *health.Server,
) {
	appCtx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("Starting squash booking bot...")

			healthServer.Start()

			if conf.BotConfig.TelegramToken != "" {
				if err := poller.Start(appCtx); err != nil {
					logger.Error("Failed to start telegram poller", zap.Error(err))
					cancel()

					return err
				}
			} else {
				logger.Info("No telegram token configured, serving local console session")

				go func() {
					if err := consoleInterface.Start(appCtx); err != nil {
						logger.Error("Console interface error", zap.Error(err))
					}
				}()
			}

			go sweepLoop(appCtx, registry)

			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Shutting down squash booking bot...")

			cancel()

			if conf.BotConfig.TelegramToken != "" {
				poller.Stop()
			} else {
				consoleInterface.Stop()
			}

			// Every session still holding a browser is torn down here.
			registry.Drain(ctx)

			if err := healthServer.Stop(ctx); err != nil {
				logger.Error("Failed to stop health server", zap.Error(err))
			}

			return nil
		},
	})
}

func sweepLoop(ctx context.Context, registry *session.Registry) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			registry.Sweep(ctx)
		}
	}
}
