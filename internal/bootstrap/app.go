package bootstrap

import (
	"time"

	"squash-booking-bot/internal/browser"
	"squash-booking-bot/internal/config"
	"squash-booking-bot/internal/console"
	"squash-booking-bot/internal/health"
	"squash-booking-bot/internal/ports"
	"squash-booking-bot/internal/session"
	"squash-booking-bot/internal/telegram"

	"go.uber.org/fx"
)

func NewApp() *fx.App {
	return fx.New(
		fx.Provide(
			config.GetConfig,
			newLogger,
			newTraceProvider,

			fx.Annotate(browser.NewFactory, fx.As(new(ports.EngineFactory))),

			session.NewRegistry,
			telegram.NewPoller,
			console.NewInterface,
			health.NewServer,
		),

		fx.Invoke(
			runBot,
		),

		fx.StartTimeout(10*time.Second),
	)
}
