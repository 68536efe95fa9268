package browser

import (
	"context"
	"strings"
	"sync"

	"squash-booking-bot/internal/config"
	"squash-booking-bot/internal/ports"
	"squash-booking-bot/pkg/apperr"
	"squash-booking-bot/pkg/logg"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const factoryName = "EngineFactory"

// Factory launches a fresh browser per booking session. Driver installation
// happens once per process, on the first engine request.
type Factory struct {
	config *config.Config
	logger *zap.Logger

	installOnce sync.Once
	installErr  error
}

type FactoryParams struct {
	fx.In

	Config *config.Config
	Logger *zap.Logger
}

func NewFactory(params FactoryParams) *Factory {
	return &Factory{
		config: params.Config,
		logger: params.Logger.With(zap.String(logg.Layer, factoryName)),
	}
}

func (f *Factory) NewEngine(ctx context.Context) (engine ports.BookingEngine, err error) {
	const op = "NewEngine"
	logger := f.logger.With(zap.String(logg.Operation, op))

	f.installOnce.Do(func() {
		logger.Info("Installing browser driver")
		f.installErr = playwright.Install()
	})

	if f.installErr != nil {
		return nil, apperr.Wrap(op, apperr.CodeBrowserLaunch, f.installErr, map[string]any{
			apperr.MetaReason: "playwright_install_failed",
			apperr.MetaStage:  apperr.StageLaunch,
		})
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, f.classifyLaunchError(op, err, "playwright_start_failed")
	}

	browserOptions := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(f.config.BrowserConfig.Headless),
		SlowMo:   playwright.Float(float64(f.config.BrowserConfig.SlowMo)),
		Args: []string{
			"--no-sandbox",
			"--disable-dev-shm-usage",
			"--disable-gpu",
			"--window-size=1920,1080",
		},
	}

	browser, err := pw.Chromium.Launch(browserOptions)
	if err != nil {
		_ = pw.Stop()

		return nil, f.classifyLaunchError(op, err, "browser_launch_failed")
	}

	contextOptions := playwright.BrowserNewContextOptions{
		Viewport:          &playwright.Size{Width: 1920, Height: 1080},
		UserAgent:         playwright.String("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"),
		JavaScriptEnabled: playwright.Bool(true),
	}

	browserContext, err := browser.NewContext(contextOptions)
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()

		return nil, f.classifyLaunchError(op, err, "context_create_failed")
	}

	page, err := browserContext.NewPage()
	if err != nil {
		_ = browserContext.Close()
		_ = browser.Close()
		_ = pw.Stop()

		return nil, f.classifyLaunchError(op, err, "page_create_failed")
	}

	logger.Info("Browser launched")

	return newEngine(f.config, f.logger, pw, browser, browserContext, page), nil
}

func (f *Factory) classifyLaunchError(op string, err error, reason string) error {
	code := apperr.CodeBrowserLaunch

	if strings.Contains(strings.ToLower(err.Error()), "permission denied") {
		code = apperr.CodePermission
	}

	return apperr.Wrap(op, code, err, map[string]any{
		apperr.MetaReason: reason,
		apperr.MetaStage:  apperr.StageLaunch,
	})
}
