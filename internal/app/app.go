package app

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sitetest/internal/common"
	"github.com/ternarybob/sitetest/internal/handlers"
	"github.com/ternarybob/sitetest/internal/interfaces"
	"github.com/ternarybob/sitetest/internal/reports"
	"github.com/ternarybob/sitetest/internal/runner"
	"github.com/ternarybob/sitetest/internal/services/automation"
	"github.com/ternarybob/sitetest/internal/services/browserbase"
	"github.com/ternarybob/sitetest/internal/services/decision"
	"github.com/ternarybob/sitetest/internal/services/watchdog"
	"github.com/ternarybob/sitetest/internal/storage"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	StorageManager interfaces.StorageManager

	// Domain services
	SessionProvider interfaces.SessionProvider
	DecisionService interfaces.DecisionService
	ReportBuilder   *reports.Builder
	Runner          *runner.Service
	Watchdog        *watchdog.Watchdog

	// HTTP handlers
	APIHandler  *handlers.APIHandler
	TestHandler *handlers.TestHandler
	WSHandler   *handlers.WebSocketHandler
	PageHandler *handlers.PageHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	storageManager, err := storage.NewManager(&cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	app.StorageManager = storageManager

	app.SessionProvider, err = browserbase.NewClient(&cfg.Browserbase, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize session provider: %w", err)
	}

	app.DecisionService, err = decision.NewDecisionService(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize decision service: %w", err)
	}

	app.ReportBuilder = reports.NewBuilder(storageManager.Reports(), app.SessionProvider, logger)

	// WebSocket handler doubles as the runner's progress publisher
	app.WSHandler = handlers.NewWebSocketHandler(logger)

	app.Runner = runner.NewService(
		cfg,
		logger,
		storageManager,
		app.SessionProvider,
		app.DecisionService,
		automation.NewFactory(&cfg.Runner, logger),
		app.ReportBuilder,
		app.WSHandler,
	)

	app.Watchdog = watchdog.New(&cfg.Watchdog, storageManager.Runs(), logger)
	if err := app.Watchdog.Start(); err != nil {
		return nil, fmt.Errorf("failed to start watchdog: %w", err)
	}

	app.APIHandler = handlers.NewAPIHandler()
	app.TestHandler = handlers.NewTestHandler(app.Runner, logger)
	app.PageHandler = handlers.NewPageHandler(logger)

	logger.Info().
		Str("llm_provider", cfg.LLM.Provider).
		Str("protocol", cfg.Runner.Protocol).
		Int("queue_limit", cfg.Runner.QueueLimit).
		Msg("Application initialized")

	return app, nil
}

// Close releases application resources
func (a *App) Close() error {
	if a.Watchdog != nil {
		a.Watchdog.Stop()
	}
	if a.DecisionService != nil {
		if err := a.DecisionService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close decision service")
		}
	}
	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
	}
	return nil
}
