// Package app wires configuration, storage, rules, and services into a
// single initialized application core.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hmadan24/wealth-advisor/internal/clients/advisor"
	"github.com/hmadan24/wealth-advisor/internal/common"
	"github.com/hmadan24/wealth-advisor/internal/interfaces"
	"github.com/hmadan24/wealth-advisor/internal/portfolio"
	"github.com/hmadan24/wealth-advisor/internal/rules"
	"github.com/hmadan24/wealth-advisor/internal/storage"
)

// App holds all initialized services, clients, and storage.
type App struct {
	Config           *common.Config
	Logger           *common.Logger
	Storage          interfaces.StorageManager
	Rules            *rules.Store
	PortfolioService interfaces.PortfolioService
	AdvisorClient    interfaces.AdvisorClient
	StartupTime      time.Time
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// NewApp initializes configuration, storage, the rules store, and services.
// configPath may be empty, in which case the default resolution logic is used.
func NewApp(configPath string) (*App, error) {
	startupStart := time.Now()

	binDir := getBinaryDir()

	// Resolve config: provided path, WEALTH_CONFIG, binary dir, then dev fallback
	if configPath == "" {
		configPath = os.Getenv("WEALTH_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "wealth-advisor.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/wealth-advisor.toml"
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := common.NewLogger(config.Logging.Level)

	storageManager, err := storage.NewManager(logger, config.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// The rules file is required: a missing or incomplete file aborts startup
	// rather than silently evaluating with partial thresholds.
	ruleStore, err := rules.Load(config.Rules.Path)
	if err != nil {
		storageManager.Close()
		return nil, fmt.Errorf("failed to load portfolio rules: %w", err)
	}

	portfolioService := portfolio.NewService(storageManager, ruleStore, logger)

	var advisorClient interfaces.AdvisorClient
	if config.Advisor.APIKey != "" {
		client, err := advisor.NewClient(context.Background(), config.Advisor.APIKey,
			advisor.WithModel(config.Advisor.Model),
			advisor.WithLogger(logger),
		)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to initialize advisor client - AI narratives will be unavailable")
		} else {
			advisorClient = client
		}
	} else {
		logger.Info().Msg("Advisor API key not configured - AI narratives will be unavailable")
	}

	a := &App{
		Config:           config,
		Logger:           logger,
		Storage:          storageManager,
		Rules:            ruleStore,
		PortfolioService: portfolioService,
		AdvisorClient:    advisorClient,
		StartupTime:      startupStart,
	}

	logger.Info().
		Str("rules", config.Rules.Path).
		Str("db", config.Storage.Path).
		Dur("startup", time.Since(startupStart)).
		Msg("App initialized")

	return a, nil
}

// Close releases all resources held by the App.
func (a *App) Close() {
	if a.AdvisorClient != nil {
		a.AdvisorClient.Close()
		a.AdvisorClient = nil
	}
	if a.Storage != nil {
		a.Storage.Close()
		a.Storage = nil
	}
}
