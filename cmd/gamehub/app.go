package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	"github.com/vovakirdan/gamehub/internal/browser"
	"github.com/vovakirdan/gamehub/internal/config"
	"github.com/vovakirdan/gamehub/internal/gameai"
	"github.com/vovakirdan/gamehub/internal/games/simpletest"
	"github.com/vovakirdan/gamehub/internal/games/snake"
	"github.com/vovakirdan/gamehub/internal/games/t2048"
	"github.com/vovakirdan/gamehub/internal/manager"
	"github.com/vovakirdan/gamehub/internal/registry"
	"github.com/vovakirdan/gamehub/internal/storage"
)

// app bundles the components shared by the subcommands.
type app struct {
	cfg    config.Config
	logger *log.Logger
	store  *storage.Store
	ai     *gameai.AI
	engine *browser.Engine
	reg    *registry.Registry
}

// loadConfig applies the global flags on top of the loaded configuration.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return cfg, err
	}
	if flagDBPath != "" {
		cfg.Storage.DBPath = flagDBPath
	}
	if flagLogLevel != "" {
		cfg.Logging.Level = flagLogLevel
	}
	if flagNoAI {
		cfg.AI.Enabled = false
	}
	return cfg, nil
}

func newLogger(cfg config.LoggingConfig) *log.Logger {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		level = log.InfoLevel
	}
	return log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          cfg.Prefix,
		Level:           level,
	})
}

func newRegistry() *registry.Registry {
	reg := registry.New()
	reg.MustRegister(simpletest.Definition())
	reg.MustRegister(t2048.Definition())
	reg.MustRegister(snake.Definition())
	return reg
}

// newApp wires storage, the AI and optionally the browser engine.
func newApp(withBrowser bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg.Logging)

	a := &app{cfg: cfg, logger: logger, reg: newRegistry()}

	store, err := storage.Open(cfg.Storage.DBPath)
	if err != nil {
		// Continue without storage
		logger.Warn("could not open database", "path", cfg.Storage.DBPath, "error", err)
	} else {
		a.store = store
	}

	if cfg.AI.Enabled {
		a.ai = gameai.New(cfg.AI, a.modelStore(), logger)
	}

	if withBrowser && cfg.Browser.Enabled {
		a.engine = browser.NewEngine(browser.PlaywrightLauncher{
			Headless:       cfg.Browser.Headless,
			Install:        cfg.Browser.Install,
			ViewportWidth:  cfg.Browser.Viewport.Width,
			ViewportHeight: cfg.Browser.Viewport.Height,
			Timeout:        cfg.Browser.Timeout,
		}, logger)
	}
	return a, nil
}

func (a *app) modelStore() gameai.ModelStore {
	switch a.cfg.AI.Persistence {
	case "sqlite":
		if a.store != nil {
			return a.store
		}
		a.logger.Warn("ai.persistence is sqlite but the database is unavailable, models will not persist")
		return gameai.NewMemoryStore()
	case "none":
		return gameai.NewMemoryStore()
	default:
		return gameai.NewFileStore(config.ExpandHome(a.cfg.AI.ModelDir))
	}
}

// manager builds a session manager over the app's components.
func (a *app) manager() *manager.Manager {
	deps := manager.Deps{
		Registry: a.reg,
		AI:       a.ai,
		Engine:   a.engine,
		Logger:   a.logger,
	}
	// A nil *Store must not become a non-nil SummarySaver.
	if a.store != nil {
		deps.Summaries = a.store
	}
	return manager.New(a.cfg, deps)
}

func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("closing database", "error", err)
		}
	}
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
