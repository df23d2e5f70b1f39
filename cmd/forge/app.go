package main

import (
	"fmt"
	"path/filepath"

	"forge/internal/agent"
	"forge/internal/config"
	"forge/internal/logging"
	"forge/internal/provider"
	"forge/internal/thread"
	"forge/internal/tools"
	"forge/internal/workspace"
)

// app is the wired object graph shared by the commands.
type app struct {
	cfg       *config.Config
	workspace *workspace.Workspace
	store     thread.Store
	threads   *thread.Manager
}

// loadConfig reads the config and applies the global flags on top.
func loadConfig(flags *globalFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if flags.provider != "" {
		cfg.Provider.Active = flags.provider
	}
	if flags.model != "" {
		cfg.SetModel(cfg.Provider.Active, flags.model)
	}
	if flags.workspace != "" {
		cfg.Workspace = flags.workspace
	}

	level := logging.ParseLevel(cfg.Logging.Level)
	if cfg.Logging.File {
		if err := logging.EnableFileLogging(filepath.Join(config.DataDir(), "logs"), level); err != nil {
			return nil, fmt.Errorf("failed to enable file logging: %w", err)
		}
	} else {
		logging.Configure(level, nil)
	}
	return cfg, nil
}

// newApp opens the workspace and the thread store. It does not need a
// provider, so thread and edit commands work offline.
func newApp(flags *globalFlags) (*app, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}

	ws, err := workspace.New(cfg.Workspace)
	if err != nil {
		return nil, err
	}

	store, err := thread.Open(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to open thread store: %w", err)
	}

	return &app{
		cfg:       cfg,
		workspace: ws,
		store:     store,
		threads:   thread.NewManager(store),
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		logging.Warn("failed to close thread store", "error", err)
	}
	logging.Close()
}

// controller builds the providers and the agent controller.
func (a *app) controller() (*agent.Controller, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}

	primary, err := provider.New(a.cfg, "")
	if err != nil {
		return nil, err
	}

	var local provider.Provider
	if a.cfg.Agent.Fallback && !primary.Local() {
		if local, err = provider.NewLocal(a.cfg); err != nil {
			logging.Warn("local fallback unavailable", "error", err)
			local = nil
		}
	}

	env := &tools.Env{
		Workspace: a.workspace,
		Limits:    tools.LimitsFromConfig(a.cfg.Tools),
	}
	executor := tools.NewExecutor(tools.NewDefaultRegistry(env))

	opts := agent.OptionsFromConfig(a.cfg, a.workspace.Root())
	return agent.NewController(a.threads, executor, primary, local, opts), nil
}
