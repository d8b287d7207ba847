// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands implements kiln's subcommands: thin wrappers around
// internal/planner and internal/executor, grounded on the teacher's
// convention of a shared per-invocation context (cmd/bureau/cli's
// machine_context.go) that opens state once and is threaded through to
// each command's Run function.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kiln-pm/kiln/internal/chooser"
	"github.com/kiln-pm/kiln/internal/store"
	"github.com/kiln-pm/kiln/lib/config"
)

// App bundles the state every subcommand needs: the loaded
// configuration, the store scope the command operates against, and a
// logger. Opened once in main and passed to each command constructor.
type App struct {
	Config  *config.Config
	Scope   store.Client
	Logger  *slog.Logger
	Chooser chooser.Strategy
}

// NewApp loads configuration via config.LoadFile when configPath is set
// (main extracts it from the --config flag before dispatch), else via
// config.Load (KILN_CONFIG). It opens the SQLite reference store for the
// system scope and, when the configured scope is user, for the user
// scope too, wiring the system scope into the user scope's cross-scope
// check.
func NewApp(configPath string) (*App, error) {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsurePaths(); err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	system, err := store.OpenSQLiteScope(store.SQLiteScopeConfig{
		Path:   filepath.Join(cfg.Paths.SystemRoot, "kiln.db"),
		IsUser: false,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("opening system scope: %w", err)
	}

	var active *store.SQLiteScope = system
	if cfg.Scope == config.ScopeUser {
		user, err := store.OpenSQLiteScope(store.SQLiteScopeConfig{
			Path:   filepath.Join(cfg.Paths.Root, "kiln.db"),
			IsUser: true,
			System: system,
			Logger: logger,
		})
		if err != nil {
			return nil, fmt.Errorf("opening user scope: %w", err)
		}
		active = user
	}

	// The reference store requires remotes to be registered explicitly
	// (its GetRemoteDisabled reads only the remotes table that
	// RegisterRemote fills) — a production backend
	// would derive this from fetched remote summaries instead.
	for _, remote := range cfg.Remotes {
		if err := active.RegisterRemote(context.Background(), remote.Name, remote.Disabled); err != nil {
			return nil, fmt.Errorf("registering remote %s: %w", remote.Name, err)
		}
	}

	return &App{Config: cfg, Scope: active, Logger: logger, Chooser: chooser.NewInteractive()}, nil
}
