// ABOUTME: Wires config, logger, local store, REST client, and playground service for commands
// ABOUTME: Resolves the endpoint (flag, saved preference, config) and the target (flags, config)

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/2389/coven-playground/internal/client"
	"github.com/2389/coven-playground/internal/config"
	"github.com/2389/coven-playground/internal/model"
	"github.com/2389/coven-playground/internal/playground"
	"github.com/2389/coven-playground/internal/render"
	"github.com/2389/coven-playground/internal/store"
)

// app holds what a command needs.
type app struct {
	configPath string
	cfg        *config.Config
	logger     *slog.Logger
	store      store.Store
	client     *client.Client
	svc        *playground.Service
	term       *render.Terminal
	endpoint   string
	// live is set while a response is being printed.
	live       *atomic.Bool
}

func newApp(ctx context.Context) (*app, error) {
	configPath := getConfigPath()
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	live := &atomic.Bool{}
	logger := setupLogger(os.Stderr, cfg.Logging, verbose, live)

	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath = filepath.Join(getDataPath(), "playground.db")
	}
	db, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	endpoint, err := resolveEndpoint(ctx, db, cfg)
	if err != nil {
		db.Close()
		return nil, err
	}

	api := client.New(endpoint,
		client.WithTimeout(cfg.HTTP.Timeout),
		client.WithLogger(logger))

	svc := playground.New(api,
		playground.WithStore(db),
		playground.WithLogger(logger),
		// Streaming runs have no overall timeout; cancellation comes from ctx.
		playground.WithDoer(&http.Client{}),
		playground.WithRefreshInterval(cfg.WorkflowState.RefreshInterval))

	logger.Debug("app ready", "config", configPath, "endpoint", endpoint, "database", dbPath)

	return &app{
		configPath: configPath,
		cfg:        cfg,
		logger:     logger,
		store:      db,
		client:     api,
		svc:        svc,
		term:       render.NewTerminal(os.Stdout, noColor),
		endpoint:   endpoint,
		live:       live,
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("closing store", "error", err)
	}
}

// resolveEndpoint picks the backend URL: --endpoint, then the saved
// preference, then the config file.
func resolveEndpoint(ctx context.Context, db store.Store, cfg *config.Config) (string, error) {
	if endpointFlag != "" {
		if err := config.ValidateEndpoint(endpointFlag); err != nil {
			return "", fmt.Errorf("invalid --endpoint: %w", err)
		}
		return endpointFlag, nil
	}
	saved, err := db.GetPreference(ctx, store.PrefEndpoint)
	switch {
	case err == nil && saved != "":
		return saved, nil
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return "", fmt.Errorf("reading saved endpoint: %w", err)
	}
	return cfg.Endpoint, nil
}

// preferredTarget returns the target named by flags, else by config, else zero.
func (a *app) preferredTarget() model.Target {
	t, err := model.ResolveTarget(agentFlag, teamFlag, workflowFlag, a.logger)
	if err == nil {
		return t
	}
	t, err = model.ResolveTarget(a.cfg.Target.Agent, a.cfg.Target.Team, a.cfg.Target.Workflow, a.logger)
	if err == nil {
		return t
	}
	return model.Target{}
}

// connect initializes the service and fails when no target is available.
func (a *app) connect(ctx context.Context) (*playground.Catalog, error) {
	cat, err := a.svc.Initialize(ctx, a.preferredTarget())
	if err != nil {
		return nil, err
	}
	if a.svc.Target().IsZero() {
		return cat, model.ErrNoTarget
	}
	return cat, nil
}

// withApp runs fn with a ready app and closes it afterwards.
func withApp(ctx context.Context, fn func(a *app) error) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
