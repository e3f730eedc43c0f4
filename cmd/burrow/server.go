package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/burrow/pkg/api"
	"github.com/cuemby/burrow/pkg/auth"
	"github.com/cuemby/burrow/pkg/authz"
	"github.com/cuemby/burrow/pkg/bootstrap"
	"github.com/cuemby/burrow/pkg/config"
	"github.com/cuemby/burrow/pkg/consumers"
	"github.com/cuemby/burrow/pkg/dispatch"
	"github.com/cuemby/burrow/pkg/eventstore"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/projection"
	"github.com/cuemby/burrow/pkg/publish"
	"github.com/cuemby/burrow/pkg/schema"
	"github.com/cuemby/burrow/pkg/topics"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the broker",
	Long: `Start the HTTP API, the publish pipeline, and the per-topic delivery
dispatchers. State lives entirely under the data and config directories.`,
	RunE: runServer,
}

func init() {
	serverCmd.Flags().String("config", "", "Path to YAML config file")
	serverCmd.Flags().String("listen", "", "HTTP listen address (overrides config)")
	serverCmd.Flags().String("base-dir", "", "Base directory for data and config (overrides config)")
	serverCmd.Flags().String("data-dir", "", "Event data directory (overrides config)")
	serverCmd.Flags().String("config-dir", "", "Topic config directory (overrides config)")
	serverCmd.Flags().String("log-level", "", "Log level: debug, info, warn, error")
	serverCmd.Flags().String("admin-email", "", "Initial admin email (overrides config)")
}

func runServer(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if v, _ := cmd.Flags().GetString("listen"); v != "" {
		cfg.ListenAddr = v
	}
	if v, _ := cmd.Flags().GetString("base-dir"); v != "" {
		cfg.BaseDir = v
	}
	if v, _ := cmd.Flags().GetString("data-dir"); v != "" {
		cfg.DataDir = v
	}
	if v, _ := cmd.Flags().GetString("config-dir"); v != "" {
		cfg.ConfigDir = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}
	if v, _ := cmd.Flags().GetString("admin-email"); v != "" {
		cfg.Admin.Email = v
	}
	if err := cfg.Finalize(); err != nil {
		return err
	}

	log.Init(log.Config{Level: log.Level(cfg.LogLevel), JSONOutput: true})
	logger := log.WithComponent("server")

	// Storage layers.
	registry, err := topics.NewRegistry(cfg.ConfigDir)
	if err != nil {
		return err
	}
	store, err := eventstore.NewStore(cfg.DataDir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.ConfigDir, 0755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	consumerStore, err := consumers.NewBoltStore(cfg.ConfigDir)
	if err != nil {
		return err
	}
	defer consumerStore.Close()

	// Core services.
	validator := schema.NewValidator()
	pipeline := publish.NewPipeline(registry, store, validator)
	pipeline.SetMaxPayloadBytes(int(cfg.MaxPayloadBytes))

	dispatchers := dispatch.NewManager(store, consumerStore, dispatch.NewHTTPAdapter(), dispatch.Config{
		TickInterval: cfg.Dispatch.TickInterval,
		BatchMax:     cfg.Dispatch.BatchMax,
		Retry: dispatch.RetryPolicy{
			MaxAttempts:     cfg.Dispatch.MaxAttempts,
			InitialInterval: dispatch.DefaultRetryPolicy.InitialInterval,
			MaxInterval:     dispatch.DefaultRetryPolicy.MaxInterval,
		},
	})
	projections := projection.NewManager(store)
	pipeline.SetNudger(dispatchers)
	pipeline.SetApplier(projections)

	authn := auth.NewAuthenticator(projections)
	authn.SetSessionTTL(cfg.SessionTTL)
	engine := authz.NewEngine(projections)
	resolver := projection.NewResourceResolver(projections, registry)

	// Seed the control plane and resume persisted consumers.
	boot := bootstrap.New(registry, pipeline, projections, consumerStore, dispatchers,
		cfg.Admin.Email, cfg.Admin.Password)
	if err := boot.Run(); err != nil {
		return err
	}
	projections.Start(cfg.ReconcileInterval)

	apiServer := api.NewServer(api.Deps{
		Registry:    registry,
		Store:       store,
		Pipeline:    pipeline,
		Consumers:   consumerStore,
		Dispatchers: dispatchers,
		Projections: projections,
		Resolver:    resolver,
		Authn:       authn,
		Authz:       engine,
		Version:     Version,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := apiServer.Start(cfg.ListenAddr); err != nil {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		logger.Error().Err(err).Msg("api server failed")
	}

	// Ordered shutdown: stop taking requests, drain deliveries, halt the
	// reconciliation loop.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := apiServer.Stop(ctx); err != nil {
		logger.Error().Err(err).Msg("api shutdown error")
	}
	dispatchers.StopAll()
	projections.Stop()

	logger.Info().Msg("shutdown complete")
	return nil
}
