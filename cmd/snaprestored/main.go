package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/driftsearch/snaprestore/internal/allocation"
	"github.com/driftsearch/snaprestore/internal/cluster"
	"github.com/driftsearch/snaprestore/internal/config"
	"github.com/driftsearch/snaprestore/internal/features"
	"github.com/driftsearch/snaprestore/internal/handler"
	"github.com/driftsearch/snaprestore/internal/health"
	"github.com/driftsearch/snaprestore/internal/metrics"
	"github.com/driftsearch/snaprestore/internal/model"
	"github.com/driftsearch/snaprestore/internal/repository"
	"github.com/driftsearch/snaprestore/internal/service"
	"github.com/driftsearch/snaprestore/internal/store"
	"github.com/driftsearch/snaprestore/internal/util/workerpool"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "snaprestored",
		Short: "Snapshot restore orchestration engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}
	root.Flags().StringVar(&configPath, "config", defaultConfigPath(), "path to the configuration file")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func defaultConfigPath() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}
	return "./config.yaml"
}

func run(configPath string) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("Starting snapshot restore engine")

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("Failed to load configuration", zap.Error(err))
		return err
	}
	logger.Info("Configuration loaded",
		zap.String("node_id", cfg.Node.ID),
		zap.Int("port", cfg.Server.Port),
		zap.Bool("gossip", cfg.Gossip.Enabled))

	m := metrics.NewMetrics()

	// Feature registry
	var featureRegistry *features.Registry
	if cfg.Features.RegistryPath != "" {
		featureRegistry, err = features.LoadRegistry(cfg.Features.RegistryPath)
		if err != nil {
			logger.Error("Failed to load feature registry", zap.Error(err))
			return err
		}
		logger.Info("Feature registry loaded", zap.Strings("features", featureRegistry.Names()))
	} else {
		featureRegistry = features.NewRegistry(nil)
	}

	// Stores
	var cache store.Cache
	if cfg.Redis.Enabled {
		cache, err = store.NewRedisCache(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Error("Failed to connect to Redis", zap.Error(err))
			return err
		}
		logger.Info("Redis manifest cache initialized")
	} else {
		cache = store.NewInMemoryCache(1024, logger)
		logger.Info("In-memory manifest cache initialized")
	}
	defer cache.Close()

	var history store.HistoryStore
	if cfg.Database.Enabled {
		history, err = store.NewPostgresHistoryStore(
			cfg.Database.Host,
			cfg.Database.Port,
			cfg.Database.Database,
			cfg.Database.User,
			cfg.Database.Password,
			cfg.Database.MaxConnections,
			cfg.Database.MinConnections,
			logger,
		)
		if err != nil {
			logger.Error("Failed to initialize restore history store", zap.Error(err))
			return err
		}
		logger.Info("Restore history store initialized")
		defer history.Close()
	}

	// Cluster state and membership
	initial := model.NewClusterState(cfg.Node.ID)
	initial.Nodes[cfg.Node.ID] = model.Node{
		ID:                   cfg.Node.ID,
		Name:                 cfg.Node.Name,
		FormatVersion:        cfg.Node.FormatVersion,
		MinCompatibleVersion: cfg.Node.MinCompatibleVersion,
		DataNode:             cfg.Node.DataNode,
	}
	stateService := cluster.NewStateService(initial, logger)
	defer stateService.Stop()

	membership, err := cluster.NewMembership(&cluster.MembershipConfig{
		Enabled:   cfg.Gossip.Enabled,
		BindPort:  cfg.Gossip.BindPort,
		SeedNodes: cfg.Gossip.Seeds,
	}, cfg.Node.ID, logger)
	if err != nil {
		logger.Error("Failed to initialize cluster membership", zap.Error(err))
		return err
	}
	defer membership.Shutdown()

	// Repositories and the metadata fetch pool
	fetchPool := workerpool.New(&workerpool.Config{
		Name:       "repo-fetch",
		MaxWorkers: cfg.Repositories.FetchWorkers,
		QueueSize:  cfg.Repositories.FetchQueueSize,
		Logger:     logger,
	})
	defer fetchPool.Stop()

	// Repository backends register here; deployments plug in their blob
	// store implementation of repository.Repository.
	repoService := repository.NewMemoryService()
	cachedRepos := repository.NewCachedService(repoService, cache, cfg.Repositories.CacheTTL, m, logger)

	// Services
	resolver := service.NewResolverService(cachedRepos, featureRegistry, fetchPool, cfg.Repositories.RefreshUUIDs, logger)
	allocator := allocation.NewRoundRobinAllocator(logger)
	restoreService := service.NewRestoreService(
		stateService,
		resolver,
		allocator,
		service.NewDefaultSettingsPolicy(),
		service.StaticShardLimiter{MaxShards: cfg.Restore.MaxShards},
		featureRegistry,
		m,
		logger,
	)
	tracker := service.NewProgressTracker(stateService, m, logger)
	reaper := service.NewCompletionReaper(stateService, membership, history, m, logger)
	stateService.AddApplier(reaper)
	stateService.AddApplier(newStateGauges(m))

	logger.Info("All services initialized")

	// Periodic progress flush
	flushCtx, stopFlush := context.WithCancel(context.Background())
	defer stopFlush()
	go func() {
		ticker := time.NewTicker(cfg.Restore.ProgressFlushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-flushCtx.Done():
				return
			case <-ticker.C:
				if err := tracker.Flush(flushCtx); err != nil && flushCtx.Err() == nil {
					logger.Warn("Failed to flush restore progress", zap.Error(err))
				}
			}
		}
	}()

	// Metrics server
	if cfg.Metrics.Enabled {
		go func() {
			mux := http.NewServeMux()
			mux.Handle(cfg.Metrics.Path, promhttp.Handler())
			addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
			logger.Info("Starting metrics server", zap.String("address", addr))
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Error("Metrics server failed", zap.Error(err))
			}
		}()
	}

	// Admin HTTP server
	checker := health.NewChecker(cache, history, logger)
	restoreHandler := handler.NewRestoreHandler(restoreService, history, cfg.Server.WriteTimeout, logger)
	server := handler.NewServer(cfg.Server, restoreHandler, checker, logger)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("Server error", zap.Error(err))
	case sig := <-sigChan:
		logger.Info("Received signal", zap.String("signal", sig.String()))
	}

	logger.Info("Shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Admin server shutdown failed", zap.Error(err))
	}

	logger.Info("Snapshot restore engine stopped")
	return nil
}

// stateGauges mirrors applied cluster states into Prometheus gauges
type stateGauges struct {
	metrics *metrics.Metrics
}

func newStateGauges(m *metrics.Metrics) *stateGauges {
	return &stateGauges{metrics: m}
}

func (g *stateGauges) ApplyClusterState(old, new model.ClusterState) {
	g.metrics.UpdateStateVersion(new.Version)
	g.metrics.UpdateRestoresInFlight(len(new.Restores))
}
