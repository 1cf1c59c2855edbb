package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	bridgeapi "github.com/Ftotnem/SCOREBOARD-BRIDGE/bridge/api"
	"github.com/Ftotnem/SCOREBOARD-BRIDGE/bridge/service"
	"github.com/Ftotnem/SCOREBOARD-BRIDGE/bridge/session"
	"github.com/Ftotnem/SCOREBOARD-BRIDGE/bridge/store"
	"github.com/Ftotnem/SCOREBOARD-BRIDGE/bridge/stream"
	"github.com/Ftotnem/SCOREBOARD-BRIDGE/bridge/syncer"
	"github.com/Ftotnem/SCOREBOARD-BRIDGE/bridge/translator"
	"github.com/Ftotnem/SCOREBOARD-BRIDGE/bridge/updater"
	"github.com/Ftotnem/SCOREBOARD-BRIDGE/shared/api"
	"github.com/Ftotnem/SCOREBOARD-BRIDGE/shared/cluster"
	"github.com/Ftotnem/SCOREBOARD-BRIDGE/shared/config"
	"github.com/Ftotnem/SCOREBOARD-BRIDGE/shared/logging"
	"github.com/Ftotnem/SCOREBOARD-BRIDGE/shared/metrics"
	"github.com/Ftotnem/SCOREBOARD-BRIDGE/shared/mongodb"
	redisu "github.com/Ftotnem/SCOREBOARD-BRIDGE/shared/redis"
	"github.com/Ftotnem/SCOREBOARD-BRIDGE/shared/registry"
	"github.com/Ftotnem/SCOREBOARD-BRIDGE/shared/text"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	// --- 1. Load Configuration ---
	cfg, err := config.LoadBridgeServiceConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()
	logger.Info("configuration loaded for scoreboard bridge", zap.String("listen_addr", cfg.ListenAddr))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New("", reg)

	// --- 2. Connect to Redis Cluster and MongoDB ---
	redisClient, err := redisu.NewRedisClusterClient(cfg.RedisAddrs, cfg.RedisPassword, logger)
	if err != nil {
		logger.Fatal("failed to connect to Redis cluster", zap.Error(err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("error closing Redis client", zap.Error(err))
		}
	}()

	mongoClient, err := mongodb.NewClient(cfg.MongoDBConnStr, cfg.MongoDBDatabase, logger)
	if err != nil {
		logger.Fatal("failed to connect to MongoDB", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mongoClient.Disconnect(ctx); err != nil {
			logger.Error("error disconnecting MongoDB client", zap.Error(err))
		}
	}()

	// --- 3. Initialize Data Stores ---
	presenceStore := store.NewSessionPresenceStore(redisClient, cfg.SessionPresenceTTL, logger)
	snapshotStore := store.NewScoreboardSnapshotStore(redisClient, logger)
	statsStore := store.NewSessionStatsStore(mongoClient.Collection(cfg.MongoDBStatsCollection))
	indexCtx, indexCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := statsStore.EnsureIndexes(indexCtx); err != nil {
		logger.Warn("failed to ensure session stats indexes", zap.Error(err))
	}
	indexCancel()

	// --- 4. Register this instance and join the assignment ring ---
	sessions := session.NewManager(cfg.OutboxSize, m.UpdatesDropped.Inc, logger)

	registrar := registry.NewServiceRegistrar(redisClient, registry.BridgeServiceType, &cfg.CommonConfig, logger,
		registry.WithMetadata(func() map[string]string {
			return map[string]string{registry.MetadataSessions: strconv.Itoa(sessions.Len())}
		}))
	registrar.Start()
	defer registrar.Stop()

	registryClient := registry.NewRegistryClient(redisClient, cfg.HeartbeatTTL, logger)
	assignment := cluster.NewServiceAssignmentManager(registryClient, registrar, cfg.HeartbeatInterval, logger)
	go assignment.Start()
	defer assignment.Stop()

	// --- 5. Initialize the scoreboard engine ---
	thresholds := updater.Thresholds{
		First:               cfg.FirstThreshold,
		Second:              cfg.SecondThreshold,
		FirstFlushInterval:  cfg.FirstFlushInterval,
		SecondFlushInterval: cfg.SecondFlushInterval,
	}
	teamTranslator := translator.NewTeamTranslator(logger, text.DefaultRenderer(), thresholds,
		translator.WithMetrics(m),
		translator.WithRecomputeOnRemove(cfg.RecomputeOnRemove))

	forwardCtx, stopForwarders := context.WithCancel(context.Background())
	hub := stream.NewHub(snapshotStore, m, logger)

	bridgeService := service.NewBridgeService(
		forwardCtx,
		sessions,
		teamTranslator,
		hub,
		presenceStore,
		snapshotStore,
		statsStore,
		thresholds,
		registrar.GetServiceID(),
		m,
		logger,
	)

	scoreboardUpdater := updater.NewScoreboardUpdater(sessions, thresholds, cfg.TickInterval, m, logger)
	go scoreboardUpdater.Start()

	sessionSyncer := syncer.NewSessionSyncer(
		syncer.Config{
			Interval:    cfg.SyncInterval,
			Timeout:     cfg.SyncTimeout,
			Concurrency: cfg.SyncConcurrency,
			ServiceID:   registrar.GetServiceID(),
		},
		sessions,
		presenceStore,
		snapshotStore,
		assignment,
		m,
		logger,
	)
	go sessionSyncer.Start()

	// --- 6. Setup HTTP Server and Register Routes ---
	baseServer := api.NewBaseServer(cfg.ListenAddr, logger)
	handlers := bridgeapi.NewBridgeAPIHandlers(bridgeService, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), logger)
	handlers.RegisterRoutes(baseServer.Router)

	// --- 7. Start HTTP Server ---
	go func() {
		if err := baseServer.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed to start", zap.Error(err))
		}
	}()

	// --- 8. Graceful Shutdown ---
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down scoreboard bridge")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := baseServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server graceful shutdown failed", zap.Error(err))
	}
	scoreboardUpdater.Stop()
	sessionSyncer.Stop()

	if err := bridgeService.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to persist some session stats on shutdown", zap.Error(err))
	}
	stopForwarders()
	hub.Wait()
	logger.Info("scoreboard bridge gracefully shut down")
}
