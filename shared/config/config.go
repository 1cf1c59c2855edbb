// shared/config/config.go
package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// CommonConfig holds configuration fields that are shared across multiple services.
type CommonConfig struct {
	RedisAddrs              []string      // Redis server addresses (e.g., "redis-cluster:6379")
	RedisPassword           string        // Redis password for authentication
	HeartbeatInterval       time.Duration // How often to send a heartbeat to registry (e.g., 5s)
	HeartbeatTTL            time.Duration // How long an instance is considered alive without a heartbeat (e.g., 15s)
	RegistryCleanupInterval time.Duration // How often the registry actively cleans stale entries (e.g., 30s)
	ServiceIP               string        // The IP address this service advertises for registration (Kubernetes Pod IP)
	ServicePort             int           // The port this service listens on, used for registration
	LogLevel                string        // debug, info, warn, error
	LogFormat               string        // json, console
}

// BridgeServiceConfig holds configuration specific to the scoreboard bridge.
type BridgeServiceConfig struct {
	CommonConfig
	ListenAddr             string        // Address for the HTTP server (e.g., ":8083")
	MongoDBConnStr         string        // MongoDB connection string
	MongoDBDatabase        string        // MongoDB database name
	MongoDBStatsCollection string        // MongoDB collection for finished session statistics
	SessionPresenceTTL     time.Duration // TTL for 'session:{id}:' keys in Redis
	SyncInterval           time.Duration // How often presence is refreshed and orphaned snapshots are collected
	SyncTimeout            time.Duration // Upper bound for one sync pass
	SyncConcurrency        int           // Parallel Redis calls during a presence refresh
	OutboxSize             int           // Unforwarded updates buffered per session

	TickInterval        time.Duration // Scoreboard updater tick
	FirstThreshold      int           // Events per second at which immediate flushing stops
	SecondThreshold     int           // Events per second at which the slowest flush cadence applies
	FirstFlushInterval  time.Duration // Flush cadence between the two thresholds
	SecondFlushInterval time.Duration // Flush cadence at or above the second threshold
	RecomputeOnRemove   bool          // Re-render former members when a team is removed
}

// Environment variable names.
const (
	EnvRedisAddrs              = "REDIS_ADDRS"
	EnvRedisPassword           = "REDIS_PASSWORD"
	EnvHeartbeatInterval       = "SERVICE_HEARTBEAT_INTERVAL"
	EnvHeartbeatTTL            = "SERVICE_HEARTBEAT_TTL"
	EnvRegistryCleanupInterval = "SERVICE_REGISTRY_CLEANUP_INTERVAL"
	EnvPodIP                   = "POD_IP"
	EnvLogLevel                = "LOG_LEVEL"
	EnvLogFormat               = "LOG_FORMAT"

	EnvListenAddr             = "BRIDGE_SERVICE_LISTEN_ADDR"
	EnvMongoDBConnStr         = "MONGODB_CONN_STR"
	EnvMongoDBDatabase        = "MONGODB_DATABASE"
	EnvMongoDBStatsCollection = "MONGODB_STATS_COLLECTION"
	EnvSessionPresenceTTL     = "REDIS_SESSION_TTL"
	EnvSyncInterval           = "BRIDGE_SYNC_INTERVAL"
	EnvSyncTimeout            = "BRIDGE_SYNC_TIMEOUT"
	EnvSyncConcurrency        = "BRIDGE_SYNC_CONCURRENCY"
	EnvOutboxSize             = "SCOREBOARD_OUTBOX_SIZE"

	EnvTickInterval        = "SCOREBOARD_TICK_INTERVAL"
	EnvFirstThreshold      = "FIRST_SCORE_PACKETS_PER_SECOND_THRESHOLD"
	EnvSecondThreshold     = "SECOND_SCORE_PACKETS_PER_SECOND_THRESHOLD"
	EnvFirstFlushInterval  = "SCOREBOARD_FIRST_FLUSH_INTERVAL"
	EnvSecondFlushInterval = "SCOREBOARD_SECOND_FLUSH_INTERVAL"
	EnvRecomputeOnRemove   = "SCOREBOARD_RECOMPUTE_ON_REMOVE"
)

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault(EnvRedisAddrs, "redis-cluster-headless.minecraft-cluster.svc.cluster.local:6379")
	v.SetDefault(EnvHeartbeatInterval, 5*time.Second)
	v.SetDefault(EnvHeartbeatTTL, 15*time.Second)
	v.SetDefault(EnvRegistryCleanupInterval, 30*time.Second)
	v.SetDefault(EnvPodIP, "0.0.0.0")
	v.SetDefault(EnvLogLevel, "info")
	v.SetDefault(EnvLogFormat, "json")

	v.SetDefault(EnvListenAddr, ":8083")
	v.SetDefault(EnvMongoDBConnStr, "mongodb://mongodb-service:27017")
	v.SetDefault(EnvMongoDBDatabase, "scoreboard_bridge")
	v.SetDefault(EnvMongoDBStatsCollection, "session_stats")
	v.SetDefault(EnvSessionPresenceTTL, 15*time.Second)
	v.SetDefault(EnvSyncInterval, 5*time.Second)
	v.SetDefault(EnvSyncTimeout, 10*time.Second)
	v.SetDefault(EnvSyncConcurrency, 8)
	v.SetDefault(EnvOutboxSize, 64)

	v.SetDefault(EnvTickInterval, 50*time.Millisecond)
	v.SetDefault(EnvFirstThreshold, 250)
	v.SetDefault(EnvSecondThreshold, 450)
	v.SetDefault(EnvFirstFlushInterval, 250*time.Millisecond)
	v.SetDefault(EnvSecondFlushInterval, 3*time.Second)
	v.SetDefault(EnvRecomputeOnRemove, false)
	return v
}

// LoadCommonConfig loads common configuration from environment variables.
func LoadCommonConfig() (CommonConfig, error) {
	return loadCommonConfig(newViper())
}

func loadCommonConfig(v *viper.Viper) (CommonConfig, error) {
	cfg := CommonConfig{
		RedisPassword: v.GetString(EnvRedisPassword),
		ServiceIP:     v.GetString(EnvPodIP),
		LogLevel:      v.GetString(EnvLogLevel),
		LogFormat:     v.GetString(EnvLogFormat),
	}
	var err error

	for _, addr := range strings.Split(v.GetString(EnvRedisAddrs), ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			cfg.RedisAddrs = append(cfg.RedisAddrs, addr)
		}
	}
	if len(cfg.RedisAddrs) == 0 {
		return cfg, fmt.Errorf("%s must list at least one address", EnvRedisAddrs)
	}

	if cfg.HeartbeatInterval, err = getDuration(v, EnvHeartbeatInterval); err != nil {
		return cfg, err
	}
	if cfg.HeartbeatTTL, err = getDuration(v, EnvHeartbeatTTL); err != nil {
		return cfg, err
	}
	if cfg.RegistryCleanupInterval, err = getDuration(v, EnvRegistryCleanupInterval); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadBridgeServiceConfig loads configuration for the scoreboard bridge.
func LoadBridgeServiceConfig() (*BridgeServiceConfig, error) {
	v := newViper()
	common, err := loadCommonConfig(v)
	if err != nil {
		return nil, fmt.Errorf("failed to load common config for bridge-service: %w", err)
	}

	cfg := &BridgeServiceConfig{
		CommonConfig:           common,
		ListenAddr:             v.GetString(EnvListenAddr),
		MongoDBConnStr:         v.GetString(EnvMongoDBConnStr),
		MongoDBDatabase:        v.GetString(EnvMongoDBDatabase),
		MongoDBStatsCollection: v.GetString(EnvMongoDBStatsCollection),
	}

	cfg.ServicePort, err = extractPort(cfg.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to extract port from %s '%s': %w", EnvListenAddr, cfg.ListenAddr, err)
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{EnvSessionPresenceTTL, &cfg.SessionPresenceTTL},
		{EnvSyncInterval, &cfg.SyncInterval},
		{EnvSyncTimeout, &cfg.SyncTimeout},
		{EnvTickInterval, &cfg.TickInterval},
		{EnvFirstFlushInterval, &cfg.FirstFlushInterval},
		{EnvSecondFlushInterval, &cfg.SecondFlushInterval},
	}
	for _, d := range durations {
		if *d.dst, err = getDuration(v, d.key); err != nil {
			return nil, err
		}
	}

	ints := []struct {
		key string
		dst *int
	}{
		{EnvSyncConcurrency, &cfg.SyncConcurrency},
		{EnvOutboxSize, &cfg.OutboxSize},
		{EnvFirstThreshold, &cfg.FirstThreshold},
		{EnvSecondThreshold, &cfg.SecondThreshold},
	}
	for _, i := range ints {
		if *i.dst, err = getInt(v, i.key); err != nil {
			return nil, err
		}
	}

	if cfg.RecomputeOnRemove, err = cast.ToBoolE(v.Get(EnvRecomputeOnRemove)); err != nil {
		return nil, fmt.Errorf("invalid boolean format for %s: %w", EnvRecomputeOnRemove, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *BridgeServiceConfig) validate() error {
	positive := []struct {
		key string
		d   time.Duration
	}{
		{EnvTickInterval, cfg.TickInterval},
		{EnvHeartbeatInterval, cfg.HeartbeatInterval},
		{EnvHeartbeatTTL, cfg.HeartbeatTTL},
		{EnvSyncInterval, cfg.SyncInterval},
		{EnvSyncTimeout, cfg.SyncTimeout},
		{EnvSessionPresenceTTL, cfg.SessionPresenceTTL},
		{EnvFirstFlushInterval, cfg.FirstFlushInterval},
		{EnvSecondFlushInterval, cfg.SecondFlushInterval},
	}
	for _, p := range positive {
		if p.d <= 0 {
			return fmt.Errorf("%s must be positive (got %s)", p.key, p.d)
		}
	}
	// Zero disables registry cleanup.
	if cfg.RegistryCleanupInterval < 0 {
		return fmt.Errorf("%s must not be negative (got %s)", EnvRegistryCleanupInterval, cfg.RegistryCleanupInterval)
	}
	if cfg.FirstThreshold <= 0 {
		return fmt.Errorf("%s must be a positive integer (got %d)", EnvFirstThreshold, cfg.FirstThreshold)
	}
	if cfg.SecondThreshold <= cfg.FirstThreshold {
		return fmt.Errorf("%s (%d) must be greater than %s (%d)",
			EnvSecondThreshold, cfg.SecondThreshold, EnvFirstThreshold, cfg.FirstThreshold)
	}
	if cfg.SyncConcurrency <= 0 {
		return fmt.Errorf("%s must be a positive integer (got %d)", EnvSyncConcurrency, cfg.SyncConcurrency)
	}
	if cfg.OutboxSize <= 0 {
		return fmt.Errorf("%s must be a positive integer (got %d)", EnvOutboxSize, cfg.OutboxSize)
	}
	return nil
}

func getDuration(v *viper.Viper, key string) (time.Duration, error) {
	d, err := cast.ToDurationE(v.Get(key))
	if err != nil {
		return 0, fmt.Errorf("invalid duration format for %s: %w", key, err)
	}
	return d, nil
}

func getInt(v *viper.Viper, key string) (int, error) {
	i, err := cast.ToIntE(v.Get(key))
	if err != nil {
		return 0, fmt.Errorf("invalid integer format for %s: %w", key, err)
	}
	return i, nil
}

// extractPort extracts the numeric port from a listen address (e.g., ":8083" -> 8083, "0.0.0.0:8083" -> 8083)
func extractPort(listenAddr string) (int, error) {
	_, portStr, err := net.SplitHostPort(listenAddr)
	if err != nil {
		if strings.HasPrefix(listenAddr, ":") {
			portStr = strings.TrimPrefix(listenAddr, ":")
		} else {
			return 0, fmt.Errorf("invalid ListenAddr format for port extraction: %w", err)
		}
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, fmt.Errorf("invalid port number '%s': %w", portStr, err)
	}
	return port, nil
}
