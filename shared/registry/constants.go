// shared/registry/constants.go
package registry

const (
	// RedisRegistryHashPrefix is the prefix of the Redis hash holding the
	// registrations of one service type: "services:<serviceType>".
	RedisRegistryHashPrefix = "services:"

	// BridgeServiceType is the service type the scoreboard bridge registers as.
	BridgeServiceType = "scoreboard-bridge"

	// Version is advertised in every heartbeat.
	Version = "1.0"

	// MetadataSessions is the heartbeat metadata key for the number of live
	// sessions on an instance.
	MetadataSessions = "sessions"
)
