package constants

import "time"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	CacheKeyPrefixIdempotency = "idem:"
	CacheKeyPrefixPreference  = "pref:"
)

const (
	DefaultInputTopic  = "triggering_events"
	DefaultOutputTopic = "deliveries"
)

const (
	DefaultMongoDBName = "herald"
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

const (
	FallbackAllow = "allow"
	FallbackDeny  = "deny"
)

const (
	StoreTemplates   = "templates"
	StoreDeliveries  = "deliveries"
	StorePreferences = "preferences"
	StoreIdempotency = "idempotency"
)

const (
	DatabasePostgres = "postgres"
	DatabaseMongoDB  = "mongodb"
	DatabaseRedis    = "redis"
)
