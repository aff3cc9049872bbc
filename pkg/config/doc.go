// Package config loads application configuration from the environment,
// optionally overlaid on a YAML config file.
//
// # Environment Variables
//
// Server:
//
//	PARLEY_HOST="0.0.0.0"
//	PARLEY_PORT="8080"
//	PARLEY_HEALTH_PORT="9090"
//	PARLEY_READ_TIMEOUT="15s"
//	PARLEY_WRITE_TIMEOUT="15s"
//	PARLEY_DEBUG="false"
//
// Storage:
//
//	PARLEY_POSTGRES_URL="postgres://localhost/parley"
//	PARLEY_POSTGRES_MAX_CONNS="20"
//	PARLEY_REDIS_URL="redis://localhost:6379"
//	PARLEY_REDIS_POOL_SIZE="10"
//
// Authentication:
//
//	PARLEY_ACCESS_TOKEN_TTL="15m"
//	PARLEY_REFRESH_TOKEN_TTL="720h"
//	PARLEY_THROTTLE_MAX_ATTEMPTS="5"
//	PARLEY_THROTTLE_WINDOW="15m"
//
// Observability:
//
//	PARLEY_LOG_LEVEL="info"  # debug, info, warn, error
//	PARLEY_METRICS_ENABLED="true"
//
// # Config File
//
// Set PARLEY_CONFIG_FILE to a YAML file path. File values override
// defaults; environment variables override both. Durations are strings
// in time.ParseDuration form:
//
//	server:
//	  port: "8080"
//	auth:
//	  access_token_ttl: 15m
package config
