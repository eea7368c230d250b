// Package conf provides configuration management using Viper.
// It supports loading configuration from YAML files and environment
// variables, with sensible defaults for every tunable.
package conf

import (
	"google.golang.org/protobuf/types/known/durationpb"
)

// Bootstrap is the root configuration object.
type Bootstrap struct {
	Server     *Server
	Data       *Data
	Resilience *Resilience
	RateLimit  *RateLimit
	Webhook    *Webhook
	Log        *Log
}

// Server holds transport configuration.
type Server struct {
	Http *ServerHTTP
}

// ServerHTTP configures the HTTP server.
type ServerHTTP struct {
	Network string
	Addr    string
	Timeout *durationpb.Duration
}

// Data holds data-layer configuration.
type Data struct {
	Database *Database
	Redis    *Redis
}

// Database configures the MySQL connection.
type Database struct {
	Driver string
	Source string
}

// Redis configures the shared counter store / delivery queue backend.
type Redis struct {
	Network      string
	Addr         string
	ReadTimeout  *durationpb.Duration
	WriteTimeout *durationpb.Duration
}

// Resilience groups retry, breaker and error-aggregation tunables.
type Resilience struct {
	Retry       *Retry
	Breaker     *Breaker
	Aggregation *Aggregation
}

// Retry configures the retry executor. MaxAttempts/BaseDelay/MaxDelay are
// the default policy; Kinds carries per-classification overrides keyed by
// kind name (network, dependency, storage, ...). Non-retryable kinds always
// run exactly once regardless of policy.
type Retry struct {
	MaxAttempts int32
	BaseDelay   *durationpb.Duration
	MaxDelay    *durationpb.Duration
	Kinds       map[string]*RetryOverride
}

// RetryOverride overrides parts of the default retry policy for one error
// kind. Zero fields inherit the default.
type RetryOverride struct {
	MaxAttempts int32
	BaseDelay   *durationpb.Duration
	MaxDelay    *durationpb.Duration
}

// Breaker configures circuit breakers. HalfOpenSuccesses is the number of
// consecutive probe successes required to close a half-open breaker.
type Breaker struct {
	FailureThreshold  int32
	ResetTimeout      *durationpb.Duration
	HalfOpenSuccesses int32
}

// Aggregation configures the error aggregator window and the aggregated
// count above which an error escalates to CRITICAL.
type Aggregation struct {
	Window        *durationpb.Duration
	CriticalCount int32
}

// RateLimit configures the multi-tier request gate.
type RateLimit struct {
	Tiers []*Tier
}

// Tier is one independent quota dimension (e.g. per-hour, per-day).
type Tier struct {
	Name   string
	Window *durationpb.Duration
	Limit  int64
}

// Webhook configures the dispatch and delivery pipeline.
type Webhook struct {
	PollInterval   *durationpb.Duration
	Concurrency    int32
	DefaultTimeout *durationpb.Duration
	BackoffBase    *durationpb.Duration
	BackoffMax     *durationpb.Duration
	CacheTTL       *durationpb.Duration
}

// Log configures the Zap logger.
type Log struct {
	Level      string
	Format     string
	Env        string
	OutputFile string
}
