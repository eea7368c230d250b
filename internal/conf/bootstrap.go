package conf

import (
	"fmt"
	"strings"
	"time"

	pkgerrors "GymPulse/pkg/errors"

	"github.com/spf13/viper"
	"google.golang.org/protobuf/types/known/durationpb"
)

// NewBootstrap creates and initializes a Bootstrap configuration.
// It loads the specified config file, applies defaults, and allows
// overrides from environment variables prefixed with GYMPULSE_.
//
// Configuration priority: Environment variables > Config file > Defaults
//
// Required from environment or config file:
//   - MYSQL_DSN or GYMPULSE_DATA_DATABASE_SOURCE: MySQL connection string
func NewBootstrap(configPath string) (*Bootstrap, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("GYMPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("data.database.source", "MYSQL_DSN", "GYMPULSE_DATA_DATABASE_SOURCE")
	_ = v.BindEnv("data.redis.addr", "REDIS_ADDR", "GYMPULSE_DATA_REDIS_ADDR")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	bc := &Bootstrap{
		Server: &Server{
			Http: &ServerHTTP{
				Network: v.GetString("server.http.network"),
				Addr:    v.GetString("server.http.addr"),
				Timeout: durationpb.New(v.GetDuration("server.http.timeout")),
			},
		},
		Data: &Data{
			Database: &Database{
				Driver: v.GetString("data.database.driver"),
				Source: v.GetString("data.database.source"),
			},
			Redis: &Redis{
				Network:      v.GetString("data.redis.network"),
				Addr:         v.GetString("data.redis.addr"),
				ReadTimeout:  durationpb.New(v.GetDuration("data.redis.read_timeout")),
				WriteTimeout: durationpb.New(v.GetDuration("data.redis.write_timeout")),
			},
		},
		Resilience: &Resilience{
			Retry: &Retry{
				MaxAttempts: v.GetInt32("resilience.retry.max_attempts"),
				BaseDelay:   durationpb.New(v.GetDuration("resilience.retry.base_delay")),
				MaxDelay:    durationpb.New(v.GetDuration("resilience.retry.max_delay")),
				Kinds:       retryKindOverrides(v),
			},
			Breaker: &Breaker{
				FailureThreshold:  v.GetInt32("resilience.breaker.failure_threshold"),
				ResetTimeout:      durationpb.New(v.GetDuration("resilience.breaker.reset_timeout")),
				HalfOpenSuccesses: v.GetInt32("resilience.breaker.half_open_successes"),
			},
			Aggregation: &Aggregation{
				Window:        durationpb.New(v.GetDuration("resilience.aggregation.window")),
				CriticalCount: v.GetInt32("resilience.aggregation.critical_count"),
			},
		},
		RateLimit: &RateLimit{
			Tiers: []*Tier{
				{
					Name:   "hour",
					Window: durationpb.New(time.Hour),
					Limit:  v.GetInt64("ratelimit.hourly_limit"),
				},
				{
					Name:   "day",
					Window: durationpb.New(24 * time.Hour),
					Limit:  v.GetInt64("ratelimit.daily_limit"),
				},
			},
		},
		Webhook: &Webhook{
			PollInterval:   durationpb.New(v.GetDuration("webhook.poll_interval")),
			Concurrency:    v.GetInt32("webhook.concurrency"),
			DefaultTimeout: durationpb.New(v.GetDuration("webhook.default_timeout")),
			BackoffBase:    durationpb.New(v.GetDuration("webhook.backoff_base")),
			BackoffMax:     durationpb.New(v.GetDuration("webhook.backoff_max")),
			CacheTTL:       durationpb.New(v.GetDuration("webhook.cache_ttl")),
		},
		Log: &Log{
			Level:      v.GetString("log.level"),
			Format:     v.GetString("log.format"),
			Env:        v.GetString("log.env"),
			OutputFile: v.GetString("log.output_file"),
		},
	}

	if err := Validate(bc); err != nil {
		return nil, err
	}

	return bc, nil
}

// retryKindOverrides reads per-kind retry policy overrides from
// resilience.retry.kinds.<kind>.{max_attempts,base_delay,max_delay}. Absent
// fields are left zero so the executor inherits the default policy values.
func retryKindOverrides(v *viper.Viper) map[string]*RetryOverride {
	raw := v.GetStringMap("resilience.retry.kinds")
	if len(raw) == 0 {
		return nil
	}

	out := make(map[string]*RetryOverride, len(raw))
	for name := range raw {
		prefix := "resilience.retry.kinds." + name
		out[name] = &RetryOverride{
			MaxAttempts: v.GetInt32(prefix + ".max_attempts"),
			BaseDelay:   durationpb.New(v.GetDuration(prefix + ".base_delay")),
			MaxDelay:    durationpb.New(v.GetDuration(prefix + ".max_delay")),
		}
	}
	return out
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.http.network", "tcp")
	v.SetDefault("server.http.addr", ":8080")
	v.SetDefault("server.http.timeout", time.Minute)

	// Data defaults
	v.SetDefault("data.database.driver", "mysql")
	// Note: data.database.source (MYSQL_DSN) is required from environment

	v.SetDefault("data.redis.network", "tcp")
	v.SetDefault("data.redis.addr", "127.0.0.1:6379")
	v.SetDefault("data.redis.read_timeout", 200*time.Millisecond)
	v.SetDefault("data.redis.write_timeout", 200*time.Millisecond)

	// Resilience defaults
	v.SetDefault("resilience.retry.max_attempts", 3)
	v.SetDefault("resilience.retry.base_delay", 200*time.Millisecond)
	v.SetDefault("resilience.retry.max_delay", 5*time.Second)
	v.SetDefault("resilience.breaker.failure_threshold", 5)
	v.SetDefault("resilience.breaker.reset_timeout", 30*time.Second)
	v.SetDefault("resilience.breaker.half_open_successes", 2)
	v.SetDefault("resilience.aggregation.window", time.Minute)
	v.SetDefault("resilience.aggregation.critical_count", 10)

	// Rate limit defaults
	v.SetDefault("ratelimit.hourly_limit", 1000)
	v.SetDefault("ratelimit.daily_limit", 10000)

	// Webhook pipeline defaults
	v.SetDefault("webhook.poll_interval", time.Second)
	v.SetDefault("webhook.concurrency", 8)
	v.SetDefault("webhook.default_timeout", 10*time.Second)
	v.SetDefault("webhook.backoff_base", 30*time.Second)
	v.SetDefault("webhook.backoff_max", 15*time.Minute)
	v.SetDefault("webhook.cache_ttl", 30*time.Second)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate checks that all required configuration fields are present and
// valid. It returns an error listing every missing required field.
func Validate(bc *Bootstrap) error {
	var missingFields []string

	if bc.Data == nil || bc.Data.Database == nil || bc.Data.Database.Source == "" {
		missingFields = append(missingFields, "data.database.source (MYSQL_DSN)")
	}

	if len(missingFields) > 0 {
		return fmt.Errorf("missing required configuration fields: %s", strings.Join(missingFields, ", "))
	}

	for _, tier := range bc.RateLimit.Tiers {
		if tier.Limit <= 0 {
			return fmt.Errorf("ratelimit tier %q: limit must be positive, got %d", tier.Name, tier.Limit)
		}
		if tier.Window.AsDuration() <= 0 {
			return fmt.Errorf("ratelimit tier %q: window must be positive", tier.Name)
		}
	}

	if bc.Resilience.Retry != nil {
		for name := range bc.Resilience.Retry.Kinds {
			if _, ok := pkgerrors.ParseKind(name); !ok {
				return fmt.Errorf("resilience.retry.kinds: unknown error kind %q", name)
			}
		}
	}

	if bc.Resilience.Breaker.FailureThreshold <= 0 {
		return fmt.Errorf("resilience.breaker.failure_threshold must be positive")
	}
	if bc.Resilience.Breaker.HalfOpenSuccesses <= 0 {
		return fmt.Errorf("resilience.breaker.half_open_successes must be positive")
	}

	return nil
}
