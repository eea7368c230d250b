package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/durationpb"
)

// writeTestConfig writes a minimal config file and returns its path.
func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewBootstrap_Defaults(t *testing.T) {
	path := writeTestConfig(t, `
data:
  database:
    source: "user:pass@tcp(localhost:3306)/gympulse"
`)

	bc, err := NewBootstrap(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", bc.Server.Http.Addr)
	assert.Equal(t, "127.0.0.1:6379", bc.Data.Redis.Addr)

	assert.Equal(t, int32(3), bc.Resilience.Retry.MaxAttempts)
	assert.Equal(t, 200*time.Millisecond, bc.Resilience.Retry.BaseDelay.AsDuration())
	assert.Equal(t, 5*time.Second, bc.Resilience.Retry.MaxDelay.AsDuration())

	assert.Equal(t, int32(5), bc.Resilience.Breaker.FailureThreshold)
	assert.Equal(t, 30*time.Second, bc.Resilience.Breaker.ResetTimeout.AsDuration())
	assert.Equal(t, int32(2), bc.Resilience.Breaker.HalfOpenSuccesses)

	assert.Equal(t, time.Minute, bc.Resilience.Aggregation.Window.AsDuration())
	assert.Equal(t, int32(10), bc.Resilience.Aggregation.CriticalCount)

	require.Len(t, bc.RateLimit.Tiers, 2)
	assert.Equal(t, "hour", bc.RateLimit.Tiers[0].Name)
	assert.Equal(t, int64(1000), bc.RateLimit.Tiers[0].Limit)
	assert.Equal(t, time.Hour, bc.RateLimit.Tiers[0].Window.AsDuration())
	assert.Equal(t, "day", bc.RateLimit.Tiers[1].Name)
	assert.Equal(t, int64(10000), bc.RateLimit.Tiers[1].Limit)

	assert.Equal(t, time.Second, bc.Webhook.PollInterval.AsDuration())
	assert.Equal(t, int32(8), bc.Webhook.Concurrency)
	assert.Equal(t, 30*time.Second, bc.Webhook.BackoffBase.AsDuration())
	assert.Equal(t, 15*time.Minute, bc.Webhook.BackoffMax.AsDuration())

	assert.Equal(t, "info", bc.Log.Level)
	assert.Equal(t, "json", bc.Log.Format)
}

func TestNewBootstrap_FileOverrides(t *testing.T) {
	path := writeTestConfig(t, `
server:
  http:
    addr: ":9090"
data:
  database:
    source: "user:pass@tcp(localhost:3306)/gympulse"
resilience:
  breaker:
    failure_threshold: 3
ratelimit:
  hourly_limit: 50
webhook:
  concurrency: 2
`)

	bc, err := NewBootstrap(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", bc.Server.Http.Addr)
	assert.Equal(t, int32(3), bc.Resilience.Breaker.FailureThreshold)
	assert.Equal(t, int64(50), bc.RateLimit.Tiers[0].Limit)
	assert.Equal(t, int32(2), bc.Webhook.Concurrency)
}

func TestNewBootstrap_EnvOverride(t *testing.T) {
	t.Setenv("MYSQL_DSN", "env:pass@tcp(db:3306)/gympulse")
	t.Setenv("REDIS_ADDR", "redis-host:6380")

	bc, err := NewBootstrap("")
	require.NoError(t, err)

	assert.Equal(t, "env:pass@tcp(db:3306)/gympulse", bc.Data.Database.Source)
	assert.Equal(t, "redis-host:6380", bc.Data.Redis.Addr)
}

func TestNewBootstrap_MissingDatabaseSource(t *testing.T) {
	t.Setenv("MYSQL_DSN", "")
	t.Setenv("GYMPULSE_DATA_DATABASE_SOURCE", "")
	path := writeTestConfig(t, `
log:
  level: debug
`)

	_, err := NewBootstrap(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "data.database.source")
}

func TestNewBootstrap_RetryKindOverrides(t *testing.T) {
	path := writeTestConfig(t, `
data:
  database:
    source: "user:pass@tcp(localhost:3306)/gympulse"
resilience:
  retry:
    kinds:
      network:
        max_attempts: 5
      storage:
        max_attempts: 2
        base_delay: 50ms
`)

	bc, err := NewBootstrap(path)
	require.NoError(t, err)

	require.Len(t, bc.Resilience.Retry.Kinds, 2)
	assert.Equal(t, int32(5), bc.Resilience.Retry.Kinds["network"].MaxAttempts)
	assert.Equal(t, int32(2), bc.Resilience.Retry.Kinds["storage"].MaxAttempts)
	assert.Equal(t, 50*time.Millisecond, bc.Resilience.Retry.Kinds["storage"].BaseDelay.AsDuration())
}

func TestNewBootstrap_UnknownRetryKind(t *testing.T) {
	path := writeTestConfig(t, `
data:
  database:
    source: "user:pass@tcp(localhost:3306)/gympulse"
resilience:
  retry:
    kinds:
      bogus:
        max_attempts: 4
`)

	_, err := NewBootstrap(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown error kind")
}

func TestNewBootstrap_MissingFile(t *testing.T) {
	_, err := NewBootstrap("/nonexistent/config.yaml")
	require.Error(t, err)
}

func TestValidate_BadTierLimit(t *testing.T) {
	bc := &Bootstrap{
		Data: &Data{Database: &Database{Source: "dsn"}},
		RateLimit: &RateLimit{Tiers: []*Tier{
			{Name: "hour", Window: durationpb.New(time.Hour), Limit: 0},
		}},
		Resilience: &Resilience{Breaker: &Breaker{FailureThreshold: 5, HalfOpenSuccesses: 2}},
	}

	err := Validate(bc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "limit must be positive")
}
