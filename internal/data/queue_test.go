package data

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"GymPulse/internal/model"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testJob(deliveryID string) *model.DeliveryJob {
	return &model.DeliveryJob{
		DeliveryID:     deliveryID,
		SubscriptionID: "sub-1",
		Event:          "member.checked_in",
		Payload:        json.RawMessage(`{"member_id":"m-42"}`),
		TargetURL:      "https://partner.example.com/hooks",
		Secret:         "whsec_test",
		Timeout:        5 * time.Second,
		Attempt:        0,
		MaxAttempts:    3,
	}
}

func TestDeliveryQueue_EnqueueDequeue(t *testing.T) {
	rdb, _ := setupTestRedis(t)
	q := NewDeliveryQueue(&Data{redisClient: rdb}, testLogger())

	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, testJob("dlv-1"), 0))

	jobs, err := q.DequeueDue(ctx, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "dlv-1", jobs[0].DeliveryID)
	assert.Equal(t, "member.checked_in", jobs[0].Event)
	assert.Equal(t, "whsec_test", jobs[0].Secret)
	assert.Equal(t, 3, jobs[0].MaxAttempts)

	// The pop is destructive: schedule entry and body are both gone.
	jobs, err = q.DequeueDue(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, jobs)
	exists, err := q.Contains(ctx, "dlv-1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDeliveryQueue_DelayedJobNotDue(t *testing.T) {
	rdb, _ := setupTestRedis(t)
	q := NewDeliveryQueue(&Data{redisClient: rdb}, testLogger())

	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, testJob("dlv-future"), time.Hour))

	jobs, err := q.DequeueDue(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, jobs)

	exists, err := q.Contains(ctx, "dlv-future")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestDeliveryQueue_DequeueRespectsLimit(t *testing.T) {
	rdb, _ := setupTestRedis(t)
	q := NewDeliveryQueue(&Data{redisClient: rdb}, testLogger())

	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, testJob("dlv-1"), 0))
	require.NoError(t, q.Enqueue(ctx, testJob("dlv-2"), 0))
	require.NoError(t, q.Enqueue(ctx, testJob("dlv-3"), 0))

	jobs, err := q.DequeueDue(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, jobs, 2)

	jobs, err = q.DequeueDue(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
}

func TestDeliveryQueue_ReenqueueOverwrites(t *testing.T) {
	rdb, _ := setupTestRedis(t)
	q := NewDeliveryQueue(&Data{redisClient: rdb}, testLogger())

	ctx := context.Background()
	first := testJob("dlv-1")
	require.NoError(t, q.Enqueue(ctx, first, 0))

	second := testJob("dlv-1")
	second.Attempt = 2
	require.NoError(t, q.Enqueue(ctx, second, 0))

	jobs, err := q.DequeueDue(ctx, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, 2, jobs[0].Attempt)
}

func TestDeliveryQueue_DropsUndecodableBody(t *testing.T) {
	rdb, _ := setupTestRedis(t)
	q := NewDeliveryQueue(&Data{redisClient: rdb}, testLogger())

	ctx := context.Background()
	require.NoError(t, rdb.HSet(ctx, deliveryJobsKey, "dlv-bad", "{not json").Err())
	require.NoError(t, rdb.ZAdd(ctx, deliveryQueueKey, redis.Z{
		Score:  float64(time.Now().Add(-time.Minute).UnixMilli()),
		Member: "dlv-bad",
	}).Err())
	require.NoError(t, q.Enqueue(ctx, testJob("dlv-good"), 0))

	jobs, err := q.DequeueDue(ctx, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "dlv-good", jobs[0].DeliveryID)
}

func TestDeliveryQueue_Contains(t *testing.T) {
	rdb, _ := setupTestRedis(t)
	q := NewDeliveryQueue(&Data{redisClient: rdb}, testLogger())

	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, testJob("dlv-1"), time.Minute))

	exists, err := q.Contains(ctx, "dlv-1")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = q.Contains(ctx, "dlv-unknown")
	require.NoError(t, err)
	assert.False(t, exists)
}
