package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"GymPulse/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
)

const (
	deliveryQueueKey = "webhook:delivery:queue"
	deliveryJobsKey  = "webhook:delivery:jobs"
)

// dequeueDueScript atomically pops due members from the schedule ZSET and
// collects their job bodies. Running it as one script keeps a job from
// being handed to two workers polling concurrently.
var dequeueDueScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
if #due == 0 then
	return {}
end
redis.call('ZREM', KEYS[1], unpack(due))
local jobs = {}
for _, id in ipairs(due) do
	local body = redis.call('HGET', KEYS[2], id)
	if body then
		jobs[#jobs + 1] = body
	end
	redis.call('HDEL', KEYS[2], id)
end
return jobs
`)

// DeliveryQueue implements biz.DeliveryQueue on redis: a ZSET scored by
// ready-at time for scheduling plus a hash of job bodies keyed by delivery
// id.
type DeliveryQueue struct {
	rdb    *redis.Client
	logger *log.Helper
}

// NewDeliveryQueue creates a redis-backed delivery queue.
func NewDeliveryQueue(d *Data, logger log.Logger) *DeliveryQueue {
	return &DeliveryQueue{
		rdb:    d.redisClient,
		logger: log.NewHelper(logger),
	}
}

// Enqueue schedules job to become due after delay. Re-enqueueing the same
// delivery id overwrites the previous body and score.
func (q *DeliveryQueue) Enqueue(ctx context.Context, job *model.DeliveryJob, delay time.Duration) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode delivery job %s: %w", job.DeliveryID, err)
	}

	pipe := q.rdb.TxPipeline()
	pipe.HSet(ctx, deliveryJobsKey, job.DeliveryID, body)
	pipe.ZAdd(ctx, deliveryQueueKey, redis.Z{
		Score:  float64(time.Now().Add(delay).UnixMilli()),
		Member: job.DeliveryID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to enqueue delivery job %s: %w", job.DeliveryID, err)
	}
	return nil
}

// DequeueDue pops up to limit jobs whose ready-at time has passed. Jobs
// with bodies that no longer decode are dropped with a warning rather than
// poisoning the queue.
func (q *DeliveryQueue) DequeueDue(ctx context.Context, limit int) ([]*model.DeliveryJob, error) {
	raw, err := dequeueDueScript.Run(ctx, q.rdb,
		[]string{deliveryQueueKey, deliveryJobsKey},
		time.Now().UnixMilli(), limit).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue delivery jobs: %w", err)
	}

	jobs := make([]*model.DeliveryJob, 0, len(raw))
	for _, body := range raw {
		var job model.DeliveryJob
		if err := json.Unmarshal([]byte(body), &job); err != nil {
			q.logger.Warnf("dropping undecodable delivery job: %v", err)
			continue
		}
		jobs = append(jobs, &job)
	}
	return jobs, nil
}

// Contains reports whether a job for deliveryID is currently scheduled.
func (q *DeliveryQueue) Contains(ctx context.Context, deliveryID string) (bool, error) {
	_, err := q.rdb.ZScore(ctx, deliveryQueueKey, deliveryID).Result()
	if err == nil {
		return true, nil
	}
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	return false, fmt.Errorf("failed to check delivery queue for %s: %w", deliveryID, err)
}
