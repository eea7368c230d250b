package biz

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"GymPulse/internal/conf"
	"GymPulse/internal/model"
	"GymPulse/pkg/crypto"

	"github.com/go-kratos/kratos/v2/log"
)

// Webhook delivery headers.
const (
	HeaderSignature = "X-Webhook-Signature"
	HeaderEvent     = "X-Webhook-Event"
)

// DeliveryWorkerConfig tunes the delivery worker.
type DeliveryWorkerConfig struct {
	PollInterval   time.Duration
	Concurrency    int
	DefaultTimeout time.Duration
	BackoffBase    time.Duration
	BackoffMax     time.Duration
}

// DeliveryWorker drains the delivery queue and executes one signed HTTP
// POST per job. Failed attempts are re-enqueued with exponential backoff up
// to the job's attempt ceiling, after which the delivery is marked failed.
//
// The worker implements the Kratos transport.Server interface so its
// lifecycle is owned by the application.
type DeliveryWorker struct {
	queue      DeliveryQueue
	deliveries DeliveryRepo
	subs       SubscriptionRepo
	aggregator *ErrorAggregator
	client     *http.Client
	cfg        DeliveryWorkerConfig
	logger     *log.Helper

	now  func() time.Time
	stop chan struct{}
	wg   sync.WaitGroup
}

// NewDeliveryWorker creates a delivery worker from configuration.
func NewDeliveryWorker(c *conf.Webhook, queue DeliveryQueue, deliveries DeliveryRepo, subs SubscriptionRepo, aggregator *ErrorAggregator, logger log.Logger) *DeliveryWorker {
	return &DeliveryWorker{
		queue:      queue,
		deliveries: deliveries,
		subs:       subs,
		aggregator: aggregator,
		client:     &http.Client{},
		cfg: DeliveryWorkerConfig{
			PollInterval:   c.PollInterval.AsDuration(),
			Concurrency:    int(c.Concurrency),
			DefaultTimeout: c.DefaultTimeout.AsDuration(),
			BackoffBase:    c.BackoffBase.AsDuration(),
			BackoffMax:     c.BackoffMax.AsDuration(),
		},
		logger: log.NewHelper(logger),
		now:    time.Now,
		stop:   make(chan struct{}),
	}
}

// Start runs the poll loop until Stop is called or ctx is cancelled.
func (w *DeliveryWorker) Start(ctx context.Context) error {
	w.logger.Infow("delivery worker started",
		"poll_interval", w.cfg.PollInterval,
		"concurrency", w.cfg.Concurrency)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	sem := make(chan struct{}, w.cfg.Concurrency)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.stop:
			return nil
		case <-ticker.C:
		}

		jobs, err := w.queue.DequeueDue(ctx, w.cfg.Concurrency)
		if err != nil {
			w.logger.Errorw("failed to dequeue delivery jobs", "error", err)
			continue
		}

		for _, job := range jobs {
			sem <- struct{}{}
			w.wg.Add(1)
			go func(job *model.DeliveryJob) {
				defer w.wg.Done()
				defer func() { <-sem }()
				w.deliverOne(ctx, job)
			}(job)
		}
	}
}

// Stop signals the poll loop and waits for in-flight deliveries.
func (w *DeliveryWorker) Stop(ctx context.Context) error {
	close(w.stop)

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("delivery worker stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// deliverOne executes a single delivery attempt for job.
//
// The envelope timestamp is recomputed per attempt, so the payload is
// re-serialized and re-signed every time; signatures are never reused
// across attempts.
func (w *DeliveryWorker) deliverOne(ctx context.Context, job *model.DeliveryJob) {
	delivery, err := w.deliveries.Get(ctx, job.DeliveryID)
	if err != nil {
		w.logger.Errorw("failed to load delivery record",
			"delivery_id", job.DeliveryID,
			"error", err)
		// Load-failure requeues consume the attempt ceiling so a
		// persistent read outage parks the job instead of looping.
		if job.Attempt < job.MaxAttempts {
			w.requeue(ctx, job, job.Attempt+1)
		}
		return
	}

	// At-least-once queues may re-deliver a finished job; terminal
	// deliveries are never touched again.
	if delivery.Status != model.DeliveryStatusPending {
		w.logger.Debugw("skipping job for terminal delivery",
			"delivery_id", job.DeliveryID,
			"status", delivery.Status)
		return
	}

	attempt := job.Attempt + 1

	envelope := model.WebhookEnvelope{
		Event:     job.Event,
		Timestamp: w.now().UTC().Format(time.RFC3339),
		Data:      job.Payload,
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		w.logger.Errorw("failed to serialize webhook envelope",
			"delivery_id", job.DeliveryID,
			"error", err)
		return
	}

	signature := crypto.SignPayload([]byte(job.Secret), body)

	timeout := job.Timeout
	if timeout <= 0 {
		timeout = w.cfg.DefaultTimeout
	}

	start := w.now()
	statusCode, attemptErr := w.post(ctx, job, body, signature, timeout)
	latency := time.Since(start)

	res := model.AttemptResult{
		Attempt:    attempt,
		StatusCode: statusCode,
		Signature:  signature,
		Latency:    latency,
	}

	if attemptErr == nil {
		if err := w.deliveries.MarkSucceeded(ctx, job.DeliveryID, res); err != nil && !errors.Is(err, model.ErrDeliveryTerminal) {
			w.logger.Errorw("failed to mark delivery succeeded",
				"delivery_id", job.DeliveryID,
				"error", err)
		}
		w.logger.Infow("webhook delivered",
			"delivery_id", job.DeliveryID,
			"event", job.Event,
			"attempt", attempt,
			"status_code", statusCode,
			"latency", latency)
		return
	}

	res.Error = attemptErr.Error()
	if statusCode == 0 && w.aggregator != nil {
		// Transport-level failures (DNS, refused connection, timeout) are
		// fed to the aggregator; HTTP error statuses are the subscriber's
		// problem, not ours.
		w.aggregator.Observe(ctx, attemptErr)
	}
	w.logger.Warnw("webhook delivery attempt failed",
		"delivery_id", job.DeliveryID,
		"event", job.Event,
		"attempt", attempt,
		"max_attempts", job.MaxAttempts,
		"status_code", statusCode,
		"error", attemptErr)

	if attempt >= job.MaxAttempts {
		if err := w.deliveries.MarkFailed(ctx, job.DeliveryID, res); err != nil && !errors.Is(err, model.ErrDeliveryTerminal) {
			w.logger.Errorw("failed to mark delivery failed",
				"delivery_id", job.DeliveryID,
				"error", err)
		}
		w.logger.Errorw("webhook delivery exhausted",
			"delivery_id", job.DeliveryID,
			"event", job.Event,
			"attempts", attempt)
		return
	}

	if err := w.deliveries.RecordAttempt(ctx, job.DeliveryID, res); err != nil && !errors.Is(err, model.ErrDeliveryTerminal) {
		w.logger.Errorw("failed to record delivery attempt",
			"delivery_id", job.DeliveryID,
			"error", err)
	}
	w.requeue(ctx, job, attempt)
}

// post issues the signed delivery request. A nil error means the subscriber
// acknowledged with a 2xx.
func (w *DeliveryWorker) post(ctx context.Context, job *model.DeliveryJob, body []byte, signature string, timeout time.Duration) (int, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, job.TargetURL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderSignature, signature)
	req.Header.Set(HeaderEvent, job.Event)

	resp, err := w.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

// requeue schedules the next attempt with exponential backoff. The queue's
// own retry policy owns the schedule; the worker only computes the delay.
func (w *DeliveryWorker) requeue(ctx context.Context, job *model.DeliveryJob, attemptsMade int) {
	job.Attempt = attemptsMade
	delay := w.backoff(attemptsMade)
	if err := w.queue.Enqueue(ctx, job, delay); err != nil {
		w.logger.Errorw("failed to re-enqueue delivery job",
			"delivery_id", job.DeliveryID,
			"error", err)
	}
}

// backoff returns min(base * 2^(attempt-1), max).
func (w *DeliveryWorker) backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := w.cfg.BackoffBase << (attempt - 1)
	if delay > w.cfg.BackoffMax || delay <= 0 {
		delay = w.cfg.BackoffMax
	}
	return delay
}

// RequeueStale rebuilds queue jobs for pending deliveries that lost their
// job between queue pop and completion (process crash mid-attempt). Invoked
// periodically by the application cron.
func (w *DeliveryWorker) RequeueStale(ctx context.Context) error {
	cutoff := w.now().Add(-(w.cfg.BackoffMax + time.Minute))

	stale, err := w.deliveries.ListStalePending(ctx, cutoff, 100)
	if err != nil {
		return fmt.Errorf("failed to list stale deliveries: %w", err)
	}

	requeued := 0
	for _, d := range stale {
		queued, err := w.queue.Contains(ctx, d.ID)
		if err != nil {
			w.logger.Warnw("failed to check queue for stale delivery",
				"delivery_id", d.ID,
				"error", err)
			continue
		}
		if queued {
			continue
		}

		sub, err := w.subs.Get(ctx, d.SubscriptionID)
		if err != nil {
			w.logger.Warnw("failed to load subscription for stale delivery",
				"delivery_id", d.ID,
				"subscription_id", d.SubscriptionID,
				"error", err)
			continue
		}

		job := &model.DeliveryJob{
			DeliveryID:     d.ID,
			SubscriptionID: sub.ID,
			Event:          d.Event,
			Payload:        d.Payload,
			TargetURL:      sub.TargetURL,
			Secret:         sub.Secret,
			Timeout:        sub.Timeout,
			Attempt:        d.Attempts,
			MaxAttempts:    d.MaxAttempts,
		}
		if err := w.queue.Enqueue(ctx, job, 0); err != nil {
			w.logger.Warnw("failed to requeue stale delivery",
				"delivery_id", d.ID,
				"error", err)
			continue
		}
		requeued++
	}

	if requeued > 0 {
		w.logger.Infow("stale deliveries requeued", "count", requeued)
	}
	return nil
}
