package main

import (
	"context"
	"time"

	"GymPulse/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/robfig/cron/v3"
)

// StartMaintenanceCron schedules the background maintenance jobs:
//   - error-record sweep every minute, bounding aggregator memory
//   - stale-delivery recovery every 30 seconds, requeueing pending
//     deliveries whose queue job was lost mid-attempt
//
// The returned cleanup stops the scheduler and waits for running jobs.
func StartMaintenanceCron(aggregator *biz.ErrorAggregator, worker *biz.DeliveryWorker, logger log.Logger) (*cron.Cron, func()) {
	helper := log.NewHelper(logger)

	c := cron.New(cron.WithSeconds())

	// Cron expression: second minute hour day month weekday
	_, err := c.AddFunc("0 * * * * *", func() {
		aggregator.Sweep()
	})
	if err != nil {
		helper.Errorw("msg", "failed to register aggregator sweep job", "error", err)
	}

	_, err = c.AddFunc("*/30 * * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := worker.RequeueStale(ctx); err != nil {
			helper.Errorw("msg", "stale delivery recovery failed", "error", err)
		}
	})
	if err != nil {
		helper.Errorw("msg", "failed to register stale delivery recovery job", "error", err)
	}

	c.Start()
	helper.Info("maintenance cron started")

	return c, func() {
		stopCtx := c.Stop()
		<-stopCtx.Done()
		helper.Info("maintenance cron stopped")
	}
}
