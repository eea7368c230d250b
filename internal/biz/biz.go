// Package biz contains the business logic layer: the resilience primitives
// (retry executor, circuit breaker registry, error aggregator, rate
// limiter) and the webhook dispatch-and-delivery pipeline. Repository
// interfaces are defined here and implemented in the data layer.
package biz

import (
	"GymPulse/internal/data"

	"github.com/google/wire"
)

// ProviderSet is biz providers.
var ProviderSet = wire.NewSet(
	NewRetryExecutor,
	NewBreakerRegistry,
	NewErrorAggregator,
	NewRateLimiter,
	NewWebhookUsecase,
	NewDeliveryWorker,
	// Bind data layer implementations to biz layer interfaces
	wire.Bind(new(RateLimitRepo), new(*data.RateLimitRepo)),
	wire.Bind(new(SubscriptionRepo), new(*data.SubscriptionRepo)),
	wire.Bind(new(DeliveryRepo), new(*data.DeliveryRepo)),
	wire.Bind(new(DeliveryQueue), new(*data.DeliveryQueue)),
	wire.Bind(new(Alerter), new(*data.LogAlerter)),
)
