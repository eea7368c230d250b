package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"GymPulse/internal/conf"
	"GymPulse/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"gorm.io/gorm"
)

// subscriptionCacheSize bounds the in-process LRU. Event types are a small
// closed set, so this is generous.
const subscriptionCacheSize = 256

// defaultSubscriptionCacheTTL is deliberately short: subscription CRUD
// happens in an external collaborator, and a stale read only delays
// (de)activation by a few seconds.
const defaultSubscriptionCacheTTL = 30 * time.Second

// WebhookSubscription is the GORM model for the webhook_subscriptions
// table, owned by the external subscription registry and read-only here.
type WebhookSubscription struct {
	ID          string    `gorm:"column:id;primaryKey;type:varchar(36)"`
	ClientID    string    `gorm:"column:client_id;not null;type:varchar(36)"`
	TargetURL   string    `gorm:"column:target_url;not null;type:varchar(512)"`
	Secret      string    `gorm:"column:secret;not null;type:varchar(128)"`
	Events      string    `gorm:"column:events;not null;type:json"`
	MaxAttempts int       `gorm:"column:max_attempts;not null;default:3"`
	TimeoutMs   int64     `gorm:"column:timeout_ms;not null;default:10000"`
	Active      bool      `gorm:"column:active;not null;default:1"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

// TableName specifies the table name.
func (WebhookSubscription) TableName() string {
	return "webhook_subscriptions"
}

// toModel converts the row into the domain type.
func (s *WebhookSubscription) toModel() (*model.Subscription, error) {
	var events []string
	if err := json.Unmarshal([]byte(s.Events), &events); err != nil {
		return nil, fmt.Errorf("subscription %s has malformed events: %w", s.ID, err)
	}

	return &model.Subscription{
		ID:          s.ID,
		ClientID:    s.ClientID,
		TargetURL:   s.TargetURL,
		Secret:      s.Secret,
		Events:      events,
		MaxAttempts: s.MaxAttempts,
		Timeout:     time.Duration(s.TimeoutMs) * time.Millisecond,
		Active:      s.Active,
	}, nil
}

// SubscriptionRepo implements biz.SubscriptionRepo with a two-level cache:
// an in-process expirable LRU in front of the shared redis cache, then
// MySQL.
type SubscriptionRepo struct {
	db     *gorm.DB
	cache  CacheClient
	local  *expirable.LRU[string, []*model.Subscription]
	ttl    time.Duration
	logger *log.Helper
}

// NewSubscriptionRepo creates a subscription repository.
func NewSubscriptionRepo(c *conf.Webhook, d *Data, cache CacheClient, logger log.Logger) *SubscriptionRepo {
	ttl := defaultSubscriptionCacheTTL
	if c != nil && c.CacheTTL != nil && c.CacheTTL.AsDuration() > 0 {
		ttl = c.CacheTTL.AsDuration()
	}
	return &SubscriptionRepo{
		db:     d.db,
		cache:  cache,
		local:  expirable.NewLRU[string, []*model.Subscription](subscriptionCacheSize, nil, ttl),
		ttl:    ttl,
		logger: log.NewHelper(logger),
	}
}

// ListActiveByEvent returns every active subscription whose event set
// contains event. Cache fills are best-effort; a cache failure falls
// through to the database.
func (r *SubscriptionRepo) ListActiveByEvent(ctx context.Context, event string) ([]*model.Subscription, error) {
	if subs, ok := r.local.Get(event); ok {
		return subs, nil
	}

	cacheKey := BuildCacheKey(CacheKeySubscriptions, event)
	var cached []*model.Subscription
	if err := r.cache.Get(ctx, cacheKey, &cached); err == nil {
		r.local.Add(event, cached)
		return cached, nil
	} else if !errors.Is(err, ErrCacheNotFound) {
		r.logger.Warnf("subscription cache read failed for %s: %v", event, err)
	}

	var rows []WebhookSubscription
	err := r.db.WithContext(ctx).
		Where("active = ? AND JSON_CONTAINS(events, JSON_QUOTE(?))", true, event).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions for %s: %w", event, err)
	}

	subs := make([]*model.Subscription, 0, len(rows))
	for i := range rows {
		sub, err := rows[i].toModel()
		if err != nil {
			r.logger.Warnf("skipping subscription: %v", err)
			continue
		}
		subs = append(subs, sub)
	}

	r.local.Add(event, subs)
	if err := r.cache.Set(ctx, cacheKey, subs, r.ttl); err != nil {
		r.logger.Warnf("subscription cache write failed for %s: %v", event, err)
	}

	return subs, nil
}

// Get returns one subscription by id.
func (r *SubscriptionRepo) Get(ctx context.Context, id string) (*model.Subscription, error) {
	cacheKey := BuildCacheKey(CacheKeySubscription, id)
	var cached model.Subscription
	if err := r.cache.Get(ctx, cacheKey, &cached); err == nil {
		return &cached, nil
	}

	var row WebhookSubscription
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("subscription not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get subscription %s: %w", id, err)
	}

	sub, err := row.toModel()
	if err != nil {
		return nil, err
	}

	if err := r.cache.Set(ctx, cacheKey, sub, r.ttl); err != nil {
		r.logger.Warnf("subscription cache write failed for %s: %v", id, err)
	}
	return sub, nil
}
