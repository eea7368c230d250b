package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"GymPulse/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// WebhookDelivery is the GORM model for the webhook_deliveries table. One
// row per triggered delivery; attempt bookkeeping is folded into the row
// rather than a child table.
type WebhookDelivery struct {
	ID             string     `gorm:"column:id;primaryKey;type:varchar(36)"`
	SubscriptionID string     `gorm:"column:subscription_id;not null;index;type:varchar(36)"`
	Event          string     `gorm:"column:event;not null;type:varchar(64)"`
	Payload        string     `gorm:"column:payload;not null;type:json"`
	Status         string     `gorm:"column:status;not null;default:pending;index;type:varchar(16)"`
	Attempts       int        `gorm:"column:attempts;not null;default:0"`
	MaxAttempts    int        `gorm:"column:max_attempts;not null;default:3"`
	LastStatusCode int        `gorm:"column:last_status_code;not null;default:0"`
	LastError      string     `gorm:"column:last_error;not null;default:'';type:varchar(512)"`
	LastSignature  string     `gorm:"column:last_signature;not null;default:'';type:varchar(64)"`
	LatencyMs      int64      `gorm:"column:latency_ms;not null;default:0"`
	CreatedAt      time.Time  `gorm:"column:created_at;index"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;index"`
	DeliveredAt    *time.Time `gorm:"column:delivered_at"`
}

// TableName specifies the table name.
func (WebhookDelivery) TableName() string {
	return "webhook_deliveries"
}

func (d *WebhookDelivery) toModel() *model.Delivery {
	return &model.Delivery{
		ID:             d.ID,
		SubscriptionID: d.SubscriptionID,
		Event:          d.Event,
		Payload:        json.RawMessage(d.Payload),
		Status:         model.DeliveryStatus(d.Status),
		Attempts:       d.Attempts,
		MaxAttempts:    d.MaxAttempts,
		LastStatusCode: d.LastStatusCode,
		LastError:      d.LastError,
		LastSignature:  d.LastSignature,
		LatencyMs:      d.LatencyMs,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
		DeliveredAt:    d.DeliveredAt,
	}
}

// DeliveryRepo implements biz.DeliveryRepo on MySQL.
type DeliveryRepo struct {
	db     *gorm.DB
	logger *log.Helper
}

// NewDeliveryRepo creates a delivery repository.
func NewDeliveryRepo(d *Data, logger log.Logger) *DeliveryRepo {
	return &DeliveryRepo{
		db:     d.db,
		logger: log.NewHelper(logger),
	}
}

// Create inserts a fresh pending delivery record.
func (r *DeliveryRepo) Create(ctx context.Context, d *model.Delivery) error {
	now := time.Now().UTC()
	row := WebhookDelivery{
		ID:             d.ID,
		SubscriptionID: d.SubscriptionID,
		Event:          d.Event,
		Payload:        string(d.Payload),
		Status:         string(d.Status),
		Attempts:       d.Attempts,
		MaxAttempts:    d.MaxAttempts,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to create delivery %s: %w", d.ID, err)
	}
	return nil
}

// Get returns one delivery by id.
func (r *DeliveryRepo) Get(ctx context.Context, id string) (*model.Delivery, error) {
	var row WebhookDelivery
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("delivery not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get delivery %s: %w", id, err)
	}
	return row.toModel(), nil
}

// RecordAttempt persists the outcome of a failed attempt without changing
// the delivery status. The status guard in the WHERE clause makes terminal
// deliveries immutable; touching one returns model.ErrDeliveryTerminal.
func (r *DeliveryRepo) RecordAttempt(ctx context.Context, id string, res model.AttemptResult) error {
	tx := r.db.WithContext(ctx).
		Model(&WebhookDelivery{}).
		Where("id = ? AND status = ?", id, string(model.DeliveryStatusPending)).
		Updates(map[string]interface{}{
			"attempts":         res.Attempt,
			"last_status_code": res.StatusCode,
			"last_error":       truncateError(res.Error),
			"last_signature":   res.Signature,
			"latency_ms":       res.Latency.Milliseconds(),
			"updated_at":       time.Now().UTC(),
		})
	if tx.Error != nil {
		return fmt.Errorf("failed to record attempt for delivery %s: %w", id, tx.Error)
	}
	if tx.RowsAffected == 0 {
		return model.ErrDeliveryTerminal
	}
	return nil
}

// MarkSucceeded transitions a pending delivery to success.
func (r *DeliveryRepo) MarkSucceeded(ctx context.Context, id string, res model.AttemptResult) error {
	now := time.Now().UTC()
	tx := r.db.WithContext(ctx).
		Model(&WebhookDelivery{}).
		Where("id = ? AND status = ?", id, string(model.DeliveryStatusPending)).
		Updates(map[string]interface{}{
			"status":           string(model.DeliveryStatusSuccess),
			"attempts":         res.Attempt,
			"last_status_code": res.StatusCode,
			"last_error":       "",
			"last_signature":   res.Signature,
			"latency_ms":       res.Latency.Milliseconds(),
			"updated_at":       now,
			"delivered_at":     now,
		})
	if tx.Error != nil {
		return fmt.Errorf("failed to mark delivery %s succeeded: %w", id, tx.Error)
	}
	if tx.RowsAffected == 0 {
		return model.ErrDeliveryTerminal
	}
	return nil
}

// MarkFailed transitions a pending delivery to failed after its attempt
// ceiling is exhausted.
func (r *DeliveryRepo) MarkFailed(ctx context.Context, id string, res model.AttemptResult) error {
	tx := r.db.WithContext(ctx).
		Model(&WebhookDelivery{}).
		Where("id = ? AND status = ?", id, string(model.DeliveryStatusPending)).
		Updates(map[string]interface{}{
			"status":           string(model.DeliveryStatusFailed),
			"attempts":         res.Attempt,
			"last_status_code": res.StatusCode,
			"last_error":       truncateError(res.Error),
			"last_signature":   res.Signature,
			"latency_ms":       res.Latency.Milliseconds(),
			"updated_at":       time.Now().UTC(),
		})
	if tx.Error != nil {
		return fmt.Errorf("failed to mark delivery %s failed: %w", id, tx.Error)
	}
	if tx.RowsAffected == 0 {
		return model.ErrDeliveryTerminal
	}
	return nil
}

// ListStalePending returns pending deliveries untouched since before,
// oldest first. Used by the cron recovery sweep to requeue jobs lost to a
// worker crash.
func (r *DeliveryRepo) ListStalePending(ctx context.Context, before time.Time, limit int) ([]*model.Delivery, error) {
	var rows []WebhookDelivery
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", string(model.DeliveryStatusPending), before).
		Order("updated_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list stale deliveries: %w", err)
	}

	out := make([]*model.Delivery, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toModel())
	}
	return out, nil
}

// truncateError keeps last_error within its column width.
func truncateError(msg string) string {
	const maxLen = 512
	if len(msg) > maxLen {
		return msg[:maxLen]
	}
	return msg
}
