package delivery

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/moltbook/ivxp/internal/logger"
	"github.com/moltbook/ivxp/internal/models"
	"go.uber.org/zap"
)

// OrderRepository is the store access the deliverer needs
type OrderRepository interface {
	// UpdateOrder atomically applies fn to the stored order
	UpdateOrder(ctx context.Context, orderID string, fn func(*models.Order) error) (*models.Order, error)
}

// DeliveryPusher pushes a completed order to a client endpoint
type DeliveryPusher interface {
	Push(ctx context.Context, endpoint string, order *models.Order) error
}

// Deliverer persists the deliverable first, then attempts best effort push
// delivery and falls back to pull readiness.
type Deliverer struct {
	repo   OrderRepository
	pusher DeliveryPusher
}

// NewDeliverer creates new Deliverer instance
func NewDeliverer(repo OrderRepository, pusher DeliveryPusher) *Deliverer {
	return &Deliverer{
		repo:   repo,
		pusher: pusher,
	}
}

// ContentHash returns the sha256 hex digest of the deliverable content.
// Clients recompute it over the downloaded bytes to detect corruption.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Deliver attaches the deliverable to the order before any network call, so
// the artifact survives regardless of transport outcome. Push success moves
// the order to delivered; push failure or a missing endpoint moves it to
// delivery_failed, which keeps the deliverable downloadable.
func (d *Deliverer) Deliver(ctx context.Context, orderID string, deliverable *models.Deliverable) error {
	hash := ContentHash(deliverable.Content)
	completedAt := time.Now().UTC()

	order, err := d.repo.UpdateOrder(ctx, orderID, func(o *models.Order) error {
		if o.Status != models.OrderStatusPaid {
			return models.ErrInvalidOrderState
		}
		o.Deliverable = deliverable
		o.ContentHash = hash
		o.CompletedAt = &completedAt
		return nil
	})
	if err != nil {
		return err
	}

	logger.Log.Info("deliverable saved",
		zap.String("order_id", orderID),
		zap.String("content_hash", hash))

	if order.DeliveryEndpoint != "" {
		pushErr := d.pusher.Push(ctx, order.DeliveryEndpoint, order)
		if pushErr == nil {
			deliveredAt := time.Now().UTC()
			_, err := d.repo.UpdateOrder(ctx, orderID, func(o *models.Order) error {
				o.Status = models.OrderStatusDelivered
				o.DeliveredAt = &deliveredAt
				return nil
			})
			if err != nil {
				return err
			}

			logger.Log.Info("push delivery successful", zap.String("order_id", orderID))
			return nil
		}

		logger.Log.Warn("push delivery failed, falling back to pull",
			zap.String("order_id", orderID),
			zap.String("endpoint", order.DeliveryEndpoint),
			zap.Error(pushErr))
	}

	_, err = d.repo.UpdateOrder(ctx, orderID, func(o *models.Order) error {
		o.Status = models.OrderStatusDeliveryFailed
		return nil
	})
	if err != nil {
		return err
	}

	logger.Log.Info("order ready for download", zap.String("order_id", orderID))
	return nil
}
