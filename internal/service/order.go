package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/moltbook/ivxp/internal/fulfill"
	"github.com/moltbook/ivxp/internal/logger"
	"github.com/moltbook/ivxp/internal/models"
	"go.uber.org/zap"
)

// OrderRepository is interface for interacting with order-related data
type OrderRepository interface {
	// CreateOrder stores new order
	CreateOrder(ctx context.Context, order *models.Order) error
	// GetOrder returns order by id
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)
	// UpdateOrder atomically applies fn to the stored order
	UpdateOrder(ctx context.Context, orderID string, fn func(*models.Order) error) (*models.Order, error)
}

// CryptoVerifier authenticates delivery requests and confirms payment proofs
type CryptoVerifier interface {
	VerifySignature(message, signature, claimedAddress string) bool
	VerifyPayment(ctx context.Context, proof *models.PaymentProof, expectedTo string, expectedAmount float64) bool
}

// Deliverer hands a completed order to the delivery component
type Deliverer interface {
	Deliver(ctx context.Context, orderID string, deliverable *models.Deliverable) error
}

// FulfillmentQueue accepts paid orders for asynchronous fulfillment
type FulfillmentQueue interface {
	Enqueue(orderID string)
}

// ProviderIdentity is the provider side of every quote
type ProviderIdentity struct {
	AgentName     string
	WalletAddress string
	Network       string
	TokenContract string
}

// OrderService owns the order lifecycle: quoted -> paid ->
// delivered | delivery_failed | fulfillment_failed. Every transition moves
// forward only.
type OrderService struct {
	repo      OrderRepository
	catalog   *CatalogService
	verifier  CryptoVerifier
	fulfiller fulfill.Fulfiller
	deliverer Deliverer
	queue     FulfillmentQueue
	provider  ProviderIdentity
}

// NewOrderService creates new OrderService instance
func NewOrderService(repo OrderRepository, catalog *CatalogService, verifier CryptoVerifier, fulfiller fulfill.Fulfiller, deliverer Deliverer, provider ProviderIdentity) *OrderService {
	return &OrderService{
		repo:      repo,
		catalog:   catalog,
		verifier:  verifier,
		fulfiller: fulfiller,
		deliverer: deliverer,
		provider:  provider,
	}
}

// SetFulfillmentQueue installs the queue paid orders are submitted to.
// The queue depends on this service for fulfillment, so it is wired after
// construction.
func (os *OrderService) SetFulfillmentQueue(q FulfillmentQueue) {
	os.queue = q
}

// Provider returns the provider identity used for quoting
func (os *OrderService) Provider() ProviderIdentity {
	return os.provider
}

// CreateOrder validates the service request against the catalog, computes a
// quote and persists the order in quoted state.
func (os *OrderService) CreateOrder(ctx context.Context, client models.ClientAgent, req models.ServiceRequest) (*models.Order, error) {
	info, ok := os.catalog.Lookup(req.Type)
	if !ok {
		return nil, models.ErrUnknownServiceType
	}

	now := time.Now().UTC()
	order := &models.Order{
		OrderID:        "ivxp-" + uuid.NewString(),
		Status:         models.OrderStatusQuoted,
		Client:         client,
		ServiceRequest: req,
		Quote: models.Quote{
			PriceUSDC:         info.BasePriceUSDC,
			EstimatedDelivery: now.Add(time.Duration(info.DeliveryHours * float64(time.Hour))),
			PaymentAddress:    os.provider.WalletAddress,
			Network:           os.provider.Network,
			TokenContract:     os.provider.TokenContract,
		},
		CreatedAt: now,
	}

	if err := os.repo.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	logger.Log.Info("service request received",
		zap.String("order_id", order.OrderID),
		zap.String("client", client.Name),
		zap.String("service", req.Type),
		zap.Float64("price_usdc", order.Quote.PriceUSDC))

	return order, nil
}

// SubmitPaymentProof is the one-shot payment gate. Both verifications run
// before any mutation; the quoted -> paid transition is re-checked inside the
// atomic update, so concurrent submissions admit exactly one winner and the
// fulfillment queue sees the order once.
func (os *OrderService) SubmitPaymentProof(ctx context.Context, orderID, signedMessage, signature string, proof models.PaymentProof, deliveryEndpoint string) error {
	order, err := os.repo.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != models.OrderStatusQuoted {
		return models.ErrInvalidOrderState
	}

	if !os.verifier.VerifySignature(signedMessage, signature, proof.FromAddress) {
		logger.Log.Warn("signature verification failed", zap.String("order_id", orderID))
		return models.ErrSignatureInvalid
	}

	if !os.verifier.VerifyPayment(ctx, &proof, os.provider.WalletAddress, order.Quote.PriceUSDC) {
		logger.Log.Warn("payment verification failed",
			zap.String("order_id", orderID),
			zap.String("tx_hash", proof.TxHash))
		return models.ErrPaymentInvalid
	}

	paidAt := time.Now().UTC()
	_, err = os.repo.UpdateOrder(ctx, orderID, func(o *models.Order) error {
		if o.Status != models.OrderStatusQuoted {
			return models.ErrInvalidOrderState
		}
		o.Status = models.OrderStatusPaid
		o.PaymentProof = &proof
		o.DeliveryEndpoint = deliveryEndpoint
		o.PaidAt = &paidAt
		return nil
	})
	if err != nil {
		return err
	}

	logger.Log.Info("order marked as paid",
		zap.String("order_id", orderID),
		zap.String("tx_hash", proof.TxHash))

	if os.queue != nil {
		os.queue.Enqueue(orderID)
	}

	return nil
}

// Fulfill produces the deliverable for a paid order and hands it to the
// delivery component. Invoked by the fulfillment pool. A fulfiller error
// moves the order to fulfillment_failed so polling clients can tell it apart
// from still processing.
func (os *OrderService) Fulfill(ctx context.Context, orderID string) error {
	order, err := os.repo.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != models.OrderStatusPaid {
		return models.ErrInvalidOrderState
	}

	deliverable, err := os.fulfiller.Fulfill(ctx, order.ServiceRequest)
	if err != nil {
		logger.Log.Error("fulfillment collaborator failed",
			zap.String("order_id", orderID),
			zap.Error(err))

		if _, uerr := os.repo.UpdateOrder(ctx, orderID, func(o *models.Order) error {
			if o.Status != models.OrderStatusPaid {
				return models.ErrInvalidOrderState
			}
			o.Status = models.OrderStatusFulfillmentFailed
			return nil
		}); uerr != nil {
			return uerr
		}

		return fmt.Errorf("%w: %v", models.ErrFulfillmentFailed, err)
	}

	return os.deliverer.Deliver(ctx, orderID, deliverable)
}

// Status is a pure read of the order
func (os *OrderService) Status(ctx context.Context, orderID string) (*models.Order, error) {
	return os.repo.GetOrder(ctx, orderID)
}

// Download returns the order with its deliverable when fulfillment has
// completed. For quoted and paid orders it returns the order together with
// ErrNotReady so callers can tell waiting for payment from processing; it is
// a soft signal for pollers, not a hard failure.
func (os *OrderService) Download(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := os.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	switch order.Status {
	case models.OrderStatusQuoted, models.OrderStatusPaid:
		return order, models.ErrNotReady
	case models.OrderStatusFulfillmentFailed:
		return order, models.ErrFulfillmentFailed
	case models.OrderStatusDelivered, models.OrderStatusDeliveryFailed:
		if order.Deliverable == nil {
			return order, models.ErrNotReady
		}
		return order, nil
	default:
		return order, models.ErrInvalidOrderState
	}
}
