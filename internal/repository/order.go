package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/moltbook/ivxp/internal/models"
	"github.com/moltbook/ivxp/internal/repository/postgres"
)

const pgErrUniqueViolationCode = "23505"

const (
	insertOrderQuery = `
						INSERT INTO orders (order_id, status, client, service_request, quote,
						                    payment_proof, delivery_endpoint, deliverable, content_hash,
						                    created_at, paid_at, completed_at, delivered_at)
						VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
`
	selectOrderQuery = `
						SELECT order_id, status, client, service_request, quote,
						       payment_proof, delivery_endpoint, deliverable, content_hash,
						       created_at, paid_at, completed_at, delivered_at
						FROM orders
						WHERE order_id = $1
`
	selectOrderForUpdateQuery = selectOrderQuery + ` FOR UPDATE`

	updateOrderQuery = `
						UPDATE orders
						SET status = $1, payment_proof = $2, delivery_endpoint = $3,
						    deliverable = $4, content_hash = $5,
						    paid_at = $6, completed_at = $7, delivered_at = $8
						WHERE order_id = $9
`
)

// OrderRepository is the postgres backed order store
type OrderRepository struct {
	db *postgres.DB
}

// NewOrderRepository creates new OrderRepository instance
func NewOrderRepository(db *postgres.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func scanOrder(row pgx.Row) (*models.Order, error) {
	order := models.Order{}
	err := row.Scan(&order.OrderID, &order.Status, &order.Client, &order.ServiceRequest, &order.Quote,
		&order.PaymentProof, &order.DeliveryEndpoint, &order.Deliverable, &order.ContentHash,
		&order.CreatedAt, &order.PaidAt, &order.CompletedAt, &order.DeliveredAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrOrderNotFound
		}
		return nil, err
	}

	return &order, nil
}

// CreateOrder inserts new order to database
func (or *OrderRepository) CreateOrder(ctx context.Context, order *models.Order) error {
	_, err := or.db.Exec(ctx, insertOrderQuery,
		order.OrderID, order.Status, order.Client, order.ServiceRequest, order.Quote,
		order.PaymentProof, order.DeliveryEndpoint, order.Deliverable, order.ContentHash,
		order.CreatedAt, order.PaidAt, order.CompletedAt, order.DeliveredAt)
	if err != nil {
		if errCode := or.db.ErrorCode(err); errCode == pgErrUniqueViolationCode {
			return models.ErrInvalidOrderState
		}
		return err
	}

	return nil
}

// GetOrder returns order by id
func (or *OrderRepository) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	return scanOrder(or.db.QueryRow(ctx, selectOrderQuery, orderID))
}

// UpdateOrder applies fn to the order inside a transaction. The row is locked
// for the duration, so concurrent updates serialize and fn's guards decide
// exactly one winner. A non-nil error from fn rolls the transaction back.
func (or *OrderRepository) UpdateOrder(ctx context.Context, orderID string, fn func(*models.Order) error) (*models.Order, error) {
	tx, err := or.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	order, err := scanOrder(tx.QueryRow(ctx, selectOrderForUpdateQuery, orderID))
	if err != nil {
		return nil, err
	}

	if err := fn(order); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, updateOrderQuery,
		order.Status, order.PaymentProof, order.DeliveryEndpoint,
		order.Deliverable, order.ContentHash,
		order.PaidAt, order.CompletedAt, order.DeliveredAt, orderID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return order, nil
}
