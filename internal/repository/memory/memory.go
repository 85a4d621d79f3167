package memory

import (
	"context"
	"sync"

	"github.com/moltbook/ivxp/internal/models"
)

// OrderStore is an in-memory order repository. Orders are deep-copied on the
// way in and out, so callers never share memory with the stored record and a
// reader can not observe a partially applied update.
type OrderStore struct {
	mu     sync.RWMutex
	orders map[string]*models.Order
}

// NewOrderStore creates new OrderStore instance
func NewOrderStore() *OrderStore {
	return &OrderStore{orders: make(map[string]*models.Order)}
}

// CreateOrder stores new order
func (s *OrderStore) CreateOrder(ctx context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[order.OrderID]; ok {
		return models.ErrInvalidOrderState
	}
	s.orders[order.OrderID] = order.Clone()

	return nil
}

// GetOrder returns order by id
func (s *OrderStore) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[orderID]
	if !ok {
		return nil, models.ErrOrderNotFound
	}

	return order.Clone(), nil
}

// UpdateOrder atomically applies fn to the stored order. fn receives a copy;
// the copy replaces the stored record only when fn returns nil, so a failed
// guard leaves the order untouched.
func (s *OrderStore) UpdateOrder(ctx context.Context, orderID string, fn func(*models.Order) error) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return nil, models.ErrOrderNotFound
	}

	next := order.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	s.orders[orderID] = next

	return next.Clone(), nil
}
