package worker

import (
	"context"
	"sync"

	"github.com/moltbook/ivxp/internal/logger"
	"go.uber.org/zap"
)

// FulfillmentService completes a paid order
type FulfillmentService interface {
	Fulfill(ctx context.Context, orderID string) error
}

// FulfillmentPool runs fulfillment for paid orders off the request path.
// Exactly-once submission is guaranteed by the paid transition upstream,
// not by the pool.
type FulfillmentPool struct {
	svc    FulfillmentService
	orders chan string
	wg     sync.WaitGroup
	onDone func(orderID string, err error)

	mu     sync.Mutex
	closed bool
}

// NewFulfillmentPool creates a pool and starts its workers. onDone, when not
// nil, is called after every processed order; tests use it to await completion.
func NewFulfillmentPool(ctx context.Context, svc FulfillmentService, workers, capacity int, onDone func(orderID string, err error)) *FulfillmentPool {
	p := &FulfillmentPool{
		svc:    svc,
		orders: make(chan string, capacity),
		onDone: onDone,
	}
	p.start(ctx, workers)

	return p
}

func (p *FulfillmentPool) start(ctx context.Context, workers int) {
	for i := 0; i < workers; i++ {
		p.wg.Add(1)

		go func() {
			defer p.wg.Done()

			for {
				select {
				case <-ctx.Done():
					logger.Log.Debug("fulfillment worker is done")
					return
				case orderID, ok := <-p.orders:
					if !ok {
						return
					}

					logger.Log.Debug("fulfilling order", zap.String("order_id", orderID))
					err := p.svc.Fulfill(ctx, orderID)
					if err != nil {
						logger.Log.Error("order fulfillment error",
							zap.String("order_id", orderID),
							zap.Error(err))
					}

					if p.onDone != nil {
						p.onDone(orderID, err)
					}
				}
			}
		}()
	}
}

// Enqueue submits an order for fulfillment. It never blocks the caller: when
// the pool is shut down or the backlog is full the order is dropped with a
// warning and stays paid, so it can be resubmitted to fulfillment out of band.
func (p *FulfillmentPool) Enqueue(orderID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		logger.Log.Warn("fulfillment pool is shut down, order not queued",
			zap.String("order_id", orderID))
		return
	}

	select {
	case p.orders <- orderID:
	default:
		logger.Log.Warn("fulfillment backlog is full, order not queued",
			zap.String("order_id", orderID))
	}
}

// Shutdown stops accepting orders, drains the backlog and waits for in-flight
// fulfillment. Safe to call more than once.
func (p *FulfillmentPool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.orders)
	p.mu.Unlock()

	p.wg.Wait()
}
