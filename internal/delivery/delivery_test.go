package delivery

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/moltbook/ivxp/internal/models"
	"github.com/moltbook/ivxp/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedPaidOrder(t *testing.T, store *memory.OrderStore, endpoint string) string {
	t.Helper()

	paidAt := time.Now().UTC()
	order := &models.Order{
		OrderID: "ivxp-test",
		Status:  models.OrderStatusPaid,
		ServiceRequest: models.ServiceRequest{
			Type:        "research",
			Description: "AGI safety overview",
		},
		Quote: models.Quote{
			PriceUSDC: 50,
			Network:   "base-mainnet",
		},
		PaymentProof: &models.PaymentProof{
			TxHash:      "0xabc",
			FromAddress: "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
			Network:     "base-mainnet",
		},
		DeliveryEndpoint: endpoint,
		CreatedAt:        paidAt.Add(-time.Minute),
		PaidAt:           &paidAt,
	}
	require.NoError(t, store.CreateOrder(context.Background(), order))

	return order.OrderID
}

func testDeliverable() *models.Deliverable {
	return &models.Deliverable{
		Type:    "research_deliverable",
		Format:  "markdown",
		Content: "# Research\n\ncontent body\n",
	}
}

func TestDeliverer_PushSuccess(t *testing.T) {
	var received deliveryPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	store := memory.NewOrderStore()
	orderID := seedPaidOrder(t, store, server.URL)

	d := NewDeliverer(store, NewPusher("babeta", "0x0c0feb248548e33571584809113891818d4b0805"))
	require.NoError(t, d.Deliver(context.Background(), orderID, testDeliverable()))

	order, err := store.GetOrder(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusDelivered, order.Status)
	assert.NotNil(t, order.DeliveredAt)
	assert.NotNil(t, order.CompletedAt)

	// push payload carries the same content and hash the store keeps
	assert.Equal(t, models.ProtocolVersion, received.Protocol)
	assert.Equal(t, models.MessageTypeServiceDelivery, received.MessageType)
	assert.Equal(t, order.ContentHash, received.ContentHash)
	assert.Equal(t, order.Deliverable.Content, received.Deliverable.Content)
}

func TestDeliverer_PushFailureFallsBackToPull(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not today", http.StatusInternalServerError)
	}))
	defer server.Close()

	store := memory.NewOrderStore()
	orderID := seedPaidOrder(t, store, server.URL)

	d := NewDeliverer(store, NewPusher("babeta", "0x0c0feb248548e33571584809113891818d4b0805"))
	require.NoError(t, d.Deliver(context.Background(), orderID, testDeliverable()))

	order, err := store.GetOrder(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusDeliveryFailed, order.Status)
	assert.Nil(t, order.DeliveredAt)

	// the artifact survived the failed push
	require.NotNil(t, order.Deliverable)
	assert.Equal(t, testDeliverable().Content, order.Deliverable.Content)
	assert.Equal(t, ContentHash(order.Deliverable.Content), order.ContentHash)
}

func TestDeliverer_UnreachableEndpoint(t *testing.T) {
	store := memory.NewOrderStore()
	orderID := seedPaidOrder(t, store, "http://127.0.0.1:1/ivxp/receive")

	d := NewDeliverer(store, NewPusher("babeta", "0x0c0feb248548e33571584809113891818d4b0805"))
	require.NoError(t, d.Deliver(context.Background(), orderID, testDeliverable()))

	order, err := store.GetOrder(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusDeliveryFailed, order.Status)
	require.NotNil(t, order.Deliverable)
}

func TestDeliverer_NoEndpoint(t *testing.T) {
	store := memory.NewOrderStore()
	orderID := seedPaidOrder(t, store, "")

	d := NewDeliverer(store, NewPusher("babeta", "0x0c0feb248548e33571584809113891818d4b0805"))
	require.NoError(t, d.Deliver(context.Background(), orderID, testDeliverable()))

	order, err := store.GetOrder(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusDeliveryFailed, order.Status)
	require.NotNil(t, order.Deliverable)
	assert.NotNil(t, order.CompletedAt)
}

func TestDeliverer_WrongState(t *testing.T) {
	store := memory.NewOrderStore()
	order := &models.Order{
		OrderID:   "ivxp-quoted",
		Status:    models.OrderStatusQuoted,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.CreateOrder(context.Background(), order))

	d := NewDeliverer(store, NewPusher("babeta", "0x0c0feb248548e33571584809113891818d4b0805"))
	err := d.Deliver(context.Background(), "ivxp-quoted", testDeliverable())
	assert.ErrorIs(t, err, models.ErrInvalidOrderState)

	got, err := store.GetOrder(context.Background(), "ivxp-quoted")
	require.NoError(t, err)
	assert.Nil(t, got.Deliverable)
	assert.Empty(t, got.ContentHash)
}

func TestContentHash(t *testing.T) {
	content := "# Research\n\ncontent body\n"
	sum := sha256.Sum256([]byte(content))

	assert.Equal(t, hex.EncodeToString(sum[:]), ContentHash(content))
	// stable across calls
	assert.Equal(t, ContentHash(content), ContentHash(content))
}
