package client_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-chi/chi/v5"
	"github.com/moltbook/ivxp/client"
	"github.com/moltbook/ivxp/internal/delivery"
	"github.com/moltbook/ivxp/internal/fulfill"
	handler "github.com/moltbook/ivxp/internal/handler/http"
	"github.com/moltbook/ivxp/internal/models"
	"github.com/moltbook/ivxp/internal/repository/memory"
	"github.com/moltbook/ivxp/internal/service"
	"github.com/moltbook/ivxp/internal/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// first anvil dev account
const (
	testKeyHex  = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

// recoveringVerifier verifies real personal-sign signatures but accepts any
// payment proof, so lifecycle tests run without a chain.
type recoveringVerifier struct{}

func (recoveringVerifier) VerifySignature(message, signature, claimedAddress string) bool {
	sig, err := hex.DecodeString(strings.TrimPrefix(signature, "0x"))
	if err != nil || len(sig) != crypto.SignatureLength {
		return false
	}
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return false
	}
	return strings.EqualFold(crypto.PubkeyToAddress(*pub).Hex(), claimedAddress)
}

func (recoveringVerifier) VerifyPayment(_ context.Context, proof *models.PaymentProof, _ string, _ float64) bool {
	return proof != nil && proof.TxHash != ""
}

type testProvider struct {
	server *httptest.Server
	done   chan string
}

func newTestProvider(t *testing.T) *testProvider {
	t.Helper()

	provider := service.ProviderIdentity{
		AgentName:     "babeta",
		WalletAddress: "0x0c0feb248548e33571584809113891818d4b0805",
		Network:       "base-mainnet",
	}

	store := memory.NewOrderStore()
	pusher := delivery.NewPusher(provider.AgentName, provider.WalletAddress)
	deliverer := delivery.NewDeliverer(store, pusher)

	svc := service.NewOrderService(store, service.NewCatalogService(), recoveringVerifier{}, fulfill.NewStub(0), deliverer, provider)

	done := make(chan string, 8)
	pool := worker.NewFulfillmentPool(context.Background(), svc, 1, 8, func(orderID string, err error) {
		assert.NoError(t, err)
		done <- orderID
	})
	svc.SetFulfillmentQueue(pool)
	t.Cleanup(pool.Shutdown)

	oh := handler.NewOrderHandler(svc, provider)
	ch := handler.NewCatalogHandler(service.NewCatalogService(), provider)

	r := chi.NewRouter()
	r.Post("/ivxp/request", oh.RequestService())
	r.Post("/ivxp/deliver", oh.RequestDelivery())
	r.Get("/ivxp/status/{orderID}", oh.OrderStatus())
	r.Get("/ivxp/download/{orderID}", oh.Download())
	r.Get("/ivxp/catalog", ch.Catalog())

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	return &testProvider{server: server, done: done}
}

func (tp *testProvider) waitFulfilled(t *testing.T) string {
	t.Helper()
	select {
	case orderID := <-tp.done:
		return orderID
	case <-time.After(5 * time.Second):
		t.Fatal("fulfillment did not finish in time")
		return ""
	}
}

func TestClient_Lifecycle_PushDelivery(t *testing.T) {
	tp := newTestProvider(t)

	receiver := client.NewReceiver()
	receiverSrv := httptest.NewServer(receiver.Handler())
	defer receiverSrv.Close()

	c, err := client.New(tp.server.URL, client.Config{
		AgentName:       "client_agent",
		WalletAddress:   testAddress,
		PrivateKeyHex:   testKeyHex,
		ReceiveEndpoint: receiverSrv.URL,
	})
	require.NoError(t, err)

	ctx := context.Background()

	catalog, err := c.Catalog(ctx)
	require.NoError(t, err)
	assert.Equal(t, client.ProtocolVersion, catalog.Protocol)
	assert.NotEmpty(t, catalog.Services)

	quote, err := c.RequestService(ctx, client.ServiceRequest{
		Type:        "research",
		Description: "survey of agent payment protocols",
		BudgetUSDC:  50,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, quote.OrderID)
	assert.Equal(t, float64(50), quote.PriceUSDC)

	// not paid yet
	_, err = c.Download(ctx, quote.OrderID)
	assert.ErrorIs(t, err, client.ErrNotReady)

	accepted, err := c.RequestDelivery(ctx, quote.OrderID, "0x"+strings.Repeat("ab", 32), "base-mainnet")
	require.NoError(t, err)
	assert.Equal(t, "accepted", accepted.Status)

	orderID := tp.waitFulfilled(t)
	assert.Equal(t, quote.OrderID, orderID)

	status, err := c.Status(ctx, quote.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusDelivered, status.Status)
	assert.NotEmpty(t, status.ContentHash)

	pushed, ok := receiver.Get(quote.OrderID)
	require.True(t, ok, "expected a push delivery at the receive endpoint")
	assert.Equal(t, status.ContentHash, pushed.ContentHash)

	// pull works too, for delivered orders
	pulled, err := c.Download(ctx, quote.OrderID)
	require.NoError(t, err)
	assert.Equal(t, pushed.Deliverable.Content, pulled.Deliverable.Content)
}

func TestClient_Lifecycle_PullFallback(t *testing.T) {
	tp := newTestProvider(t)

	// no receive endpoint, push is skipped and the order stays pull-ready
	c, err := client.New(tp.server.URL, client.Config{
		AgentName:     "client_agent",
		WalletAddress: testAddress,
		PrivateKeyHex: testKeyHex,
	})
	require.NoError(t, err)

	ctx := context.Background()

	quote, err := c.RequestService(ctx, client.ServiceRequest{
		Type:        "debugging",
		Description: "flaky worker test",
		BudgetUSDC:  30,
	})
	require.NoError(t, err)

	_, err = c.RequestDelivery(ctx, quote.OrderID, "0x"+strings.Repeat("cd", 32), "base-mainnet")
	require.NoError(t, err)
	tp.waitFulfilled(t)

	pulled, err := c.AwaitDelivery(ctx, quote.OrderID, 10*time.Millisecond, 20)
	require.NoError(t, err)
	assert.Equal(t, quote.OrderID, pulled.OrderID)
	assert.Contains(t, pulled.Deliverable.Content, "flaky worker test")
	assert.Equal(t, "debugging_deliverable", pulled.Deliverable.Type)

	status, err := c.Status(ctx, quote.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusDeliveryFailed, status.Status)
}

func TestClient_RequestDelivery_RequiresKey(t *testing.T) {
	tp := newTestProvider(t)

	c, err := client.New(tp.server.URL, client.Config{
		AgentName:     "client_agent",
		WalletAddress: testAddress,
	})
	require.NoError(t, err)

	_, err = c.RequestDelivery(context.Background(), "ivxp-1", "0xabc", "base-mainnet")
	assert.Error(t, err)
}

func TestClient_Download_HashMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"protocol": "IVXP/1.0",
			"message_type": "service_delivery",
			"order_id": "ivxp-1",
			"deliverable": {"type": "research_deliverable", "format": "markdown", "content": "# tampered"},
			"content_hash": "0000000000000000000000000000000000000000000000000000000000000000"
		}`))
	}))
	defer srv.Close()

	c, err := client.New(srv.URL, client.Config{AgentName: "client_agent"})
	require.NoError(t, err)

	_, err = c.Download(context.Background(), "ivxp-1")
	assert.ErrorIs(t, err, client.ErrContentHashMismatch)
}

func TestClient_Status_NotFound(t *testing.T) {
	tp := newTestProvider(t)

	c, err := client.New(tp.server.URL, client.Config{AgentName: "client_agent"})
	require.NoError(t, err)

	_, err = c.Status(context.Background(), "ivxp-missing")
	assert.Error(t, err)
}

func TestReceiver_RejectsBadHash(t *testing.T) {
	receiver := client.NewReceiver()
	srv := httptest.NewServer(receiver.Handler())
	defer srv.Close()

	body := `{
		"protocol": "IVXP/1.0",
		"message_type": "service_delivery",
		"order_id": "ivxp-1",
		"deliverable": {"type": "research_deliverable", "format": "markdown", "content": "# report"},
		"content_hash": "not-the-hash"
	}`

	res, err := http.Post(srv.URL, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	_, ok := receiver.Get("ivxp-1")
	assert.False(t, ok)
}

func TestReceiver_NotifyOverflowKeepsDeliveries(t *testing.T) {
	receiver := client.NewReceiver()
	srv := httptest.NewServer(receiver.Handler())
	defer srv.Close()

	// nobody drains Deliveries(); pushes beyond the buffer must still be
	// accepted and retrievable
	const pushes = 24
	for i := 0; i < pushes; i++ {
		content := fmt.Sprintf("# report %d\n", i)
		sum := sha256.Sum256([]byte(content))

		body := fmt.Sprintf(`{
			"protocol": "IVXP/1.0",
			"message_type": "service_delivery",
			"order_id": "ivxp-%d",
			"deliverable": {"type": "research_deliverable", "format": "markdown", "content": %q},
			"content_hash": %q
		}`, i, content, hex.EncodeToString(sum[:]))

		res, err := http.Post(srv.URL, "application/json", strings.NewReader(body))
		require.NoError(t, err)
		res.Body.Close()
		require.Equal(t, http.StatusOK, res.StatusCode)
	}

	for i := 0; i < pushes; i++ {
		got, ok := receiver.Get(fmt.Sprintf("ivxp-%d", i))
		require.True(t, ok)
		assert.Contains(t, got.Deliverable.Content, fmt.Sprintf("report %d", i))
	}
}

func TestClient_AwaitDelivery_Exhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"status": "processing", "message": "Service is being processed"}`))
	}))
	defer srv.Close()

	c, err := client.New(srv.URL, client.Config{AgentName: "client_agent"})
	require.NoError(t, err)

	_, err = c.AwaitDelivery(context.Background(), "ivxp-1", time.Millisecond, 3)
	assert.True(t, errors.Is(err, client.ErrAwaitTimeout))
}
