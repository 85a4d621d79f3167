package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/moltbook/ivxp/internal/models"
)

// bound for a single push attempt
const pushTimeout = 30 * time.Second

// Pusher posts completed deliverables to client contact endpoints
type Pusher struct {
	client        *http.Client
	agentName     string
	walletAddress string
}

// NewPusher creates new Pusher instance
func NewPusher(agentName, walletAddress string) *Pusher {
	return &Pusher{
		client: &http.Client{
			Timeout: pushTimeout,
		},
		agentName:     agentName,
		walletAddress: walletAddress,
	}
}

type providerAgent struct {
	Name          string `json:"name"`
	WalletAddress string `json:"wallet_address"`
}

type deliveryPayload struct {
	Protocol      string             `json:"protocol"`
	MessageType   string             `json:"message_type"`
	Timestamp     string             `json:"timestamp"`
	OrderID       string             `json:"order_id"`
	Status        string             `json:"status"`
	ProviderAgent providerAgent      `json:"provider_agent"`
	Deliverable   models.Deliverable `json:"deliverable"`
	ContentHash   string             `json:"content_hash"`
}

// Push posts the service_delivery payload to endpoint. A transport error and a
// non-200 response are the same failure to the caller.
func (p *Pusher) Push(ctx context.Context, endpoint string, order *models.Order) error {
	payload := deliveryPayload{
		Protocol:    models.ProtocolVersion,
		MessageType: models.MessageTypeServiceDelivery,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		OrderID:     order.OrderID,
		Status:      "completed",
		ProviderAgent: providerAgent{
			Name:          p.agentName,
			WalletAddress: p.walletAddress,
		},
		Deliverable: *order.Deliverable,
		ContentHash: order.ContentHash,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("push delivery rejected: %s", resp.Status)
	}

	return nil
}
