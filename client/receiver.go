package client

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"sync"
)

// notifyBuffer bounds the Deliveries channel
const notifyBuffer = 16

// Receiver accepts push deliveries from providers. Mount Handler on the
// endpoint advertised as the client's delivery_endpoint.
type Receiver struct {
	mu         sync.Mutex
	deliveries map[string]Delivery
	notify     chan Delivery
}

// NewReceiver creates a receiver. Deliveries are kept in memory and also
// published on the Deliveries channel.
func NewReceiver() *Receiver {
	return &Receiver{
		deliveries: make(map[string]Delivery),
		notify:     make(chan Delivery, notifyBuffer),
	}
}

// Deliveries emits accepted push deliveries. The channel is bounded; when no
// one is draining it the notification is dropped, and the delivery stays
// retrievable through Get. The handler never blocks on a slow consumer.
func (rc *Receiver) Deliveries() <-chan Delivery {
	return rc.notify
}

// Get returns a previously received delivery.
func (rc *Receiver) Get(orderID string) (Delivery, bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	delivery, ok := rc.deliveries[orderID]
	return delivery, ok
}

type pushDeliveryMessage struct {
	Protocol    string      `json:"protocol"`
	MessageType string      `json:"message_type"`
	OrderID     string      `json:"order_id"`
	Deliverable Deliverable `json:"deliverable"`
	ContentHash string      `json:"content_hash"`
}

// Handler handles POST push deliveries. The message is rejected unless the
// protocol and message type match and the content hash verifies.
func (rc *Receiver) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var msg pushDeliveryMessage
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			http.Error(w, "invalid delivery payload", http.StatusBadRequest)
			return
		}
		if msg.Protocol != ProtocolVersion || msg.MessageType != messageTypeServiceDelivery {
			http.Error(w, "unsupported message", http.StatusBadRequest)
			return
		}

		sum := sha256.Sum256([]byte(msg.Deliverable.Content))
		if hex.EncodeToString(sum[:]) != msg.ContentHash {
			http.Error(w, "content hash mismatch", http.StatusBadRequest)
			return
		}

		delivery := Delivery{
			OrderID:     msg.OrderID,
			Deliverable: msg.Deliverable,
			ContentHash: msg.ContentHash,
		}

		rc.mu.Lock()
		rc.deliveries[msg.OrderID] = delivery
		rc.mu.Unlock()

		select {
		case rc.notify <- delivery:
		default:
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "received", "order_id": msg.OrderID})
	}
}
