package models

import "time"

// quoted - quote issued, waiting for payment proof;
// paid - payment proof verified, fulfillment in progress;
// delivered - deliverable pushed to the client endpoint;
// delivery_failed - push failed or no endpoint, deliverable ready for download;
// fulfillment_failed - fulfillment collaborator failed, order will not complete.

// order status
const (
	OrderStatusQuoted            = "quoted"
	OrderStatusPaid              = "paid"
	OrderStatusDelivered         = "delivered"
	OrderStatusDeliveryFailed    = "delivery_failed"
	OrderStatusFulfillmentFailed = "fulfillment_failed"
)

// ClientAgent identifies the requesting agent
type ClientAgent struct {
	Name            string `json:"name"`
	WalletAddress   string `json:"wallet_address"`
	ContactEndpoint string `json:"contact_endpoint,omitempty"`
}

// ServiceRequest describes the requested service
type ServiceRequest struct {
	Type           string  `json:"type"`
	Description    string  `json:"description"`
	BudgetUSDC     float64 `json:"budget_usdc"`
	DeliveryFormat string  `json:"delivery_format,omitempty"`
}

// Quote is the provider's offer for a service request
type Quote struct {
	PriceUSDC         float64   `json:"price_usdc"`
	EstimatedDelivery time.Time `json:"estimated_delivery"`
	PaymentAddress    string    `json:"payment_address"`
	Network           string    `json:"network"`
	TokenContract     string    `json:"token_contract,omitempty"`
}

// PaymentProof references an on-chain payment transaction
type PaymentProof struct {
	TxHash      string `json:"tx_hash"`
	FromAddress string `json:"from_address"`
	Network     string `json:"network"`
}

// Deliverable is the produced service artifact
type Deliverable struct {
	Type    string `json:"type"`
	Format  string `json:"format"`
	Content string `json:"content"`
}

// Order is order entity
type Order struct {
	OrderID          string
	Status           string
	Client           ClientAgent
	ServiceRequest   ServiceRequest
	Quote            Quote
	PaymentProof     *PaymentProof
	DeliveryEndpoint string
	Deliverable      *Deliverable
	ContentHash      string
	CreatedAt        time.Time
	PaidAt           *time.Time
	CompletedAt      *time.Time
	DeliveredAt      *time.Time
}

// Clone returns a deep copy of the order
func (o *Order) Clone() *Order {
	cp := *o
	if o.PaymentProof != nil {
		proof := *o.PaymentProof
		cp.PaymentProof = &proof
	}
	if o.Deliverable != nil {
		d := *o.Deliverable
		cp.Deliverable = &d
	}
	if o.PaidAt != nil {
		t := *o.PaidAt
		cp.PaidAt = &t
	}
	if o.CompletedAt != nil {
		t := *o.CompletedAt
		cp.CompletedAt = &t
	}
	if o.DeliveredAt != nil {
		t := *o.DeliveredAt
		cp.DeliveredAt = &t
	}
	return &cp
}
