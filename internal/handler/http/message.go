package handler

import (
	"encoding/json"
	"net/http"

	"github.com/moltbook/ivxp/internal/models"
)

// quote terms offered with every quote
const (
	paymentTimeoutSeconds = 3600
	revisionPolicy        = "1 free revision within 7 days"
	refundPolicy          = "Full refund if undelivered within 48 hours"
)

type agentInfo struct {
	Name          string `json:"name"`
	WalletAddress string `json:"wallet_address"`
}

type serviceRequestMessage struct {
	Protocol       string                `json:"protocol"`
	MessageType    string                `json:"message_type"`
	Timestamp      string                `json:"timestamp,omitempty"`
	ClientAgent    models.ClientAgent    `json:"client_agent"`
	ServiceRequest models.ServiceRequest `json:"service_request"`
}

type quotePayload struct {
	PriceUSDC         float64 `json:"price_usdc"`
	EstimatedDelivery string  `json:"estimated_delivery"`
	PaymentAddress    string  `json:"payment_address"`
	Network           string  `json:"network"`
	TokenContract     string  `json:"token_contract,omitempty"`
}

type quoteTerms struct {
	PaymentTimeout int    `json:"payment_timeout"`
	RevisionPolicy string `json:"revision_policy"`
	RefundPolicy   string `json:"refund_policy"`
}

type serviceQuoteMessage struct {
	Protocol      string       `json:"protocol"`
	MessageType   string       `json:"message_type"`
	Timestamp     string       `json:"timestamp"`
	OrderID       string       `json:"order_id"`
	ProviderAgent agentInfo    `json:"provider_agent"`
	Quote         quotePayload `json:"quote"`
	Terms         quoteTerms   `json:"terms"`
}

type deliveryRequestMessage struct {
	Protocol         string              `json:"protocol"`
	MessageType      string              `json:"message_type"`
	Timestamp        string              `json:"timestamp,omitempty"`
	OrderID          string              `json:"order_id"`
	PaymentProof     models.PaymentProof `json:"payment_proof"`
	DeliveryEndpoint string              `json:"delivery_endpoint"`
	Signature        string              `json:"signature"`
	SignedMessage    string              `json:"signed_message"`
}

type deliveryAcceptedResponse struct {
	Status  string `json:"status"`
	OrderID string `json:"order_id"`
	Message string `json:"message"`
}

type orderStatusResponse struct {
	OrderID     string  `json:"order_id"`
	Status      string  `json:"status"`
	ServiceType string  `json:"service_type"`
	PriceUSDC   float64 `json:"price_usdc"`
	CreatedAt   string  `json:"created_at"`
	ContentHash string  `json:"content_hash,omitempty"`
}

type serviceDeliveryMessage struct {
	Protocol      string             `json:"protocol"`
	MessageType   string             `json:"message_type"`
	Timestamp     string             `json:"timestamp"`
	OrderID       string             `json:"order_id"`
	Status        string             `json:"status"`
	ProviderAgent agentInfo          `json:"provider_agent"`
	Deliverable   models.Deliverable `json:"deliverable"`
	ContentHash   string             `json:"content_hash"`
	DeliveredAt   string             `json:"delivered_at,omitempty"`
}

type pendingResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type catalogEntry struct {
	Type                   string  `json:"type"`
	BasePriceUSDC          float64 `json:"base_price_usdc"`
	EstimatedDeliveryHours float64 `json:"estimated_delivery_hours"`
}

type serviceCatalogMessage struct {
	Protocol      string         `json:"protocol"`
	MessageType   string         `json:"message_type"`
	Provider      string         `json:"provider"`
	WalletAddress string         `json:"wallet_address"`
	Services      []catalogEntry `json:"services"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Status string `json:"status,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		return
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}
