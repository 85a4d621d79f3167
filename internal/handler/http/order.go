package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/moltbook/ivxp/internal/models"
	"github.com/moltbook/ivxp/internal/service"
)

// OrderService is the order lifecycle surface the handlers need
type OrderService interface {
	// CreateOrder validates the request and persists a quoted order
	CreateOrder(ctx context.Context, client models.ClientAgent, req models.ServiceRequest) (*models.Order, error)
	// SubmitPaymentProof verifies signature and payment, marks the order paid
	SubmitPaymentProof(ctx context.Context, orderID, signedMessage, signature string, proof models.PaymentProof, deliveryEndpoint string) error
	// Status is a pure read of the order
	Status(ctx context.Context, orderID string) (*models.Order, error)
	// Download returns the order with its deliverable once fulfilled
	Download(ctx context.Context, orderID string) (*models.Order, error)
}

// OrderHandler represents HTTP handler for order-related requests
type OrderHandler struct {
	svc      OrderService
	provider service.ProviderIdentity
}

// NewOrderHandler creates new OrderHandler instance
func NewOrderHandler(svc OrderService, provider service.ProviderIdentity) *OrderHandler {
	return &OrderHandler{svc: svc, provider: provider}
}

// RequestService handles POST /ivxp/request
// 200 - quote issued;
// 400 - malformed message, wrong protocol or unknown service type;
// 500 - internal error.
func (oh *OrderHandler) RequestService() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var msg serviceRequestMessage

		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			writeError(w, http.StatusBadRequest, "bad request")
			return
		}
		defer r.Body.Close()

		if msg.Protocol != models.ProtocolVersion {
			writeError(w, http.StatusBadRequest, "Unsupported protocol version")
			return
		}
		if msg.MessageType != models.MessageTypeServiceRequest {
			writeError(w, http.StatusBadRequest, "Invalid message type")
			return
		}

		order, err := oh.svc.CreateOrder(r.Context(), msg.ClientAgent, msg.ServiceRequest)
		if err != nil {
			if errors.Is(err, models.ErrUnknownServiceType) {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("Service type not supported: %s", msg.ServiceRequest.Type))
				return
			}
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		writeJSON(w, http.StatusOK, serviceQuoteMessage{
			Protocol:    models.ProtocolVersion,
			MessageType: models.MessageTypeServiceQuote,
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
			OrderID:     order.OrderID,
			ProviderAgent: agentInfo{
				Name:          oh.provider.AgentName,
				WalletAddress: oh.provider.WalletAddress,
			},
			Quote: quotePayload{
				PriceUSDC:         order.Quote.PriceUSDC,
				EstimatedDelivery: order.Quote.EstimatedDelivery.Format(time.RFC3339),
				PaymentAddress:    order.Quote.PaymentAddress,
				Network:           order.Quote.Network,
				TokenContract:     order.Quote.TokenContract,
			},
			Terms: quoteTerms{
				PaymentTimeout: paymentTimeoutSeconds,
				RevisionPolicy: revisionPolicy,
				RefundPolicy:   refundPolicy,
			},
		})
	}
}

// RequestDelivery handles POST /ivxp/deliver
// 200 - payment verified, fulfillment started;
// 400 - malformed message or order not in quoted state;
// 401 - signature verification failed;
// 402 - payment verification failed;
// 404 - order not found;
// 500 - internal error.
func (oh *OrderHandler) RequestDelivery() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var msg deliveryRequestMessage

		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			writeError(w, http.StatusBadRequest, "bad request")
			return
		}
		defer r.Body.Close()

		err := oh.svc.SubmitPaymentProof(r.Context(), msg.OrderID, msg.SignedMessage, msg.Signature, msg.PaymentProof, msg.DeliveryEndpoint)
		if err != nil {
			switch {
			case errors.Is(err, models.ErrOrderNotFound):
				writeError(w, http.StatusNotFound, "Order not found")
			case errors.Is(err, models.ErrInvalidOrderState):
				writeError(w, http.StatusBadRequest, "Order is not awaiting payment")
			case errors.Is(err, models.ErrSignatureInvalid):
				writeError(w, http.StatusUnauthorized, "Signature verification failed")
			case errors.Is(err, models.ErrPaymentInvalid):
				writeError(w, http.StatusPaymentRequired, "Payment verification failed")
			default:
				writeError(w, http.StatusInternalServerError, "internal error")
			}
			return
		}

		writeJSON(w, http.StatusOK, deliveryAcceptedResponse{
			Status:  "accepted",
			OrderID: msg.OrderID,
			Message: "Payment verified, service processing started",
		})
	}
}

// OrderStatus handles GET /ivxp/status/{orderID}
// 200 - current order status;
// 404 - order not found;
// 500 - internal error.
func (oh *OrderHandler) OrderStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID := chi.URLParam(r, "orderID")

		order, err := oh.svc.Status(r.Context(), orderID)
		if err != nil {
			if errors.Is(err, models.ErrOrderNotFound) {
				writeError(w, http.StatusNotFound, "Order not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		writeJSON(w, http.StatusOK, orderStatusResponse{
			OrderID:     order.OrderID,
			Status:      order.Status,
			ServiceType: order.ServiceRequest.Type,
			PriceUSDC:   order.Quote.PriceUSDC,
			CreatedAt:   order.CreatedAt.Format(time.RFC3339),
			ContentHash: order.ContentHash,
		})
	}
}

// Download handles GET /ivxp/download/{orderID}
// 200 - deliverable returned (delivered and delivery_failed alike);
// 202 - not ready yet, body tells pending_payment from processing;
// 404 - order not found;
// 410 - fulfillment failed, order will never become ready;
// 500 - internal error.
func (oh *OrderHandler) Download() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID := chi.URLParam(r, "orderID")

		order, err := oh.svc.Download(r.Context(), orderID)
		if err != nil {
			switch {
			case errors.Is(err, models.ErrOrderNotFound):
				writeError(w, http.StatusNotFound, "Order not found")
			case errors.Is(err, models.ErrNotReady):
				if order != nil && order.Status == models.OrderStatusQuoted {
					writeJSON(w, http.StatusAccepted, pendingResponse{
						Status:  "pending_payment",
						Message: "Waiting for payment",
					})
					return
				}
				writeJSON(w, http.StatusAccepted, pendingResponse{
					Status:  "processing",
					Message: "Service is being processed",
				})
			case errors.Is(err, models.ErrFulfillmentFailed):
				writeJSON(w, http.StatusGone, errorResponse{
					Error:  "Service fulfillment failed",
					Status: models.OrderStatusFulfillmentFailed,
				})
			default:
				writeError(w, http.StatusInternalServerError, "internal error")
			}
			return
		}

		deliveredAt := ""
		if order.DeliveredAt != nil {
			deliveredAt = order.DeliveredAt.Format(time.RFC3339)
		}

		writeJSON(w, http.StatusOK, serviceDeliveryMessage{
			Protocol:    models.ProtocolVersion,
			MessageType: models.MessageTypeServiceDelivery,
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
			OrderID:     order.OrderID,
			Status:      "completed",
			ProviderAgent: agentInfo{
				Name:          oh.provider.AgentName,
				WalletAddress: oh.provider.WalletAddress,
			},
			Deliverable: *order.Deliverable,
			ContentHash: order.ContentHash,
			DeliveredAt: deliveredAt,
		})
	}
}
