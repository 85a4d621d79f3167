// Package client implements the client side of the IVXP/1.0 protocol:
// catalog discovery, quote requests, signed delivery requests and
// deliverable retrieval with content hash verification.
package client

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/crypto"
)

// ProtocolVersion is the wire protocol version this client speaks.
const ProtocolVersion = "IVXP/1.0"

// wire message types
const (
	messageTypeServiceRequest  = "service_request"
	messageTypeDeliveryRequest = "delivery_request"
	messageTypeServiceDelivery = "service_delivery"
)

var (
	// ErrNotReady is returned by Download while the order is still quoted or processing.
	ErrNotReady = errors.New("deliverable is not ready")
	// ErrOrderNotFound is returned when the provider does not know the order.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderGone is returned when the provider reports fulfillment failure.
	ErrOrderGone = errors.New("order fulfillment failed")
	// ErrContentHashMismatch is returned when the deliverable content does not match
	// the hash the provider advertised.
	ErrContentHashMismatch = errors.New("deliverable content hash mismatch")
	// ErrUnsupportedProtocol is returned when the provider answers with a
	// different protocol version.
	ErrUnsupportedProtocol = errors.New("unsupported protocol version")
	// ErrAwaitTimeout is returned by AwaitDelivery when polling attempts run out.
	ErrAwaitTimeout = errors.New("delivery await attempts exhausted")
)

// ServiceRequest describes the service being requested.
type ServiceRequest struct {
	Type           string  `json:"type"`
	Description    string  `json:"description"`
	BudgetUSDC     float64 `json:"budget_usdc"`
	DeliveryFormat string  `json:"delivery_format,omitempty"`
}

// Deliverable is the artifact a provider produces for an order.
type Deliverable struct {
	Type    string `json:"type"`
	Format  string `json:"format"`
	Content string `json:"content"`
}

type clientAgent struct {
	Name            string `json:"name"`
	WalletAddress   string `json:"wallet_address"`
	ContactEndpoint string `json:"contact_endpoint,omitempty"`
}

type paymentProof struct {
	TxHash      string `json:"tx_hash"`
	FromAddress string `json:"from_address"`
	Network     string `json:"network"`
}

// Config holds the client agent identity.
type Config struct {
	AgentName       string
	WalletAddress   string
	PrivateKeyHex   string
	ReceiveEndpoint string
}

// Client talks to a single IVXP provider.
type Client struct {
	providerURL     string
	client          http.Client
	agentName       string
	walletAddress   string
	privateKey      *ecdsa.PrivateKey
	receiveEndpoint string
}

// New creates a client for the provider at providerURL. The private key is
// optional; without it RequestDelivery is unavailable.
func New(providerURL string, cfg Config) (*Client, error) {
	c := &Client{
		providerURL:     strings.TrimRight(providerURL, "/"),
		client:          http.Client{Timeout: 30 * time.Second},
		agentName:       cfg.AgentName,
		walletAddress:   cfg.WalletAddress,
		receiveEndpoint: cfg.ReceiveEndpoint,
	}

	if cfg.PrivateKeyHex != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKeyHex, "0x"))
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		c.privateKey = key
	}

	return c, nil
}

// CatalogEntry is one service offered by the provider.
type CatalogEntry struct {
	Type                   string  `json:"type"`
	BasePriceUSDC          float64 `json:"base_price_usdc"`
	EstimatedDeliveryHours float64 `json:"estimated_delivery_hours"`
}

// Catalog is the provider's advertised service list.
type Catalog struct {
	Protocol      string         `json:"protocol"`
	MessageType   string         `json:"message_type"`
	Provider      string         `json:"provider"`
	WalletAddress string         `json:"wallet_address"`
	Services      []CatalogEntry `json:"services"`
}

// Catalog fetches the provider's service catalog.
func (c *Client) Catalog(ctx context.Context) (*Catalog, error) {
	var catalog Catalog
	if err := c.get(ctx, "/ivxp/catalog", &catalog); err != nil {
		return nil, err
	}
	return &catalog, nil
}

// Quote is the provider's offer for a requested service.
type Quote struct {
	OrderID           string
	PriceUSDC         float64
	EstimatedDelivery string
	PaymentAddress    string
	Network           string
	TokenContract     string
	PaymentTimeout    int
}

type serviceRequestMessage struct {
	Protocol       string         `json:"protocol"`
	MessageType    string         `json:"message_type"`
	Timestamp      string         `json:"timestamp"`
	ClientAgent    clientAgent    `json:"client_agent"`
	ServiceRequest ServiceRequest `json:"service_request"`
}

type quoteMessage struct {
	Protocol    string `json:"protocol"`
	MessageType string `json:"message_type"`
	OrderID     string `json:"order_id"`
	Quote       struct {
		PriceUSDC         float64 `json:"price_usdc"`
		EstimatedDelivery string  `json:"estimated_delivery"`
		PaymentAddress    string  `json:"payment_address"`
		Network           string  `json:"network"`
		TokenContract     string  `json:"token_contract"`
	} `json:"quote"`
	Terms struct {
		PaymentTimeout int `json:"payment_timeout"`
	} `json:"terms"`
}

// RequestService asks the provider for a quote.
func (c *Client) RequestService(ctx context.Context, req ServiceRequest) (*Quote, error) {
	msg := serviceRequestMessage{
		Protocol:    ProtocolVersion,
		MessageType: messageTypeServiceRequest,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		ClientAgent: clientAgent{
			Name:            c.agentName,
			WalletAddress:   c.walletAddress,
			ContactEndpoint: c.receiveEndpoint,
		},
		ServiceRequest: req,
	}

	var quote quoteMessage
	if err := c.post(ctx, "/ivxp/request", msg, &quote); err != nil {
		return nil, err
	}
	if quote.Protocol != ProtocolVersion {
		return nil, ErrUnsupportedProtocol
	}

	return &Quote{
		OrderID:           quote.OrderID,
		PriceUSDC:         quote.Quote.PriceUSDC,
		EstimatedDelivery: quote.Quote.EstimatedDelivery,
		PaymentAddress:    quote.Quote.PaymentAddress,
		Network:           quote.Quote.Network,
		TokenContract:     quote.Quote.TokenContract,
		PaymentTimeout:    quote.Terms.PaymentTimeout,
	}, nil
}

type deliveryRequestMessage struct {
	Protocol         string       `json:"protocol"`
	MessageType      string       `json:"message_type"`
	Timestamp        string       `json:"timestamp"`
	OrderID          string       `json:"order_id"`
	PaymentProof     paymentProof `json:"payment_proof"`
	DeliveryEndpoint string       `json:"delivery_endpoint,omitempty"`
	Signature        string       `json:"signature"`
	SignedMessage    string       `json:"signed_message"`
}

// DeliveryAccepted is the provider's acknowledgement of a delivery request.
type DeliveryAccepted struct {
	Status  string `json:"status"`
	OrderID string `json:"order_id"`
	Message string `json:"message"`
}

// RequestDelivery submits payment proof for a quoted order. The proof is bound
// to the order with a personal-sign signature over the canonical order message.
func (c *Client) RequestDelivery(ctx context.Context, orderID, txHash, network string) (*DeliveryAccepted, error) {
	if c.privateKey == nil {
		return nil, errors.New("delivery request requires a private key")
	}

	timestamp := time.Now().UTC().Format(time.RFC3339)
	signedMessage := fmt.Sprintf("Order: %s | Payment: %s | Timestamp: %s", orderID, txHash, timestamp)

	signature, err := c.signPersonal(signedMessage)
	if err != nil {
		return nil, fmt.Errorf("sign delivery request: %w", err)
	}

	msg := deliveryRequestMessage{
		Protocol:    ProtocolVersion,
		MessageType: messageTypeDeliveryRequest,
		Timestamp:   timestamp,
		OrderID:     orderID,
		PaymentProof: paymentProof{
			TxHash:      txHash,
			FromAddress: c.walletAddress,
			Network:     network,
		},
		DeliveryEndpoint: c.receiveEndpoint,
		Signature:        signature,
		SignedMessage:    signedMessage,
	}

	var accepted DeliveryAccepted
	if err := c.post(ctx, "/ivxp/deliver", msg, &accepted); err != nil {
		return nil, err
	}
	return &accepted, nil
}

// OrderStatus is the provider's view of an order.
type OrderStatus struct {
	OrderID     string  `json:"order_id"`
	Status      string  `json:"status"`
	ServiceType string  `json:"service_type"`
	PriceUSDC   float64 `json:"price_usdc"`
	CreatedAt   string  `json:"created_at"`
	ContentHash string  `json:"content_hash,omitempty"`
}

// Status fetches the current order status.
func (c *Client) Status(ctx context.Context, orderID string) (*OrderStatus, error) {
	var status OrderStatus
	if err := c.get(ctx, "/ivxp/status/"+orderID, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Delivery is a retrieved deliverable with its verified content hash.
type Delivery struct {
	OrderID     string
	Deliverable Deliverable
	ContentHash string
	DeliveredAt string
}

type deliveryMessage struct {
	Protocol    string      `json:"protocol"`
	MessageType string      `json:"message_type"`
	OrderID     string      `json:"order_id"`
	Deliverable Deliverable `json:"deliverable"`
	ContentHash string      `json:"content_hash"`
	DeliveredAt string      `json:"delivered_at"`
}

// Download pulls the deliverable for an order. The deliverable content is
// hashed locally and compared against the provider's content_hash before it
// is returned.
func (c *Client) Download(ctx context.Context, orderID string) (*Delivery, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.providerURL+"/ivxp/download/"+orderID, nil)
	if err != nil {
		return nil, err
	}

	res, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
	case http.StatusAccepted:
		return nil, ErrNotReady
	case http.StatusNotFound:
		return nil, ErrOrderNotFound
	case http.StatusGone:
		return nil, ErrOrderGone
	default:
		return nil, readError(res)
	}

	var msg deliveryMessage
	if err := json.NewDecoder(res.Body).Decode(&msg); err != nil {
		return nil, fmt.Errorf("decode delivery: %w", err)
	}

	sum := sha256.Sum256([]byte(msg.Deliverable.Content))
	if hex.EncodeToString(sum[:]) != msg.ContentHash {
		return nil, ErrContentHashMismatch
	}

	return &Delivery{
		OrderID:     msg.OrderID,
		Deliverable: msg.Deliverable,
		ContentHash: msg.ContentHash,
		DeliveredAt: msg.DeliveredAt,
	}, nil
}

// AwaitDelivery polls Download until the deliverable is ready, the order
// fails, the attempts run out or the context is cancelled.
func (c *Client) AwaitDelivery(ctx context.Context, orderID string, interval time.Duration, attempts int) (*Delivery, error) {
	for i := 0; i < attempts; i++ {
		delivery, err := c.Download(ctx, orderID)
		if err == nil {
			return delivery, nil
		}
		if !errors.Is(err, ErrNotReady) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}
	return nil, ErrAwaitTimeout
}

func (c *Client) signPersonal(message string) (string, error) {
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), c.privateKey)
	if err != nil {
		return "", err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return "0x" + hex.EncodeToString(sig), nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.providerURL+path, nil)
	if err != nil {
		return err
	}

	res, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return readError(res)
	}
	return json.NewDecoder(res.Body).Decode(out)
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.providerURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return readError(res)
	}
	return json.NewDecoder(res.Body).Decode(out)
}

func readError(res *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(res.Body, 4096))

	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error != "" {
		return fmt.Errorf("provider returned %d: %s", res.StatusCode, payload.Error)
	}
	return fmt.Errorf("provider returned %d", res.StatusCode)
}
