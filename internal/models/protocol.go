package models

// ProtocolVersion is the only wire protocol version this implementation speaks.
const ProtocolVersion = "IVXP/1.0"

// wire message types
const (
	MessageTypeServiceRequest  = "service_request"
	MessageTypeServiceQuote    = "service_quote"
	MessageTypeDeliveryRequest = "delivery_request"
	MessageTypeServiceDelivery = "service_delivery"
	MessageTypeServiceCatalog  = "service_catalog"
)

// ServiceInfo is a provider catalog entry
type ServiceInfo struct {
	Type          string
	BasePriceUSDC float64
	DeliveryHours float64
}
