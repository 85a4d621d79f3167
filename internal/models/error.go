package models

import "errors"

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrInvalidOrderState  = errors.New("invalid order state for operation")
	ErrSignatureInvalid   = errors.New("signature verification failed")
	ErrPaymentInvalid     = errors.New("payment verification failed")
	ErrUnknownServiceType = errors.New("service type not supported")
	ErrNotReady           = errors.New("deliverable not ready")
	ErrFulfillmentFailed  = errors.New("service fulfillment failed")
	ErrUnsupportedProto   = errors.New("unsupported protocol version")
	ErrInvalidMessageType = errors.New("invalid message type")
)
