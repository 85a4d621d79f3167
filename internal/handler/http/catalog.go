package handler

import (
	"net/http"

	"github.com/moltbook/ivxp/internal/models"
	"github.com/moltbook/ivxp/internal/service"
)

// CatalogService lists the provider's services
type CatalogService interface {
	List() []models.ServiceInfo
}

// CatalogHandler represents HTTP handler for catalog requests
type CatalogHandler struct {
	svc      CatalogService
	provider service.ProviderIdentity
}

// NewCatalogHandler creates new CatalogHandler instance
func NewCatalogHandler(svc CatalogService, provider service.ProviderIdentity) *CatalogHandler {
	return &CatalogHandler{svc: svc, provider: provider}
}

// Catalog handles GET /ivxp/catalog
func (ch *CatalogHandler) Catalog() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		services := ch.svc.List()

		entries := make([]catalogEntry, 0, len(services))
		for _, s := range services {
			entries = append(entries, catalogEntry{
				Type:                   s.Type,
				BasePriceUSDC:          s.BasePriceUSDC,
				EstimatedDeliveryHours: s.DeliveryHours,
			})
		}

		writeJSON(w, http.StatusOK, serviceCatalogMessage{
			Protocol:      models.ProtocolVersion,
			MessageType:   models.MessageTypeServiceCatalog,
			Provider:      ch.provider.AgentName,
			WalletAddress: ch.provider.WalletAddress,
			Services:      entries,
		})
	}
}
