package service

import (
	"sort"

	"github.com/moltbook/ivxp/internal/models"
)

// defaultServices is the provider's built-in service catalog
var defaultServices = []models.ServiceInfo{
	{Type: "research", BasePriceUSDC: 50, DeliveryHours: 8},
	{Type: "debugging", BasePriceUSDC: 30, DeliveryHours: 4},
	{Type: "code_review", BasePriceUSDC: 50, DeliveryHours: 12},
	{Type: "consultation", BasePriceUSDC: 25, DeliveryHours: 2},
	{Type: "content", BasePriceUSDC: 40, DeliveryHours: 6},
	{Type: "philosophy", BasePriceUSDC: 3, DeliveryHours: 1},
}

// CatalogService answers catalog lookups for quoting and the catalog endpoint
type CatalogService struct {
	services map[string]models.ServiceInfo
}

// NewCatalogService creates a CatalogService with the built-in catalog
func NewCatalogService() *CatalogService {
	return NewCatalogServiceWith(defaultServices)
}

// NewCatalogServiceWith creates a CatalogService with the given entries
func NewCatalogServiceWith(services []models.ServiceInfo) *CatalogService {
	m := make(map[string]models.ServiceInfo, len(services))
	for _, s := range services {
		m[s.Type] = s
	}
	return &CatalogService{services: m}
}

// Lookup returns the catalog entry for serviceType
func (cs *CatalogService) Lookup(serviceType string) (models.ServiceInfo, bool) {
	info, ok := cs.services[serviceType]
	return info, ok
}

// List returns all catalog entries ordered by service type
func (cs *CatalogService) List() []models.ServiceInfo {
	list := make([]models.ServiceInfo, 0, len(cs.services))
	for _, s := range cs.services {
		list = append(list, s)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Type < list[j].Type })

	return list
}
