package ledger

import (
	"context"

	"github.com/fieldsales/ledgersync/internal/domain/ledger"
)

// CatalogService refreshes the local partner and product caches from the
// remote ledger. The caches are read models: each refresh replaces them
// wholesale.
type CatalogService struct {
	catalogRepo ledger.CatalogRepository
	gateway     ledger.RemoteGateway
}

// NewCatalogService creates a new CatalogService
func NewCatalogService(catalogRepo ledger.CatalogRepository, gateway ledger.RemoteGateway) *CatalogService {
	return &CatalogService{catalogRepo: catalogRepo, gateway: gateway}
}

// RefreshPartners pulls the partner catalog with delivery locations and
// replaces the cache. Returns the number of partners stored.
func (s *CatalogService) RefreshPartners(ctx context.Context) (int, error) {
	partners, locations, err := s.gateway.PullPartners(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.catalogRepo.ReplacePartners(ctx, partners, locations); err != nil {
		return 0, err
	}
	return len(partners), nil
}

// RefreshProducts pulls the product catalog with negotiated prices and
// replaces the cache. Returns the number of products stored.
func (s *CatalogService) RefreshProducts(ctx context.Context) (int, error) {
	products, offers, err := s.gateway.PullProducts(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.catalogRepo.ReplaceProducts(ctx, products, offers); err != nil {
		return 0, err
	}
	return len(products), nil
}
