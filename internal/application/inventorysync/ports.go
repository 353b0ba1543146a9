package inventorysync

import (
	"context"
	"time"

	"github.com/jhoicas/stockout-sync/internal/domain/entity"
	"github.com/jhoicas/stockout-sync/internal/domain/repository"
)

// MarketplaceClient capacidades de lectura comunes a todas las variantes de marketplace.
type MarketplaceClient interface {
	FetchInventory(ctx context.Context) ([]entity.InventoryItem, error)
	FetchSales(ctx context.Context, from, to time.Time) ([]entity.SaleRecord, error)
	FetchCatalog(ctx context.Context) ([]entity.CatalogItem, error)
}

// ClientProvider construye el cliente autenticado para un seller.
// Devuelve domain.ErrMissingCredentials o domain.ErrUnknownMarketplace.
type ClientProvider interface {
	ClientFor(ctx context.Context, seller *entity.Seller) (MarketplaceClient, error)
}

// TxRunner ejecuta fn en una transacción con repositorios ligados a ella.
// Si fn devuelve error se hace rollback.
type TxRunner interface {
	Run(ctx context.Context, fn func(skus repository.SKURepository, history repository.InventoryHistoryRepository) error) error
}
