package repository

import (
	"context"

	"github.com/jhoicas/stockout-sync/internal/domain/entity"
)

// SKURepository puerto para identidades de SKU.
type SKURepository interface {
	// GetOrCreate resuelve el SKU por (seller, marketplace, código) o lo inserta de forma atómica.
	// Nunca modifica un SKU existente; created indica si la fila es nueva.
	GetOrCreate(ctx context.Context, sku *entity.SKU) (id string, created bool, err error)
	ListBySeller(ctx context.Context, sellerID string) ([]*entity.SKU, error)
}
