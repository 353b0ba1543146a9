package repository

import (
	"context"

	"github.com/jhoicas/stockout-sync/internal/domain/entity"
)

// SellerRepository puerto de lectura de sellers (solo lectura para el ciclo).
type SellerRepository interface {
	ListActive(ctx context.Context) ([]*entity.Seller, error)
	// GetByID devuelve domain.ErrNotFound si no existe.
	GetByID(ctx context.Context, id string) (*entity.Seller, error)
}
