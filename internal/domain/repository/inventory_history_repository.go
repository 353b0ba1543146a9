package repository

import (
	"context"
	"time"

	"github.com/jhoicas/stockout-sync/internal/domain/entity"
)

// InventoryHistoryRepository puerto append-only del historial de stock.
type InventoryHistoryRepository interface {
	Append(ctx context.Context, rec *entity.InventoryHistoryRecord) error
	// ListBySKUSince devuelve los registros desde since, ordenados por RecordedAt ascendente.
	ListBySKUSince(ctx context.Context, skuID, sellerID string, since time.Time) ([]*entity.InventoryHistoryRecord, error)
}
