package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jhoicas/stockout-sync/internal/domain"
	"github.com/jhoicas/stockout-sync/internal/domain/entity"
	"github.com/jhoicas/stockout-sync/internal/domain/repository"
)

var _ repository.InventoryHistoryRepository = (*InventoryHistoryRepo)(nil)

// InventoryHistoryRepo historial append-only. No expone update ni delete.
type InventoryHistoryRepo struct {
	q Querier
}

// NewInventoryHistoryRepository construye el adaptador. Pasar pool o tx (Querier).
func NewInventoryHistoryRepository(q Querier) *InventoryHistoryRepo {
	return &InventoryHistoryRepo{q: q}
}

// Append inserta una observación.
func (r *InventoryHistoryRepo) Append(ctx context.Context, rec *entity.InventoryHistoryRecord) error {
	meta, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	query := `
		INSERT INTO inventory_history (id, sku_id, seller_id, quantity, warehouse_id, recorded_at, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err = r.q.Exec(ctx, query,
		rec.ID, rec.SKUID, rec.SellerID, rec.Quantity, rec.WarehouseID, rec.RecordedAt, meta,
	)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return fmt.Errorf("insert inventory_history %s: %w", rec.ID, domain.ErrDuplicate)
		case isForeignKeyViolation(err):
			return fmt.Errorf("insert inventory_history sku %s: %w", rec.SKUID, domain.ErrNotFound)
		}
		return fmt.Errorf("insert inventory_history: %w", err)
	}
	return nil
}

// ListBySKUSince registros desde since en orden cronológico.
func (r *InventoryHistoryRepo) ListBySKUSince(ctx context.Context, skuID, sellerID string, since time.Time) ([]*entity.InventoryHistoryRecord, error) {
	query := `
		SELECT id, sku_id, seller_id, quantity, warehouse_id, recorded_at, metadata
		FROM inventory_history
		WHERE sku_id = $1 AND seller_id = $2 AND recorded_at >= $3
		ORDER BY recorded_at ASC, id`
	rows, err := r.q.Query(ctx, query, skuID, sellerID, since)
	if err != nil {
		return nil, fmt.Errorf("list inventory_history: %w", err)
	}
	defer rows.Close()

	var list []*entity.InventoryHistoryRecord
	for rows.Next() {
		var (
			rec  entity.InventoryHistoryRecord
			meta []byte
		)
		if err := rows.Scan(&rec.ID, &rec.SKUID, &rec.SellerID, &rec.Quantity, &rec.WarehouseID, &rec.RecordedAt, &meta); err != nil {
			return nil, fmt.Errorf("scan inventory_history: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &rec.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata: %w", err)
			}
		}
		list = append(list, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list inventory_history: %w", err)
	}
	return list, nil
}
