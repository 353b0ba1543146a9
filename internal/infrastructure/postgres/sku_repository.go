package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/stockout-sync/internal/domain/entity"
	"github.com/jhoicas/stockout-sync/internal/domain/repository"
)

var _ repository.SKURepository = (*SKURepo)(nil)

// SKURepo identidades de SKU sobre PostgreSQL (usable con pool o tx).
type SKURepo struct {
	q Querier
}

// NewSKURepository construye el adaptador. Pasar pool o tx (Querier).
func NewSKURepository(q Querier) *SKURepo {
	return &SKURepo{q: q}
}

// GetOrCreate inserta el SKU o devuelve el existente en una sola sentencia.
// El DO UPDATE no cambia valores; solo permite que RETURNING devuelva la fila existente.
// xmax = 0 identifica una fila recién insertada.
func (r *SKURepo) GetOrCreate(ctx context.Context, sku *entity.SKU) (string, bool, error) {
	query := `
		INSERT INTO skus (id, seller_id, marketplace, sku_code, title, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (seller_id, marketplace, sku_code)
		DO UPDATE SET sku_code = skus.sku_code
		RETURNING id, (xmax = 0)`
	var (
		id      string
		created bool
	)
	err := r.q.QueryRow(ctx, query,
		sku.ID, sku.SellerID, string(sku.Marketplace), sku.Code, sku.Title, sku.CreatedAt,
	).Scan(&id, &created)
	if err != nil {
		return "", false, fmt.Errorf("get or create sku %s: %w", sku.Code, err)
	}
	return id, created, nil
}

// ListBySeller SKUs del seller ordenados por código.
func (r *SKURepo) ListBySeller(ctx context.Context, sellerID string) ([]*entity.SKU, error) {
	query := `
		SELECT id, seller_id, marketplace, sku_code, title, created_at
		FROM skus WHERE seller_id = $1 ORDER BY sku_code`
	rows, err := r.q.Query(ctx, query, sellerID)
	if err != nil {
		return nil, fmt.Errorf("list skus: %w", err)
	}
	defer rows.Close()

	var list []*entity.SKU
	for rows.Next() {
		var (
			s           entity.SKU
			marketplace string
		)
		if err := rows.Scan(&s.ID, &s.SellerID, &marketplace, &s.Code, &s.Title, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan sku: %w", err)
		}
		s.Marketplace = entity.ParseMarketplace(marketplace)
		list = append(list, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list skus: %w", err)
	}
	return list, nil
}
