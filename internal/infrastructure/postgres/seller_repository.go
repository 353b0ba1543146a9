package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/stockout-sync/internal/domain"
	"github.com/jhoicas/stockout-sync/internal/domain/entity"
	"github.com/jhoicas/stockout-sync/internal/domain/repository"
)

var _ repository.SellerRepository = (*SellerRepo)(nil)

// SellerRepo lectura de sellers sobre PostgreSQL.
type SellerRepo struct {
	q Querier
}

// NewSellerRepository construye el adaptador. Pasar pool o tx (Querier).
func NewSellerRepository(q Querier) *SellerRepo {
	return &SellerRepo{q: q}
}

const sellerColumns = `id, marketplace, access_token, refresh_token, token_expires_at,
	client_id, api_key, is_active, created_at, updated_at`

// ListActive sellers activos en orden de alta.
func (r *SellerRepo) ListActive(ctx context.Context) ([]*entity.Seller, error) {
	query := `SELECT ` + sellerColumns + ` FROM sellers WHERE is_active ORDER BY created_at, id`
	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active sellers: %w", err)
	}
	defer rows.Close()

	var list []*entity.Seller
	for rows.Next() {
		s, err := scanSeller(rows)
		if err != nil {
			return nil, fmt.Errorf("scan seller: %w", err)
		}
		list = append(list, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list active sellers: %w", err)
	}
	return list, nil
}

// GetByID devuelve domain.ErrNotFound si el seller no existe.
func (r *SellerRepo) GetByID(ctx context.Context, id string) (*entity.Seller, error) {
	query := `SELECT ` + sellerColumns + ` FROM sellers WHERE id = $1`
	s, err := scanSeller(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get seller: %w", err)
	}
	return s, nil
}

func scanSeller(row pgx.Row) (*entity.Seller, error) {
	var (
		s                                 entity.Seller
		marketplace                       string
		access, refresh, clientID, apiKey *string
		expiresAt                         *time.Time
	)
	if err := row.Scan(
		&s.ID, &marketplace, &access, &refresh, &expiresAt,
		&clientID, &apiKey, &s.IsActive, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	s.Marketplace = entity.ParseMarketplace(marketplace)
	s.Credentials = entity.Credentials{
		AccessToken:    derefString(access),
		RefreshToken:   derefString(refresh),
		TokenExpiresAt: expiresAt,
		ClientID:       derefString(clientID),
		APIKey:         derefString(apiKey),
	}
	return &s, nil
}
