package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jhoicas/stockout-sync/internal/domain/entity"
	"github.com/jhoicas/stockout-sync/internal/domain/repository"
)

var _ repository.ForecastRepository = (*ForecastRepo)(nil)

// ForecastRepo pronósticos insert-only; el vigente es el más reciente por generated_at.
type ForecastRepo struct {
	q Querier
}

// NewForecastRepository construye el adaptador. Pasar pool o tx (Querier).
func NewForecastRepository(q Querier) *ForecastRepo {
	return &ForecastRepo{q: q}
}

// Create inserta un pronóstico. Las predicciones se guardan como JSONB.
func (r *ForecastRepo) Create(ctx context.Context, f *entity.Forecast) error {
	predictions := f.Predictions
	if predictions == nil {
		predictions = []entity.PredictionPoint{}
	}
	raw, err := json.Marshal(predictions)
	if err != nil {
		return fmt.Errorf("marshal predictions: %w", err)
	}
	query := `
		INSERT INTO forecasts (id, sku_id, seller_id, stock_out_date, confidence, avg_daily_sales, predictions, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err = r.q.Exec(ctx, query,
		f.ID, f.SKUID, f.SellerID, f.StockOutDate, f.Confidence, f.AvgDailySales, raw, f.GeneratedAt,
	)
	if err != nil {
		return fmt.Errorf("insert forecast: %w", err)
	}
	return nil
}

// ListLatestPerSKU un pronóstico por SKU: el de generated_at más reciente.
func (r *ForecastRepo) ListLatestPerSKU(ctx context.Context) ([]*entity.Forecast, error) {
	query := `
		SELECT DISTINCT ON (sku_id)
			id, sku_id, seller_id, stock_out_date, confidence, avg_daily_sales, predictions, generated_at
		FROM forecasts
		ORDER BY sku_id, generated_at DESC, id DESC`
	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list latest forecasts: %w", err)
	}
	defer rows.Close()

	var list []*entity.Forecast
	for rows.Next() {
		var (
			f   entity.Forecast
			raw []byte
		)
		if err := rows.Scan(&f.ID, &f.SKUID, &f.SellerID, &f.StockOutDate, &f.Confidence, &f.AvgDailySales, &raw, &f.GeneratedAt); err != nil {
			return nil, fmt.Errorf("scan forecast: %w", err)
		}
		f.Predictions = []entity.PredictionPoint{}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &f.Predictions); err != nil {
				return nil, fmt.Errorf("unmarshal predictions: %w", err)
			}
		}
		list = append(list, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list latest forecasts: %w", err)
	}
	return list, nil
}
