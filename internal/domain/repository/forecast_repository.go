package repository

import (
	"context"

	"github.com/jhoicas/stockout-sync/internal/domain/entity"
)

// ForecastRepository puerto insert-only de pronósticos.
type ForecastRepository interface {
	Create(ctx context.Context, f *entity.Forecast) error
	// ListLatestPerSKU devuelve el pronóstico más reciente (por GeneratedAt) de cada SKU.
	ListLatestPerSKU(ctx context.Context) ([]*entity.Forecast, error)
}
