// Package forecasting recalcula los pronósticos de los SKUs de un seller tras su sincronización.
package forecasting

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jhoicas/stockout-sync/internal/domain/entity"
	"github.com/jhoicas/stockout-sync/internal/domain/forecast"
	"github.com/jhoicas/stockout-sync/internal/domain/repository"
)

// Config ventana de historial y mínimos del recálculo.
type Config struct {
	HistoryDays         int
	MinPoints           int
	ConfidenceThreshold int
}

// DefaultConfig 30 días de historial, al menos 7 días observados, umbral 70.
func DefaultConfig() Config {
	return Config{HistoryDays: 30, MinPoints: 7, ConfidenceThreshold: 70}
}

// UseCase genera un pronóstico nuevo por SKU (nunca actualiza los anteriores).
type UseCase struct {
	skus      repository.SKURepository
	history   repository.InventoryHistoryRepository
	forecasts repository.ForecastRepository
	cfg       Config
	log       zerolog.Logger
	now       func() time.Time
}

func NewUseCase(
	skus repository.SKURepository,
	history repository.InventoryHistoryRepository,
	forecasts repository.ForecastRepository,
	cfg Config,
	log zerolog.Logger,
) *UseCase {
	def := DefaultConfig()
	if cfg.HistoryDays <= 0 {
		cfg.HistoryDays = def.HistoryDays
	}
	if cfg.MinPoints <= 0 {
		cfg.MinPoints = def.MinPoints
	}
	return &UseCase{
		skus:      skus,
		history:   history,
		forecasts: forecasts,
		cfg:       cfg,
		log:       log.With().Str("component", "forecasting").Logger(),
		now:       time.Now,
	}
}

// RecalculateSeller pronostica cada SKU del seller y devuelve cuántos pronósticos se guardaron.
// Los SKUs con menos de MinPoints días observados se omiten; un fallo de datos en un SKU
// se registra y no detiene a los demás.
func (uc *UseCase) RecalculateSeller(ctx context.Context, seller *entity.Seller) (int, error) {
	skus, err := uc.skus.ListBySeller(ctx, seller.ID)
	if err != nil {
		return 0, fmt.Errorf("listar skus de seller %s: %w", seller.ID, err)
	}
	now := uc.now().UTC()
	since := now.AddDate(0, 0, -uc.cfg.HistoryDays)

	produced := 0
	for _, sku := range skus {
		log := uc.log.With().Str("seller_id", seller.ID).Str("sku_id", sku.ID).Logger()

		f, err := uc.recalculateSKU(ctx, sku, since, now)
		if err != nil {
			log.Error().Err(err).Msg("no se pudo pronosticar el SKU, se omite")
			continue
		}
		if f == nil {
			log.Debug().Msg("historial insuficiente para pronosticar")
			continue
		}
		produced++
	}
	return produced, nil
}

// recalculateSKU devuelve nil sin error si el historial no alcanza el mínimo.
func (uc *UseCase) recalculateSKU(ctx context.Context, sku *entity.SKU, since, now time.Time) (*entity.Forecast, error) {
	records, err := uc.history.ListBySKUSince(ctx, sku.ID, sku.SellerID, since)
	if err != nil {
		return nil, fmt.Errorf("leer historial: %w", err)
	}
	series := forecast.BuildDailySeries(records)
	// La serie no incluye el día semilla.
	if len(series) == 0 || len(series)+1 < uc.cfg.MinPoints {
		return nil, nil
	}

	out := forecast.Forecast(forecast.Input{
		SKUID:               sku.ID,
		History:             series,
		ConfidenceThreshold: uc.cfg.ConfidenceThreshold,
		AsOf:                now,
	})
	f := &entity.Forecast{
		ID:            uuid.NewString(),
		SKUID:         sku.ID,
		SellerID:      sku.SellerID,
		StockOutDate:  out.StockOutDate,
		Confidence:    int(out.Confidence),
		Predictions:   out.Predictions,
		AvgDailySales: forecast.AverageDailySales(series),
		GeneratedAt:   now,
	}
	if err := uc.forecasts.Create(ctx, f); err != nil {
		return nil, fmt.Errorf("guardar pronóstico: %w", err)
	}
	return f, nil
}
