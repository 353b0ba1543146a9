// Package alerts selecciona los SKUs cuyo agotamiento proyectado cae dentro de la ventana cercana
// y los entrega al notificador.
package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/stockout-sync/internal/domain/entity"
	"github.com/jhoicas/stockout-sync/internal/domain/forecast"
	"github.com/jhoicas/stockout-sync/internal/domain/repository"
)

// DefaultWindowDays ventana cercana por defecto.
const DefaultWindowDays = 7

// Notifier canal de entrega de alertas (mensajería, log, etc.).
type Notifier interface {
	Notify(ctx context.Context, candidates []entity.AlertCandidate) error
}

// Result alertas seleccionadas en una evaluación.
type Result struct {
	Count      int
	Candidates []entity.AlertCandidate
}

// Evaluator evalúa el pronóstico vigente de cada SKU.
type Evaluator struct {
	forecasts  repository.ForecastRepository
	notifier   Notifier
	windowDays int
	log        zerolog.Logger
	now        func() time.Time
}

// NewEvaluator notifier puede ser nil (solo se cuentan las alertas).
func NewEvaluator(forecasts repository.ForecastRepository, notifier Notifier, windowDays int, log zerolog.Logger) *Evaluator {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	return &Evaluator{
		forecasts:  forecasts,
		notifier:   notifier,
		windowDays: windowDays,
		log:        log.With().Str("component", "alert_evaluator").Logger(),
		now:        time.Now,
	}
}

// Evaluate selecciona los pronósticos vigentes con 0 < días hasta agotamiento <= ventana.
// Un fallo del notificador se registra y no altera el conteo.
func (e *Evaluator) Evaluate(ctx context.Context) (Result, error) {
	latest, err := e.forecasts.ListLatestPerSKU(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("listar pronósticos vigentes: %w", err)
	}
	now := e.now()
	res := Result{Candidates: make([]entity.AlertCandidate, 0)}
	for _, f := range latest {
		if f.StockOutDate == nil {
			continue
		}
		days, ok := forecast.DaysUntilStockOut(*f.StockOutDate, now)
		if !ok || days > e.windowDays {
			continue
		}
		res.Candidates = append(res.Candidates, entity.AlertCandidate{
			SKUID:             f.SKUID,
			SellerID:          f.SellerID,
			DaysUntilStockOut: days,
			StockOutDate:      *f.StockOutDate,
			Confidence:        f.Confidence,
		})
	}
	res.Count = len(res.Candidates)

	if res.Count > 0 && e.notifier != nil {
		if err := e.notifier.Notify(ctx, res.Candidates); err != nil {
			e.log.Error().Err(err).Int("alerts", res.Count).Msg("no se pudieron entregar las alertas")
		}
	}
	return res, nil
}

// LogNotifier entrega las alertas al log estructurado.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log.With().Str("component", "alert_notifier").Logger()}
}

func (n *LogNotifier) Notify(ctx context.Context, candidates []entity.AlertCandidate) error {
	for _, c := range candidates {
		n.log.Warn().
			Str("seller_id", c.SellerID).
			Str("sku_id", c.SKUID).
			Int("days_until_stock_out", c.DaysUntilStockOut).
			Time("stock_out_date", c.StockOutDate).
			Int("confidence", c.Confidence).
			Msg("riesgo de agotamiento")
	}
	return nil
}

// MultiNotifier entrega a todos los notificadores; devuelve el primer error tras intentarlos todos.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, candidates []entity.AlertCandidate) error {
	var first error
	for _, n := range m {
		if err := n.Notify(ctx, candidates); err != nil && first == nil {
			first = err
		}
	}
	return first
}
