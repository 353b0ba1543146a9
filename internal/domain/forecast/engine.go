// Package forecast contiene el motor de pronóstico de agotamiento (servicio de dominio puro, sin I/O).
//
// El modelo es deliberadamente lineal: se promedian las ventas diarias observadas y se descuenta
// ese promedio del último stock conocido, día a día, hasta un horizonte de 28 días.
package forecast

import (
	"math"
	"time"

	"github.com/jhoicas/stockout-sync/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// HorizonDays días simulados hacia adelante.
const HorizonDays = 28

// Confidence resultado discreto de la proyección. No es una estadística:
// indica si se observó un cruce por cero dentro del horizonte o si se extrapoló más allá.
type Confidence int

const (
	ConfidenceNone         Confidence = 0  // sin historial
	ConfidenceExtrapolated Confidence = 60 // el horizonte se agotó sin llegar a cero
	ConfidenceStockOut     Confidence = 80 // el stock proyectado llega a cero dentro del horizonte
)

// Observation punto diario de la serie de entrada.
type Observation struct {
	Date       time.Time
	Stock      decimal.Decimal
	DailySales decimal.Decimal
}

// Input entrada del motor. History debe venir ordenada por fecha ascendente.
type Input struct {
	SKUID   string
	History []Observation
	// ConfidenceThreshold reservado para calibración futura; no altera el resultado.
	ConfidenceThreshold int
	// AsOf fecha base de la proyección; cero = fecha de la última observación.
	AsOf time.Time
}

// Output proyección resultante.
type Output struct {
	Predictions  []entity.PredictionPoint
	StockOutDate *time.Time
	Confidence   Confidence
}

// Forecast proyecta el agotamiento de stock con un modelo lineal.
// Día i: stock = max(0, stock(i-1) - promedioVentas). Se detiene en el primer día con stock <= 0.
func Forecast(in Input) Output {
	if len(in.History) == 0 {
		return Output{Predictions: []entity.PredictionPoint{}, StockOutDate: nil, Confidence: ConfidenceNone}
	}

	avgDailySales := AverageDailySales(in.History)
	last := in.History[len(in.History)-1]
	base := in.AsOf
	if base.IsZero() {
		base = last.Date
	}

	predictions := make([]entity.PredictionPoint, 0, HorizonDays)
	current := last.Stock
	for day := 1; day <= HorizonDays; day++ {
		current = current.Sub(avgDailySales)
		date := base.AddDate(0, 0, day)
		predictions = append(predictions, entity.PredictionPoint{
			Date:           date,
			PredictedStock: decimal.Max(decimal.Zero, current),
		})
		if current.LessThanOrEqual(decimal.Zero) {
			return Output{Predictions: predictions, StockOutDate: &date, Confidence: ConfidenceStockOut}
		}
	}

	return Output{Predictions: predictions, StockOutDate: nil, Confidence: ConfidenceExtrapolated}
}

// AverageDailySales media aritmética de DailySales. Cero si no hay observaciones.
func AverageDailySales(history []Observation) decimal.Decimal {
	if len(history) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, h := range history {
		sum = sum.Add(h.DailySales)
	}
	return sum.Div(decimal.NewFromInt(int64(len(history))))
}

// DaysUntilStockOut techo de (date - now) en días. ok=false si el resultado no es positivo
// (fecha pasada o el mismo día).
func DaysUntilStockOut(date, now time.Time) (days int, ok bool) {
	diff := date.Sub(now)
	d := int(math.Ceil(float64(diff) / float64(24*time.Hour)))
	if d <= 0 {
		return 0, false
	}
	return d, true
}
