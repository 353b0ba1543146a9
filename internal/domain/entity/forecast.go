package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Forecast proyección de agotamiento para un SKU. Cada recálculo inserta uno nuevo;
// el más reciente por GeneratedAt es el vigente.
type Forecast struct {
	ID            string
	SKUID         string
	SellerID      string
	StockOutDate  *time.Time
	Confidence    int // 0–100
	Predictions   []PredictionPoint
	AvgDailySales decimal.Decimal // promedio usado en la proyección
	GeneratedAt   time.Time
}

// PredictionPoint stock proyectado para un día futuro.
type PredictionPoint struct {
	Date           time.Time       `json:"date"`
	PredictedStock decimal.Decimal `json:"predicted_stock"`
}
