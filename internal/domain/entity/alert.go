package entity

import "time"

// AlertCandidate SKU cuyo agotamiento proyectado cae dentro de la ventana cercana.
// No se persiste; se entrega al notificador.
type AlertCandidate struct {
	SKUID             string    `json:"sku_id"`
	SellerID          string    `json:"seller_id"`
	DaysUntilStockOut int       `json:"days_until_stock_out"`
	StockOutDate      time.Time `json:"stock_out_date"`
	Confidence        int       `json:"confidence"`
}
