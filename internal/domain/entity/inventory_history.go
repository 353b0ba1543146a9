package entity

import "time"

// InventoryHistoryRecord observación inmutable de stock (append-only).
// Un registro por (SKU, bodega, ciclo).
type InventoryHistoryRecord struct {
	ID          string
	SKUID       string
	SellerID    string
	Quantity    int // disponible
	WarehouseID string
	RecordedAt  time.Time
	Metadata    HistoryMetadata
}

// HistoryMetadata conteos adicionales reportados por el marketplace.
type HistoryMetadata struct {
	Reserved int `json:"reserved"`
	Total    int `json:"total"`
}
