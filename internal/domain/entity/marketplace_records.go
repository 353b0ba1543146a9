package entity

import "time"

// InventoryItem fila normalizada del snapshot de stock de cualquier marketplace.
type InventoryItem struct {
	ExternalSKUCode string `json:"external_sku_code"`
	DisplayName     string `json:"display_name"`
	WarehouseID     string `json:"warehouse_id"`
	AvailableQty    int    `json:"available_qty"`
	ReservedQty     int    `json:"reserved_qty"`
	TotalQty        int    `json:"total_qty"`
}

// SaleRecord venta/pedido normalizado.
type SaleRecord struct {
	ExternalSKUCode string    `json:"external_sku_code"`
	WarehouseID     string    `json:"warehouse_id,omitempty"`
	Quantity        int       `json:"quantity"`
	SoldAt          time.Time `json:"sold_at"`
}

// CatalogItem producto del catálogo del seller.
type CatalogItem struct {
	ExternalSKUCode string `json:"external_sku_code"`
	DisplayName     string `json:"display_name"`
}
