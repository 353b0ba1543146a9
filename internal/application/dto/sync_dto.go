package dto

import (
	"time"

	"github.com/jhoicas/stockout-sync/internal/domain/entity"
)

// CycleResponse resumen de un ciclo de sincronización.
type CycleResponse struct {
	ID               string    `json:"id"`
	Trigger          string    `json:"trigger"`
	StartedAt        time.Time `json:"started_at"`
	DurationMs       int64     `json:"duration_ms"`
	SellersTotal     int       `json:"sellers_total"`
	SellersSucceeded int       `json:"sellers_succeeded"`
	SellersFailed    int       `json:"sellers_failed"`
	Forecasts        int       `json:"forecasts"`
	Alerts           int       `json:"alerts"`
	Error            string    `json:"error,omitempty"`
}

// SyncStatusResponse estado del scheduler.
type SyncStatusResponse struct {
	Running   bool           `json:"running"`
	LastCycle *CycleResponse `json:"last_cycle,omitempty"`
}

// SalesResponse ventas recientes leídas en vivo del marketplace del seller.
type SalesResponse struct {
	SellerID    string              `json:"seller_id"`
	Marketplace string              `json:"marketplace"`
	From        time.Time           `json:"from"`
	To          time.Time           `json:"to"`
	Count       int                 `json:"count"`
	Units       int                 `json:"units"`
	Sales       []entity.SaleRecord `json:"sales"`
}
