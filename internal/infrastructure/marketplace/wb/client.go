// Package wb implementa el cliente de Wildberries sobre el cliente HTTP resiliente.
package wb

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/stockout-sync/internal/domain/entity"
	"github.com/jhoicas/stockout-sync/internal/infrastructure/marketplace/wire"
	"github.com/jhoicas/stockout-sync/pkg/httpclient"
)

// DefaultBaseURL API de marketplace de Wildberries.
const DefaultBaseURL = "https://api.wildberries.ru/api/v3"

// Client cliente WB autenticado con token bearer.
type Client struct {
	http *httpclient.Client
	log  zerolog.Logger
}

// New crea el cliente. cfg.BaseURL vacío usa DefaultBaseURL; la cabecera Authorization se fija aquí.
func New(token string, cfg httpclient.Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	headers := make(map[string]string, len(cfg.DefaultHeaders)+1)
	for k, v := range cfg.DefaultHeaders {
		headers[k] = v
	}
	headers["Authorization"] = "Bearer " + token
	cfg.DefaultHeaders = headers

	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = cfg.Logger.With().Str("marketplace", string(entity.MarketplaceWB)).Logger()
	}
	return &Client{http: httpclient.New(cfg), log: log}
}

type stocksResponse struct {
	Stocks []struct {
		WarehouseID wire.String `json:"warehouseId"`
		SKUs        []struct {
			SKU      wire.String `json:"sku"`
			SKUTitle wire.String `json:"skuTitle"`
			Quantity wire.Int    `json:"quantity"`
			Reserve  wire.Int    `json:"reserve"`
		} `json:"skus"`
	} `json:"stocks"`
}

type salesResponse struct {
	Sales []struct {
		SKU         wire.String `json:"sku"`
		Date        wire.Date   `json:"date"`
		Quantity    wire.Int    `json:"quantity"`
		WarehouseID wire.String `json:"warehouseId"`
	} `json:"sales"`
}

// FetchInventory snapshot de stock: una fila por (sku, bodega).
// available = quantity - reserve (nunca negativo), total = quantity.
func (c *Client) FetchInventory(ctx context.Context) ([]entity.InventoryItem, error) {
	var body stocksResponse
	ok, err := c.getJSON(ctx, "/stocks", nil, &body)
	if err != nil {
		return nil, fmt.Errorf("wb: obtener stocks: %w", err)
	}
	items := make([]entity.InventoryItem, 0)
	if !ok {
		return items, nil
	}
	for _, wh := range body.Stocks {
		for _, s := range wh.SKUs {
			if s.SKU == "" {
				continue
			}
			qty := wire.NonNegative(int(s.Quantity))
			reserve := wire.NonNegative(int(s.Reserve))
			items = append(items, entity.InventoryItem{
				ExternalSKUCode: string(s.SKU),
				DisplayName:     string(s.SKUTitle),
				WarehouseID:     string(wh.WarehouseID),
				AvailableQty:    wire.NonNegative(qty - reserve),
				ReservedQty:     reserve,
				TotalQty:        qty,
			})
		}
	}
	return items, nil
}

// FetchSales ventas en [from, to] (fechas en UTC, granularidad de día).
func (c *Client) FetchSales(ctx context.Context, from, to time.Time) ([]entity.SaleRecord, error) {
	query := map[string]string{
		"dateFrom": from.UTC().Format(time.DateOnly),
		"dateTo":   to.UTC().Format(time.DateOnly),
	}
	var body salesResponse
	ok, err := c.getJSON(ctx, "/sales", query, &body)
	if err != nil {
		return nil, fmt.Errorf("wb: obtener ventas: %w", err)
	}
	sales := make([]entity.SaleRecord, 0)
	if !ok {
		return sales, nil
	}
	for _, s := range body.Sales {
		if s.SKU == "" {
			continue
		}
		sales = append(sales, entity.SaleRecord{
			ExternalSKUCode: string(s.SKU),
			WarehouseID:     string(s.WarehouseID),
			Quantity:        wire.NonNegative(int(s.Quantity)),
			SoldAt:          s.Date.Time(),
		})
	}
	return sales, nil
}

// FetchCatalog WB no expone catálogo en esta API; se deriva de los pares (sku, título) del snapshot.
func (c *Client) FetchCatalog(ctx context.Context) ([]entity.CatalogItem, error) {
	items, err := c.FetchInventory(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]int, len(items))
	catalog := make([]entity.CatalogItem, 0, len(items))
	for _, it := range items {
		if i, ok := seen[it.ExternalSKUCode]; ok {
			if catalog[i].DisplayName == "" {
				catalog[i].DisplayName = it.DisplayName
			}
			continue
		}
		seen[it.ExternalSKUCode] = len(catalog)
		catalog = append(catalog, entity.CatalogItem{ExternalSKUCode: it.ExternalSKUCode, DisplayName: it.DisplayName})
	}
	return catalog, nil
}

// getJSON devuelve ok=false si la respuesta 2xx no es JSON (se registra y se degrada a vacío).
// Un campo con tipo inesperado conserva lo ya decodificado.
func (c *Client) getJSON(ctx context.Context, path string, query map[string]string, out any) (bool, error) {
	resp, err := c.http.Get(ctx, path, query, nil)
	if err != nil {
		return false, err
	}
	if !resp.IsJSON() {
		c.log.Warn().Str("path", path).Str("content_type", resp.ContentType).Msg("respuesta no JSON, se asume vacía")
		return false, nil
	}
	if err := resp.Decode(out); err != nil {
		if wire.Partial(err) {
			c.log.Warn().Err(err).Str("path", path).Msg("campo con tipo inesperado, se conserva el resto de la respuesta")
			return true, nil
		}
		c.log.Warn().Err(err).Str("path", path).Msg("forma de respuesta inesperada, se asume vacía")
		return false, nil
	}
	return true, nil
}
