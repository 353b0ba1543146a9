// Package ozon implementa el cliente de Ozon Seller API (autenticación Client-Id / Api-Key).
package ozon

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/stockout-sync/internal/domain/entity"
	"github.com/jhoicas/stockout-sync/internal/infrastructure/marketplace/wire"
	"github.com/jhoicas/stockout-sync/pkg/httpclient"
)

const (
	DefaultBaseURL = "https://api-seller.ozon.ru"

	pageSize = 1000
	// maxPages corta la paginación si la API repite páginas llenas indefinidamente.
	maxPages = 100
)

// Client cliente Ozon.
type Client struct {
	http *httpclient.Client
	log  zerolog.Logger
}

// New crea el cliente con las cabeceras Client-Id y Api-Key del seller.
func New(clientID, apiKey string, cfg httpclient.Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	headers := make(map[string]string, len(cfg.DefaultHeaders)+2)
	for k, v := range cfg.DefaultHeaders {
		headers[k] = v
	}
	headers["Client-Id"] = clientID
	headers["Api-Key"] = apiKey
	cfg.DefaultHeaders = headers

	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = cfg.Logger.With().Str("marketplace", string(entity.MarketplaceOzon)).Logger()
	}
	return &Client{http: httpclient.New(cfg), log: log}
}

type stocksRequest struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

type stocksResponse struct {
	Stocks []struct {
		SKU        wire.String `json:"sku"`
		Name       wire.String `json:"name"`
		Warehouses []struct {
			WarehouseID wire.String `json:"warehouse_id"`
			Available   wire.Int    `json:"available"`
			Reserved    wire.Int    `json:"reserved"`
		} `json:"warehouses"`
	} `json:"stocks"`
}

type transactionsRequest struct {
	Filter   transactionsFilter `json:"filter"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
}

type transactionsFilter struct {
	Date struct {
		From string `json:"from"`
		To   string `json:"to"`
	} `json:"date"`
	TransactionType string `json:"transaction_type"`
}

type transactionsResponse struct {
	Transactions []struct {
		SKU           wire.String `json:"sku"`
		Quantity      wire.Int    `json:"quantity"`
		OperationDate wire.Date   `json:"operation_date"`
		WarehouseID   wire.String `json:"warehouse_id"`
	} `json:"transactions"`
}

type productsRequest struct {
	Filter struct {
		Visibility string `json:"visibility"`
	} `json:"filter"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

type productsResponse struct {
	Products []struct {
		SKU  wire.String `json:"sku"`
		Name wire.String `json:"name"`
	} `json:"products"`
}

// FetchInventory stock por (sku, bodega); total = available + reserved. Pagina de 1000 en 1000.
func (c *Client) FetchInventory(ctx context.Context) ([]entity.InventoryItem, error) {
	items := make([]entity.InventoryItem, 0)
	for page := 0; page < maxPages; page++ {
		var body stocksResponse
		ok, err := c.postJSON(ctx, "/v2/products/stocks", stocksRequest{Limit: pageSize, Offset: page * pageSize}, &body)
		if err != nil {
			return nil, fmt.Errorf("ozon: obtener stocks: %w", err)
		}
		if !ok {
			break
		}
		for _, s := range body.Stocks {
			if s.SKU == "" {
				continue
			}
			for _, wh := range s.Warehouses {
				available := wire.NonNegative(int(wh.Available))
				reserved := wire.NonNegative(int(wh.Reserved))
				items = append(items, entity.InventoryItem{
					ExternalSKUCode: string(s.SKU),
					DisplayName:     string(s.Name),
					WarehouseID:     string(wh.WarehouseID),
					AvailableQty:    available,
					ReservedQty:     reserved,
					TotalQty:        available + reserved,
				})
			}
		}
		if len(body.Stocks) < pageSize {
			break
		}
	}
	return items, nil
}

// FetchSales transacciones de tipo "order" en [from, to].
func (c *Client) FetchSales(ctx context.Context, from, to time.Time) ([]entity.SaleRecord, error) {
	req := transactionsRequest{Page: 1, PageSize: pageSize}
	req.Filter.Date.From = from.UTC().Format(time.DateOnly)
	req.Filter.Date.To = to.UTC().Format(time.DateOnly)
	req.Filter.TransactionType = "order"

	sales := make([]entity.SaleRecord, 0)
	for ; req.Page <= maxPages; req.Page++ {
		var body transactionsResponse
		ok, err := c.postJSON(ctx, "/v2/finance/transaction/list", req, &body)
		if err != nil {
			return nil, fmt.Errorf("ozon: obtener transacciones: %w", err)
		}
		if !ok {
			break
		}
		for _, tr := range body.Transactions {
			if tr.SKU == "" {
				continue
			}
			sales = append(sales, entity.SaleRecord{
				ExternalSKUCode: string(tr.SKU),
				WarehouseID:     string(tr.WarehouseID),
				Quantity:        wire.NonNegative(int(tr.Quantity)),
				SoldAt:          tr.OperationDate.Time(),
			})
		}
		if len(body.Transactions) < pageSize {
			break
		}
	}
	return sales, nil
}

// FetchCatalog productos visibles e invisibles del seller.
func (c *Client) FetchCatalog(ctx context.Context) ([]entity.CatalogItem, error) {
	catalog := make([]entity.CatalogItem, 0)
	for page := 0; page < maxPages; page++ {
		req := productsRequest{Limit: pageSize, Offset: page * pageSize}
		req.Filter.Visibility = "ALL"

		var body productsResponse
		ok, err := c.postJSON(ctx, "/v2/products/list", req, &body)
		if err != nil {
			return nil, fmt.Errorf("ozon: obtener catálogo: %w", err)
		}
		if !ok {
			break
		}
		for _, p := range body.Products {
			if p.SKU == "" {
				continue
			}
			catalog = append(catalog, entity.CatalogItem{ExternalSKUCode: string(p.SKU), DisplayName: string(p.Name)})
		}
		if len(body.Products) < pageSize {
			break
		}
	}
	return catalog, nil
}

// postJSON devuelve ok=false si la respuesta 2xx no es JSON o no tiene la forma esperada.
// Un campo con tipo inesperado no descarta el resto de la página.
func (c *Client) postJSON(ctx context.Context, path string, in, out any) (bool, error) {
	resp, err := c.http.Post(ctx, path, in, nil)
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
