// Package inventorysync orquesta la sincronización de inventario por seller:
// snapshot del marketplace, identidad de SKU y registros de historial.
package inventorysync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jhoicas/stockout-sync/internal/domain"
	"github.com/jhoicas/stockout-sync/internal/domain/entity"
	"github.com/jhoicas/stockout-sync/internal/domain/repository"
)

// Result contribución de un seller al ciclo.
type Result struct {
	SellerID       string
	Marketplace    entity.Marketplace
	Items          int // filas del snapshot tras deduplicar
	SKUsCreated    int
	RecordsWritten int
	ItemsFailed    int
}

// Worker sincroniza sellers de una variante de marketplace.
// No reintenta: los fallos de red transitorios los absorbe el cliente HTTP
// y los fallos de datos saltan el ítem afectado.
type Worker struct {
	marketplace entity.Marketplace
	clients     ClientProvider
	txRunner    TxRunner
	log         zerolog.Logger
	now         func() time.Time
}

// NewWorker construye el worker de la variante m.
func NewWorker(m entity.Marketplace, clients ClientProvider, txRunner TxRunner, log zerolog.Logger) *Worker {
	return &Worker{
		marketplace: m,
		clients:     clients,
		txRunner:    txRunner,
		log:         log.With().Str("component", "sync_worker").Str("marketplace", string(m)).Logger(),
		now:         time.Now,
	}
}

// Marketplace variante que atiende el worker.
func (w *Worker) Marketplace() entity.Marketplace { return w.marketplace }

// Sync descarga el snapshot del seller y registra una observación por (SKU, bodega).
// Un error indica fallo del seller completo (credenciales, caída del upstream);
// los fallos por ítem se registran en ItemsFailed y no abortan el resto.
func (w *Worker) Sync(ctx context.Context, seller *entity.Seller) (Result, error) {
	res := Result{SellerID: seller.ID, Marketplace: seller.Marketplace}
	log := w.log.With().Str("seller_id", seller.ID).Logger()

	if seller.Marketplace != w.marketplace {
		return res, fmt.Errorf("worker %s no atiende %q: %w", w.marketplace, seller.Marketplace, domain.ErrUnknownMarketplace)
	}
	client, err := w.clients.ClientFor(ctx, seller)
	if err != nil {
		return res, fmt.Errorf("cliente para seller %s: %w", seller.ID, err)
	}
	items, err := client.FetchInventory(ctx)
	if err != nil {
		return res, fmt.Errorf("inventario de seller %s: %w", seller.ID, err)
	}

	items = dedupe(items)
	res.Items = len(items)
	w.backfillTitles(ctx, client, items, log)

	recordedAt := w.now().UTC()
	for _, it := range items {
		created, err := w.syncItem(ctx, seller, it, recordedAt)
		if err != nil {
			res.ItemsFailed++
			log.Error().Err(err).
				Str("sku_code", it.ExternalSKUCode).
				Str("warehouse_id", it.WarehouseID).
				Msg("no se pudo registrar el ítem, se omite")
			continue
		}
		if created {
			res.SKUsCreated++
		}
		res.RecordsWritten++
	}

	log.Info().
		Int("items", res.Items).
		Int("skus_created", res.SKUsCreated).
		Int("records", res.RecordsWritten).
		Int("items_failed", res.ItemsFailed).
		Msg("seller sincronizado")
	return res, nil
}

// syncItem resuelve el SKU y agrega el registro de historial en una sola transacción.
func (w *Worker) syncItem(ctx context.Context, seller *entity.Seller, it entity.InventoryItem, recordedAt time.Time) (bool, error) {
	var created bool
	err := w.txRunner.Run(ctx, func(skus repository.SKURepository, history repository.InventoryHistoryRepository) error {
		skuID, isNew, err := skus.GetOrCreate(ctx, &entity.SKU{
			ID:          uuid.NewString(),
			SellerID:    seller.ID,
			Marketplace: seller.Marketplace,
			Code:        it.ExternalSKUCode,
			Title:       it.DisplayName,
			CreatedAt:   recordedAt,
		})
		if err != nil {
			return fmt.Errorf("resolver sku: %w", err)
		}
		if err := history.Append(ctx, &entity.InventoryHistoryRecord{
			ID:          uuid.NewString(),
			SKUID:       skuID,
			SellerID:    seller.ID,
			Quantity:    it.AvailableQty,
			WarehouseID: it.WarehouseID,
			RecordedAt:  recordedAt,
			Metadata:    entity.HistoryMetadata{Reserved: it.ReservedQty, Total: it.TotalQty},
		}); err != nil {
			return fmt.Errorf("agregar historial: %w", err)
		}
		created = isNew
		return nil
	})
	return created, err
}

// backfillTitles completa títulos vacíos desde el catálogo. Un fallo del catálogo no es fatal.
func (w *Worker) backfillTitles(ctx context.Context, client MarketplaceClient, items []entity.InventoryItem, log zerolog.Logger) {
	missing := false
	for _, it := range items {
		if it.DisplayName == "" {
			missing = true
			break
		}
	}
	if !missing {
		return
	}
	catalog, err := client.FetchCatalog(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("catálogo no disponible, se conservan títulos vacíos")
		return
	}
	titles := make(map[string]string, len(catalog))
	for _, c := range catalog {
		if c.DisplayName != "" {
			titles[c.ExternalSKUCode] = c.DisplayName
		}
	}
	for i := range items {
		if items[i].DisplayName == "" {
			items[i].DisplayName = titles[items[i].ExternalSKUCode]
		}
	}
}

// dedupe conserva la última fila por (código, bodega) y descarta filas sin código.
func dedupe(items []entity.InventoryItem) []entity.InventoryItem {
	type key struct{ code, warehouse string }
	idx := make(map[key]int, len(items))
	out := make([]entity.InventoryItem, 0, len(items))
	for _, it := range items {
		if it.ExternalSKUCode == "" {
			continue
		}
		k := key{it.ExternalSKUCode, it.WarehouseID}
		if i, ok := idx[k]; ok {
			out[i] = it
			continue
		}
		idx[k] = len(out)
		out = append(out, it)
	}
	return out
}

// Workers despacha cada seller al worker de su variante.
type Workers struct {
	byMarketplace map[entity.Marketplace]*Worker
}

func NewWorkers(workers ...*Worker) *Workers {
	ws := &Workers{byMarketplace: make(map[entity.Marketplace]*Worker, len(workers))}
	for _, w := range workers {
		ws.byMarketplace[w.Marketplace()] = w
	}
	return ws
}

// For devuelve el worker de la variante m.
func (ws *Workers) For(m entity.Marketplace) (*Worker, bool) {
	w, ok := ws.byMarketplace[m]
	return w, ok
}

// Sync sincroniza el seller con el worker de su marketplace.
func (ws *Workers) Sync(ctx context.Context, seller *entity.Seller) (Result, error) {
	w, ok := ws.For(seller.Marketplace)
	if !ok {
		return Result{SellerID: seller.ID, Marketplace: seller.Marketplace},
			fmt.Errorf("seller %s: %q: %w", seller.ID, seller.Marketplace, domain.ErrUnknownMarketplace)
	}
	return w.Sync(ctx, seller)
}
