package inventorysync_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stockout-sync/internal/application/inventorysync"
	"github.com/jhoicas/stockout-sync/internal/domain"
	"github.com/jhoicas/stockout-sync/internal/domain/entity"
	"github.com/jhoicas/stockout-sync/internal/infrastructure/memstore"
)

type fakeClient struct {
	items      []entity.InventoryItem
	err        error
	catalog    []entity.CatalogItem
	catalogErr error
	catalogHit int
}

func (c *fakeClient) FetchInventory(ctx context.Context) ([]entity.InventoryItem, error) {
	return c.items, c.err
}

func (c *fakeClient) FetchSales(ctx context.Context, from, to time.Time) ([]entity.SaleRecord, error) {
	return nil, nil
}

func (c *fakeClient) FetchCatalog(ctx context.Context) ([]entity.CatalogItem, error) {
	c.catalogHit++
	return c.catalog, c.catalogErr
}

// fakeProvider exige credenciales igual que el registro real.
type fakeProvider struct {
	clients map[string]*fakeClient
}

func (p *fakeProvider) ClientFor(ctx context.Context, seller *entity.Seller) (inventorysync.MarketplaceClient, error) {
	if !seller.HasCredentialsFor(seller.Marketplace) {
		return nil, domain.ErrMissingCredentials
	}
	return p.clients[seller.ID], nil
}

func wbSeller(id string) *entity.Seller {
	return &entity.Seller{ID: id, Marketplace: entity.MarketplaceWB, IsActive: true,
		Credentials: entity.Credentials{AccessToken: "tok"}}
}

func newWorkers(store *memstore.Store, clients map[string]*fakeClient) *inventorysync.Workers {
	p := &fakeProvider{clients: clients}
	return inventorysync.NewWorkers(
		inventorysync.NewWorker(entity.MarketplaceWB, p, store, zerolog.Nop()),
		inventorysync.NewWorker(entity.MarketplaceOzon, p, store, zerolog.Nop()),
	)
}

var snapshot = []entity.InventoryItem{
	{ExternalSKUCode: "A", DisplayName: "Camiseta", WarehouseID: "w1", AvailableQty: 7, ReservedQty: 3, TotalQty: 10},
	{ExternalSKUCode: "A", DisplayName: "Camiseta", WarehouseID: "w2", AvailableQty: 2, TotalQty: 2},
	{ExternalSKUCode: "B", DisplayName: "Gorra", WarehouseID: "w1", AvailableQty: 1, TotalQty: 1},
}

func TestSync_CreaSKUsYUnRegistroPorBodega(t *testing.T) {
	store := memstore.New()
	ws := newWorkers(store, map[string]*fakeClient{"s1": {items: snapshot}})

	res, err := ws.Sync(context.Background(), wbSeller("s1"))

	require.NoError(t, err)
	assert.Equal(t, 3, res.Items)
	assert.Equal(t, 2, res.SKUsCreated)
	assert.Equal(t, 3, res.RecordsWritten)
	assert.Zero(t, res.ItemsFailed)

	skus := store.SKUs()
	require.Len(t, skus, 2)
	assert.Equal(t, "Camiseta", skus[0].Title)

	history := store.History()
	require.Len(t, history, 3)
	assert.Equal(t, skus[0].ID, history[0].SKUID)
	assert.Equal(t, 7, history[0].Quantity)
	assert.Equal(t, entity.HistoryMetadata{Reserved: 3, Total: 10}, history[0].Metadata)
	assert.True(t, history[0].RecordedAt.Equal(history[2].RecordedAt), "un mismo instante por ciclo")
}

func TestSync_ReplayEsIdempotenteParaSKUs(t *testing.T) {
	store := memstore.New()
	ws := newWorkers(store, map[string]*fakeClient{"s1": {items: snapshot}})

	_, err := ws.Sync(context.Background(), wbSeller("s1"))
	require.NoError(t, err)
	before := store.SKUs()

	res, err := ws.Sync(context.Background(), wbSeller("s1"))
	require.NoError(t, err)

	assert.Zero(t, res.SKUsCreated)
	assert.Equal(t, before, store.SKUs(), "las identidades no cambian")
	assert.Len(t, store.History(), 6, "solo se agregan registros nuevos")
}

func TestSync_SinCredencialesFallaSinPanico(t *testing.T) {
	store := memstore.New()
	ws := newWorkers(store, map[string]*fakeClient{})
	seller := &entity.Seller{ID: "s2", Marketplace: entity.MarketplaceOzon, IsActive: true}

	res, err := ws.Sync(context.Background(), seller)

	require.ErrorIs(t, err, domain.ErrMissingCredentials)
	assert.Equal(t, "s2", res.SellerID)
	assert.Empty(t, store.History())
}

func TestSync_FalloDelUpstreamEsFalloDelSeller(t *testing.T) {
	store := memstore.New()
	upstream := errors.New("503 agotado")
	ws := newWorkers(store, map[string]*fakeClient{"s1": {err: upstream}})

	_, err := ws.Sync(context.Background(), wbSeller("s1"))

	assert.ErrorIs(t, err, upstream)
}

func TestSync_FalloPorItemSeOmite(t *testing.T) {
	store := memstore.New()
	store.Fail = func(op string, arg any) error {
		if op == memstore.OpAppendHistory && arg.(*entity.InventoryHistoryRecord).WarehouseID == "w2" {
			return errors.New("insert falló")
		}
		return nil
	}
	ws := newWorkers(store, map[string]*fakeClient{"s1": {items: snapshot}})

	res, err := ws.Sync(context.Background(), wbSeller("s1"))

	require.NoError(t, err)
	assert.Equal(t, 1, res.ItemsFailed)
	assert.Equal(t, 2, res.RecordsWritten)
	assert.Len(t, store.History(), 2)
}

func TestSync_FalloRevierteSKUNuevo(t *testing.T) {
	store := memstore.New()
	store.Fail = func(op string, arg any) error {
		if op == memstore.OpAppendHistory && arg.(*entity.InventoryHistoryRecord).Quantity == 1 {
			return errors.New("insert falló")
		}
		return nil
	}
	ws := newWorkers(store, map[string]*fakeClient{"s1": {items: snapshot}})

	res, err := ws.Sync(context.Background(), wbSeller("s1"))

	require.NoError(t, err)
	assert.Equal(t, 1, res.SKUsCreated, "el SKU B se revierte junto con su registro")
	require.Len(t, store.SKUs(), 1)
	assert.Equal(t, "A", store.SKUs()[0].Code)
}

func TestSync_TitulosDesdeCatalogo(t *testing.T) {
	store := memstore.New()
	client := &fakeClient{
		items:   []entity.InventoryItem{{ExternalSKUCode: "A", WarehouseID: "w1", AvailableQty: 1}},
		catalog: []entity.CatalogItem{{ExternalSKUCode: "A", DisplayName: "Tetera"}},
	}
	ws := newWorkers(store, map[string]*fakeClient{"s1": client})

	_, err := ws.Sync(context.Background(), wbSeller("s1"))

	require.NoError(t, err)
	assert.Equal(t, 1, client.catalogHit)
	assert.Equal(t, "Tetera", store.SKUs()[0].Title)
}

func TestSync_CatalogoCaidoNoEsFatal(t *testing.T) {
	store := memstore.New()
	client := &fakeClient{
		items:      []entity.InventoryItem{{ExternalSKUCode: "A", WarehouseID: "w1", AvailableQty: 1}},
		catalogErr: errors.New("timeout"),
	}
	ws := newWorkers(store, map[string]*fakeClient{"s1": client})

	res, err := ws.Sync(context.Background(), wbSeller("s1"))

	require.NoError(t, err)
	assert.Equal(t, 1, res.RecordsWritten)
}

func TestSync_FilasDuplicadasSeFusionan(t *testing.T) {
	store := memstore.New()
	client := &fakeClient{items: []entity.InventoryItem{
		{ExternalSKUCode: "A", DisplayName: "x", WarehouseID: "w1", AvailableQty: 1},
		{ExternalSKUCode: "A", DisplayName: "x", WarehouseID: "w1", AvailableQty: 4},
		{DisplayName: "sin código", WarehouseID: "w1", AvailableQty: 9},
	}}
	ws := newWorkers(store, map[string]*fakeClient{"s1": client})

	res, err := ws.Sync(context.Background(), wbSeller("s1"))

	require.NoError(t, err)
	assert.Equal(t, 1, res.Items)
	require.Len(t, store.History(), 1)
	assert.Equal(t, 4, store.History()[0].Quantity)
}

func TestWorkers_MarketplaceDesconocido(t *testing.T) {
	ws := newWorkers(memstore.New(), nil)

	_, ok := ws.For(entity.MarketplaceOzon)
	assert.True(t, ok)

	_, err := ws.Sync(context.Background(), &entity.Seller{ID: "s9", Marketplace: "yandex",
		Credentials: entity.Credentials{AccessToken: "t"}})
	assert.ErrorIs(t, err, domain.ErrUnknownMarketplace)
}
