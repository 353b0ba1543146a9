// Package memstore implementa los puertos de persistencia en memoria.
// Lo usan las pruebas de los casos de uso y del scheduler en lugar de PostgreSQL.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jhoicas/stockout-sync/internal/application/inventorysync"
	"github.com/jhoicas/stockout-sync/internal/domain"
	"github.com/jhoicas/stockout-sync/internal/domain/entity"
	"github.com/jhoicas/stockout-sync/internal/domain/repository"
)

// Operaciones para Fail.
const (
	OpListActive     = "sellers.list_active"
	OpGetOrCreateSKU = "skus.get_or_create"
	OpListSKUs       = "skus.list_by_seller"
	OpAppendHistory  = "history.append"
	OpListHistory    = "history.list"
	OpCreateForecast = "forecasts.create"
	OpListForecasts  = "forecasts.list_latest"
)

type skuKey struct {
	sellerID    string
	marketplace entity.Marketplace
	code        string
}

// Store almacén en memoria seguro para uso concurrente.
type Store struct {
	mu        sync.Mutex
	sellers   []*entity.Seller
	skus      map[string]*entity.SKU
	skuIndex  map[skuKey]string
	history   []*entity.InventoryHistoryRecord
	forecasts []*entity.Forecast

	// Fail permite inyectar errores: si devuelve no-nil, la operación op falla con ese error.
	Fail func(op string, arg any) error
}

var (
	_ repository.SellerRepository           = (*Store)(nil)
	_ repository.SKURepository              = (*Store)(nil)
	_ repository.InventoryHistoryRepository = (*Store)(nil)
	_ repository.ForecastRepository         = (*Store)(nil)
	_ inventorysync.TxRunner                = (*Store)(nil)
)

func New() *Store {
	return &Store{skus: make(map[string]*entity.SKU), skuIndex: make(map[skuKey]string)}
}

func (s *Store) fail(op string, arg any) error {
	if s.Fail == nil {
		return nil
	}
	return s.Fail(op, arg)
}

// AddSeller registra un seller (simula el onboarding).
func (s *Store) AddSeller(seller *entity.Seller) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *seller
	s.sellers = append(s.sellers, &cp)
}

func (s *Store) ListActive(ctx context.Context) ([]*entity.Seller, error) {
	if err := s.fail(OpListActive, nil); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*entity.Seller, 0, len(s.sellers))
	for _, sl := range s.sellers {
		if sl.IsActive {
			cp := *sl
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*entity.Seller, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sl := range s.sellers {
		if sl.ID == id {
			cp := *sl
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) GetOrCreate(ctx context.Context, sku *entity.SKU) (string, bool, error) {
	if err := s.fail(OpGetOrCreateSKU, sku); err != nil {
		return "", false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := skuKey{sku.SellerID, sku.Marketplace, sku.Code}
	if id, ok := s.skuIndex[k]; ok {
		return id, false, nil
	}
	cp := *sku
	s.skus[cp.ID] = &cp
	s.skuIndex[k] = cp.ID
	return cp.ID, true, nil
}

func (s *Store) ListBySeller(ctx context.Context, sellerID string) ([]*entity.SKU, error) {
	if err := s.fail(OpListSKUs, sellerID); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*entity.SKU, 0)
	for _, sku := range s.skus {
		if sku.SellerID == sellerID {
			cp := *sku
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *Store) Append(ctx context.Context, rec *entity.InventoryHistoryRecord) error {
	if err := s.fail(OpAppendHistory, rec); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.history = append(s.history, &cp)
	return nil
}

func (s *Store) ListBySKUSince(ctx context.Context, skuID, sellerID string, since time.Time) ([]*entity.InventoryHistoryRecord, error) {
	if err := s.fail(OpListHistory, skuID); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*entity.InventoryHistoryRecord, 0)
	for _, r := range s.history {
		if r.SKUID == skuID && r.SellerID == sellerID && !r.RecordedAt.Before(since) {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RecordedAt.Before(out[j].RecordedAt) })
	return out, nil
}

func (s *Store) Create(ctx context.Context, f *entity.Forecast) error {
	if err := s.fail(OpCreateForecast, f); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *f
	s.forecasts = append(s.forecasts, &cp)
	return nil
}

func (s *Store) ListLatestPerSKU(ctx context.Context) ([]*entity.Forecast, error) {
	if err := s.fail(OpListForecasts, nil); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	latest := make(map[string]*entity.Forecast)
	for _, f := range s.forecasts {
		if cur, ok := latest[f.SKUID]; !ok || !f.GeneratedAt.Before(cur.GeneratedAt) {
			latest[f.SKUID] = f
		}
	}
	out := make([]*entity.Forecast, 0, len(latest))
	for _, f := range latest {
		cp := *f
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKUID < out[j].SKUID })
	return out, nil
}

// Run emula una transacción: si fn falla se descartan los SKUs y registros que creó.
func (s *Store) Run(ctx context.Context, fn func(skus repository.SKURepository, history repository.InventoryHistoryRepository) error) error {
	tx := &txView{store: s}
	if err := fn(tx, tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

type txView struct {
	store   *Store
	skuIDs  []string
	records []*entity.InventoryHistoryRecord
}

func (t *txView) GetOrCreate(ctx context.Context, sku *entity.SKU) (string, bool, error) {
	id, created, err := t.store.GetOrCreate(ctx, sku)
	if err == nil && created {
		t.skuIDs = append(t.skuIDs, id)
	}
	return id, created, err
}

func (t *txView) ListBySeller(ctx context.Context, sellerID string) ([]*entity.SKU, error) {
	return t.store.ListBySeller(ctx, sellerID)
}

func (t *txView) Append(ctx context.Context, rec *entity.InventoryHistoryRecord) error {
	if err := t.store.Append(ctx, rec); err != nil {
		return err
	}
	t.records = append(t.records, rec)
	return nil
}

func (t *txView) ListBySKUSince(ctx context.Context, skuID, sellerID string, since time.Time) ([]*entity.InventoryHistoryRecord, error) {
	return t.store.ListBySKUSince(ctx, skuID, sellerID, since)
}

func (t *txView) rollback() {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range t.skuIDs {
		if sku, ok := s.skus[id]; ok {
			delete(s.skuIndex, skuKey{sku.SellerID, sku.Marketplace, sku.Code})
			delete(s.skus, id)
		}
	}
	if len(t.records) == 0 {
		return
	}
	drop := make(map[string]bool, len(t.records))
	for _, r := range t.records {
		drop[r.ID] = true
	}
	kept := s.history[:0]
	for _, r := range s.history {
		if !drop[r.ID] {
			kept = append(kept, r)
		}
	}
	s.history = kept
}

// History copia de todos los registros de historial, en orden de inserción.
func (s *Store) History() []*entity.InventoryHistoryRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*entity.InventoryHistoryRecord, len(s.history))
	for i, r := range s.history {
		cp := *r
		out[i] = &cp
	}
	return out
}

// SKUs copia de todos los SKUs ordenados por código.
func (s *Store) SKUs() []*entity.SKU {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*entity.SKU, 0, len(s.skus))
	for _, sku := range s.skus {
		cp := *sku
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Forecasts copia de todos los pronósticos, en orden de inserción.
func (s *Store) Forecasts() []*entity.Forecast {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*entity.Forecast, len(s.forecasts))
	for i, f := range s.forecasts {
		cp := *f
		out[i] = &cp
	}
	return out
}
