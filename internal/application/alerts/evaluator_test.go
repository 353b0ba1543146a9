package alerts

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stockout-sync/internal/domain/entity"
	"github.com/jhoicas/stockout-sync/internal/infrastructure/memstore"
)

var now = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	got [][]entity.AlertCandidate
	err error
}

func (r *recordingNotifier) Notify(ctx context.Context, c []entity.AlertCandidate) error {
	r.got = append(r.got, c)
	return r.err
}

func forecastAt(t *testing.T, store *memstore.Store, sku string, generated time.Time, stockOutInDays *int) {
	t.Helper()
	f := &entity.Forecast{ID: sku + generated.String(), SKUID: sku, SellerID: "s1", Confidence: 60, GeneratedAt: generated}
	if stockOutInDays != nil {
		d := now.AddDate(0, 0, *stockOutInDays)
		f.StockOutDate = &d
		f.Confidence = 80
	}
	require.NoError(t, store.Create(context.Background(), f))
}

func days(n int) *int { return &n }

func newEvaluator(store *memstore.Store, n Notifier) *Evaluator {
	e := NewEvaluator(store, n, 7, zerolog.Nop())
	e.now = func() time.Time { return now }
	return e
}

func TestEvaluate_VentanaYPronosticoVigente(t *testing.T) {
	store := memstore.New()
	forecastAt(t, store, "dentro", now, days(5))
	forecastAt(t, store, "limite", now, days(7))
	forecastAt(t, store, "fuera", now, days(8))
	forecastAt(t, store, "hoy", now, days(0))
	forecastAt(t, store, "pasado", now, days(-3))
	forecastAt(t, store, "sin-fecha", now, nil)
	// el vigente es el más reciente: este SKU ya no está en riesgo
	forecastAt(t, store, "superado", now.Add(-time.Hour), days(2))
	forecastAt(t, store, "superado", now, nil)
	n := &recordingNotifier{}

	res, err := newEvaluator(store, n).Evaluate(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)
	require.Len(t, res.Candidates, 2)
	assert.Equal(t, "dentro", res.Candidates[0].SKUID)
	assert.Equal(t, 5, res.Candidates[0].DaysUntilStockOut)
	assert.Equal(t, "limite", res.Candidates[1].SKUID)
	assert.Equal(t, 7, res.Candidates[1].DaysUntilStockOut)
	require.Len(t, n.got, 1)
	assert.Equal(t, res.Candidates, n.got[0])
}

func TestEvaluate_SinCandidatosNoNotifica(t *testing.T) {
	store := memstore.New()
	forecastAt(t, store, "fuera", now, days(20))
	n := &recordingNotifier{}

	res, err := newEvaluator(store, n).Evaluate(context.Background())

	require.NoError(t, err)
	assert.Zero(t, res.Count)
	assert.NotNil(t, res.Candidates)
	assert.Empty(t, n.got)
}

func TestEvaluate_FalloDelNotificadorNoCambiaConteo(t *testing.T) {
	store := memstore.New()
	forecastAt(t, store, "dentro", now, days(1))
	n := &recordingNotifier{err: errors.New("broker caído")}

	res, err := newEvaluator(store, n).Evaluate(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)
}

func TestEvaluate_FalloAlLeerPronosticos(t *testing.T) {
	store := memstore.New()
	store.Fail = func(op string, _ any) error {
		if op == memstore.OpListForecasts {
			return errors.New("db caída")
		}
		return nil
	}

	_, err := newEvaluator(store, nil).Evaluate(context.Background())

	assert.Error(t, err)
}

func TestLogNotifierYMulti(t *testing.T) {
	var buf bytes.Buffer
	failing := &recordingNotifier{err: errors.New("x")}
	ok := &recordingNotifier{}
	m := MultiNotifier{NewLogNotifier(zerolog.New(&buf)), failing, ok}

	err := m.Notify(context.Background(), []entity.AlertCandidate{{SKUID: "sku-1", SellerID: "s1", DaysUntilStockOut: 3}})

	assert.Error(t, err)
	assert.Len(t, ok.got, 1, "un fallo no impide entregar al resto")
	assert.Contains(t, buf.String(), `"sku_id":"sku-1"`)
	assert.Contains(t, buf.String(), `"days_until_stock_out":3`)
}
