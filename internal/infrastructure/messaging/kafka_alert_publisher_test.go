package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stockout-sync/internal/domain/entity"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("sin deadline")
	}
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestNotify_PublicaUnMensajePorAlerta(t *testing.T) {
	w := &fakeWriter{}
	p := newPublisher(w)
	out := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	err := p.Notify(context.Background(), []entity.AlertCandidate{
		{SKUID: "sku-1", SellerID: "A", DaysUntilStockOut: 5, StockOutDate: out, Confidence: 80},
		{SKUID: "sku-2", SellerID: "A", DaysUntilStockOut: 1, StockOutDate: out, Confidence: 80},
	})

	require.NoError(t, err)
	require.Len(t, w.msgs, 2)
	assert.Equal(t, "A", string(w.msgs[0].Key))
	assert.Equal(t, "stockout.alert", string(w.msgs[0].Headers[0].Value))

	var ev map[string]any
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &ev))
	assert.Equal(t, "sku-1", ev["sku_id"])
	assert.Equal(t, float64(5), ev["days_until_stock_out"])

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestNotify_SinAlertasNoEscribe(t *testing.T) {
	w := &fakeWriter{}
	require.NoError(t, newPublisher(w).Notify(context.Background(), nil))
	assert.Empty(t, w.msgs)
}

func TestNotify_ErrorDelBroker(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}

	err := newPublisher(w).Notify(context.Background(), []entity.AlertCandidate{{SKUID: "x", SellerID: "s"}})

	assert.ErrorContains(t, err, "leader not available")
}
