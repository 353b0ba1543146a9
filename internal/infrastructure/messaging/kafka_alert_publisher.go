// Package messaging publica las alertas de agotamiento en Kafka.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/jhoicas/stockout-sync/internal/application/alerts"
	"github.com/jhoicas/stockout-sync/internal/domain/entity"
)

var _ alerts.Notifier = (*KafkaAlertPublisher)(nil)

const writeTimeout = 5 * time.Second

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// AlertEvent mensaje publicado por cada SKU en riesgo.
type AlertEvent struct {
	SKUID             string    `json:"sku_id"`
	SellerID          string    `json:"seller_id"`
	DaysUntilStockOut int       `json:"days_until_stock_out"`
	StockOutDate      time.Time `json:"stock_out_date"`
	Confidence        int       `json:"confidence"`
}

// KafkaAlertPublisher implementa alerts.Notifier; la clave del mensaje es el seller
// para conservar el orden por seller dentro de la partición.
type KafkaAlertPublisher struct {
	writer messageWriter
	now    func() time.Time
}

func NewKafkaAlertPublisher(brokers []string, topic string) *KafkaAlertPublisher {
	return newPublisher(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Compression:  kafka.Snappy,
	})
}

func newPublisher(w messageWriter) *KafkaAlertPublisher {
	return &KafkaAlertPublisher{writer: w, now: time.Now}
}

// Notify publica todas las alertas en un solo lote.
func (p *KafkaAlertPublisher) Notify(ctx context.Context, candidates []entity.AlertCandidate) error {
	if len(candidates) == 0 {
		return nil
	}
	now := p.now()
	msgs := make([]kafka.Message, 0, len(candidates))
	for _, c := range candidates {
		value, err := json.Marshal(AlertEvent{
			SKUID:             c.SKUID,
			SellerID:          c.SellerID,
			DaysUntilStockOut: c.DaysUntilStockOut,
			StockOutDate:      c.StockOutDate,
			Confidence:        c.Confidence,
		})
		if err != nil {
			return fmt.Errorf("marshal alerta %s: %w", c.SKUID, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(c.SellerID),
			Value: value,
			Time:  now,
			Headers: []kafka.Header{
				{Key: "event-type", Value: []byte("stockout.alert")},
			},
		})
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publicar %d alertas en kafka: %w", len(msgs), err)
	}
	return nil
}

func (p *KafkaAlertPublisher) Close() error {
	return p.writer.Close()
}
