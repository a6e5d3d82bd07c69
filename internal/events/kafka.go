// Package events streams committed ledger transactions to Kafka for
// downstream consumers such as reporting and tax lot tracking.
package events

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"folio/internal/config"
	"folio/internal/models"
)

// TransactionEvent is the message value. The key is the portfolio id so a
// portfolio's transactions stay ordered within one partition.
type TransactionEvent struct {
	Type        string             `json:"type"`
	Transaction models.Transaction `json:"transaction"`
	EmittedAt   time.Time          `json:"emittedAt"`
}

const eventTransactionCommitted = "transaction.committed"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
	logger *zap.Logger
	now    func() time.Time
}

// NewKafkaPublisher returns nil when no brokers are configured. The writer is
// async: WriteMessages only enqueues, and delivery failures are logged from
// the completion callback.
func NewKafkaPublisher(cfg config.EventsConfig, logger *zap.Logger) *KafkaPublisher {
	brokers := make([]string, 0, len(cfg.KafkaBrokers))
	for _, b := range cfg.KafkaBrokers {
		for _, part := range strings.Split(b, ",") {
			if part = strings.TrimSpace(part); part != "" {
				brokers = append(brokers, part)
			}
		}
	}
	if len(brokers) == 0 || strings.TrimSpace(cfg.Topic) == "" {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           200 * time.Millisecond,
		Async:                  true,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				logger.Warn("kafka delivery failed", zap.Int("messages", len(msgs)), zap.Error(err))
			}
		},
	}
	return &KafkaPublisher{writer: w, logger: logger}
}

func (p *KafkaPublisher) PublishTransaction(ctx context.Context, t models.Transaction) error {
	if p == nil {
		return nil
	}
	body, err := json.Marshal(TransactionEvent{
		Type:        eventTransactionCommitted,
		Transaction: t,
		EmittedAt:   p.clock(),
	})
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatUint(t.PortfolioID, 10)),
		Value: body,
		Time:  t.CreatedAt,
	})
}

func (p *KafkaPublisher) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}

func (p *KafkaPublisher) clock() time.Time {
	if p.now != nil {
		return p.now()
	}
	return time.Now().UTC()
}
