package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/twmb/franz-go/pkg/kgo"

	"sheger-et-bot/internal/config"
	"sheger-et-bot/internal/domain/ports/adapter"
)

var _ adapter.EventPublisher = (*KafkaPublisher)(nil)

// producer is the slice of *kgo.Client the publisher needs.
type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// KafkaPublisher writes payment events as JSON records keyed by user id, so
// one user's events stay ordered within a partition.
type KafkaPublisher struct {
	client  producer
	topic   string
	timeout time.Duration
	log     zerolog.Logger
}

func NewKafkaPublisher(cfg config.KafkaConfig, logger *zerolog.Logger) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.ProducerLinger(10*time.Millisecond),
		kgo.RecordRetries(5),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}
	return newKafkaPublisher(client, cfg.Topic, logger), nil
}

func newKafkaPublisher(client producer, topic string, logger *zerolog.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		client:  client,
		topic:   topic,
		timeout: 5 * time.Second,
		log:     logger.With().Str("component", "kafka_publisher").Str("topic", topic).Logger(),
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev adapter.PaymentEvent) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	rec := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(strconv.FormatInt(ev.UserID, 10)),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(ev.Type)},
			{Key: "intent_id", Value: []byte(ev.IntentID)},
		},
	}

	pctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.client.ProduceSync(pctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("failed to produce %s: %w", ev.Type, err)
	}
	p.log.Debug().Str("type", string(ev.Type)).Str("reference", ev.ReferenceCode).Msg("event published")
	return nil
}

func (p *KafkaPublisher) Close() { p.client.Close() }
