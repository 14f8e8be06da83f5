// Package kafka ships audit events to Kafka topics, one topic per event
// category.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	audit "crowdgate/pkg/platform/audit"
)

// Config selects brokers and the per-category topics.
type Config struct {
	Brokers         []string
	ComplianceTopic string
	OperationsTopic string
}

// Publisher is an audit.Sink producing JSON records to Kafka. Compliance
// events are produced synchronously so a failed broker write fails the
// emitting call; operations events are fire-and-forget.
type Publisher struct {
	client *kgo.Client
	cfg    Config
}

func New(cfg Config) (*Publisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.ProduceRequestTimeout(10*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Publisher{client: client, cfg: cfg}, nil
}

func (p *Publisher) topicFor(category audit.EventCategory) string {
	if category == audit.CategoryCompliance {
		return p.cfg.ComplianceTopic
	}
	return p.cfg.OperationsTopic
}

// Append implements audit.Sink.
func (p *Publisher) Append(ctx context.Context, event audit.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	record := &kgo.Record{
		Topic: p.topicFor(event.Category()),
		Key:   []byte(event.Action),
		Value: payload,
	}

	if event.Category() == audit.CategoryCompliance {
		if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
			return fmt.Errorf("produce audit event: %w", err)
		}
		return nil
	}

	p.client.Produce(ctx, record, nil)
	return nil
}

// Close flushes pending records and releases the client.
func (p *Publisher) Close(ctx context.Context) error {
	if err := p.client.Flush(ctx); err != nil {
		return fmt.Errorf("flush kafka producer: %w", err)
	}
	p.client.Close()
	return nil
}
