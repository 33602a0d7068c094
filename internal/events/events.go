// Package events publishes batch lifecycle notifications for downstream
// consumers. Delivery is best-effort.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/repair-orders/internal/common"
)

const (
	TypeBatchIngested = "batch.ingested"
	TypeBatchApproved = "batch.approved"
	TypeBatchRejected = "batch.rejected"
)

type Event struct {
	Type      string    `json:"type"`
	BatchID   int64     `json:"batch_id"`
	Status    string    `json:"status"`
	Reason    string    `json:"reason,omitempty"`
	Warnings  int       `json:"warnings,omitempty"`
	ActorID   int64     `json:"actor_id,omitempty"`
	Week      string    `json:"week,omitempty"`
	Timestamp time.Time `json:"ts"`
}

func (e Event) Key() string { return fmt.Sprintf("batch-%d", e.BatchID) }

func (e Event) Marshal() ([]byte, error) { return json.Marshal(e) }

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Noop drops every event.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }

// New builds the publisher selected by cfg.Backend.
func New(cfg common.EventsConfig, logger *slog.Logger) (Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Backend {
	case "", "none":
		return Noop{}, nil
	case "kafka":
		logger.Info("events.backend", "backend", "kafka", "topic", cfg.KafkaTopic, "brokers", len(cfg.KafkaBrokers))
		return NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	case "nats":
		logger.Info("events.backend", "backend", "nats", "subject", cfg.NatsSubject)
		return NewNATSPublisher(cfg.NatsURL, cfg.NatsSubject)
	default:
		return nil, common.InvalidArgumentErrorf("unknown events backend %q", cfg.Backend)
	}
}
