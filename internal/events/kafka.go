package events

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

// messageWriter is the part of kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	var addrs []string
	for _, b := range brokers {
		if b = strings.TrimSpace(b); b != "" {
			addrs = append(addrs, b)
		}
	}
	if len(addrs) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:         kafka.TCP(addrs...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}}, nil
}

func newKafkaPublisherWith(w messageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

func (k *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	b, err := e.Marshal()
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}
	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(e.Key()),
		Value:   b,
		Headers: []kafka.Header{{Key: "type", Value: []byte(e.Type)}},
	})
	return errors.Wrap(err, "kafka write")
}

func (k *KafkaPublisher) Close() error { return k.writer.Close() }
