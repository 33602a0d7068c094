package events

import (
	"context"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
)

type NATSPublisher struct {
	conn    *nats.Conn
	subject string
}

func NewNATSPublisher(url, subject string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url, nats.Name("repair-orders"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to NATS")
	}
	return &NATSPublisher{conn: conn, subject: subject}, nil
}

// Publish sends to <subject>.<event type>.
func (p *NATSPublisher) Publish(_ context.Context, e Event) error {
	b, err := e.Marshal()
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}
	return errors.Wrap(p.conn.Publish(p.subject+"."+e.Type, b), "nats publish")
}

func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}
