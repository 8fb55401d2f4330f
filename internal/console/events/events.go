package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Subjects published by the console.
const (
	SubjectStatusChanged = "console.status.changed"
	SubjectRowDeleted    = "console.row.deleted"
)

// StatusChanged is published after a committed status transition.
type StatusChanged struct {
	Entity string    `json:"entity"`
	ID     string    `json:"id"`
	From   string    `json:"from"`
	To     string    `json:"to"`
	Actor  string    `json:"actor,omitempty"`
	At     time.Time `json:"at"`
}

// RowDeleted is published after a row was deleted.
type RowDeleted struct {
	Entity string    `json:"entity"`
	ID     string    `json:"id"`
	Actor  string    `json:"actor,omitempty"`
	At     time.Time `json:"at"`
}

// Publisher publishes JSON-encoded events to a subject.
type Publisher interface {
	Publish(ctx context.Context, subject string, event any) error
	Close() error
}

// NATSPublisher publishes events to NATS subjects.
type NATSPublisher struct {
	conn *nats.Conn
}

// NewNATSPublisher connects to url with automatic reconnection.
func NewNATSPublisher(url string, opts ...nats.Option) (*NATSPublisher, error) {
	defaults := []nats.Option{
		nats.Name("console"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &NATSPublisher{conn: nc}, nil
}

func (p *NATSPublisher) Publish(_ context.Context, subject string, event any) error {
	data, err := Encode(event)
	if err != nil {
		return err
	}
	return p.conn.Publish(subject, data)
}

func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}

// Encode marshals an event payload.
func Encode(event any) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshaling event: %w", err)
	}
	return data, nil
}

// Noop discards every event. It is used when NATS is not configured.
type Noop struct{}

func (Noop) Publish(context.Context, string, any) error { return nil }
func (Noop) Close() error                               { return nil }
