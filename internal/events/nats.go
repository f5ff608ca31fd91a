// Package events publishes container lifecycle notifications over NATS
// JetStream, adapted from the teacher's job-lifecycle publisher to the
// view-materialization event the apply/materialize pipeline emits.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// ViewMaterialized describes one completed Materialize call, published so
// downstream consumers (e.g. a demo UI) can react without polling.
type ViewMaterialized struct {
	ContainerName string `json:"container_name"`
	GroupPath     string `json:"group_path"`
	RegionCount   int    `json:"region_count"`
	ObjectCount   int    `json:"object_count"`
	AttributeCount int   `json:"attribute_count"`
}

// Publisher wraps a NATS connection with JetStream support for publishing
// materialization events on the "views.materialized" subject.
type Publisher struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	logger *slog.Logger
}

// NewPublisher connects to a NATS server and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	logger := slog.Default().With("component", "events")

	opts := []nats.Option{
		nats.Name("queryview"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	return &Publisher{conn: nc, js: js, logger: logger}, nil
}

// Close drains the connection and disconnects.
func (p *Publisher) Close() {
	if p.conn != nil {
		_ = p.conn.Drain()
	}
}

// EnsureStream creates the VIEWS stream if it does not already exist.
func (p *Publisher) EnsureStream(ctx context.Context) error {
	cfg := jetstream.StreamConfig{
		Name:        "VIEWS",
		Description: "View materialization events",
		Subjects:    []string{"views.>"},
		Retention:   jetstream.InterestPolicy,
		MaxAge:      1 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Discard:     jetstream.DiscardOld,
		MaxBytes:    256 * 1024 * 1024,
	}
	if _, err := p.js.CreateOrUpdateStream(ctx, cfg); err != nil {
		return fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
	}
	p.logger.Info("JetStream stream ready", "stream", cfg.Name)
	return nil
}

// PublishMaterialized publishes a view-materialization event.
func (p *Publisher) PublishMaterialized(ctx context.Context, ev ViewMaterialized) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal materialized event: %w", err)
	}
	subject := "views.materialized"
	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	p.logger.Debug("published materialized event", "subject", subject, "bytes", len(data))
	return nil
}

// Ping verifies the NATS connection is alive and JetStream is available.
func (p *Publisher) Ping() error {
	if !p.conn.IsConnected() {
		return fmt.Errorf("events: not connected")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := p.js.AccountInfo(ctx); err != nil {
		return fmt.Errorf("events jetstream ping: %w", err)
	}
	return nil
}
