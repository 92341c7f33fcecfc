package natsbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"HeadlineRadar/internal/domain"
	"HeadlineRadar/internal/ports"
)

const flushTimeout = 5 * time.Second

// Conn is the part of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subject string, data []byte) error
	FlushTimeout(timeout time.Duration) error
}

// Publisher emits every report as JSON on a subject.
type Publisher struct {
	conn    Conn
	subject string
}

var _ ports.Notifier = (*Publisher)(nil)

// Connect opens a NATS connection that keeps reconnecting in the background.
func Connect(url string, logger *slog.Logger) (*nats.Conn, error) {
	options := []nats.Option{
		nats.Name("headlineradar"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.Timeout(5 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Debug("nats connection closed")
		}),
	}

	nc, err := nats.Connect(url, options...)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return nc, nil
}

// NewPublisher publishes on subject over conn.
func NewPublisher(conn Conn, subject string) *Publisher {
	return &Publisher{conn: conn, subject: subject}
}

// Name identifies the channel in logs.
func (p *Publisher) Name() string {
	return "nats"
}

// PublishReport publishes the report JSON and waits for the server ack of
// the flush.
func (p *Publisher) PublishReport(ctx context.Context, report domain.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := p.conn.Publish(p.subject, payload); err != nil {
		return fmt.Errorf("publish %s: %w", p.subject, err)
	}
	if err := p.conn.FlushTimeout(flushTimeout); err != nil {
		return fmt.Errorf("flush %s: %w", p.subject, err)
	}
	return nil
}
