// Package nats publishes merged series as JSON documents on NATS subjects.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/couchcryptid/sounding-graphs/internal/output"
	"github.com/couchcryptid/sounding-graphs/internal/pipeline"
)

const flushTimeout = 5 * time.Second

// Conn is the subset of *nats.Conn the publisher uses.
type Conn interface {
	Publish(subject string, data []byte) error
	FlushTimeout(timeout time.Duration) error
	Drain() error
}

// Connect dials url with reconnects enabled. Connection state changes are
// logged.
func Connect(url, name string, logger *slog.Logger) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			logger.Info("nats connection closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats at %s: %w", url, err)
	}
	return conn, nil
}

// Publisher sends one message per merged series to
// "{prefix}.{site}.{model}". It implements pipeline.Sink.
type Publisher struct {
	conn   Conn
	prefix string
	logger *slog.Logger
}

func NewPublisher(conn Conn, prefix string, logger *slog.Logger) *Publisher {
	return &Publisher{conn: conn, prefix: prefix, logger: logger}
}

func (p *Publisher) Deliver(_ context.Context, r pipeline.Result) error {
	doc := output.NewDocument(r)
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("serialize merged series: %w", err)
	}

	subject := Subject(p.prefix, doc.Site, doc.Model)
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	if err := p.conn.FlushTimeout(flushTimeout); err != nil {
		return fmt.Errorf("flush %s: %w", subject, err)
	}
	p.logger.Debug("published to nats", "subject", subject, "bytes", len(data))
	return nil
}

// Close drains pending messages and closes the connection.
func (p *Publisher) Close() error {
	return p.conn.Drain()
}

var tokenReplacer = strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_")

// Subject builds the subject for a site and model. Characters with meaning
// in NATS subjects are replaced inside each token.
func Subject(prefix, site, model string) string {
	return prefix + "." + tokenReplacer.Replace(site) + "." + tokenReplacer.Replace(model)
}
