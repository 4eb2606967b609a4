// Package events publishes account changes to NATS.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/tendant/vfense-accounts/pkg/domain"
)

// DefaultSubjectPrefix is prepended to the event type to build the subject.
const DefaultSubjectPrefix = "vfense.accounts"

// Config configures the NATS connection.
type Config struct {
	Servers       []string
	Name          string
	SubjectPrefix string
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// Publisher sends every event as JSON on <prefix>.<event type>.
type Publisher struct {
	nc     *nats.Conn
	prefix string
	logger *slog.Logger
}

// Connect opens a NATS connection that keeps reconnecting in the background.
func Connect(cfg Config, logger *slog.Logger) (*Publisher, error) {
	if len(cfg.Servers) == 0 {
		return nil, errors.New("nats servers missing")
	}
	if cfg.Name == "" {
		cfg.Name = "vfense-accounts"
	}
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = DefaultSubjectPrefix
	}
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 500 * time.Millisecond
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 3 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "events")

	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.ReconnectJitter(100*time.Millisecond, 500*time.Millisecond),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	}
	nc, err := nats.Connect(strings.Join(cfg.Servers, ","), opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	return &Publisher{nc: nc, prefix: strings.TrimSuffix(cfg.SubjectPrefix, "."), logger: logger}, nil
}

// Subject returns the subject an event type is published on.
func Subject(prefix string, t domain.EventType) string {
	return prefix + "." + string(t)
}

// Publish sends e. Delivery is fire and forget.
func (p *Publisher) Publish(ctx context.Context, e domain.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := newMessage(p.prefix, e)
	if err != nil {
		return err
	}
	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s: %w", msg.Subject, err)
	}
	p.logger.Debug("event published", "subject", msg.Subject, "customer", e.Customer, "user", e.Username)
	return nil
}

func newMessage(prefix string, e domain.Event) (*nats.Msg, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	msg := nats.NewMsg(Subject(prefix, e.Type))
	msg.Data = data
	msg.Header.Set("Content-Type", "application/json")
	msg.Header.Set("Vfense-Event", string(e.Type))
	if e.Actor != "" {
		msg.Header.Set("Vfense-Actor", e.Actor)
	}
	return msg, nil
}

// Close flushes pending messages and closes the connection.
func (p *Publisher) Close() error {
	if p.nc == nil {
		return nil
	}
	return p.nc.Drain()
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, domain.Event) error { return nil }
