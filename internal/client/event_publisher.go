package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// EventPublisher publishes aggregate-changed events to NATS so terminals
// showing the same workplace refresh their counters.
//
// Subject convention: scans.<workplace>.<article>.changed
//
// Publishing is best effort. Errors are logged and never reach the caller;
// a lost event only delays a terminal refresh.
type EventPublisher struct {
	conn *nats.Conn
	log  zerolog.Logger
}

// NewDisabledEventPublisher returns a publisher that drops every event
func NewDisabledEventPublisher(log zerolog.Logger) *EventPublisher {
	return &EventPublisher{log: log}
}

// NewEventPublisher connects to NATS. An empty url yields a disabled
// publisher.
func NewEventPublisher(url string, log zerolog.Logger) (*EventPublisher, error) {
	if url == "" {
		return NewDisabledEventPublisher(log), nil
	}

	conn, err := nats.Connect(url,
		nats.Name("mfg-scans"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &EventPublisher{conn: conn, log: log}, nil
}

// AggregateSubject returns the subject for a workplace and article
func AggregateSubject(workplace, article string) string {
	return fmt.Sprintf("scans.%s.%s.changed", subjectToken(workplace), subjectToken(article))
}

// subjectToken keeps NATS subject separators and wildcards out of a token
func subjectToken(s string) string {
	return strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_").Replace(s)
}

// PublishAggregateChanged publishes one event
func (p *EventPublisher) PublishAggregateChanged(ctx context.Context, event *AggregateChangedEvent) {
	if p == nil || p.conn == nil {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.log.Warn().Err(err).Msg("events: failed to marshal aggregate event")
		return
	}

	subject := AggregateSubject(event.Workplace, event.Article)
	if err := p.conn.Publish(subject, data); err != nil {
		p.log.Warn().Err(err).
			Str("subject", subject).
			Msg("events: failed to publish aggregate event (non-fatal)")
		return
	}

	p.log.Debug().
		Str("subject", subject).
		Str("kind", event.Kind).
		Msg("events: aggregate event published")
}

// Close drains the connection
func (p *EventPublisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.log.Warn().Err(err).Msg("events: failed to drain NATS connection")
	}
}
