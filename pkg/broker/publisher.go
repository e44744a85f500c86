package broker

import (
	"fmt"
	"log/slog"
)

// EventPublisher публикует события соединений.
type EventPublisher interface {
	PublishEvent(e *Event) error
}

// NopPublisher отбрасывает события. Используется, когда NATS не настроен.
type NopPublisher struct{}

// PublishEvent реализует EventPublisher.
func (NopPublisher) PublishEvent(*Event) error { return nil }

// Publisher публикует события в NATS.
type Publisher struct {
	broker *Broker
}

// NewPublisher создаёт издателя.
func NewPublisher(broker *Broker) *Publisher {
	return &Publisher{broker: broker}
}

// PublishEvent публикует событие в subject "vcalc.events.<kind>".
func (p *Publisher) PublishEvent(e *Event) error {
	subject := subjectForEvent(e.Kind)

	data, err := e.Marshal()
	if err != nil {
		return err
	}

	slog.Debug("publisher: publishing", "subject", subject, "size", len(data))
	if err := p.broker.conn.Publish(subject, data); err != nil {
		slog.Error("publisher: failed", "subject", subject, "error", err)
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	return nil
}
