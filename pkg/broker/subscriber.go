package broker

import (
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
)

// AllEvents — subject, на который приходят события всех типов.
const AllEvents = SubjectPrefix + ">"

// Subscriber управляет подпиской на события.
type Subscriber struct {
	sub *nats.Subscription
}

// NewSubscriber подписывается на subject и передаёт декодированные события в handler.
// Сообщения, которые не удалось декодировать, пропускаются.
func NewSubscriber(broker *Broker, subject string, handler func(*Event)) (*Subscriber, error) {
	slog.Debug("subscriber: creating", "subject", subject)

	sub, err := broker.conn.Subscribe(subject, func(msg *nats.Msg) {
		e, err := UnmarshalEvent(msg.Data)
		if err != nil {
			slog.Warn("subscriber: bad event", "subject", msg.Subject, "error", err)
			return
		}
		handler(e)
	})
	if err != nil {
		slog.Error("subscriber: subscribe failed", "subject", subject, "error", err)
		return nil, fmt.Errorf("subscribe to %s: %w", subject, err)
	}

	// Flush гарантирует, что подписка зарегистрирована на сервере.
	if err := broker.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("flush subscription %s: %w", subject, err)
	}

	slog.Info("subscriber: subscribed", "subject", subject)

	return &Subscriber{
		sub: sub,
	}, nil
}

// Unsubscribe отписывается от топика.
func (s *Subscriber) Unsubscribe() error {
	subject := s.sub.Subject
	slog.Debug("subscriber: unsubscribing", "subject", subject)
	if err := s.sub.Unsubscribe(); err != nil {
		slog.Error("subscriber: unsubscribe failed", "subject", subject, "error", err)
		return err
	}
	return nil
}
