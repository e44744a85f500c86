// Package broker публикует события vcalc в NATS.
//
// Сервер работает и без NATS: брокер подключается в фоне и переподключается
// сам, а публикация при отсутствии соединения буферизуется клиентом NATS.
package broker

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// ClientName имя клиента, под которым vcalc виден в мониторинге NATS.
const ClientName = "vcalc"

// Broker управляет соединением с NATS.
type Broker struct {
	conn *nats.Conn
}

// Config конфигурация NATS.
type Config struct {
	URLs          []string
	ReconnectWait time.Duration
	MaxReconnects int // -1 = без ограничения
}

func (c Config) url() string {
	if len(c.URLs) == 0 {
		return nats.DefaultURL
	}
	// NATS поддерживает URL через запятую
	return strings.Join(c.URLs, ",")
}

func (c Config) options() []nats.Option {
	return []nats.Option{
		nats.Name(ClientName),
		nats.ReconnectWait(c.ReconnectWait),
		nats.MaxReconnects(c.MaxReconnects),
		nats.RetryOnFailedConnect(true),
		nats.ConnectHandler(func(nc *nats.Conn) {
			slog.Info("broker: NATS connected", "url", nc.ConnectedUrl())
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("broker: NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("broker: NATS reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			slog.Debug("broker: NATS connection closed")
		}),
	}
}

// New создаёт брокер. Если NATS недоступен, соединение устанавливается
// в фоне, а New возвращает брокер без ошибки.
func New(cfg Config) (*Broker, error) {
	url := cfg.url()
	slog.Debug("broker: connecting", "urls", url)

	conn, err := nats.Connect(url, cfg.options()...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	if !conn.IsConnected() {
		slog.Warn("broker: NATS unavailable, retrying in background", "urls", url)
	}

	return &Broker{conn: conn}, nil
}

// Conn возвращает соединение NATS.
func (b *Broker) Conn() *nats.Conn {
	return b.conn
}

// Connected сообщает, есть ли сейчас соединение с NATS.
func (b *Broker) Connected() bool {
	return b.conn.IsConnected()
}

// Close отправляет буферизованные события и закрывает соединение.
func (b *Broker) Close() error {
	if !b.conn.IsConnected() {
		b.conn.Close()
		return nil
	}
	if err := b.conn.Drain(); err != nil {
		return fmt.Errorf("drain NATS connection: %w", err)
	}
	return nil
}
