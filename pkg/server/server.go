// Package server реализует TCP сервер vcalc.
//
// Каждое принятое соединение обслуживается отдельной горутиной:
// аутентификация, затем пакет векторов. Соединения не разделяют состояние,
// кроме неизменяемого хранилища учётных записей.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/udisondev/vcalc/pkg/broker"
	"github.com/udisondev/vcalc/pkg/config"
	"github.com/udisondev/vcalc/pkg/credentials"
	"github.com/udisondev/vcalc/pkg/protocol"
)

// Run создаёт TCP listener и запускает сервер.
func Run(ctx context.Context, cfg *config.Config) error {
	addr := cfg.Server.Addr()
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	return Serve(ctx, cfg, lis)
}

// Serve запускает сервер на переданном TCP listener.
// Если в конфигурации задан TLS, listener оборачивается в TLS.
// Возвращает nil после отмены ctx, когда все соединения закрыты.
func Serve(ctx context.Context, cfg *config.Config, lis net.Listener) error {
	store, err := loadStore(cfg.Credentials)
	if err != nil {
		_ = lis.Close()
		return fmt.Errorf("load credentials: %w", err)
	}

	if cfg.TLS.Enabled() {
		tlsConfig, err := buildTLSConfig(cfg.TLS)
		if err != nil {
			_ = lis.Close()
			return fmt.Errorf("build TLS config: %w", err)
		}
		lis = tls.NewListener(lis, tlsConfig)
	}

	events, closeEvents, err := newEventPublisher(cfg.Events)
	if err != nil {
		_ = lis.Close()
		return err
	}
	defer closeEvents()

	return serve(ctx, lis, newHandler(store, events, cfg.Limits), cfg)
}

func serve(ctx context.Context, lis net.Listener, h *handler, cfg *config.Config) error {
	defer func() {
		if err := lis.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			slog.Error("close listener", "error", err)
		}
	}()

	// Graceful shutdown listener
	go func() {
		<-ctx.Done()
		if err := lis.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			slog.Error("close listener", "error", err)
		}
	}()

	// Семафор-с-буфером: одна операция для лимита соединений И получения auth буфера
	authSem := make(chan []byte, cfg.Limits.MaxConnections)
	for range cfg.Limits.MaxConnections {
		authSem <- make([]byte, protocol.MaxAuthMessageSize)
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	slog.Info("server started", "addr", lis.Addr().String(), "tls", cfg.TLS.Enabled())
	slog.Info("server: configuration",
		"users", h.store.Len(),
		"index", cfg.Credentials.Index,
		"events", cfg.Events.Enabled(),
		"max_connections", cfg.Limits.MaxConnections,
		"max_vector_len", cfg.Limits.MaxVectorLen,
		"rate_limit_per_sec", cfg.Limits.RateLimitPerSec,
		"rate_limit_burst", cfg.Limits.RateLimitBurst,
		"auth_timeout", cfg.Limits.AuthTimeout,
		"io_timeout", cfg.Limits.IOTimeout,
	)

	// Сигнализируем что сервер готов
	if cfg.Ready != nil {
		close(cfg.Ready)
	}

	// Accept loop
	for {
		conn, err := lis.Accept()
		if err != nil {
			if ctx.Err() != nil {
				slog.Info("server shutting down")
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			// Ошибка accept не фатальна: продолжаем обслуживать новые соединения.
			slog.Warn("accept connection", "error", err)
			continue
		}

		select {
		case authBuf := <-authSem:
			wg.Add(1)
			go func(c net.Conn, buf []byte) {
				defer wg.Done()
				defer func() { authSem <- buf }()
				h.handleConn(ctx, c, buf)
			}(conn, authBuf)
		default:
			slog.Warn("server: connection limit reached", "remote", conn.RemoteAddr())
			if err := conn.Close(); err != nil {
				slog.Error("server: close connection on limit failed", "error", err)
			}
		}
	}
}

// handler обслуживает соединения. Общий для всех горутин, только чтение.
type handler struct {
	store      credentials.Store
	events     broker.EventPublisher
	limits     config.LimitsConfig
	rateLimit  rate.Limit
	vectorPool *sync.Pool
}

func newHandler(store credentials.Store, events broker.EventPublisher, limits config.LimitsConfig) *handler {
	limit := rate.Inf
	if limits.RateLimitPerSec > 0 {
		limit = rate.Limit(limits.RateLimitPerSec)
	}
	return &handler{
		store:      store,
		events:     events,
		limits:     limits,
		rateLimit:  limit,
		vectorPool: &sync.Pool{New: func() any { return &vectorBuf{} }},
	}
}

// handleConn обрабатывает одно соединение от accept до закрытия.
func (h *handler) handleConn(ctx context.Context, conn net.Conn, authBuf []byte) {
	s := newSession(conn)
	defer s.close()

	// Закрываем соединение при остановке сервера, чтобы разблокировать чтение.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	slog.Debug("new connection", "remote", s.remote)

	// Включаем TCP_NODELAY: ответы по 2 байта не должны ждать Nagle.
	setNoDelay(conn)

	// 1. Аутентификация
	login, err := authenticate(conn, h.store, h.limits.AuthTimeout, authBuf)
	if err != nil {
		switch {
		case errors.Is(err, protocol.ErrAuthFailed):
			h.publish(&broker.Event{Kind: broker.EventAuthFail, Remote: s.remote})
		case isDisconnect(err):
			slog.Debug("client disconnected before auth", "remote", s.remote)
		default:
			slog.Warn("authentication error", "error", err, "remote", s.remote)
		}
		return
	}
	s.login = login
	if err := s.transition(StateAuthenticated); err != nil {
		slog.Error("session", "error", err, "remote", s.remote)
		return
	}
	slog.Info("client authenticated", "login", login, "remote", s.remote)
	h.publish(&broker.Event{Kind: broker.EventAuthOK, Remote: s.remote, Login: login})

	// 2. Пакет векторов
	if err := s.transition(StateProcessingVectors); err != nil {
		slog.Error("session", "error", err, "remote", s.remote)
		return
	}
	processed, err := h.processVectors(ctx, s)

	done := &broker.Event{Kind: broker.EventBatchDone, Remote: s.remote, Login: login, Vectors: processed}
	switch {
	case err == nil:
		slog.Info("batch processed", "login", login, "vectors", processed, "remote", s.remote)
	case ctx.Err() != nil:
		slog.Info("batch interrupted by shutdown", "login", login, "vectors", processed, "remote", s.remote)
		done.Error = err.Error()
	case isDisconnect(err):
		slog.Warn("client disconnected mid batch", "error", err, "login", login, "vectors", processed, "remote", s.remote)
		done.Error = err.Error()
	default:
		slog.Warn("batch failed", "error", err, "login", login, "vectors", processed, "remote", s.remote)
		done.Error = err.Error()
	}
	h.publish(done)
}

// publish отправляет событие. Ошибка публикации не влияет на соединение.
func (h *handler) publish(e *broker.Event) {
	e.Time = time.Now()
	if err := h.events.PublishEvent(e); err != nil {
		slog.Warn("publish event", "error", err, "kind", e.Kind)
	}
}

// loadStore загружает учётные записи и строит неизменяемое хранилище.
func loadStore(cfg config.CredentialsConfig) (credentials.Store, error) {
	if _, err := os.Stat(cfg.File); errors.Is(err, os.ErrNotExist) {
		slog.Error("credentials: cannot open user database file", "file", cfg.File)
	}

	creds, err := credentials.Load(cfg.File)
	if err != nil {
		return nil, err
	}
	if len(creds) == 0 {
		slog.Warn("credentials: no users loaded, every login will fail", "file", cfg.File)
	}

	slog.Debug("credentials: loaded", "file", cfg.File, "users", len(creds), "index", cfg.Index)
	return credentials.NewStore(cfg.Index, creds), nil
}

// newEventPublisher создаёт издателя событий. Без NATS события отбрасываются.
func newEventPublisher(cfg config.EventsConfig) (broker.EventPublisher, func(), error) {
	if !cfg.Enabled() {
		return broker.NopPublisher{}, func() {}, nil
	}

	brk, err := broker.New(broker.Config{
		URLs:          cfg.URLs,
		ReconnectWait: cfg.ReconnectWait,
		MaxReconnects: cfg.MaxReconnects,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create broker: %w", err)
	}

	closeFn := func() {
		if err := brk.Close(); err != nil {
			slog.Error("close broker", "error", err)
		}
	}
	return broker.NewPublisher(brk), closeFn, nil
}

// setNoDelay включает TCP_NODELAY для TCP и TLS поверх TCP.
func setNoDelay(conn net.Conn) {
	if tlsConn, ok := conn.(*tls.Conn); ok {
		conn = tlsConn.NetConn()
	}
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
	}
}

// isDisconnect сообщает, что ошибка вызвана закрытием соединения клиентом.
func isDisconnect(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed)
}
