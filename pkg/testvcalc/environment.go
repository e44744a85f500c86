package testvcalc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/testcontainers/testcontainers-go"

	"github.com/udisondev/vcalc/internal/appdir"
	"github.com/udisondev/vcalc/pkg/broker"
	"github.com/udisondev/vcalc/pkg/client"
	"github.com/udisondev/vcalc/pkg/config"
	"github.com/udisondev/vcalc/pkg/credentials"
	"github.com/udisondev/vcalc/pkg/server"
)

// DefaultCredentials учётные записи окружения по умолчанию.
var DefaultCredentials = []credentials.Credential{
	{Login: "testuser", Secret: "testpass123"},
	{Login: "alice", Secret: "password456"},
	{Login: "bob", Secret: "secret789"},
}

// Environment представляет тестовое окружение vcalc.
type Environment struct {
	// Addr адрес сервера vcalc (host:port).
	Addr string
	// NATSUrl URL для подключения к NATS. Пустой, если NATS не запущен.
	NATSUrl string
	// CACert CA сертификат для TLS клиентов. Пустой, если TLS выключен.
	CACert []byte
	// CredentialsFile путь к файлу учётных записей сервера.
	CredentialsFile string

	secrets   map[string]string
	dir       string
	nats      testcontainers.Container
	cancelCtx context.CancelFunc
	serverErr chan error
}

// Option опция конфигурации окружения.
type Option func(*options)

type options struct {
	creds           []credentials.Credential
	index           credentials.Index
	tls             bool
	nats            bool
	maxConnections  int
	maxVectorLen    int
	rateLimitPerSec float64
	rateLimitBurst  int
	authTimeout     time.Duration
	ioTimeout       time.Duration
}

func defaultOptions() *options {
	return &options{
		creds:           DefaultCredentials,
		index:           credentials.IndexLinear,
		maxConnections:  100,
		maxVectorLen:    1 << 16,
		rateLimitPerSec: 0,
		rateLimitBurst:  100,
		authTimeout:     10 * time.Second,
		ioTimeout:       30 * time.Second,
	}
}

// WithCredentials заменяет учётные записи сервера.
func WithCredentials(creds ...credentials.Credential) Option {
	return func(o *options) { o.creds = creds }
}

// WithIndex выбирает реализацию хранилища учётных записей.
func WithIndex(index credentials.Index) Option {
	return func(o *options) { o.index = index }
}

// WithTLS включает TLS с самоподписанным сертификатом.
func WithTLS() Option {
	return func(o *options) { o.tls = true }
}

// WithNATS запускает NATS контейнер и включает публикацию событий.
func WithNATS() Option {
	return func(o *options) { o.nats = true }
}

// WithMaxConnections устанавливает максимальное количество соединений.
func WithMaxConnections(n int) Option {
	return func(o *options) { o.maxConnections = n }
}

// WithMaxVectorLen устанавливает максимальную длину вектора.
func WithMaxVectorLen(n int) Option {
	return func(o *options) { o.maxVectorLen = n }
}

// WithRateLimit устанавливает лимиты для rate limiter.
func WithRateLimit(perSec float64, burst int) Option {
	return func(o *options) {
		o.rateLimitPerSec = perSec
		o.rateLimitBurst = burst
	}
}

// WithAuthTimeout устанавливает таймаут аутентификации.
func WithAuthTimeout(d time.Duration) Option {
	return func(o *options) { o.authTimeout = d }
}

// WithIOTimeout устанавливает таймаут простоя при обработке векторов.
func WithIOTimeout(d time.Duration) Option {
	return func(o *options) { o.ioTimeout = d }
}

// Start запускает тестовое окружение.
func Start(ctx context.Context, opts ...Option) (_ *Environment, err error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	env := &Environment{secrets: make(map[string]string, len(o.creds))}
	defer func() {
		if err != nil {
			_ = env.cleanup(ctx)
		}
	}()

	// 1. Запускаем NATS
	if o.nats {
		if env.nats, env.NATSUrl, err = startNATS(ctx); err != nil {
			return nil, fmt.Errorf("start NATS: %w", err)
		}
	}

	// 2. Временная директория: учётные записи и TLS сертификаты
	if env.dir, err = os.MkdirTemp("", "vcalc-test-*"); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	certFile := filepath.Join(env.dir, "cert.pem")
	keyFile := filepath.Join(env.dir, "key.pem")
	if o.tls {
		if env.CACert, err = appdir.GenerateCert(certFile, keyFile, 24*time.Hour); err != nil {
			return nil, fmt.Errorf("generate certs: %w", err)
		}
	}

	env.CredentialsFile = filepath.Join(env.dir, "vcalc.conf")
	if err = credentials.WriteFile(env.CredentialsFile, o.creds); err != nil {
		return nil, fmt.Errorf("write credentials: %w", err)
	}
	for _, c := range o.creds {
		env.secrets[c.Login] = c.Secret
	}

	// 3. Создаём TCP listener на случайном порту
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("create listener: %w", err)
	}
	env.Addr = lis.Addr().String()
	host, port, _ := net.SplitHostPort(env.Addr)
	portNum, _ := strconv.Atoi(port)

	// 4. Конфигурация vcalc
	ready := make(chan struct{})
	cfg := config.Default()
	cfg.Server = config.ServerConfig{Host: host, Port: portNum}
	cfg.Credentials = config.CredentialsConfig{File: env.CredentialsFile, Index: o.index}
	cfg.Limits = config.LimitsConfig{
		MaxConnections:  o.maxConnections,
		MaxVectorLen:    o.maxVectorLen,
		RateLimitPerSec: o.rateLimitPerSec,
		RateLimitBurst:  o.rateLimitBurst,
		AuthTimeout:     o.authTimeout,
		IOTimeout:       o.ioTimeout,
	}
	cfg.Log.File = ""
	cfg.Ready = ready
	if o.tls {
		cfg.TLS.CertFile = certFile
		cfg.TLS.KeyFile = keyFile
	}
	if o.nats {
		cfg.Events = config.EventsConfig{
			URLs:          []string{env.NATSUrl},
			ReconnectWait: time.Second,
			MaxReconnects: 5,
		}
	}
	if err = cfg.Validate(); err != nil {
		_ = lis.Close()
		return nil, fmt.Errorf("validate config: %w", err)
	}

	// 5. Запускаем сервер в горутине
	serverCtx, cancelCtx := context.WithCancel(ctx)
	env.cancelCtx = cancelCtx
	env.serverErr = make(chan error, 1)

	go func() {
		env.serverErr <- server.Serve(serverCtx, cfg, lis)
	}()

	// 6. Ждём готовности сервера
	select {
	case <-ready:
	case err = <-env.serverErr:
		env.serverErr <- err
		return nil, fmt.Errorf("server failed to start: %w", err)
	case <-time.After(30 * time.Second):
		return nil, errors.New("server start timeout")
	}

	return env, nil
}

// Close останавливает тестовое окружение.
func (e *Environment) Close(ctx context.Context) error {
	return e.cleanup(ctx)
}

func (e *Environment) cleanup(ctx context.Context) error {
	// Останавливаем сервер и ждём его завершения
	if e.cancelCtx != nil {
		e.cancelCtx()
		select {
		case <-e.serverErr:
		case <-time.After(5 * time.Second):
		}
		e.cancelCtx = nil
	}

	var errs []error
	if e.dir != "" {
		if err := os.RemoveAll(e.dir); err != nil {
			errs = append(errs, fmt.Errorf("remove temp dir: %w", err))
		}
		e.dir = ""
	}
	if e.nats != nil {
		if err := stopNATS(ctx, e.nats); err != nil {
			errs = append(errs, fmt.Errorf("terminate NATS: %w", err))
		}
		e.nats = nil
	}
	return errors.Join(errs...)
}

// ClientOptions возвращает опции клиента для подключения к окружению.
func (e *Environment) ClientOptions() []client.ConnectOption {
	opts := []client.ConnectOption{
		client.WithDialTimeout(10 * time.Second),
		client.WithReadTimeout(30 * time.Second),
		client.WithWriteTimeout(10 * time.Second),
	}
	if len(e.CACert) > 0 {
		opts = append(opts, client.WithInsecureSkipVerify())
	}
	return opts
}

// NewClient подключается к серверу и аутентифицируется под login.
// Секрет берётся из учётных записей окружения.
func (e *Environment) NewClient(login string, opts ...client.ConnectOption) (*client.Client, error) {
	secret, ok := e.secrets[login]
	if !ok {
		return nil, fmt.Errorf("unknown login %q", login)
	}
	c, err := client.Connect(e.Addr, login, secret, append(e.ClientOptions(), opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connect to vcalc: %w", err)
	}
	return c, nil
}

// Dial подключается к серверу без аутентификации.
func (e *Environment) Dial(opts ...client.ConnectOption) (*client.Client, error) {
	return client.Dial(e.Addr, append(e.ClientOptions(), opts...)...)
}

// SubscribeEvents подписывается на все события сервера.
// Требует окружение, запущенное с WithNATS.
// Возвращает канал событий и функцию отписки.
func (e *Environment) SubscribeEvents() (<-chan *broker.Event, func(), error) {
	if e.NATSUrl == "" {
		return nil, nil, errors.New("NATS is not started, use WithNATS")
	}

	brk, err := broker.New(broker.Config{URLs: []string{e.NATSUrl}, ReconnectWait: time.Second, MaxReconnects: 5})
	if err != nil {
		return nil, nil, fmt.Errorf("connect to NATS: %w", err)
	}

	events := make(chan *broker.Event, 100)
	sub, err := broker.NewSubscriber(brk, broker.AllEvents, func(ev *broker.Event) {
		select {
		case events <- ev:
		default:
		}
	})
	if err != nil {
		_ = brk.Close()
		return nil, nil, fmt.Errorf("subscribe events: %w", err)
	}

	stop := func() {
		_ = sub.Unsubscribe()
		_ = brk.Close()
	}
	return events, stop, nil
}
