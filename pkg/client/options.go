package client

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/binary"
	"net"
	"time"

	"github.com/udisondev/vcalc/pkg/protocol"
)

// Константы по умолчанию.
const (
	DefaultDialTimeout  = 10 * time.Second
	DefaultReadTimeout  = 30 * time.Second
	DefaultWriteTimeout = 30 * time.Second
)

// Порядок байт по умолчанию.
// Счётчики уходят в big-endian: сервер принимает little-endian только для
// значения 4, остальные разворачивает. Элементы уходят в little-endian,
// что верно для всех значений в пределах ±protocol.ElementBound.
var (
	DefaultCountOrder   binary.ByteOrder = protocol.NetworkOrder
	DefaultElementOrder binary.ByteOrder = protocol.NativeOrder
)

type connectConfig struct {
	tlsConfig *tls.Config

	// TLS builder fields
	useTLS             bool
	rootCAs            *x509.CertPool
	caCertPaths        []string
	serverName         string
	insecureSkipVerify bool

	localAddr    *net.TCPAddr
	dialTimeout  time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration

	countOrder   binary.ByteOrder
	elementOrder binary.ByteOrder

	salt string
}

func defaultConnectConfig() *connectConfig {
	return &connectConfig{
		dialTimeout:  DefaultDialTimeout,
		readTimeout:  DefaultReadTimeout,
		writeTimeout: DefaultWriteTimeout,
		countOrder:   DefaultCountOrder,
		elementOrder: DefaultElementOrder,
	}
}

// ConnectOption конфигурирует соединение.
type ConnectOption func(*connectConfig)

// WithTLSConfig включает TLS с переданной конфигурацией.
func WithTLSConfig(cfg *tls.Config) ConnectOption {
	return func(c *connectConfig) {
		c.useTLS = true
		c.tlsConfig = cfg
	}
}

// WithDialTimeout устанавливает таймаут подключения.
func WithDialTimeout(d time.Duration) ConnectOption {
	return func(c *connectConfig) {
		c.dialTimeout = d
	}
}

// WithReadTimeout устанавливает таймаут чтения ответа. 0 отключает таймаут.
func WithReadTimeout(d time.Duration) ConnectOption {
	return func(c *connectConfig) {
		c.readTimeout = d
	}
}

// WithWriteTimeout устанавливает таймаут записи. 0 отключает таймаут.
func WithWriteTimeout(d time.Duration) ConnectOption {
	return func(c *connectConfig) {
		c.writeTimeout = d
	}
}

// WithRootCAs включает TLS и устанавливает пул CA сертификатов.
func WithRootCAs(pool *x509.CertPool) ConnectOption {
	return func(c *connectConfig) {
		c.useTLS = true
		c.rootCAs = pool
	}
}

// WithCACertFile включает TLS и добавляет CA сертификат из PEM-файла.
// Можно вызывать несколько раз для добавления нескольких CA.
func WithCACertFile(path string) ConnectOption {
	return func(c *connectConfig) {
		c.useTLS = true
		c.caCertPaths = append(c.caCertPaths, path)
	}
}

// WithServerName устанавливает ServerName для SNI и проверки сертификата.
func WithServerName(name string) ConnectOption {
	return func(c *connectConfig) {
		c.serverName = name
	}
}

// WithInsecureSkipVerify включает TLS без проверки сертификата сервера.
// Использовать только для разработки и тестирования.
func WithInsecureSkipVerify() ConnectOption {
	return func(c *connectConfig) {
		c.useTLS = true
		c.insecureSkipVerify = true
	}
}

// WithLocalAddr устанавливает локальный адрес для исходящих соединений.
func WithLocalAddr(addr *net.TCPAddr) ConnectOption {
	return func(c *connectConfig) {
		c.localAddr = addr
	}
}

// WithCountOrder задаёт порядок байт счётчиков.
func WithCountOrder(order binary.ByteOrder) ConnectOption {
	return func(c *connectConfig) {
		c.countOrder = order
	}
}

// WithElementOrder задаёт порядок байт элементов.
func WithElementOrder(order binary.ByteOrder) ConnectOption {
	return func(c *connectConfig) {
		c.elementOrder = order
	}
}

// WithSalt фиксирует соль вместо случайной. Нужна для воспроизводимых тестов.
func WithSalt(salt string) ConnectOption {
	return func(c *connectConfig) {
		c.salt = salt
	}
}
