// Package client реализует клиент vcalc.
//
// Использование:
//
//	c, err := client.Connect("127.0.0.1:33333", "alice", "password456")
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//
//	products, err := c.Compute([][]int16{{2, 3, 4}, {200, 200}})
package client

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/udisondev/vcalc/pkg/protocol"
)

// ErrBatchDone — пакет векторов уже отправлен. Сервер принимает
// один пакет на соединение.
var ErrBatchDone = errors.New("batch already sent")

// Client — соединение с сервером vcalc. Не безопасен для конкурентного использования.
type Client struct {
	conn net.Conn
	cfg  *connectConfig

	authenticated bool
	batchSent     bool
}

// buildTLSConfig создаёт TLS конфигурацию на основе опций.
func (cfg *connectConfig) buildTLSConfig() (*tls.Config, error) {
	// Если указан полный TLS config — используем его как есть
	if cfg.tlsConfig != nil {
		return cfg.tlsConfig, nil
	}

	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
	}

	// Загрузка CA из файлов
	if len(cfg.caCertPaths) > 0 {
		pool := x509.NewCertPool()
		for _, path := range cfg.caCertPaths {
			caCert, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read CA cert %s: %w", path, err)
			}
			if !pool.AppendCertsFromPEM(caCert) {
				return nil, fmt.Errorf("parse CA cert %s: invalid PEM", path)
			}
		}
		tlsConfig.RootCAs = pool
	} else if cfg.rootCAs != nil {
		tlsConfig.RootCAs = cfg.rootCAs
	}

	if cfg.serverName != "" {
		tlsConfig.ServerName = cfg.serverName
	}

	if cfg.insecureSkipVerify {
		tlsConfig.InsecureSkipVerify = true
	}

	return tlsConfig, nil
}

// Dial подключается к серверу без аутентификации.
// Соединение идёт по TCP, или по TLS если задана одна из TLS опций.
func Dial(addr string, opts ...ConnectOption) (*Client, error) {
	cfg := defaultConnectConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	dialer := &net.Dialer{Timeout: cfg.dialTimeout}
	if cfg.localAddr != nil {
		dialer.LocalAddr = cfg.localAddr
	}

	var (
		conn net.Conn
		err  error
	)
	if cfg.useTLS {
		tlsConfig, tlsErr := cfg.buildTLSConfig()
		if tlsErr != nil {
			return nil, fmt.Errorf("build TLS config: %w", tlsErr)
		}
		conn, err = tls.DialWithDialer(dialer, "tcp", addr, tlsConfig)
	} else {
		conn, err = dialer.Dial("tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	return &Client{conn: conn, cfg: cfg}, nil
}

// Connect подключается к серверу и проходит аутентификацию.
func Connect(addr, login, secret string, opts ...ConnectOption) (*Client, error) {
	c, err := Dial(addr, opts...)
	if err != nil {
		return nil, err
	}
	if err := c.Authenticate(login, secret); err != nil {
		_ = c.Close() // ошибка Close() не важна, возвращаем ошибку Authenticate
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	return c, nil
}

// Authenticate отправляет сообщение аутентификации и ждёт ответ.
// Возвращает protocol.ErrAuthFailed, если сервер ответил "ERR".
// После отказа сервер закрывает соединение.
func (c *Client) Authenticate(login, secret string) error {
	salt := c.cfg.salt
	if salt == "" {
		var err error
		if salt, err = protocol.NewSalt(); err != nil {
			return err
		}
	}

	msg, err := protocol.NewAuthMessage(login, salt, secret)
	if err != nil {
		return err
	}

	if err := c.setWriteDeadline(); err != nil {
		return err
	}
	if err := msg.Encode(c.conn); err != nil {
		return err
	}

	if err := c.setReadDeadline(); err != nil {
		return err
	}
	if err := protocol.DecodeAuthReply(c.conn); err != nil {
		return err
	}

	c.authenticated = true
	return nil
}

// Compute отправляет пакет векторов и возвращает произведения в том же порядке.
// Ответ на каждый вектор читается сразу после его отправки, поэтому
// большой пакет не упирается в буферы сокета.
// Пакет можно отправить один раз за соединение.
func (c *Client) Compute(vectors [][]int16) ([]int16, error) {
	if !c.authenticated {
		return nil, errors.New("not authenticated")
	}
	if c.batchSent {
		return nil, ErrBatchDone
	}
	c.batchSent = true

	if err := c.setWriteDeadline(); err != nil {
		return nil, err
	}
	if err := protocol.EncodeCount(c.conn, uint32(len(vectors)), c.cfg.countOrder); err != nil {
		return nil, fmt.Errorf("send number of vectors: %w", err)
	}

	products := make([]int16, 0, len(vectors))
	for i, v := range vectors {
		if err := c.setWriteDeadline(); err != nil {
			return products, err
		}
		if err := protocol.EncodeVector(c.conn, v, c.cfg.countOrder, c.cfg.elementOrder); err != nil {
			return products, fmt.Errorf("send vector %d: %w", i+1, err)
		}

		if err := c.setReadDeadline(); err != nil {
			return products, err
		}
		p, err := protocol.ReadProduct(c.conn)
		if err != nil {
			return products, fmt.Errorf("receive result for vector %d: %w", i+1, err)
		}
		products = append(products, p)
	}

	return products, nil
}

// Close закрывает соединение.
func (c *Client) Close() error {
	if err := c.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("close connection: %w", err)
	}
	return nil
}

// LocalAddr возвращает локальный адрес соединения.
func (c *Client) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

func (c *Client) setReadDeadline() error {
	if c.cfg.readTimeout <= 0 {
		return nil
	}
	if err := c.conn.SetReadDeadline(time.Now().Add(c.cfg.readTimeout)); err != nil {
		return fmt.Errorf("set read deadline: %w", err)
	}
	return nil
}

func (c *Client) setWriteDeadline() error {
	if c.cfg.writeTimeout <= 0 {
		return nil
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.writeTimeout)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	return nil
}
