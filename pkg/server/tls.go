package server

import (
	"crypto/tls"
	"fmt"
	"log/slog"

	"github.com/udisondev/vcalc/pkg/config"
)

// buildTLSConfig создаёт TLS конфигурацию для опционального TLS транспорта.
func buildTLSConfig(cfg config.TLSConfig) (*tls.Config, error) {
	slog.Debug("tls: loading certificates", "cert_file", cfg.CertFile, "key_file", cfg.KeyFile)

	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		slog.Error("tls: load certificates failed", "error", err, "cert_file", cfg.CertFile, "key_file", cfg.KeyFile)
		return nil, fmt.Errorf("load certificates: %w", err)
	}

	slog.Info("tls: certificates loaded", "cert_file", cfg.CertFile)

	minVersion := uint16(tls.VersionTLS12)
	if cfg.MinVersion == "1.3" {
		minVersion = tls.VersionTLS13
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   minVersion,
		// CipherSuites игнорируются для TLS 1.3 (Go выбирает автоматически)
		CipherSuites: []uint16{
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
		},
		SessionTicketsDisabled: true,
	}, nil
}
