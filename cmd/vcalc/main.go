// Package main запускает vcalc daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/udisondev/vcalc/internal/appdir"
	"github.com/udisondev/vcalc/pkg/config"
	"github.com/udisondev/vcalc/pkg/server"
)

// overrides значения флагов, перекрывающие конфигурацию.
type overrides struct {
	port        int
	credentials string
	logFile     string
}

func main() {
	configPath := flag.String("config", "", "path to config file (default: XDG config dir)")
	initOnly := flag.Bool("init", false, "initialize app directory and exit")

	var ov overrides
	flag.IntVar(&ov.port, "p", 0, "port number (default: from config, 33333)")
	flag.StringVar(&ov.credentials, "c", "", "user database file (default: from config)")
	flag.StringVar(&ov.logFile, "l", "", "log file (default: from config)")
	flag.Parse()

	// Инициализация директории приложения
	if err := appdir.Init(); err != nil {
		slog.Error("init app directory", "error", err)
		os.Exit(1)
	}

	if *initOnly {
		fmt.Printf("Initialized: %s\n", appdir.Dir())
		fmt.Printf("Config: %s\n", appdir.ConfigPath())
		fmt.Printf("Users: %s\n", appdir.CredentialsPath())
		fmt.Printf("Certs: %s\n", appdir.CertsDir())
		fmt.Printf("Logs: %s\n", appdir.LogsDir())
		return
	}

	if err := run(*configPath, ov); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, ov overrides) error {
	// Загружаем конфигурацию
	var cfg *config.Config
	var err error

	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.LoadFromAppDir()
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := applyOverrides(cfg, ov); err != nil {
		return err
	}

	// Настраиваем логирование с ротацией
	setupLogging(cfg.Log)

	slog.Info("vcalc starting",
		"config_dir", appdir.Dir(),
		"address", cfg.Server.Addr(),
		"credentials", cfg.Credentials.File,
	)

	// pprof сервер для профилирования (опционально)
	if pprofAddr := os.Getenv("VCALC_PPROF"); pprofAddr != "" {
		go func() {
			slog.Info("pprof server started", "addr", pprofAddr)
			if err := http.ListenAndServe(pprofAddr, nil); err != nil {
				slog.Error("pprof server error", "error", err)
			}
		}()
	}

	// Создаём контекст с отменой по сигналам
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return server.Run(ctx, cfg)
}

// applyOverrides применяет флаги командной строки поверх конфигурации.
func applyOverrides(cfg *config.Config, ov overrides) error {
	if ov.port != 0 {
		cfg.Server.Port = ov.port
	}
	if ov.credentials != "" {
		cfg.Credentials.File = ov.credentials
	}
	if ov.logFile != "" {
		cfg.Log.File = ov.logFile
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	return nil
}

func setupLogging(cfg config.LogConfig) {
	var output io.Writer = os.Stdout

	// Настраиваем ротацию логов если указан файл
	if cfg.File != "" {
		output = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    100, // MB
			MaxAge:     7,   // days
			MaxBackups: 5,
			Compress:   true,
			LocalTime:  true,
		}
	}

	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}

	slog.SetDefault(slog.New(handler))
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
