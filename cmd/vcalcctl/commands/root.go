package commands

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/udisondev/vcalc/pkg/client"
)

// SecretEnv переменная окружения с секретом пользователя.
const SecretEnv = "VCALC_SECRET"

var (
	addr     string
	login    string
	secret   string
	useTLS   bool
	caFile   string
	insecure bool
	timeout  time.Duration
)

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "vcalcctl",
		Short:        "Client for the vcalc vector product service",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&addr, "addr", "a", "127.0.0.1:33333", "server address")
	root.PersistentFlags().StringVarP(&login, "login", "u", "", "user login")
	root.PersistentFlags().StringVar(&secret, "secret", "", "user secret (default $"+SecretEnv+" or prompt)")
	root.PersistentFlags().BoolVar(&useTLS, "tls", false, "connect over TLS")
	root.PersistentFlags().StringVar(&caFile, "ca", "", "CA certificate for TLS (implies --tls)")
	root.PersistentFlags().BoolVar(&insecure, "insecure", false, "skip TLS certificate verification (implies --tls)")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "dial and read timeout")

	root.AddCommand(authCmd(), computeCmd(), digestCmd(), useraddCmd())
	return root
}

// connectOptions собирает опции клиента из глобальных флагов.
func connectOptions() []client.ConnectOption {
	opts := []client.ConnectOption{
		client.WithDialTimeout(timeout),
		client.WithReadTimeout(timeout),
		client.WithWriteTimeout(timeout),
	}
	switch {
	case caFile != "":
		opts = append(opts, client.WithCACertFile(caFile))
	case insecure:
		opts = append(opts, client.WithInsecureSkipVerify())
	case useTLS:
		opts = append(opts, client.WithTLSConfig(nil))
	}
	return opts
}

// connect подключается к серверу под --login.
func connect() (*client.Client, error) {
	if login == "" {
		return nil, errors.New("login required (-u)")
	}
	s, err := resolveSecret()
	if err != nil {
		return nil, err
	}
	return client.Connect(addr, login, s, connectOptions()...)
}

// resolveSecret возвращает секрет из флага, окружения или терминала.
func resolveSecret() (string, error) {
	if secret != "" {
		return secret, nil
	}
	if s := os.Getenv(SecretEnv); s != "" {
		return s, nil
	}
	if !term.IsTerminal(int(syscall.Stdin)) {
		return "", fmt.Errorf("secret required: use --secret, $%s or a terminal", SecretEnv)
	}
	s, err := promptSecret("Secret: ")
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", errors.New("empty secret")
	}
	return s, nil
}

func promptSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	pw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read secret: %w", err)
	}
	return string(pw), nil
}
