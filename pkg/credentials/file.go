package credentials

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// maxLineSize ограничивает длину строки в файле учётных записей.
const maxLineSize = 1 << 20

// Parse читает учётные записи в формате "login:secret", по одной на строку.
// Строка делится по первому ':'; строки без ':' и с пустым логином
// или секретом пропускаются. При повторе логина побеждает последняя строка.
func Parse(r io.Reader) ([]Credential, error) {
	var creds []Credential
	index := make(map[string]int)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLineSize)
	for scanner.Scan() {
		login, secret, ok := strings.Cut(scanner.Text(), ":")
		if !ok || login == "" || secret == "" {
			continue
		}
		if i, seen := index[login]; seen {
			creds[i].Secret = secret
			continue
		}
		index[login] = len(creds)
		creds = append(creds, Credential{Login: login, Secret: secret})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan credentials: %w", err)
	}
	return creds, nil
}

// Load загружает учётные записи из файла.
// Отсутствующий файл даёт пустой набор без ошибки;
// вызывающий код решает, как об этом сообщить.
func Load(path string) ([]Credential, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open credentials file: %w", err)
	}
	defer f.Close()

	creds, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse credentials file %s: %w", path, err)
	}
	return creds, nil
}

// WriteFile сохраняет учётные записи в файл с правами 0600.
func WriteFile(path string, creds []Credential) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create credentials directory: %w", err)
	}

	var sb strings.Builder
	for _, c := range creds {
		if c.Login == "" || c.Secret == "" || strings.Contains(c.Login, ":") || strings.ContainsAny(c.Login+c.Secret, "\r\n") {
			return fmt.Errorf("invalid credential for login %q", c.Login)
		}
		sb.WriteString(c.Login)
		sb.WriteByte(':')
		sb.WriteString(c.Secret)
		sb.WriteByte('\n')
	}

	if err := os.WriteFile(path, []byte(sb.String()), 0600); err != nil {
		return fmt.Errorf("write credentials file: %w", err)
	}
	return nil
}
