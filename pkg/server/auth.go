package server

import (
	"bytes"
	"crypto/subtle"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/udisondev/vcalc/pkg/credentials"
	"github.com/udisondev/vcalc/pkg/digest"
	"github.com/udisondev/vcalc/pkg/protocol"
)

// authenticate выполняет аутентификацию клиента.
//
// Сообщение читается одним вызовом Read (до protocol.MaxAuthMessageSize байт).
// Если прочитать ничего не удалось, ответ не отправляется.
// Иначе клиенту отправляется ровно один ответ "OK" или "ERR".
// buf должен иметь размер не меньше protocol.MaxAuthMessageSize.
func authenticate(conn net.Conn, store credentials.Store, timeout time.Duration, buf []byte) (string, error) {
	remote := conn.RemoteAddr().String()

	if timeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
			return "", fmt.Errorf("set deadline: %w", err)
		}
		defer func() {
			if err := conn.SetDeadline(time.Time{}); err != nil {
				slog.Error("auth: reset deadline failed", "error", err, "remote", remote)
			}
		}()
	}

	n, err := conn.Read(buf[:protocol.MaxAuthMessageSize])
	if n <= 0 {
		if err == nil {
			err = io.EOF
		}
		return "", fmt.Errorf("read auth message: %w", err)
	}
	slog.Debug("auth: received message", "remote", remote, "size", n)

	login, ok := verify(buf[:n], store)

	if err := protocol.EncodeAuthReply(conn, ok); err != nil {
		return "", err
	}
	if !ok {
		slog.Warn("auth: no matching credential", "remote", remote)
		return "", protocol.ErrAuthFailed
	}

	slog.Debug("auth: credential matched", "remote", remote, "login", login)
	return login, nil
}

// verify ищет учётную запись, для которой msg — корректное сообщение
// аутентификации. Возвращает логин и true при успехе.
func verify(msg []byte, store credentials.Store) (string, bool) {
	for _, c := range store.Candidates(msg, protocol.AuthSuffixSize) {
		salt, proof, ok := protocol.SplitAuthMessage(msg, c.Login)
		if !ok {
			continue
		}
		if !protocol.IsHex(salt) || !protocol.IsHex(proof) {
			continue
		}

		expected := digest.Salted(string(salt), c.Secret)
		// Пустой или усечённый дайджест никогда не совпадает.
		if len(expected) != digest.HexSize {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(expected), bytes.ToUpper(proof)) == 1 {
			return c.Login, true
		}
	}
	return "", false
}
