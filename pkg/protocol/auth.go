package protocol

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/udisondev/vcalc/pkg/digest"
)

// AuthMessage — сообщение аутентификации клиента: Login || Salt || Proof.
type AuthMessage struct {
	Login string
	Salt  string // 16 hex символов
	Proof string // 32 hex символа, MD5(Salt || secret)
}

// NewAuthMessage собирает сообщение аутентификации для login и secret.
func NewAuthMessage(login, salt, secret string) (*AuthMessage, error) {
	m := &AuthMessage{
		Login: login,
		Salt:  salt,
		Proof: digest.Salted(salt, secret),
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// NewSalt генерирует случайную соль из 16 hex символов.
func NewSalt() (string, error) {
	var raw [SaltSize / 2]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	return strings.ToUpper(hex.EncodeToString(raw[:])), nil
}

// Validate проверяет, что сообщение можно отправить серверу.
func (m *AuthMessage) Validate() error {
	if m.Login == "" {
		return fmt.Errorf("%w: empty login", ErrInvalidAuthMessage)
	}
	if len(m.Login) > MaxLoginSize {
		return fmt.Errorf("%w: login too long: %d > %d", ErrInvalidAuthMessage, len(m.Login), MaxLoginSize)
	}
	if len(m.Salt) != SaltSize || !IsHex(m.Salt) {
		return fmt.Errorf("%w: salt must be %d hex characters", ErrInvalidAuthMessage, SaltSize)
	}
	if len(m.Proof) != ProofSize || !IsHex(m.Proof) {
		return fmt.Errorf("%w: proof must be %d hex characters", ErrInvalidAuthMessage, ProofSize)
	}
	return nil
}

// AppendTo дописывает сообщение в dst.
func (m *AuthMessage) AppendTo(dst []byte) []byte {
	dst = append(dst, m.Login...)
	dst = append(dst, m.Salt...)
	return append(dst, m.Proof...)
}

// Encode записывает сообщение одним вызовом Write:
// сервер читает его одним Read, без префикса длины.
func (m *AuthMessage) Encode(w io.Writer) error {
	if err := m.Validate(); err != nil {
		return err
	}
	buf := m.AppendTo(make([]byte, 0, len(m.Login)+AuthSuffixSize))
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write auth message: %w", err)
	}
	return nil
}

// SplitAuthMessage выделяет salt и proof из msg для указанного логина.
// ok == false, если длина msg не равна len(login)+AuthSuffixSize
// или msg не начинается с login.
func SplitAuthMessage(msg []byte, login string) (salt, proof []byte, ok bool) {
	if len(msg) != len(login)+AuthSuffixSize {
		return nil, nil, false
	}
	if !bytes.HasPrefix(msg, []byte(login)) {
		return nil, nil, false
	}
	rest := msg[len(login):]
	return rest[:SaltSize], rest[SaltSize:], true
}

// IsHex проверяет, что s состоит только из символов 0-9, A-F, a-f.
// Zero-allocation: не использует hex.DecodeString.
func IsHex[T ~string | ~[]byte](s T) bool {
	for i := range len(s) {
		c := s[i]
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}

// EncodeAuthReply записывает "OK" или "ERR" одним вызовом Write.
func EncodeAuthReply(w io.Writer, ok bool) error {
	reply := ReplyERR
	if ok {
		reply = ReplyOK
	}
	if _, err := io.WriteString(w, reply); err != nil {
		return fmt.Errorf("write auth reply: %w", err)
	}
	return nil
}

// DecodeAuthReply читает ответ сервера на аутентификацию.
// Возвращает nil для "OK" и ErrAuthFailed для "ERR".
func DecodeAuthReply(r io.Reader) error {
	var buf [len(ReplyERR)]byte
	if _, err := io.ReadFull(r, buf[:len(ReplyOK)]); err != nil {
		return fmt.Errorf("read auth reply: %w", err)
	}
	if string(buf[:len(ReplyOK)]) == ReplyOK {
		return nil
	}
	if string(buf[:len(ReplyOK)]) != ReplyERR[:len(ReplyOK)] {
		return fmt.Errorf("%w: %q", ErrUnexpectedReply, buf[:len(ReplyOK)])
	}
	if _, err := io.ReadFull(r, buf[len(ReplyOK):]); err != nil {
		return fmt.Errorf("read auth reply: %w", err)
	}
	if string(buf[:]) != ReplyERR {
		return fmt.Errorf("%w: %q", ErrUnexpectedReply, buf[:])
	}
	return ErrAuthFailed
}
