// Package digest вычисляет дайджест для аутентификации клиентов vcalc.
//
// Используется MD5: алгоритм криптографически слаб и оставлен только
// ради совместимости с уже существующими клиентами протокола.
// Для новых протоколов его применять нельзя.
package digest

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// Размеры дайджеста.
const (
	Size    = md5.Size // 16 байт
	HexSize = Size * 2 // 32 hex символа
)

// Sum возвращает MD5 от data в виде 32 hex символов в верхнем регистре.
func Sum(data []byte) string {
	sum := md5.Sum(data)
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// SumString — Sum для строки.
func SumString(s string) string {
	return Sum([]byte(s))
}

// Salted возвращает дайджест salt || secret, как его ожидает сервер.
func Salted(salt, secret string) string {
	buf := make([]byte, 0, len(salt)+len(secret))
	buf = append(buf, salt...)
	buf = append(buf, secret...)
	return Sum(buf)
}
