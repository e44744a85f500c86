// Package protocol определяет wire protocol vcalc.
//
// Соединение состоит из двух фаз:
//
//	1. Аутентификация: клиент одним сообщением отправляет
//	   login || salt (16 hex) || proof (32 hex), где
//	   proof = MD5(salt || secret) в hex. Сервер отвечает "OK" или "ERR".
//	2. Пакет векторов: uint32 количество векторов, затем для каждого
//	   uint32 количество элементов и элементы int16. На каждый вектор
//	   сервер отвечает одним int16 — насыщенным произведением.
//
// Порядок байт в протоколе не объявляется явно, сервер определяет его
// эвристически (см. ResolveCount и ResolveElements).
package protocol

import "encoding/binary"

// Размеры полей аутентификации.
const (
	SaltSize  = 16
	ProofSize = 32

	// AuthSuffixSize — длина части сообщения после логина.
	AuthSuffixSize = SaltSize + ProofSize

	// MaxAuthMessageSize — максимальный размер сообщения аутентификации,
	// который сервер читает за один вызов Read.
	MaxAuthMessageSize = 255

	// MaxLoginSize — самый длинный логин, который помещается в сообщение.
	MaxLoginSize = MaxAuthMessageSize - AuthSuffixSize
)

// Ответы на аутентификацию (ASCII, без длины и терминатора).
const (
	ReplyOK  = "OK"
	ReplyERR = "ERR"
)

// Размеры полей пакета векторов.
const (
	CountSize   = 4
	ElementSize = 2
	ProductSize = 2
)

// Параметры эвристики порядка байт.
const (
	// CountSentinel — значение счётчика, которое принимается в native порядке.
	CountSentinel uint32 = 4

	// ElementBound — элементы в native порядке ожидаются в [-ElementBound, ElementBound].
	ElementBound = 10000
)

// NativeOrder — порядок байт сервера. Ответы пишутся в нём без преобразования.
var NativeOrder = binary.LittleEndian

// NetworkOrder — альтернативный порядок, в который переинтерпретируются поля.
var NetworkOrder = binary.BigEndian
