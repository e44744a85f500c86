package protocol

import "errors"

var (
	// ErrAuthFailed — сервер ответил "ERR".
	ErrAuthFailed = errors.New("authentication failed")

	// ErrUnexpectedReply — ответ на аутентификацию не "OK" и не "ERR".
	ErrUnexpectedReply = errors.New("unexpected auth reply")

	// ErrInvalidAuthMessage — сообщение аутентификации нельзя собрать.
	ErrInvalidAuthMessage = errors.New("invalid auth message")

	// ErrVectorTooLarge — количество элементов вектора превышает лимит.
	ErrVectorTooLarge = errors.New("vector too large")
)
