package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
)

// ErrInvalidTransition — недопустимый переход состояния соединения.
var ErrInvalidTransition = errors.New("invalid state transition")

// State состояние соединения.
type State uint8

// Состояния соединения. Каждое состояние проходится не более одного раза:
//
//	AwaitingAuth -> Authenticated -> ProcessingVectors -> Closed
//	AwaitingAuth -> Closed
const (
	StateAwaitingAuth State = iota
	StateAuthenticated
	StateProcessingVectors
	StateClosed
)

// String возвращает название состояния для логов.
func (s State) String() string {
	switch s {
	case StateAwaitingAuth:
		return "awaiting_auth"
	case StateAuthenticated:
		return "authenticated"
	case StateProcessingVectors:
		return "processing_vectors"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// canTransition сообщает, разрешён ли переход from -> to.
func canTransition(from, to State) bool {
	switch from {
	case StateAwaitingAuth:
		return to == StateAuthenticated || to == StateClosed
	case StateAuthenticated:
		return to == StateProcessingVectors || to == StateClosed
	case StateProcessingVectors:
		return to == StateClosed
	default:
		return false
	}
}

// session — состояние одного соединения. Принадлежит одной горутине.
type session struct {
	conn   net.Conn
	remote string
	login  string
	state  State
}

func newSession(conn net.Conn) *session {
	return &session{
		conn:   conn,
		remote: conn.RemoteAddr().String(),
		state:  StateAwaitingAuth,
	}
}

// transition переводит соединение в состояние to.
func (s *session) transition(to State) error {
	if !canTransition(s.state, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.state, to)
	}
	slog.Debug("session: state changed", "remote", s.remote, "from", s.state, "to", to)
	s.state = to
	return nil
}

// close закрывает соединение и переводит его в StateClosed.
// Повторный вызов ничего не делает.
func (s *session) close() {
	if s.state == StateClosed {
		return
	}
	if err := s.transition(StateClosed); err != nil {
		slog.Error("session: close", "error", err, "remote", s.remote)
	}
	if err := s.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		slog.Error("close connection", "error", err, "remote", s.remote)
	}
}
