package broker

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// SubjectPrefix — префикс NATS subject для событий.
const SubjectPrefix = "vcalc.events."

// EventKind тип события.
type EventKind string

// Типы событий.
const (
	EventAuthOK    EventKind = "auth.ok"
	EventAuthFail  EventKind = "auth.fail"
	EventBatchDone EventKind = "batch.done"
)

// Event событие жизненного цикла соединения.
type Event struct {
	Kind    EventKind
	Remote  string
	Login   string
	Vectors int    // обработано векторов (для EventBatchDone)
	Error   string // причина завершения, если была ошибка
	Time    time.Time
}

// Marshal кодирует событие в protobuf (google.protobuf.Struct).
func (e *Event) Marshal() ([]byte, error) {
	s, err := structpb.NewStruct(map[string]any{
		"kind":    string(e.Kind),
		"remote":  e.Remote,
		"login":   e.Login,
		"vectors": e.Vectors,
		"error":   e.Error,
		"time":    e.Time.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, fmt.Errorf("build event struct: %w", err)
	}
	data, err := proto.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return data, nil
}

// UnmarshalEvent декодирует событие, закодированное Event.Marshal.
func UnmarshalEvent(data []byte) (*Event, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}

	fields := s.GetFields()
	e := &Event{
		Kind:    EventKind(fields["kind"].GetStringValue()),
		Remote:  fields["remote"].GetStringValue(),
		Login:   fields["login"].GetStringValue(),
		Vectors: int(fields["vectors"].GetNumberValue()),
		Error:   fields["error"].GetStringValue(),
	}
	if e.Kind == "" {
		return nil, fmt.Errorf("unmarshal event: missing kind")
	}
	if ts := fields["time"].GetStringValue(); ts != "" {
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse event time: %w", err)
		}
		e.Time = t
	}
	return e, nil
}

// subjectForEvent возвращает NATS subject для события.
func subjectForEvent(kind EventKind) string {
	return SubjectPrefix + string(kind)
}
