// Package credentials хранит учётные записи клиентов vcalc.
//
// Хранилище неизменяемо после создания и безопасно для одновременного
// чтения из нескольких соединений.
package credentials

// Credential — пара логин/секрет.
type Credential struct {
	Login  string
	Secret string
}

// Store отбирает учётные записи, подходящие под сообщение аутентификации.
type Store interface {
	// Candidates возвращает учётные записи, для которых
	// len(msg) == len(Login)+suffixLen и msg начинается с Login.
	Candidates(msg []byte, suffixLen int) []Credential
	// Len возвращает количество учётных записей.
	Len() int
}

// LinearStore перебирает все учётные записи на каждую попытку.
type LinearStore struct {
	creds []Credential
}

// NewLinearStore создаёт хранилище из копии creds.
func NewLinearStore(creds []Credential) *LinearStore {
	return &LinearStore{creds: append([]Credential(nil), creds...)}
}

// Candidates реализует Store.
func (s *LinearStore) Candidates(msg []byte, suffixLen int) []Credential {
	var out []Credential
	for _, c := range s.creds {
		if len(msg) != len(c.Login)+suffixLen {
			continue
		}
		if string(msg[:len(c.Login)]) != c.Login {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Len реализует Store.
func (s *LinearStore) Len() int {
	return len(s.creds)
}

// IndexedStore находит учётную запись по логину за O(1).
// Длина логина однозначно задаётся длиной сообщения, поэтому кандидат
// не больше одного, и результат совпадает с LinearStore.
type IndexedStore struct {
	byLogin map[string]string
}

// NewIndexedStore создаёт хранилище из creds.
func NewIndexedStore(creds []Credential) *IndexedStore {
	byLogin := make(map[string]string, len(creds))
	for _, c := range creds {
		byLogin[c.Login] = c.Secret
	}
	return &IndexedStore{byLogin: byLogin}
}

// Candidates реализует Store.
func (s *IndexedStore) Candidates(msg []byte, suffixLen int) []Credential {
	n := len(msg) - suffixLen
	if n <= 0 {
		return nil
	}
	login := string(msg[:n])
	secret, ok := s.byLogin[login]
	if !ok {
		return nil
	}
	return []Credential{{Login: login, Secret: secret}}
}

// Len реализует Store.
func (s *IndexedStore) Len() int {
	return len(s.byLogin)
}

// Index — способ поиска учётных записей.
type Index string

const (
	IndexLinear  Index = "linear"
	IndexIndexed Index = "indexed"
)

// NewStore создаёт хранилище указанного типа.
// Неизвестный тип трактуется как IndexLinear.
func NewStore(index Index, creds []Credential) Store {
	if index == IndexIndexed {
		return NewIndexedStore(creds)
	}
	return NewLinearStore(creds)
}
