package server

import (
	"bytes"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/vcalc/pkg/credentials"
	"github.com/udisondev/vcalc/pkg/protocol"
)

const testSalt = "0123456789ABCDEF"

var testCreds = []credentials.Credential{
	{Login: "testuser", Secret: "testpass123"},
	{Login: "alice", Secret: "password456"},
	{Login: "bob", Secret: "secret789"},
}

func authMessage(t *testing.T, login, salt, secret string) []byte {
	t.Helper()
	m, err := protocol.NewAuthMessage(login, salt, secret)
	require.NoError(t, err)
	return m.AppendTo(nil)
}

type authResult struct {
	login string
	err   error
	reply string
}

// runAuth отправляет msg серверу через net.Pipe и возвращает результат
// authenticate и всё, что сервер ответил клиенту.
// msg == nil означает, что клиент закрывает соединение не отправляя данных.
func runAuth(t *testing.T, store credentials.Store, msg []byte) authResult {
	t.Helper()

	cli, srv := net.Pipe()
	replyCh := make(chan string, 1)

	go func() {
		defer cli.Close()
		if msg == nil {
			replyCh <- ""
			return
		}
		if _, err := cli.Write(msg); err != nil {
			replyCh <- ""
			return
		}
		reply, _ := io.ReadAll(cli)
		replyCh <- string(reply)
	}()

	buf := make([]byte, protocol.MaxAuthMessageSize)
	login, err := authenticate(srv, store, 5*time.Second, buf)
	require.NoError(t, srv.Close())

	return authResult{login: login, err: err, reply: <-replyCh}
}

func TestAuthenticate(t *testing.T) {
	valid := authMessage(t, "alice", testSalt, "password456")

	corruptedSalt := bytes.Clone(valid)
	corruptedSalt[len("alice")] = 'F'

	corruptedProof := bytes.Clone(valid)
	last := len(corruptedProof) - 1
	if corruptedProof[last] == '0' {
		corruptedProof[last] = '1'
	} else {
		corruptedProof[last] = '0'
	}

	lowerProof := append([]byte("alice"+testSalt), strings.ToLower(string(valid[len("alice")+protocol.SaltSize:]))...)

	nonHexSalt := append([]byte("alice"+"0123456789ABCDEZ"), valid[len("alice")+protocol.SaltSize:]...)

	tests := []struct {
		name      string
		msg       []byte
		wantLogin string
		wantReply string
	}{
		{"valid", valid, "alice", protocol.ReplyOK},
		{"other user", authMessage(t, "bob", testSalt, "secret789"), "bob", protocol.ReplyOK},
		{"lowercase proof", lowerProof, "alice", protocol.ReplyOK},
		{"corrupted salt", corruptedSalt, "", protocol.ReplyERR},
		{"corrupted proof", corruptedProof, "", protocol.ReplyERR},
		{"wrong secret", authMessage(t, "alice", testSalt, "password457"), "", protocol.ReplyERR},
		{"unknown login", authMessage(t, "mallory", testSalt, "password456"), "", protocol.ReplyERR},
		{"non-hex salt", nonHexSalt, "", protocol.ReplyERR},
		{"truncated", valid[:len(valid)-1], "", protocol.ReplyERR},
		{"garbage", []byte("hello"), "", protocol.ReplyERR},
	}

	stores := map[string]credentials.Store{
		"linear":  credentials.NewLinearStore(testCreds),
		"indexed": credentials.NewIndexedStore(testCreds),
	}

	for storeName, store := range stores {
		for _, tt := range tests {
			t.Run(storeName+"/"+tt.name, func(t *testing.T) {
				res := runAuth(t, store, tt.msg)

				assert.Equal(t, tt.wantReply, res.reply, "ровно один ответ")
				assert.Equal(t, tt.wantLogin, res.login)
				if tt.wantReply == protocol.ReplyOK {
					assert.NoError(t, res.err)
				} else {
					assert.ErrorIs(t, res.err, protocol.ErrAuthFailed)
				}
			})
		}
	}
}

func TestAuthenticate_NoData(t *testing.T) {
	store := credentials.NewLinearStore(testCreds)

	t.Run("closed", func(t *testing.T) {
		res := runAuth(t, store, nil)
		require.Error(t, res.err)
		assert.NotErrorIs(t, res.err, protocol.ErrAuthFailed)
		assert.ErrorIs(t, res.err, io.EOF)
		assert.Empty(t, res.reply, "без данных сервер не отвечает")
	})

	t.Run("empty write", func(t *testing.T) {
		res := runAuth(t, store, []byte{})
		require.Error(t, res.err)
		assert.ErrorIs(t, res.err, io.EOF)
		assert.Empty(t, res.reply)
	})
}

func TestAuthenticate_EmptyStore(t *testing.T) {
	res := runAuth(t, credentials.NewLinearStore(nil), authMessage(t, "alice", testSalt, "password456"))
	assert.Equal(t, protocol.ReplyERR, res.reply)
	assert.ErrorIs(t, res.err, protocol.ErrAuthFailed)
}

func TestAuthenticate_Timeout(t *testing.T) {
	cli, srv := net.Pipe()
	defer cli.Close()
	defer srv.Close()

	buf := make([]byte, protocol.MaxAuthMessageSize)
	_, err := authenticate(srv, credentials.NewLinearStore(testCreds), 50*time.Millisecond, buf)

	var netErr net.Error
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Timeout())
}

func TestVerify_PrefixLogins(t *testing.T) {
	// Логин "al" — префикс "alice", но длина сообщения отсекает лишнего кандидата.
	store := credentials.NewLinearStore([]credentials.Credential{
		{Login: "al", Secret: "short"},
		{Login: "alice", Secret: "password456"},
	})

	login, ok := verify(authMessage(t, "alice", testSalt, "password456"), store)
	require.True(t, ok)
	assert.Equal(t, "alice", login)

	login, ok = verify(authMessage(t, "al", testSalt, "short"), store)
	require.True(t, ok)
	assert.Equal(t, "al", login)
}

func BenchmarkVerify(b *testing.B) {
	creds := make([]credentials.Credential, 0, 1000)
	for i := range 1000 {
		creds = append(creds, credentials.Credential{Login: "user" + strings.Repeat("x", i%10) + string(rune('a'+i%26)), Secret: "secret"})
	}
	creds = append(creds, credentials.Credential{Login: "alice", Secret: "password456"})

	m, _ := protocol.NewAuthMessage("alice", testSalt, "password456")
	msg := m.AppendTo(nil)

	for _, store := range []struct {
		name  string
		store credentials.Store
	}{
		{"linear", credentials.NewLinearStore(creds)},
		{"indexed", credentials.NewIndexedStore(creds)},
	} {
		b.Run(store.name, func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				if _, ok := verify(msg, store.store); !ok {
					b.Fatal("verify failed")
				}
			}
		})
	}
}
