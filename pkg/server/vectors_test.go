package server

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/vcalc/pkg/broker"
	"github.com/udisondev/vcalc/pkg/config"
	"github.com/udisondev/vcalc/pkg/credentials"
	"github.com/udisondev/vcalc/pkg/protocol"
)

func testLimits() config.LimitsConfig {
	l := config.Default().Limits
	l.RateLimitPerSec = 0
	l.IOTimeout = 5 * time.Second
	return l
}

// encodeBatch кодирует пакет так, как это делает клиент по умолчанию:
// счётчики в NetworkOrder, элементы в NativeOrder.
func encodeBatch(t *testing.T, vectors ...[]int16) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, protocol.EncodeCount(&buf, uint32(len(vectors)), protocol.NetworkOrder))
	for _, v := range vectors {
		require.NoError(t, protocol.EncodeVector(&buf, v, protocol.NetworkOrder, protocol.NativeOrder))
	}
	return buf.Bytes()
}

type batchResult struct {
	products  []int16
	processed int
	err       error
}

// runBatch передаёт input в processVectors через TCP loopback.
// Клиент закрывает запись после input, поэтому короткий ввод
// заканчивается EOF на стороне сервера.
func runBatch(t *testing.T, ctx context.Context, limits config.LimitsConfig, input []byte) batchResult {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer lis.Close()

	cli, err := net.Dial("tcp", lis.Addr().String())
	require.NoError(t, err)
	defer cli.Close()

	srv, err := lis.Accept()
	require.NoError(t, err)

	h := newHandler(credentials.NewLinearStore(nil), broker.NopPublisher{}, limits)
	s := newSession(srv)
	require.NoError(t, s.transition(StateAuthenticated))
	require.NoError(t, s.transition(StateProcessingVectors))

	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		n, err := h.processVectors(ctx, s)
		s.close()
		done <- result{n, err}
	}()

	go func() {
		_, _ = cli.Write(input)
		_ = cli.(*net.TCPConn).CloseWrite()
	}()

	raw, err := io.ReadAll(cli)
	require.NoError(t, err)
	require.Zero(t, len(raw)%protocol.ProductSize, "ответы по 2 байта")

	products := make([]int16, 0, len(raw)/protocol.ProductSize)
	for i := 0; i < len(raw); i += protocol.ProductSize {
		products = append(products, int16(binary.LittleEndian.Uint16(raw[i:])))
	}

	res := <-done
	return batchResult{products: products, processed: res.n, err: res.err}
}

func TestProcessVectors(t *testing.T) {
	tests := []struct {
		name    string
		vectors [][]int16
		want    []int16
	}{
		{"single", [][]int16{{2, 3, 4}}, []int16{24}},
		{"negative", [][]int16{{-2, 3, -4}}, []int16{24}},
		{"positive saturation", [][]int16{{200, 200}}, []int16{32767}},
		{"negative saturation", [][]int16{{-200, 200}}, []int16{-32768}},
		{"zero", [][]int16{{1, 0, 5}}, []int16{0}},
		{"empty vector", [][]int16{{}}, []int16{0}},
		{"four elements", [][]int16{{1, 2, 3, 4}}, []int16{24}},
		{"several", [][]int16{{2, 3, 4}, {200, 200}, {-1}, {}}, []int16{24, 32767, -1, 0}},
		{"bound", [][]int16{{10000, -1}}, []int16{-10000}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := runBatch(t, context.Background(), testLimits(), encodeBatch(t, tt.vectors...))
			require.NoError(t, res.err)
			assert.Equal(t, tt.want, res.products)
			assert.Equal(t, len(tt.vectors), res.processed)
		})
	}
}

func TestProcessVectors_EmptyBatch(t *testing.T) {
	res := runBatch(t, context.Background(), testLimits(), encodeBatch(t))
	require.NoError(t, res.err)
	assert.Empty(t, res.products)
	assert.Zero(t, res.processed)
}

func TestProcessVectors_ByteOrder(t *testing.T) {
	le, be := protocol.NativeOrder, protocol.NetworkOrder

	encode := func(countOrder, elemOrder binary.ByteOrder, v []int16) []byte {
		var buf bytes.Buffer
		require.NoError(t, protocol.EncodeCount(&buf, 1, countOrder))
		require.NoError(t, protocol.EncodeVector(&buf, v, countOrder, elemOrder))
		return buf.Bytes()
	}

	tests := []struct {
		name  string
		input []byte
		want  []int16
	}{
		// Счётчик 4 в little-endian принимается как есть.
		{"native count sentinel", func() []byte {
			var buf bytes.Buffer
			require.NoError(t, protocol.EncodeCount(&buf, 1, be))
			require.NoError(t, protocol.EncodeVector(&buf, []int16{1, 2, 3, 4}, le, le))
			return buf.Bytes()
		}(), []int16{24}},
		{"network count sentinel", encode(be, le, []int16{1, 2, 3, 4}), []int16{24}},
		// Элемент 100 в big-endian читается как 25600, выходит за границу,
		// и весь вектор перечитывается в big-endian.
		{"network elements resolved", encode(be, be, []int16{100, 3}), []int16{300}},
		// Малые big-endian элементы остаются в границе и читаются неверно:
		// 2, 3 -> 512, 768.
		{"network small elements misread", encode(be, be, []int16{2, 3}), []int16{32767}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := runBatch(t, context.Background(), testLimits(), tt.input)
			require.NoError(t, res.err)
			assert.Equal(t, tt.want, res.products)
		})
	}
}

func TestProcessVectors_ShortRead(t *testing.T) {
	full := encodeBatch(t, []int16{2, 3, 4}, []int16{5, 6})

	tests := []struct {
		name      string
		input     []byte
		processed int
		errText   string
	}{
		{"no count", nil, 0, "read number of vectors"},
		{"partial count", full[:2], 0, "read number of vectors"},
		{"missing second vector", full[:protocol.CountSize+protocol.CountSize+3*protocol.ElementSize], 1, "read vector size"},
		{"partial second size", full[:len(full)-2*protocol.ElementSize-1], 1, "read vector size"},
		{"partial second data", full[:len(full)-1], 1, "read vector data"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := runBatch(t, context.Background(), testLimits(), tt.input)
			require.Error(t, res.err)
			assert.ErrorContains(t, res.err, tt.errText)
			assert.Equal(t, tt.processed, res.processed)
			assert.Len(t, res.products, tt.processed, "на недочитанный вектор ответа нет")
			if tt.processed > 0 {
				assert.Equal(t, int16(24), res.products[0])
			}
		})
	}
}

func TestProcessVectors_TooLarge(t *testing.T) {
	limits := testLimits()
	limits.MaxVectorLen = 3

	// Ввод обрывается после заголовка слишком длинного вектора:
	// сервер прочитывает всё, что отправил клиент.
	input := encodeBatch(t, []int16{1, 2, 3}, []int16{1, 2, 3, 4})
	input = input[:protocol.CountSize+protocol.CountSize+3*protocol.ElementSize+protocol.CountSize]

	res := runBatch(t, context.Background(), limits, input)
	require.ErrorIs(t, res.err, protocol.ErrVectorTooLarge)
	assert.Equal(t, 1, res.processed)
	assert.Equal(t, []int16{6}, res.products)
}

func TestProcessVectors_RateLimit(t *testing.T) {
	limits := testLimits()
	limits.RateLimitPerSec = 20
	limits.RateLimitBurst = 1

	start := time.Now()
	res := runBatch(t, context.Background(), limits, encodeBatch(t, []int16{1}, []int16{2}, []int16{3}, []int16{4}))
	elapsed := time.Since(start)

	require.NoError(t, res.err)
	assert.Equal(t, []int16{1, 2, 3, 4}, res.products, "ограничение скорости не меняет результат")
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
}

func TestProcessVectors_Cancelled(t *testing.T) {
	limits := testLimits()
	limits.RateLimitPerSec = 1
	limits.RateLimitBurst = 1

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := runBatch(t, ctx, limits, encodeBatch(t, []int16{1})[:protocol.CountSize])
	require.ErrorIs(t, res.err, context.Canceled)
	assert.Zero(t, res.processed)
}

func TestDeadline_Touch(t *testing.T) {
	cli, srv := net.Pipe()
	defer cli.Close()
	defer srv.Close()

	d := &deadline{conn: srv, timeout: time.Minute}
	require.NoError(t, d.touch())
	first := d.last
	require.False(t, first.IsZero())

	// Повторный вызов до timeout/2 не продлевает deadline
	require.NoError(t, d.touch())
	assert.Equal(t, first, d.last)

	off := &deadline{conn: srv}
	require.NoError(t, off.touch())
	assert.True(t, off.last.IsZero())
}

func TestVectorBuf_Grow(t *testing.T) {
	var b vectorBuf
	elems, raw := b.grow(4)
	assert.Len(t, elems, 4)
	assert.Len(t, raw, 4*protocol.ElementSize)

	elems, raw = b.grow(2)
	assert.Len(t, elems, 2)
	assert.Len(t, raw, 2*protocol.ElementSize)
	assert.Equal(t, 4, cap(elems), "буфер переиспользуется")

	elems, _ = b.grow(0)
	assert.Empty(t, elems)
}
