package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"golang.org/x/time/rate"

	"github.com/udisondev/vcalc/pkg/calc"
	"github.com/udisondev/vcalc/pkg/protocol"
)

// vectorBuf — рабочие буферы для чтения одного вектора.
type vectorBuf struct {
	raw   []byte
	elems []int16
}

// grow возвращает буферы под n элементов.
func (b *vectorBuf) grow(n int) ([]int16, []byte) {
	if cap(b.elems) < n {
		b.elems = make([]int16, n)
		b.raw = make([]byte, n*protocol.ElementSize)
	}
	return b.elems[:n], b.raw[:n*protocol.ElementSize]
}

// deadline продлевает deadline соединения.
// Batch deadline updates: обновляем только каждые timeout/2,
// чтобы не делать syscall на каждое поле.
type deadline struct {
	conn    net.Conn
	timeout time.Duration
	last    time.Time
}

func (d *deadline) touch() error {
	if d.timeout <= 0 {
		return nil
	}
	now := time.Now()
	if now.Sub(d.last) <= d.timeout/2 {
		return nil
	}
	if err := d.conn.SetDeadline(now.Add(d.timeout)); err != nil {
		return fmt.Errorf("set deadline: %w", err)
	}
	d.last = now
	return nil
}

// processVectors читает пакет векторов и на каждый вектор отправляет
// насыщенное произведение. Возвращает количество векторов, на которые
// был отправлен ответ. Любая ошибка чтения или записи завершает пакет;
// на вектор, который не удалось прочитать целиком, ответ не отправляется.
func (h *handler) processVectors(ctx context.Context, s *session) (int, error) {
	buf := h.vectorPool.Get().(*vectorBuf)
	defer h.vectorPool.Put(buf)

	limiter := rate.NewLimiter(h.rateLimit, h.limits.RateLimitBurst)
	dl := &deadline{conn: s.conn, timeout: h.limits.IOTimeout}

	if err := dl.touch(); err != nil {
		return 0, err
	}
	count, order, err := protocol.ReadCount(s.conn)
	if err != nil {
		return 0, fmt.Errorf("read number of vectors: %w", err)
	}
	slog.Debug("vectors: batch started", "remote", s.remote, "vectors", count, "order", order)

	for i := range count {
		// Rate limiting: клиент ждёт, а не отключается, результат не меняется.
		if err := limiter.Wait(ctx); err != nil {
			return int(i), fmt.Errorf("rate limit: %w", err)
		}
		if err := dl.touch(); err != nil {
			return int(i), err
		}

		size, sizeOrder, err := protocol.ReadCount(s.conn)
		if err != nil {
			return int(i), fmt.Errorf("read vector size: %w", err)
		}
		if size > uint32(h.limits.MaxVectorLen) {
			slog.Warn("vectors: too large", "remote", s.remote, "size", size, "max", h.limits.MaxVectorLen)
			return int(i), fmt.Errorf("%w: %d elements, max %d", protocol.ErrVectorTooLarge, size, h.limits.MaxVectorLen)
		}

		elems, raw := buf.grow(int(size))
		elemOrder, err := protocol.ReadElements(s.conn, raw, elems)
		if err != nil {
			return int(i), fmt.Errorf("read vector data: %w", err)
		}

		product := calc.Product(elems)
		slog.Debug("vectors: computed",
			"remote", s.remote,
			"vector", i+1,
			"size", size,
			"size_order", sizeOrder,
			"elem_order", elemOrder,
			"product", product,
		)

		if err := protocol.WriteProduct(s.conn, product); err != nil {
			return int(i), fmt.Errorf("send result for vector %d: %w", i+1, err)
		}
	}

	return int(count), nil
}
