package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// ReadCount читает 32-битный счётчик (векторов или элементов)
// и разрешает его порядок байт.
func ReadCount(r io.Reader) (uint32, Orientation, error) {
	var raw [CountSize]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return 0, OrientationNative, err
	}
	n, o := ResolveCount(raw[:])
	return n, o, nil
}

// ReadElements читает len(dst) элементов int16 в dst.
// raw — рабочий буфер размером не меньше len(dst)*ElementSize.
func ReadElements(r io.Reader, raw []byte, dst []int16) (Orientation, error) {
	size := len(dst) * ElementSize
	if len(raw) < size {
		return OrientationNative, fmt.Errorf("buffer too small: %d < %d", len(raw), size)
	}
	if _, err := io.ReadFull(r, raw[:size]); err != nil {
		return OrientationNative, err
	}
	return ResolveElements(raw[:size], dst), nil
}

// WriteProduct записывает результат для вектора: 2 байта в NativeOrder.
func WriteProduct(w io.Writer, product int16) error {
	var buf [ProductSize]byte
	NativeOrder.PutUint16(buf[:], uint16(product))
	if _, err := w.Write(buf[:]); err != nil {
		return fmt.Errorf("write product: %w", err)
	}
	return nil
}

// ReadProduct читает результат для вектора.
func ReadProduct(r io.Reader) (int16, error) {
	var buf [ProductSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, fmt.Errorf("read product: %w", err)
	}
	return int16(NativeOrder.Uint16(buf[:])), nil
}

// EncodeCount записывает счётчик в указанном порядке байт.
func EncodeCount(w io.Writer, n uint32, order binary.ByteOrder) error {
	var buf [CountSize]byte
	order.PutUint32(buf[:], n)
	if _, err := w.Write(buf[:]); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	return nil
}

// EncodeVector записывает заголовок и элементы вектора одним вызовом Write.
// countOrder и elemOrder задаются отдельно: эвристика сервера разрешает
// счётчики и элементы по разным правилам.
func EncodeVector(w io.Writer, v []int16, countOrder, elemOrder binary.ByteOrder) error {
	buf := make([]byte, CountSize+len(v)*ElementSize)
	countOrder.PutUint32(buf, uint32(len(v)))
	for i, x := range v {
		elemOrder.PutUint16(buf[CountSize+i*ElementSize:], uint16(x))
	}
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write vector: %w", err)
	}
	return nil
}
