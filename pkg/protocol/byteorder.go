package protocol

// Orientation — порядок байт, который эвристика выбрала для поля.
type Orientation uint8

const (
	// OrientationNative — поле принято в NativeOrder как есть.
	OrientationNative Orientation = iota
	// OrientationNetwork — поле переинтерпретировано в NetworkOrder.
	OrientationNetwork
)

// String возвращает название порядка байт для логов.
func (o Orientation) String() string {
	switch o {
	case OrientationNative:
		return "native"
	case OrientationNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// Вся эвристика порядка байт сосредоточена в ResolveCount и ResolveElements.
// Протокол не несёт флага порядка байт, поэтому порядок угадывается по
// ожидаемым значениям. Легитимные данные вне ожидаемого диапазона
// (например, элемент больше ElementBound) будут прочитаны неверно.
// Это известное ограничение, сохранённое ради совместимости с клиентами.

// ResolveCount декодирует 32-битный счётчик из raw.
// Значение принимается в NativeOrder, только если оно равно CountSentinel,
// иначе raw переинтерпретируется в NetworkOrder.
func ResolveCount(raw []byte) (uint32, Orientation) {
	_ = raw[CountSize-1] // bounds check hint

	if v := NativeOrder.Uint32(raw); v == CountSentinel {
		return v, OrientationNative
	}
	return NetworkOrder.Uint32(raw), OrientationNetwork
}

// ResolveElements декодирует len(dst) элементов int16 из raw в dst.
// Если хотя бы один элемент в NativeOrder выходит за
// [-ElementBound, ElementBound], все элементы вектора переинтерпретируются
// в NetworkOrder.
func ResolveElements(raw []byte, dst []int16) Orientation {
	raw = raw[:len(dst)*ElementSize]

	swap := false
	for i := range dst {
		v := int16(NativeOrder.Uint16(raw[i*ElementSize:]))
		if v > ElementBound || v < -ElementBound {
			swap = true
		}
		dst[i] = v
	}
	if !swap {
		return OrientationNative
	}

	for i := range dst {
		dst[i] = int16(NetworkOrder.Uint16(raw[i*ElementSize:]))
	}
	return OrientationNetwork
}
