// Package calc реализует насыщающую арифметику над векторами int16.
package calc

import "math"

// Product возвращает произведение элементов v с насыщением до диапазона int16.
//
// Пустой вектор даёт 0. Накопление идёт в int32; как только промежуточное
// произведение выходит за [math.MinInt16, math.MaxInt16], возвращается
// граница диапазона, остальные элементы не рассматриваются.
func Product(v []int16) int16 {
	if len(v) == 0 {
		return 0
	}

	product := int32(1)
	for _, x := range v {
		// |product| <= 32768 и |x| <= 32768, поэтому переполнения int32 нет.
		product *= int32(x)
		if product > math.MaxInt16 {
			return math.MaxInt16
		}
		if product < math.MinInt16 {
			return math.MinInt16
		}
	}
	return int16(product)
}
