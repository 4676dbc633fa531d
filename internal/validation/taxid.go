// Package validation содержит функции валидации входных данных.
package validation

import "unicode"

// Весовые коэффициенты контрольного разряда NIT, применяются справа налево.
var nitWeights = []int{3, 7, 13, 17, 19, 23, 29, 37, 41, 43, 47, 53, 59, 67, 71}

// IsValidTaxID проверяет корректность налогового номера (NIT) по контрольному разряду.
// Принимает номер с контрольным разрядом в конце, допускается дефис перед ним.
func IsValidTaxID(taxID string) bool {
	digits := make([]int, 0, len(taxID))
	for _, ch := range taxID {
		if ch == '-' || ch == ' ' {
			continue
		}
		if !unicode.IsDigit(ch) {
			return false
		}
		digits = append(digits, int(ch-'0'))
	}

	if len(digits) < 2 || len(digits) > len(nitWeights)+1 {
		return false
	}

	check := digits[len(digits)-1]
	body := digits[:len(digits)-1]

	sum := 0
	for i := 0; i < len(body); i++ {
		sum += body[len(body)-1-i] * nitWeights[i]
	}

	rem := sum % 11
	expected := rem
	if rem >= 2 {
		expected = 11 - rem
	}

	return check == expected
}
