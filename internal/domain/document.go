package domain

import "strings"

// NormalizeCNPJ strips the mask (dots, slash, dash) from a CNPJ.
func NormalizeCNPJ(doc string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, doc)
}

// ValidCNPJ reports whether doc (masked or not) is a CNPJ with valid check digits.
func ValidCNPJ(doc string) bool {
	d := NormalizeCNPJ(doc)
	if len(d) != 14 {
		return false
	}
	allSame := true
	for i := 1; i < 14; i++ {
		if d[i] != d[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return false
	}

	w1 := []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	w2 := []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	return checkDigit(d[:12], w1) == int(d[12]-'0') &&
		checkDigit(d[:13], w2) == int(d[13]-'0')
}

func checkDigit(digits string, weights []int) int {
	sum := 0
	for i, w := range weights {
		sum += int(digits[i]-'0') * w
	}
	rem := sum % 11
	if rem < 2 {
		return 0
	}
	return 11 - rem
}

// FormatCNPJ renders 14 digits as 00.000.000/0000-00. Other input is returned as is.
func FormatCNPJ(doc string) string {
	d := NormalizeCNPJ(doc)
	if len(d) != 14 {
		return doc
	}
	return d[:2] + "." + d[2:5] + "." + d[5:8] + "/" + d[8:12] + "-" + d[12:]
}

// MaskCNPJ hides the middle digits for logs: 12.***.***/0001-90.
func MaskCNPJ(doc string) string {
	d := NormalizeCNPJ(doc)
	if len(d) != 14 {
		return "***"
	}
	return d[:2] + ".***.***/" + d[8:12] + "-" + d[12:]
}
