// Package document validates Brazilian CPF numbers captured during a
// conversation before they are sent to any upstream partner.
package document

import "strings"

// CleanDigits strips everything that is not a decimal digit.
// "123.456.789-09" becomes "12345678909".
func CleanDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidateCPF reports whether cpf is a valid CPF number.
//
// The input must already be digits-only (use CleanDigits first). A CPF is
// 11 digits where the last two are check digits computed modulo 11 over the
// preceding ones. Sequences of 11 identical digits pass the arithmetic but
// are not real documents, so they are rejected explicitly.
func ValidateCPF(cpf string) bool {
	if len(cpf) != 11 {
		return false
	}
	for i := 0; i < len(cpf); i++ {
		if cpf[i] < '0' || cpf[i] > '9' {
			return false
		}
	}

	allEqual := true
	for i := 1; i < len(cpf); i++ {
		if cpf[i] != cpf[0] {
			allEqual = false
			break
		}
	}
	if allEqual {
		return false
	}

	if checkDigit(cpf, 9) != int(cpf[9]-'0') {
		return false
	}
	if checkDigit(cpf, 10) != int(cpf[10]-'0') {
		return false
	}
	return true
}

// checkDigit computes the modulo-11 check digit over cpf[:n].
// Weights run from n+1 down to 2; a result of 10 maps to 0.
func checkDigit(cpf string, n int) int {
	sum := 0
	for i := 0; i < n; i++ {
		sum += int(cpf[i]-'0') * (n + 1 - i)
	}
	d := (sum * 10) % 11
	if d == 10 {
		d = 0
	}
	return d
}
