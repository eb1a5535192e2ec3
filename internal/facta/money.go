package facta

import (
	"strconv"
	"strings"
)

// ParseBRL parses a Brazilian-formatted monetary string such as
// "R$ 1.234,56" into 1234.56. When a comma is present it is the decimal
// separator and dots are thousands separators; otherwise the string is
// assumed to already use a dot decimal. Unparsable input yields 0, never an
// error: the upstream mixes formats and a bad amount must not abort a
// conversation turn.
func ParseBRL(s string) float64 {
	clean := strings.TrimSpace(strings.ReplaceAll(s, "R$", ""))
	if strings.Contains(clean, ",") {
		clean = strings.ReplaceAll(clean, ".", "")
		clean = strings.ReplaceAll(clean, ",", ".")
	}
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0
	}
	return v
}

// ParseAmount is ParseBRL for loosely-typed JSON values: numbers pass
// through, strings are parsed, anything else is 0.
func ParseAmount(v any) float64 {
	switch x := v.(type) {
	case nil:
		return 0
	case float64:
		return x
	case int:
		return float64(x)
	case string:
		return ParseBRL(x)
	default:
		return 0
	}
}

// FormatBRL renders a float as "1.234,56" for message templates.
func FormatBRL(v float64) string {
	neg := v < 0
	if neg {
		v = -v
	}

	s := strconv.FormatFloat(v, 'f', 2, 64)
	intPart, fracPart, _ := strings.Cut(s, ".")

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, d := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(d)
	}
	b.WriteByte(',')
	b.WriteString(fracPart)
	return b.String()
}
