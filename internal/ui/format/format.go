// Package format renders values the way the console shows them to pt-BR
// users.
package format

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"sales-console/internal/models"
)

const dateLayout = "02/01/2006"

// Currency formats an amount as BRL, e.g. "R$ 1.234,56". Half cents round
// away from zero.
func Currency(d decimal.Decimal) string {
	rounded := d.Round(2)
	neg := rounded.IsNegative()
	s := rounded.Abs().StringFixed(2)

	whole, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteString("R$ ")
	b.WriteString(group(whole))
	b.WriteByte(',')
	b.WriteString(frac)
	return b.String()
}

// group inserts thousands separators into a run of digits.
func group(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

func Date(d models.Date) string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// Count renders n followed by the singular or plural noun.
func Count(n int, singular, plural string) string {
	noun := plural
	if n == 1 {
		noun = singular
	}
	return strconv.Itoa(n) + " " + noun
}
