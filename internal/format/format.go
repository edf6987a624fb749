// Package format renders amounts and percentages for chat messages.
package format

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	billion  = decimal.NewFromInt(1_000_000_000)
	million  = decimal.NewFromInt(1_000_000)
	thousand = decimal.NewFromInt(1_000)
	one      = decimal.NewFromInt(1)
)

// Number compacts large values with k/M/B suffixes. Values below one keep at
// most two decimal places; everything else renders with two decimals and
// comma grouping.
func Number(d decimal.Decimal) string {
	switch {
	case d.GreaterThanOrEqual(billion):
		return d.Div(billion).StringFixed(1) + "B"
	case d.GreaterThanOrEqual(million):
		return d.Div(million).StringFixed(1) + "M"
	case d.GreaterThanOrEqual(thousand):
		return d.Div(thousand).StringFixed(1) + "k"
	case d.LessThan(one):
		return d.Round(2).String()
	default:
		return group(d.StringFixed(2))
	}
}

// Percent renders a ratio as a signed percentage with two decimals.
func Percent(ratio decimal.Decimal) string {
	pct := ratio.Mul(decimal.NewFromInt(100))
	if pct.IsNegative() {
		return pct.StringFixed(2) + "%"
	}
	return "+" + pct.StringFixed(2) + "%"
}

// group inserts comma separators into the integer part of a fixed-point
// decimal string.
func group(s string) string {
	intPart, fracPart, _ := strings.Cut(s, ".")
	neg := strings.HasPrefix(intPart, "-")
	if neg {
		intPart = intPart[1:]
	}
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String()
	if fracPart != "" {
		out = fmt.Sprintf("%s.%s", out, fracPart)
	}
	if neg {
		out = "-" + out
	}
	return out
}
