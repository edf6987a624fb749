package id

import (
	"math/big"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	boterr "github.com/Velvet-Capital/SwarmDeFAI/internal/errors"
)

var decimalPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// ParseAmount validates a positive decimal amount a user typed in chat.
func ParseAmount(input string) (decimal.Decimal, error) {
	v := strings.TrimSpace(input)
	if !decimalPattern.MatchString(v) {
		return decimal.Zero, boterr.New(boterr.CodeInvalidInput, "amount must be a positive number like 1.5")
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, boterr.Wrap(boterr.CodeInvalidInput, "parse amount", err)
	}
	if !d.IsPositive() {
		return decimal.Zero, boterr.New(boterr.CodeInvalidInput, "amount must be greater than zero")
	}
	return d, nil
}

// ParsePercent validates a slippage percentage in (0, 100].
func ParsePercent(input string) (decimal.Decimal, error) {
	d, err := ParseAmount(input)
	if err != nil {
		return decimal.Zero, err
	}
	if d.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.Zero, boterr.New(boterr.CodeInvalidInput, "percentage must be at most 100")
	}
	return d, nil
}

// ToBaseUnits scales a human amount into integer base units, truncating any
// precision beyond the token's decimals.
func ToBaseUnits(amount decimal.Decimal, decimals int) *big.Int {
	scaled := amount.Shift(int32(decimals)).Truncate(0)
	return scaled.BigInt()
}

// FromBaseUnits converts integer base units back into a human amount.
func FromBaseUnits(raw *big.Int, decimals int) decimal.Decimal {
	return decimal.NewFromBigInt(raw, 0).Shift(-int32(decimals))
}

// PercentOf returns pct percent of raw base units, truncated down. A pct of
// exactly 100 returns raw unchanged so full-balance trades never leave dust.
func PercentOf(raw *big.Int, pct decimal.Decimal) *big.Int {
	if pct.Equal(decimal.NewFromInt(100)) {
		return new(big.Int).Set(raw)
	}
	share := decimal.NewFromBigInt(raw, 0).Mul(pct).Div(decimal.NewFromInt(100)).Truncate(0)
	return share.BigInt()
}
