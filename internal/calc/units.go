package calc

import (
	"fmt"
	"strconv"
	"strings"

	"ledger/pkg/exception"
)

// TokenDecimals is the number of base-unit decimals of one token.
const TokenDecimals = 9

// TokenUnit is one whole token in base units.
const TokenUnit uint64 = 1_000_000_000

// ParseUnits converts a decimal token amount such as "5000" or "0.25" into base
// units. More than TokenDecimals fractional digits, signs and exponents are rejected.
func ParseUnits(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("parse units: empty amount")
	}
	whole, frac, _ := strings.Cut(s, ".")
	if len(frac) > TokenDecimals {
		return 0, fmt.Errorf("parse units %q: more than %d decimals", s, TokenDecimals)
	}
	if whole == "" {
		whole = "0"
	}
	w, err := strconv.ParseUint(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse units %q: %w", s, err)
	}
	var f uint64
	if frac != "" {
		frac += strings.Repeat("0", TokenDecimals-len(frac))
		if f, err = strconv.ParseUint(frac, 10, 64); err != nil {
			return 0, fmt.Errorf("parse units %q: %w", s, err)
		}
	}
	v, err := Mul(w, TokenUnit)
	if err != nil {
		return 0, fmt.Errorf("parse units %q: %w", s, exception.ErrArithmeticOverflow)
	}
	return Add(v, f)
}

// FormatUnits renders base units as a decimal token amount.
func FormatUnits(v uint64) string {
	return fmt.Sprintf("%d.%09d", v/TokenUnit, v%TokenUnit)
}
