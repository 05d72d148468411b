// Package units converts between decimal ether strings and integer base units.
package units

import (
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/params"
)

// Decimals is the number of fractional digits in one unit of the native currency.
const Decimals = 18

// DisplayDecimals is how many fractional digits DisplayEther keeps.
const DisplayDecimals = 4

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrNonPositive   = errors.New("amount must be greater than zero")
	decimalPattern   = regexp.MustCompile(`^(\d*)(?:\.(\d*))?$`)
	etherInBaseUnits = big.NewInt(params.Ether)
)

// ParseEther converts a decimal string such as "0.05" into base units.
// Trailing fractional zeros beyond the 18th digit are accepted, any other
// extra precision is rejected.
func ParseEther(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	m := decimalPattern.FindStringSubmatch(s)
	if m == nil || (m[1] == "" && m[2] == "") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	whole, frac := m[1], strings.TrimRight(m[2], "0")
	if len(frac) > Decimals {
		return nil, fmt.Errorf("%w: %q has more than %d fractional digits", ErrInvalidAmount, s, Decimals)
	}
	digits := whole + frac + strings.Repeat("0", Decimals-len(frac))
	v, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return v, nil
}

// ParsePositiveEther is ParseEther that also rejects zero.
func ParsePositiveEther(s string) (*big.Int, error) {
	v, err := ParseEther(s)
	if err != nil {
		return nil, err
	}
	if v.Sign() <= 0 {
		return nil, ErrNonPositive
	}
	return v, nil
}

// FormatEther renders base units with full precision, always keeping at
// least one fractional digit ("1.0", "0.05").
func FormatEther(v *big.Int) string {
	whole, frac := split(v)
	frac = strings.TrimRight(frac, "0")
	if frac == "" {
		frac = "0"
	}
	return whole + "." + frac
}

// DisplayEther renders base units truncated to DisplayDecimals fractional digits.
func DisplayEther(v *big.Int) string {
	whole, frac := split(v)
	return whole + "." + frac[:DisplayDecimals]
}

func split(v *big.Int) (string, string) {
	if v == nil {
		v = new(big.Int)
	}
	abs := new(big.Int).Abs(v)
	q, r := new(big.Int).QuoRem(abs, etherInBaseUnits, new(big.Int))
	whole := q.String()
	if v.Sign() < 0 {
		whole = "-" + whole
	}
	frac := r.String()
	return whole, strings.Repeat("0", Decimals-len(frac)) + frac
}
