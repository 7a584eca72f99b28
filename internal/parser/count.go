package parser

import (
	"errors"
	"strconv"
	"strings"
	"unicode"

	"github.com/IshaanNene/tubeharvest/internal/types"
)

var (
	errEmptyCount    = errors.New("empty count")
	errBadNumeral    = errors.New("not a decimal numeral")
	errCountOverflow = errors.New("count out of range")
)

// suffixDigits maps a count suffix to its power of ten.
var suffixDigits = map[byte]int{
	'K': 3,
	'M': 6,
	'B': 9,
}

// ParseAbbreviatedCount converts display counts such as "12.3K", "4M" or
// "1,234" into integers. Suffixes are case-sensitive. Fractional digits
// beyond the suffix's precision are truncated, so "1.2567K" is 1256.
func ParseAbbreviatedCount(text string) (int64, error) {
	s := strings.Map(func(r rune) rune {
		if r == ',' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, text)
	if s == "" {
		return 0, &types.ParseError{Text: text, Err: errEmptyCount}
	}

	exp, ok := suffixDigits[s[len(s)-1]]
	if !ok {
		if !allDigits(s) {
			return 0, &types.ParseError{Text: text, Err: errBadNumeral}
		}
		return parseDigits(text, s)
	}

	whole, frac, _ := strings.Cut(s[:len(s)-1], ".")
	if whole == "" && frac == "" {
		return 0, &types.ParseError{Text: text, Err: errBadNumeral}
	}
	if !allDigits(whole) || !allDigits(frac) {
		return 0, &types.ParseError{Text: text, Err: errBadNumeral}
	}

	// Shift the decimal point by exp places on the digit string itself so
	// truncation is exact and free of float rounding.
	if len(frac) > exp {
		frac = frac[:exp]
	}
	frac += strings.Repeat("0", exp-len(frac))
	return parseDigits(text, whole+frac)
}

func parseDigits(text, digits string) (int64, error) {
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			return 0, &types.ParseError{Text: text, Err: errCountOverflow}
		}
		return 0, &types.ParseError{Text: text, Err: errBadNumeral}
	}
	return n, nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
