package tml

import (
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/rivo/uniseg"
)

// decimalDigits caps the number of fraction digits the decimal view
// produces.
const decimalDigits = 1000

// RenderTape draws a tape as boxed cells, wrapping to the given
// terminal width. Cell widths are measured in grapheme clusters so
// combining marks and wide symbols line up.
func RenderTape(w io.Writer, symbols []string, width int) {
	if len(symbols) == 0 {
		fmt.Fprintln(w, "┌──┬──┬")
		fmt.Fprintln(w, "│  │  │")
		fmt.Fprintln(w, "└──┴──┴")
		return
	}

	for start := 0; start < len(symbols); {
		end := nextLine(symbols, start, width)
		printLine(w, symbols[start:end])
		start = end
	}
	fmt.Fprintln(w)
}

// nextLine returns the end index of the run of symbols that fits in
// width, always taking at least one.
func nextLine(symbols []string, start, width int) int {
	length := 1
	end := start
	for end == start ||
		(end < len(symbols) && length+uniseg.GraphemeClusterCount(symbols[end])+3 <= width) {
		length += uniseg.GraphemeClusterCount(symbols[end]) + 3
		end++
	}
	return end
}

func printLine(w io.Writer, symbols []string) {
	fmt.Fprint(w, "┬")
	for _, symbol := range symbols {
		fmt.Fprint(w, strings.Repeat("─", 2+uniseg.GraphemeClusterCount(symbol)), "┬")
	}
	fmt.Fprintln(w)

	fmt.Fprint(w, "│")
	for _, symbol := range symbols {
		fmt.Fprintf(w, " %s │", symbol)
	}
	fmt.Fprintln(w)

	fmt.Fprint(w, "┴")
	for _, symbol := range symbols {
		fmt.Fprint(w, strings.Repeat("─", 2+uniseg.GraphemeClusterCount(symbol)), "┴")
	}
	fmt.Fprintln(w)
}

// FormatDecimal reads every stride-th symbol starting at start, keeps
// the longest prefix of single-character digits valid in the radix,
// and renders the fraction 0.d1d2... = value / radix^n. An empty
// digit string renders as "0.0".
func FormatDecimal(symbols []string, radix, start, stride int) string {
	if radix < 2 || radix > 36 || start < 0 || stride < 1 {
		return "0.0"
	}
	var digits []int64
	for i := start; i < len(symbols); i += stride {
		d, ok := digitValue(symbols[i], radix)
		if !ok {
			break
		}
		digits = append(digits, d)
	}
	if len(digits) == 0 {
		return "0.0"
	}

	// value = sum(d_i * radix^(n-1-i)), fraction = value / radix^n.
	r := big.NewInt(int64(radix))
	value := new(big.Int)
	for _, d := range digits {
		value.Mul(value, r)
		value.Add(value, big.NewInt(d))
	}
	denom := new(big.Int).Exp(r, big.NewInt(int64(len(digits))), nil)

	return formatFraction(value, denom)
}

// digitValue interprets a one-character symbol as a digit in the
// radix, letters case-insensitive.
func digitValue(symbol string, radix int) (int64, bool) {
	runes := []rune(symbol)
	if len(runes) != 1 {
		return 0, false
	}
	c := runes[0]
	var d int64
	switch {
	case c >= '0' && c <= '9':
		d = int64(c - '0')
	case c >= 'a' && c <= 'z':
		d = int64(c-'a') + 10
	case c >= 'A' && c <= 'Z':
		d = int64(c-'A') + 10
	default:
		return 0, false
	}
	if d >= int64(radix) {
		return 0, false
	}
	return d, true
}

// formatFraction long-divides num/denom (num < denom) into base-10
// fraction digits, trimming trailing zeros.
func formatFraction(num, denom *big.Int) string {
	var sb strings.Builder
	sb.WriteString("0.")

	ten := big.NewInt(10)
	rem := new(big.Int).Set(num)
	digit := new(big.Int)
	produced := 0
	for rem.Sign() != 0 && produced < decimalDigits {
		rem.Mul(rem, ten)
		digit.QuoRem(rem, denom, rem)
		sb.WriteByte(byte('0' + digit.Int64()))
		produced++
	}

	out := strings.TrimRight(sb.String(), "0")
	if out == "0." {
		return "0.0"
	}
	return out
}
