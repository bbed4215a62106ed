package pdfstamp

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// encodeText converts s to WinAnsiEncoding, the encoding of the caption font.
// Characters outside of it are replaced.
func encodeText(s string) []byte {
	b, err := encoding.ReplaceUnsupported(charmap.Windows1252.NewEncoder()).Bytes([]byte(s))
	if err != nil {
		return []byte(strings.Map(func(r rune) rune {
			if r < 0x20 || r > 0x7E {
				return '?'
			}
			return r
		}, s))
	}
	return b
}

// formatNumber prints n the way PDF expects it, without exponent and with at most 4 decimals.
func formatNumber(n float64) string {
	n = math.Round(n*10000) / 10000
	if n == 0 {
		return "0"
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}

func escapeName(name string) string {
	var sb strings.Builder
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c < '!' || c > '~' || strings.IndexByte("#()<>[]{}/%", c) >= 0 {
			fmt.Fprintf(&sb, "#%02X", c)
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String()
}
