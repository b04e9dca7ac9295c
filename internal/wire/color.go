package wire

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrBadColor = errors.New("wire: invalid hex color")

// ParseHexColor parses "#rrggbb", "rrggbb" or "0xrrggbb" into 0xRRGGBB.
func ParseHexColor(s string) (uint32, error) {
	h := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "#"), "0x")
	if len(h) != 6 {
		return 0, fmt.Errorf("%w: %q", ErrBadColor, s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadColor, s)
	}
	return uint32(v), nil
}

// FormatHexColor renders the low 24 bits of c as "#rrggbb".
func FormatHexColor(c uint32) string {
	return fmt.Sprintf("#%06x", c&0xffffff)
}
