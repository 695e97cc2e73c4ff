package styles

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// TruncateString cuts plain text to maxWidth cells, ending in "..." when
// anything was removed.
func TruncateString(s string, maxWidth int) string {
	if maxWidth < 1 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	if maxWidth <= 3 {
		return strings.Repeat(".", maxWidth)
	}
	return runewidth.Truncate(s, maxWidth, "...")
}
