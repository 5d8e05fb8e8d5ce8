// Package util provides small helpers shared across syt packages.
package util

import "github.com/charmbracelet/x/ansi"

// FitWidth shortens s to at most width terminal columns, keeping ANSI styling
// intact and marking the cut with "...". A width of zero or less leaves s
// unchanged.
func FitWidth(s string, width int) string {
	if width <= 0 || ansi.StringWidth(s) <= width {
		return s
	}
	if width <= 3 {
		return ansi.Truncate(s, width, "")
	}
	return ansi.Truncate(s, width, "...")
}
