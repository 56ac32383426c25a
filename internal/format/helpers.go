package format

import (
	"fmt"
	"strings"
	"time"
)

// FmtDuration formats a duration as "Xm Ys", "Ys" or, below one second,
// "Nms".
func FmtDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	s := int(d.Seconds())
	if s >= 60 {
		return fmt.Sprintf("%dm %ds", s/60, s%60)
	}
	return fmt.Sprintf("%ds", s)
}

// Percent formats a 0-100 value with one decimal: "66.7%".
func Percent(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}

// Confidence formats a 0-1 score as a whole percentage: "70%".
func Confidence(c float64) string {
	return fmt.Sprintf("%.0f%%", c*100)
}

// Truncate shortens s to maxLen runes, appending "..." if truncated.
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// OneLine collapses a multi-line instruction into a single line joined by
// " ; ".
func OneLine(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	return strings.Join(lines, " ; ")
}

// BoolMark returns "✓" for true and "✗" for false.
func BoolMark(v bool) string {
	if v {
		return "✓"
	}
	return "✗"
}
