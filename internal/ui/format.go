package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Duration formats a duration as "2h 05m" or "12m".
func Duration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Minute)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh %02dm", h, m)
}

// Money formats an amount as dollars with thousands separators.
func Money(amount float64) string {
	return "$" + humanize.FormatFloat("#,###.##", amount)
}

// Ago returns a relative description such as "3 hours ago".
func Ago(t time.Time) string {
	return humanize.Time(t)
}

// Count formats "3 punches" or "1 punch".
func Count(n int, singular, plural string) string {
	word := plural
	if n == 1 {
		word = singular
	}
	return humanize.Comma(int64(n)) + " " + word
}

// Truncate shortens a string to max length with ellipsis
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max || max < 4 {
		return s
	}
	return string(r[:max-3]) + "..."
}

// Rule returns a horizontal rule of width n.
func Rule(n int) string {
	return RuleStyle.Render(strings.Repeat("─", n))
}
