// Package textlayout is the pure text/color math behind the caption
// template: markup stripping, greedy line wrapping, reading-rate duration
// estimation and the box color token the drawtext filter expects.
package textlayout

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

const (
	// DefaultWrapLimit is the maximum caption line length in characters.
	DefaultWrapLimit = 25

	// Reading rate used to derive a scene duration from narration text.
	charsPerMinute = 220

	minDerivedSec     = 2.0
	maxDerivedSec     = 30.0
	defaultDerivedSec = 3.0
)

var (
	brTagRe  = regexp.MustCompile(`(?i)<br\s*/?>`)
	anyTagRe = regexp.MustCompile(`<[^>]*>`)
)

// NormalizeBreaks converts <br> markup to a single newline convention.
func NormalizeBreaks(text string) string {
	return brTagRe.ReplaceAllString(text, "\n")
}

// StripTags converts <br> markup to newlines and removes every other
// HTML tag.
func StripTags(text string) string {
	return anyTagRe.ReplaceAllString(NormalizeBreaks(text), "")
}

// WrapForDisplay normalizes line-break markup, then greedily packs
// whitespace-delimited tokens onto lines of at most maxLen characters.
// A token longer than maxLen still gets its own line; tokens are never
// split. Wrapping already-wrapped text reproduces the same output.
func WrapForDisplay(text string, maxLen int) string {
	if text == "" {
		return text
	}
	if maxLen <= 0 {
		maxLen = DefaultWrapLimit
	}

	normalized := NormalizeBreaks(text)
	if len([]rune(normalized)) <= maxLen {
		return normalized
	}

	var lines []string
	var current []rune
	for _, word := range strings.Fields(normalized) {
		w := []rune(word)
		switch {
		case len(current) == 0:
			current = w
		case len(current)+1+len(w) <= maxLen:
			current = append(append(current, ' '), w...)
		default:
			lines = append(lines, string(current))
			current = w
		}
	}
	if len(current) > 0 {
		lines = append(lines, string(current))
	}

	return strings.Join(lines, "\n")
}

// DurationFromText estimates a scene duration in seconds from narration
// length at a fixed reading rate, clamped to [2, 30] and rounded to one
// decimal. Empty text yields 3 seconds.
func DurationFromText(text string) float64 {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return defaultDerivedSec
	}

	charsPerSecond := float64(charsPerMinute) / 60.0
	sec := float64(len([]rune(clean))) / charsPerSecond
	sec = math.Max(minDerivedSec, math.Min(maxDerivedSec, sec))
	return math.Round(sec*10) / 10
}

// ParseHexColor decomposes a 6-hex-digit color, with or without the
// leading '#'.
func ParseHexColor(hex string) (r, g, b uint8, err error) {
	s := strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(s) != 6 {
		return 0, 0, 0, fmt.Errorf("bad hex color %q", hex)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("bad hex color %q", hex)
	}
	return uint8(v >> 16), uint8(v >> 8), uint8(v), nil
}

// BoxColor combines a hex color with an opacity into the 0xRRGGBBAA token
// the drawtext box expects. A malformed color falls back to black so the
// caption still renders.
func BoxColor(hex string, alpha float64) string {
	r, g, b, err := ParseHexColor(hex)
	if err != nil {
		r, g, b = 0, 0, 0
	}
	if alpha < 0 {
		alpha = 0
	} else if alpha > 1 {
		alpha = 1
	}
	a := uint8(math.Round(alpha * 255))
	return fmt.Sprintf("0x%02x%02x%02x%02x", r, g, b, a)
}

// EscapeDrawtext escapes caption text for embedding in a drawtext filter
// expression: backslashes, colons and quotes are escaped and newlines
// become the filter's line-break sequence.
func EscapeDrawtext(text string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		`:`, `\:`,
		`'`, `\'`,
		"\n", `\n`,
	)
	return r.Replace(text)
}
