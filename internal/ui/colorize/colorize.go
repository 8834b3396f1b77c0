package colorize

import (
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/lipgloss"

	"github.com/zboralski/hltest/internal/highlight"
)

// getPreviewStyle returns the preview style with fallbacks
func getPreviewStyle() *chroma.Style {
	candidates := []string{"hltest", "monokai"}
	for _, name := range candidates {
		if style := styles.Get(name); style != nil {
			return style
		}
	}
	return styles.Fallback
}

// getTerminalFormatter returns an appropriate terminal formatter
func getTerminalFormatter() chroma.Formatter {
	candidates := []string{"terminal16m", "terminal256"}
	for _, name := range candidates {
		if formatter := formatters.Get(name); formatter != nil {
			return formatter
		}
	}
	return formatters.Fallback
}

// IsDisabled returns true if colors are disabled via environment
func IsDisabled() bool {
	return os.Getenv("HLTEST_NO_COLOR") != "" || os.Getenv("NO_COLOR") != ""
}

// Tokens groups runs of bytes that share a color into chroma tokens.
func Tokens(input []byte, colors []highlight.Color) []chroma.Token {
	n := min(len(input), len(colors))
	var tokens []chroma.Token
	start := 0
	for i := 1; i <= n; i++ {
		if i < n && colors[i] == colors[start] {
			continue
		}
		tokens = append(tokens, chroma.Token{
			Type:  tokenFor(colors[start]),
			Value: string(input[start:i]),
		})
		start = i
	}
	return tokens
}

// Render paints each input byte with its color as background.
func Render(input []byte, colors []highlight.Color) string {
	if IsDisabled() {
		return string(input)
	}

	style := getPreviewStyle()
	formatter := getTerminalFormatter()

	var buf strings.Builder
	if err := formatter.Format(&buf, style, chroma.Literator(Tokens(input, colors)...)); err != nil {
		return string(input)
	}
	return buf.String()
}

// Legend summarizes how many bytes received each palette color, in palette
// order. Colors outside the palette are counted as "other".
func Legend(colors []highlight.Color) string {
	counts := make(map[highlight.Color]int)
	for _, c := range colors {
		counts[c]++
	}

	var parts []string
	known := 0
	for _, p := range paletteTokens {
		n := counts[p.color]
		if n == 0 {
			continue
		}
		known += n
		parts = append(parts, Swatch(p.color)+" "+fmt.Sprintf("%d", n))
	}
	if other := len(colors) - known; other > 0 {
		parts = append(parts, Detail("other")+" "+fmt.Sprintf("%d", other))
	}
	return strings.Join(parts, "  ")
}

// Swatch formats a color as its name on its own background
func Swatch(c highlight.Color) string {
	label := " " + c.String() + " "
	if IsDisabled() {
		return strings.TrimSpace(label)
	}
	fg := "#ffffff"
	if c == highlight.White {
		fg = "#000000"
	}
	return lipgloss.NewStyle().
		Background(lipgloss.Color(c.Hex())).
		Foreground(lipgloss.Color(fg)).
		Render(label)
}

// Pos formats a document position in yellow
func Pos(pos int) string {
	if IsDisabled() {
		return fmt.Sprintf("%6d", pos)
	}
	return fmt.Sprintf("\033[38;2;255;200;0m%6d\033[0m", pos)
}

// Tag formats a hashtag in light pink
func Tag(tag string) string {
	if IsDisabled() {
		return tag
	}
	return fmt.Sprintf("\033[38;2;255;180;200m%s\033[0m", tag)
}

// Detail formats detail text in light gray
func Detail(detail string) string {
	if IsDisabled() {
		return detail
	}
	return fmt.Sprintf("\033[38;2;180;180;180m%s\033[0m", detail)
}

// Header formats header text in blue
func Header(s string) string {
	if IsDisabled() {
		return s
	}
	return fmt.Sprintf("\033[38;2;86;156;214m%s\033[0m", s)
}

// Error formats error messages in pink
func Error(s string) string {
	if IsDisabled() {
		return s
	}
	return fmt.Sprintf("\033[38;2;255;128;192m%s\033[0m", s)
}
