package colorize

import (
	"strings"
	"testing"

	"github.com/alecthomas/chroma/v2"

	"github.com/zboralski/hltest/internal/highlight"
)

func TestTokensGroupRuns(t *testing.T) {
	input := []byte("RRx 55")
	colors := []highlight.Color{
		highlight.Red, highlight.Red,
		highlight.Black,
		highlight.White,
		highlight.Blue, highlight.Blue,
	}
	tokens := Tokens(input, colors)
	want := []chroma.Token{
		{Type: chroma.NameTag, Value: "RR"},
		{Type: chroma.Text, Value: "x"},
		{Type: chroma.TextWhitespace, Value: " "},
		{Type: chroma.LiteralNumber, Value: "55"},
	}
	if len(tokens) != len(want) {
		t.Fatalf("Expected %d tokens, got %v", len(want), tokens)
	}
	for i := range want {
		if tokens[i] != want[i] {
			t.Errorf("token %d = %v, expected %v", i, tokens[i], want[i])
		}
	}
}

func TestTokensEmpty(t *testing.T) {
	if tokens := Tokens(nil, nil); len(tokens) != 0 {
		t.Errorf("Expected no tokens, got %v", tokens)
	}
}

func TestTokenForUnknownColor(t *testing.T) {
	if got := tokenFor(highlight.Color{R: 1, G: 2, B: 3}); got != chroma.Error {
		t.Errorf("Expected error token for foreign color, got %v", got)
	}
}

func TestStyleRegistered(t *testing.T) {
	if s := getPreviewStyle(); s.Name != "hltest" {
		t.Errorf("Expected hltest style, got %q", s.Name)
	}
}

func TestRenderDisabled(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	got := Render([]byte("TRGB"), []highlight.Color{highlight.Grey, highlight.Red, highlight.Green, highlight.Blue})
	if got != "TRGB" {
		t.Errorf("Expected plain text, got %q", got)
	}
}

func TestRenderColored(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	t.Setenv("HLTEST_NO_COLOR", "")
	got := Render([]byte("R5"), []highlight.Color{highlight.Red, highlight.Blue})
	if !strings.Contains(got, "\x1b[") {
		t.Errorf("Expected escape sequences, got %q", got)
	}
	if !strings.Contains(got, "R") || !strings.Contains(got, "5") {
		t.Errorf("Expected input text in output, got %q", got)
	}
}

func TestLegendPlain(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	colors := []highlight.Color{
		highlight.Grey, highlight.Red, highlight.Red,
		highlight.Black, {R: 9, G: 9, B: 9},
	}
	want := "grey 1  red 2  black 1  other 1"
	if got := Legend(colors); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}
