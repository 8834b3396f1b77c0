// Package colorize renders classifier output on a terminal.
package colorize

import (
	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/styles"

	"github.com/zboralski/hltest/internal/highlight"
)

func init() {
	// Register our preview style on package initialization
	_ = Preview
}

// Each palette color is carried through chroma as a token type; the style
// paints that type with the color as background, white text on top.
var paletteTokens = []struct {
	color highlight.Color
	token chroma.TokenType
}{
	{highlight.Grey, chroma.Comment},
	{highlight.Red, chroma.NameTag},
	{highlight.Green, chroma.LiteralString},
	{highlight.Blue, chroma.LiteralNumber},
	{highlight.White, chroma.TextWhitespace},
	{highlight.Black, chroma.Text},
}

// Preview is the style used to render classified bytes.
var Preview = styles.Register(chroma.MustNewStyle("hltest", chroma.StyleEntries{
	chroma.Background:     "#ffffff bg:#000000",
	chroma.Text:           "#ffffff bg:#000000", // black
	chroma.Comment:        "#ffffff bg:#808080", // grey markers
	chroma.NameTag:        "#ffffff bg:#ff0000", // red
	chroma.LiteralString:  "#ffffff bg:#00ff00", // green
	chroma.LiteralNumber:  "#ffffff bg:#0000ff", // blue and digits
	chroma.TextWhitespace: "#000000 bg:#ffffff", // white
	chroma.Error:          "#ff80c0 bg:#000000", // not in the palette
}))

func tokenFor(c highlight.Color) chroma.TokenType {
	for _, p := range paletteTokens {
		if p.color == c {
			return p.token
		}
	}
	return chroma.Error
}
