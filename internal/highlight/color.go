package highlight

import "fmt"

// Color is an RGB triple assigned to one input byte.
type Color struct {
	R, G, B uint8
}

// Palette used by the classifier.
var (
	Grey  = Color{128, 128, 128}
	Red   = Color{255, 0, 0}
	Green = Color{0, 255, 0}
	Blue  = Color{0, 0, 255}
	White = Color{255, 255, 255}
	Black = Color{0, 0, 0}
)

// Bytes returns the wire form of the color: red, green, blue.
func (c Color) Bytes() [3]byte {
	return [3]byte{c.R, c.G, c.B}
}

// Hex returns the color as #rrggbb.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func (c Color) String() string {
	switch c {
	case Grey:
		return "grey"
	case Red:
		return "red"
	case Green:
		return "green"
	case Blue:
		return "blue"
	case White:
		return "white"
	case Black:
		return "black"
	}
	return c.Hex()
}

// ColorFromBytes decodes a wire triple.
func ColorFromBytes(b []byte) Color {
	return Color{R: b[0], G: b[1], B: b[2]}
}
