// Package color is a leaf package: an opaque presentation color with no
// dependency on any other collimeng package, so both material (which needs
// it on every Material) and project (which surfaces it to a UI) can import
// it without creating a cycle between them.
package color

// Color is an opaque (R,G,B,A) presentation color. The engine never
// interprets it; it round-trips through material documents purely for the
// editor's benefit.
type Color struct {
	R uint8 `json:"r" bson:"r"`
	G uint8 `json:"g" bson:"g"`
	B uint8 `json:"b" bson:"b"`
	A uint8 `json:"a" bson:"a"`
}

// NewColor constructs a Color from its components.
func NewColor(r, g, b, a uint8) Color {
	return Color{R: r, G: g, B: b, A: a}
}

var (
	// White is the default color for materials with no declared presentation color.
	White = NewColor(0xFF, 0xFF, 0xFF, 0xFF)

	// Gray is used for structural / shielding materials by convention.
	Gray = NewColor(0x80, 0x80, 0x80, 0xFF)
)
