package zmachine

import "fmt"

// TextStyle is a bitmask of set_text_style's four style bits.
type TextStyle int

const (
	Roman        TextStyle = 0b0000_0000
	ReverseVideo TextStyle = 0b0000_0001
	Bold         TextStyle = 0b0000_0010
	Italic       TextStyle = 0b0000_0100
	FixedPitch   TextStyle = 0b0000_1000
)

// Color is an 8-bit-per-channel RGB color, the host-facing representation
// of a set_colour argument once resolved against the current window.
type Color struct {
	r int
	g int
	b int
}

func (c Color) ToHex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.r, c.g, c.b)
}

// Font is one of the Z-machine's four selectable fonts (set_font).
type Font uint16

const (
	FontNormal     Font = 1
	FontPicture    Font = 2
	FontCharGraphs Font = 3
	FontFixedPitch Font = 4
)

// namedColors covers set_colour's fixed palette (values 2-12); 0 and 1
// (current/default) are resolved against window state in resolveColor.
var namedColors = map[uint16]Color{
	2:  {0, 0, 0},       // black
	3:  {255, 0, 0},     // red
	4:  {0, 255, 0},     // green
	5:  {255, 255, 0},   // yellow
	6:  {0, 0, 255},     // blue
	7:  {255, 0, 255},   // magenta
	8:  {0, 255, 255},   // cyan
	9:  {255, 255, 255}, // white
	10: {192, 192, 192}, // light grey
	11: {128, 128, 128}, // medium grey
	12: {64, 64, 64},    // dark grey
}

// ScreenModel is the host-facing view of the two-window display model.
// Deliberately not a v6 model: no graphics window geometry, no mouse.
type ScreenModel struct {
	LowerWindowActive bool
	CurrentFont       Font

	UpperWindowHeight            int
	UpperWindowForeground        Color
	UpperWindowBackground        Color
	DefaultUpperWindowForeground Color
	DefaultUpperWindowBackground Color
	UpperWindowCursorX           int
	UpperWindowCursorY           int
	UpperWindowTextStyle         TextStyle

	DefaultLowerWindowForeground Color
	DefaultLowerWindowBackground Color
	LowerWindowForeground        Color
	LowerWindowBackground        Color
	LowerWindowTextStyle         TextStyle
}

// resolveColor turns a set_colour argument (0 = current, 1 = default, or
// one of the fixed palette entries 2-12) into a concrete Color for the
// window currently selected by isForeground/the model's active window.
func (m *ScreenModel) resolveColor(value uint16, isForeground bool) Color {
	switch value {
	case 0: // current
		upper := !m.LowerWindowActive
		switch {
		case isForeground && upper:
			return m.UpperWindowForeground
		case isForeground:
			return m.LowerWindowForeground
		case upper:
			return m.UpperWindowBackground
		default:
			return m.LowerWindowBackground
		}

	case 1: // default
		upper := !m.LowerWindowActive
		switch {
		case isForeground && upper:
			return m.DefaultUpperWindowForeground
		case isForeground:
			return m.DefaultLowerWindowForeground
		case upper:
			return m.DefaultUpperWindowBackground
		default:
			return m.DefaultLowerWindowBackground
		}

	default:
		if c, ok := namedColors[value]; ok {
			return c
		}
		return Color{0, 0, 0}
	}
}

func newScreenModel(foregroundColor Color, backgroundColor Color) ScreenModel {
	return ScreenModel{
		LowerWindowActive:            true,
		CurrentFont:                  FontNormal,
		UpperWindowHeight:            0,
		DefaultUpperWindowForeground: foregroundColor,
		DefaultUpperWindowBackground: backgroundColor,
		UpperWindowForeground:        foregroundColor,
		UpperWindowBackground:        backgroundColor,
		UpperWindowCursorX:           1,
		UpperWindowCursorY:           1,
		UpperWindowTextStyle:         Roman,
		DefaultLowerWindowForeground: backgroundColor,
		DefaultLowerWindowBackground: foregroundColor,
		LowerWindowForeground:        backgroundColor,
		LowerWindowBackground:        foregroundColor,
		LowerWindowTextStyle:         Roman,
	}
}
