package cfb

type Color int

const (
	Red Color = iota
	Black
)

func (c Color) AsByte() byte {
	switch c {
	case Red:
		return COLOR_RED
	case Black:
		return COLOR_BLACK
	default:
		return COLOR_BLACK
	}
}

func ColorFromByte(b byte) Color {
	switch b {
	case COLOR_RED:
		return Red
	case COLOR_BLACK:
		return Black
	default:
		return -1
	}
}

func (c Color) String() string {
	switch c {
	case Red:
		return "red"
	case Black:
		return "black"
	default:
		return "invalid"
	}
}
