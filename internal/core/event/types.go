package event

// Platform input events delivered by a window backend.

// Quit asks the frame loop to stop.
type Quit struct {
	Reason string
}

type KeyCode int

const (
	KeyRune KeyCode = iota // printable character in Key.Rune
	KeyEscape
	KeyEnter
	KeyBackspace
	KeyTab
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyOther
)

type Modifier int

const (
	ModShift Modifier = 1 << iota
	ModCtrl
	ModAlt
)

type Key struct {
	Code KeyCode
	Rune rune
	Mods Modifier
}

type Resize struct {
	Width, Height int
}
