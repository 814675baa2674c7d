package tui

// Key binding constants used in the key handlers.
const (
	KeyCtrlC   = "ctrl+c"
	KeyEnter   = "enter"
	KeyEsc     = "esc"
	KeyTab     = "tab"
	KeyBackTab = "shift+tab"
	KeyUp      = "up"
	KeyDown    = "down"
	KeyJ       = "j"
	KeyK       = "k"

	KeyRecord      = "r"
	KeyPause       = "p"
	KeyStop        = "s"
	KeyCancel      = "x"
	KeyDelete      = "d"
	KeyClearAll    = "C"
	KeySummarize   = "m"
	KeyDismiss     = "D"
	KeyExport      = "e"
	KeyShareLink   = "l"
	KeyLeave       = "q"
	KeyConfirmYes  = "y"
	KeyConfirmNo   = "n"
	KeyConfirmYesU = "Y"
	KeyConfirmNoU  = "N"
)
