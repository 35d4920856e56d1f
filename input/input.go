// Package input wraps the OS key/mouse injection surface behind narrow
// interfaces so every consumer can be driven by a fake in tests.
package input

import "golang.org/x/sys/windows"

// Keyboard synthesizes key events and reads live key state.
type Keyboard interface {
	KeyDown(vk uint8)
	KeyUp(vk uint8)
	IsDown(vk uint8) bool
}

// Mouse synthesizes left-button attack input.
type Mouse interface {
	LeftDown()
	LeftUp()
}

var (
	user32               = windows.NewLazySystemDLL("user32.dll")
	procKeybdEvent       = user32.NewProc("keybd_event")
	procMouseEvent       = user32.NewProc("mouse_event")
	procGetAsyncKeyState = user32.NewProc("GetAsyncKeyState")
)

const (
	keyEventfKeyUp       = 0x0002
	mouseEventfLeftDown  = 0x0002
	mouseEventfLeftUp    = 0x0004
)

// System talks to the real user32 injection surface.
type System struct{}

func NewSystem() *System { return &System{} }

func (*System) KeyDown(vk uint8) {
	procKeybdEvent.Call(uintptr(vk), 0, 0, 0)
}

func (*System) KeyUp(vk uint8) {
	procKeybdEvent.Call(uintptr(vk), 0, keyEventfKeyUp, 0)
}

func (*System) IsDown(vk uint8) bool {
	state, _, _ := procGetAsyncKeyState.Call(uintptr(vk))
	return state&0x8000 != 0
}

func (*System) LeftDown() {
	procMouseEvent.Call(mouseEventfLeftDown, 0, 0, 0, 0)
}

func (*System) LeftUp() {
	procMouseEvent.Call(mouseEventfLeftUp, 0, 0, 0, 0)
}
