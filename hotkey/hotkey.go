// Package hotkey turns a global key combination into dictation start and
// stop events.
package hotkey

// Combo is the key combination every backend listens for.
const Combo = "Ctrl+Shift+D"

type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}
