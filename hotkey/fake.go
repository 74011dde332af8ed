package hotkey

import "sync/atomic"

// Fake is a Hotkey driven by Press and Release instead of a keyboard.
type Fake struct {
	// RegisterErr, when set, is returned by Register.
	RegisterErr error

	registered atomic.Bool
	down       chan struct{}
	up         chan struct{}
}

func NewFake() *Fake {
	return &Fake{
		down: make(chan struct{}, 1),
		up:   make(chan struct{}, 1),
	}
}

func (f *Fake) Register() error {
	if f.RegisterErr != nil {
		return f.RegisterErr
	}
	f.registered.Store(true)
	return nil
}

func (f *Fake) Unregister()              { f.registered.Store(false) }
func (f *Fake) Registered() bool         { return f.registered.Load() }
func (f *Fake) Keydown() <-chan struct{} { return f.down }
func (f *Fake) Keyup() <-chan struct{}   { return f.up }

func (f *Fake) Press()   { f.down <- struct{}{} }
func (f *Fake) Release() { f.up <- struct{}{} }

// Tap presses and releases the combo.
func (f *Fake) Tap() {
	f.Press()
	f.Release()
}
