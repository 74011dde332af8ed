//go:build !linux

package main

import (
	"os"
	"runtime"

	"golang.design/x/hotkey/mainthread"
)

func init() {
	// the hotkey and audio backends need the main thread on macOS
	runtime.LockOSThread()
}

func main() {
	code := 0
	mainthread.Init(func() { code = run() })
	os.Exit(code)
}
