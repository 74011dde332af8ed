package review

import "os/exec"

// SystemOpener hands files to the desktop's default viewer.
type SystemOpener struct{}

func (SystemOpener) Open(path string) error {
	return exec.Command("open", path).Start()
}
