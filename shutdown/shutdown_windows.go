package shutdown

import "os"

// Windows delivers Ctrl+C and console close as os.Interrupt only.
var signals = []os.Signal{os.Interrupt}
