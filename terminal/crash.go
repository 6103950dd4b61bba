package terminal

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"

	"github.com/gdamore/tcell/v2"
)

var (
	crashOut io.Writer = os.Stderr
	exit               = os.Exit
)

// CrashHandler returns a panic handler that restores the screen, prints the
// stack trace and exits. It fits engine.WithCrashHandler
func CrashHandler(screen tcell.Screen) func(r any) {
	return func(r any) {
		if r == nil {
			return
		}

		// Restore terminal to sane state before printing
		if screen != nil {
			screen.Fini()
		}
		os.Stdout.Sync()

		fmt.Fprintf(crashOut, "\r\n\x1b[31mCRASH DETECTED: %v\x1b[0m\r\n", r)
		fmt.Fprintf(crashOut, "Stack Trace:\r\n%s\r\n", debug.Stack())
		if f, ok := crashOut.(*os.File); ok {
			f.Sync()
		}

		exit(1)
	}
}
