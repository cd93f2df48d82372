// Package browser opens the system web browser at a given URL.
package browser

import (
	"os/exec"
	"runtime"
)

// Open returns a command that launches the default browser at URL. The caller
// starts the command and owns the process.
func Open(URL string) *exec.Cmd {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", URL)
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", URL)
	default:
		return exec.Command("xdg-open", URL)
	}
}
