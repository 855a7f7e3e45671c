//go:build darwin

package notify

import (
	"fmt"
	"os/exec"
)

// platformDeliver posts a macOS notification via osascript.
func platformDeliver(title, body string) error {
	script := fmt.Sprintf("display notification %q with title %q", body, title)
	return exec.Command("osascript", "-e", script).Run()
}
