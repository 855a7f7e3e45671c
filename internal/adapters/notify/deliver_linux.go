//go:build linux

package notify

import "os/exec"

// platformDeliver posts a desktop notification via notify-send.
func platformDeliver(title, body string) error {
	return exec.Command("notify-send", title, body).Run()
}
