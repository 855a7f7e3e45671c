//go:build !darwin && !linux

package notify

import "log"

// platformDeliver logs the notification on platforms without a known
// notification command.
func platformDeliver(title, body string) error {
	log.Printf("notify: %s: %s", title, body)
	return nil
}
