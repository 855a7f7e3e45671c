//go:build !windows

package jsonstore

import "syscall"

// pidAlive reports whether a process with the given PID exists. EPERM
// means the process exists but belongs to another user.
func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || err == syscall.EPERM
}
