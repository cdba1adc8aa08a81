//go:build linux

package dispatcher

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// raiseThreadPriority pins the calling goroutine to its OS thread and lowers
// that thread's nice value by boost. The thread stays locked so it is
// discarded, not reused, when the goroutine exits.
func raiseThreadPriority(boost int) error {
	runtime.LockOSThread()
	if err := unix.Setpriority(unix.PRIO_PROCESS, unix.Gettid(), -boost); err != nil {
		runtime.UnlockOSThread()
		return err
	}
	return nil
}
