//go:build !linux

package dispatcher

import "errors"

var errThreadPriorityUnsupported = errors.New("thread priority is not supported on this platform")

func raiseThreadPriority(boost int) error {
	return errThreadPriorityUnsupported
}
