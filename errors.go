package dispatcher

import "errors"

var (
	// ErrMainLoopRequired is returned when work or a callback targets the main
	// loop but no main loop has been bound to the dispatcher.
	ErrMainLoopRequired = errors.New("main loop required")

	// ErrInvalidConfig is returned by Config.Validate and New.
	ErrInvalidConfig = errors.New("invalid dispatcher config")

	// ErrUnknownLane is returned for a Lane outside the four defined values.
	ErrUnknownLane = errors.New("unknown lane")

	// ErrDispatcherClosed is returned when submitting after Shutdown.
	ErrDispatcherClosed = errors.New("dispatcher is closed")

	// ErrNilTask is returned when a nil task is submitted.
	ErrNilTask = errors.New("task is nil")
)

// IsConfigurationError reports whether err comes from a missing main loop or
// an invalid Config. Such errors fail the call, never the process.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrMainLoopRequired) || errors.Is(err, ErrInvalidConfig)
}
