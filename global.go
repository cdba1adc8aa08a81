package dispatcher

import (
	"sync"

	"github.com/Swind/go-lane-dispatcher/core"
)

// =============================================================================
// Global Dispatcher Helper (Singleton)
// =============================================================================

var (
	globalDispatcher *Dispatcher
	globalMu         sync.Mutex
)

// GetInstance returns the process-wide dispatcher, creating it with
// DefaultConfig and no main loop if it does not exist yet.
func GetInstance() *Dispatcher {
	return GetInstanceWithMainLoop(nil)
}

// GetInstanceWithMainLoop returns the process-wide dispatcher.
//
// If none exists it is created bound to loop. If one exists but was created
// without a main loop, loop is bound to it; its pools are kept. A nil loop
// behaves like GetInstance.
func GetInstanceWithMainLoop(loop core.MainLoop) *Dispatcher {
	loop = boundLoop(loop)

	globalMu.Lock()
	defer globalMu.Unlock()

	if globalDispatcher == nil {
		d, err := New(DefaultConfig(), loop)
		if err != nil {
			// DefaultConfig always validates
			panic(err)
		}
		globalDispatcher = d
		return globalDispatcher
	}

	if loop != nil && globalDispatcher.NeedsRebind() {
		globalDispatcher.BindMainLoop(loop)
	}
	return globalDispatcher
}

// ShutdownGlobalDispatcher shuts the process-wide dispatcher down and forgets
// it, so the next GetInstance creates fresh pools.
func ShutdownGlobalDispatcher() {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalDispatcher != nil {
		globalDispatcher.Shutdown()
		globalDispatcher = nil
	}
}
