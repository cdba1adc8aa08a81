// Package dispatcher routes work to execution lanes and delivers results on a
// single coordination context, the main loop.
//
// Four lanes are available:
//
//	LaneNormal          normal pool, up to 4 tasks at once (default)
//	LaneUrgent          urgent pool, up to 2 tasks at once, raised thread priority
//	LaneMainQueue       back of the main loop
//	LaneMainQueueFront  front of the main loop
//
// Lanes only select a destination. Within a lane tasks are admitted in FIFO
// order and never preempt each other. Pool workers are started on demand and
// exit after two idle seconds.
//
// # Quick Start
//
// Bind the main loop at startup, before any main-queue work or callback:
//
//	mainLoop := dispatcher.NewMainLoop()
//	d := dispatcher.GetInstanceWithMainLoop(mainLoop)
//
//	d.ExecuteOnLane(func(ctx context.Context) {
//		// Urgent background work
//	}, dispatcher.LaneUrgent)
//
// A dispatcher obtained with GetInstance before a main loop exists can run pool
// work; main-queue lanes and callbacks fail with ErrMainLoopRequired until a
// later GetInstanceWithMainLoop binds one. The pools are created only once.
//
// # Callbacks
//
// DeliverSuccess and DeliverError post a callback invocation to the back of the
// main loop. ExecuteWithCallback combines background work and delivery:
//
//	dispatcher.ExecuteWithCallback(d, dispatcher.LaneNormal,
//		func(ctx context.Context) (string, *dispatcher.TypedError) {
//			return loadProfile(ctx)
//		},
//		dispatcher.CallbackFuncs[string]{
//			Success: func(name string) { showProfile(name) },
//			Error:   func(err *dispatcher.TypedError) { showError(err) },
//		},
//	)
//
// # Cancellation
//
// Cancel removes a pool task that has not started yet, by the TaskID returned
// on submission. It is advisory: a task that already started runs to completion.
package dispatcher
