package dispatcher

import (
	"context"
	"fmt"

	"github.com/Swind/go-lane-dispatcher/core"
)

// ResultCallback receives the outcome of background work on the main loop.
// Exactly one method is invoked per delivery.
//
// A nil interface and a nil *CallbackFuncs both mean "no callback". Any other
// typed nil pointer is delivered to like a live value.
type ResultCallback[T any] interface {
	OnSuccess(value T)
	OnError(err *TypedError)
}

// CallbackFuncs adapts a pair of functions to ResultCallback.
// A nil function is skipped.
type CallbackFuncs[T any] struct {
	Success func(value T)
	Error   func(err *TypedError)
}

func (c CallbackFuncs[T]) OnSuccess(value T) {
	if c.Success != nil {
		c.Success(value)
	}
}

func (c CallbackFuncs[T]) OnError(err *TypedError) {
	if c.Error != nil {
		c.Error(err)
	}
}

// Result is either a value or a TypedError.
type Result[T any] struct {
	Value  T
	Err    *TypedError
	failed bool
}

// Success returns a successful Result.
func Success[T any](value T) Result[T] {
	return Result[T]{Value: value}
}

// Failure returns a failed Result. err may be nil; the result still counts as failed.
func Failure[T any](err *TypedError) Result[T] {
	return Result[T]{Err: err, failed: true}
}

// Failed reports whether r carries an error.
func (r Result[T]) Failed() bool {
	return r.failed
}

func noCallback[T any](cb ResultCallback[T]) bool {
	if cb == nil {
		return true
	}
	funcs, ok := cb.(*CallbackFuncs[T])
	return ok && funcs == nil
}

// delivery is the message posted to the main loop: a callback and the result
// it must receive.
type delivery[T any] struct {
	callback ResultCallback[T]
	result   Result[T]
}

func (m delivery[T]) run(ctx context.Context) {
	if m.result.failed {
		m.callback.OnError(m.result.Err)
		return
	}
	m.callback.OnSuccess(m.result.Value)
}

// DeliverSuccess schedules cb.OnSuccess(value) at the back of the main loop.
//
// A nil cb is a no-op. Without a bound main loop it returns ErrMainLoopRequired.
// Delivery is always asynchronous, also when called from the main loop itself.
func DeliverSuccess[T any](d *Dispatcher, cb ResultCallback[T], value T) error {
	return Deliver(d, cb, Success(value))
}

// DeliverError schedules cb.OnError(err) at the back of the main loop.
// It follows the same rules as DeliverSuccess.
func DeliverError[T any](d *Dispatcher, cb ResultCallback[T], err *TypedError) error {
	return Deliver(d, cb, Failure[T](err))
}

// Deliver posts result to cb on the main loop.
func Deliver[T any](d *Dispatcher, cb ResultCallback[T], result Result[T]) error {
	if noCallback(cb) {
		return nil
	}
	loop := d.MainLoop()
	if loop == nil {
		return fmt.Errorf("deliver result: %w", ErrMainLoopRequired)
	}
	loop.PostTask(delivery[T]{callback: cb, result: result}.run)
	return nil
}

// ExecuteWithCallback runs fn on lane and delivers its outcome to cb on the
// main loop: OnError when fn returns a non-nil TypedError, OnSuccess otherwise.
// If fn panics nothing is delivered.
//
// The main loop must be bound when cb is non-nil; the check happens before
// anything is queued.
func ExecuteWithCallback[T any](
	d *Dispatcher,
	lane core.Lane,
	fn func(ctx context.Context) (T, *TypedError),
	cb ResultCallback[T],
) (core.TaskID, error) {
	if fn == nil {
		return core.TaskID{}, ErrNilTask
	}
	if !noCallback(cb) && d.NeedsRebind() {
		return core.TaskID{}, fmt.Errorf("execute with callback: %w", ErrMainLoopRequired)
	}

	return d.ExecuteOnLane(func(ctx context.Context) {
		value, terr := fn(ctx)

		result := Success(value)
		if terr != nil {
			result = Failure[T](terr)
		}
		if err := Deliver(d, cb, result); err != nil {
			d.logger.Error("result delivery failed", core.F("lane", lane), core.F("error", err))
		}
	}, lane)
}
