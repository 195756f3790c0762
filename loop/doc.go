// Package loop implements a cooperative update scheduler.
//
// A [Loop] owns a collection of [Module] values, each wrapping user-supplied
// [Hooks]. While running, the loop repeatedly ticks. Each tick:
//
//  1. freezes the logical clock, see [Loop.Time] and [Loop.TimeDiff], which
//     every hook observes unchanged for the rest of the tick
//  2. collects the scheduled tasks that are due, see [Loop.Schedule]
//  3. dispatches the enabled modules, grouped by ascending execution chunk,
//     with the due tasks forming a group immediately before chunk 0
//
// Within a group, work is dispatched according to its [ExecutionType].
// BoundedAsync work runs on a bounded worker pool, and is joined before the
// next group starts. SingleThreaded work first waits for all outstanding
// BoundedAsync work, then runs on the loop goroutine. FreeAsync work runs on
// a new goroutine, which the loop never waits for.
//
// Errors returned by, or panics raised by, a module's update hook or one of
// its tasks are routed to the module's [ExceptionHandler], if any, and are
// otherwise logged and ignored. A faulting module never stops the loop.
package loop
