// Package behavior implements a lightweight activation pattern: priority
// ordered [Behavior] values, hosted by a [Container] that owns their
// lifecycle and exposes a frozen time to them.
//
// A Container may be driven directly, via [Container.Start],
// [Container.Tick] and [Container.End], or hosted by a loop.Loop, see
// [Container.Module].
package behavior
