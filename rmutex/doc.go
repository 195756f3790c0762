// Package rmutex implements goroutine-recursive mutual exclusion with
// exclusive, shared and upgradable-shared acquisition modes.
//
// Ownership is tracked per goroutine, see [goroutineid.Get]. A goroutine that
// holds a mode may re-enter it, and the illegal transitions between modes
// (those that could only ever deadlock or livelock the calling goroutine) are
// reported as an [*InvalidOperationError] rather than blocking.
//
// The supported modes are fixed at compile time, by type:
//
//   - [Mutex] supports exclusive locking only
//   - [SharedMutex] adds shared locking
//   - [UpgradableMutex] adds upgradable-shared locking, which is the only mode
//     a goroutine may hold while acquiring the exclusive lock
//
// Blocking acquisition uses a cooperative poll loop, yielding between
// attempts. Fairness is not guaranteed, in particular a pending upgrade may
// be starved by a steady stream of new shared holders.
//
// [goroutineid.Get]: https://pkg.go.dev/github.com/joeycumines/go-tickloop/internal/goroutineid#Get
package rmutex
