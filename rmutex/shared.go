package rmutex

// Shared is a value of type T guarded by a SharedMutex. The zero value holds
// the zero T. Misuse of the lock, e.g. calling Set from within a shared hold
// acquired via Mutex, panics with the *InvalidOperationError.
type Shared[T any] struct {
	// Mutex guards value, and may be used directly to compose operations.
	Mutex SharedMutex
	value T
}

// NewShared returns a Shared initialised to value.
func NewShared[T any](value T) *Shared[T] {
	return &Shared[T]{value: value}
}

// Get returns the value, under a shared lock.
func (x *Shared[T]) Get() T {
	g, err := x.Mutex.SharedLock()
	if err != nil {
		panic(err)
	}
	defer mustUnlock(g.Unlock)
	return x.value
}

// Set replaces the value, under the exclusive lock.
func (x *Shared[T]) Set(value T) {
	x.Update(func(T) T { return value })
}

// Swap replaces the value, returning the previous one.
func (x *Shared[T]) Swap(value T) (old T) {
	x.Update(func(v T) T {
		old = v
		return value
	})
	return old
}

// Update replaces the value with the result of fn, under the exclusive lock.
// Since the lock is recursive, fn may call Get.
func (x *Shared[T]) Update(fn func(T) T) {
	g, err := x.Mutex.Lock()
	if err != nil {
		panic(err)
	}
	defer mustUnlock(g.Unlock)
	x.value = fn(x.value)
}

func mustUnlock(unlock func() error) {
	if err := unlock(); err != nil {
		panic(err)
	}
}
