package rmutex

// Contained may be embedded to give a type its own recursive lock, along
// with the LockAndDo helper. The zero value is ready to use.
//
//	type counter struct {
//		rmutex.Contained
//		n int
//	}
//
//	func (x *counter) Inc() error {
//		return x.LockAndDo(func() error {
//			x.n++
//			return nil
//		})
//	}
type Contained struct {
	mu UpgradableMutex
}

// Mutex returns the embedded lock, for callers that need modes other than
// exclusive.
func (x *Contained) Mutex() *UpgradableMutex { return &x.mu }

// LockAndDo calls fn while holding the embedded lock exclusively. The lock is
// released however fn exits. Calls may nest, within the same goroutine.
func (x *Contained) LockAndDo(fn func() error) error { return x.mu.LockAndDo(fn) }
