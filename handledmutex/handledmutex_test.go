package handledmutex

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// onGoroutine runs fn on a new goroutine, returning a channel that is closed
// once it returns.
func onGoroutine(fn func()) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	return done
}

func requireClosed(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal(`timed out`)
	}
}

func requireOpen(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
		t.Fatal(`expected to be blocked`)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHandledMutex_notRecursive(t *testing.T) {
	var m HandledMutex
	require.True(t, m.Lock())
	assert.True(t, m.Owned())
	assert.False(t, m.Lock())
	assert.False(t, m.TryLock())
	require.True(t, m.Unlock())
	assert.False(t, m.Unlock())
	assert.False(t, m.Owned())

	require.True(t, m.LockShared())
	assert.False(t, m.LockShared())
	assert.False(t, m.TryLockShared())
	assert.Equal(t, 1, m.SharedCount())
	require.True(t, m.UnlockShared())
	assert.False(t, m.UnlockShared())
	assert.Zero(t, m.SharedCount())
}

func TestHandledMutex_exclusiveBlocksOthers(t *testing.T) {
	var m HandledMutex
	require.True(t, m.Lock())

	requireClosed(t, onGoroutine(func() {
		assert.False(t, m.TryLock())
		assert.False(t, m.TryLockShared())
		assert.False(t, m.Unlock(), `not the owner`)
	}))

	shared := make(chan struct{})
	done := onGoroutine(func() {
		assert.True(t, m.LockShared())
		close(shared)
		assert.True(t, m.UnlockShared())
	})
	requireOpen(t, shared)
	require.True(t, m.Unlock())
	requireClosed(t, done)
}

func TestHandledMutex_upgradeInPlace(t *testing.T) {
	var m HandledMutex
	require.True(t, m.LockShared())

	release := make(chan struct{})
	otherShared := make(chan struct{})
	other := onGoroutine(func() {
		assert.True(t, m.LockShared())
		close(otherShared)
		<-release
		assert.True(t, m.UnlockShared())
	})
	requireClosed(t, otherShared)

	// the upgrade waits for the other shared holder, on this goroutine
	time.AfterFunc(50*time.Millisecond, func() { close(release) })
	require.True(t, m.Lock())
	requireClosed(t, other)
	assert.True(t, m.Owned())
	assert.Equal(t, 1, m.SharedCount())

	// falls back to shared standing
	require.True(t, m.Unlock())
	assert.Equal(t, 1, m.SharedCount())
	requireClosed(t, onGoroutine(func() {
		assert.False(t, m.TryLock())
		assert.True(t, m.TryLockShared())
		assert.True(t, m.UnlockShared())
	}))
	require.True(t, m.UnlockShared())
	requireClosed(t, onGoroutine(func() {
		assert.True(t, m.TryLock())
		assert.True(t, m.Unlock())
	}))
}

func TestHandledMutex_sharedWhileOwner(t *testing.T) {
	var m HandledMutex
	require.True(t, m.Lock())
	require.True(t, m.LockShared())
	require.True(t, m.UnlockShared())
	require.True(t, m.Unlock())
	requireClosed(t, onGoroutine(func() {
		assert.True(t, m.TryLock())
		assert.True(t, m.Unlock())
	}))

	require.True(t, m.Lock())
	require.True(t, m.LockShared())
	require.True(t, m.Unlock())
	assert.Equal(t, 1, m.SharedCount())
	requireClosed(t, onGoroutine(func() {
		assert.False(t, m.TryLock())
	}))
	require.True(t, m.UnlockShared())
}

func TestHandledMutex_guards(t *testing.T) {
	var m HandledMutex
	g := m.GetLock()
	require.True(t, g.Held())
	inert := m.GetLock()
	assert.False(t, inert.Held())
	inert.Unlock()
	assert.True(t, m.Owned())

	var moved LockGuard
	moved.Assign(g)
	assert.False(t, g.Held())
	assert.True(t, moved.Held())
	g.Unlock()
	assert.True(t, m.Owned())
	moved.Unlock()
	moved.Unlock()
	assert.False(t, m.Owned())

	sg := m.GetSharedLock()
	require.True(t, sg.Held())
	assert.False(t, m.GetSharedLock().Held())
	_, ok := m.TryGetSharedLock()
	assert.False(t, ok)
	_, ok = m.TryGetLock()
	assert.False(t, ok)
	sg.Unlock()
	assert.Zero(t, m.SharedCount())

	tg, ok := m.TryGetLock()
	require.True(t, ok)
	requireClosed(t, onGoroutine(tg.Unlock))
	assert.False(t, m.Owned())
}

func TestHandledMutex_sharedGuardAssign(t *testing.T) {
	var a, b HandledMutex
	ga := a.GetSharedLock()
	gb := b.GetSharedLock()
	ga.Assign(gb)
	assert.Zero(t, a.SharedCount())
	assert.Equal(t, 1, b.SharedCount())
	assert.False(t, gb.Held())
	ga.Unlock()
	assert.Zero(t, b.SharedCount())
}

func TestHandledMutex_contention(t *testing.T) {
	var (
		m     HandledMutex
		value int
		wg    sync.WaitGroup
	)
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 250 {
				if i%2 == 0 {
					g := m.GetLock()
					value++
					g.Unlock()
				} else {
					g := m.GetSharedLock()
					_ = value
					g.Unlock()
				}
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1000, value)
	assert.Zero(t, m.SharedCount())
}
