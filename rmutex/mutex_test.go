package rmutex

import (
	"errors"
	"sync"
	"testing"

	"github.com/joeycumines/go-tickloop/internal/goroutineid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMutex_recursiveDepth(t *testing.T) {
	var m Mutex
	for depth := 1; depth <= 4; depth++ {
		_, err := m.Lock()
		require.NoError(t, err)
		assert.Equal(t, depth, m.State().Depth)
	}
	assert.Equal(t, goroutineid.Get(), m.State().Owner)
	for range 4 {
		require.False(t, m.State().Free())
		require.NoError(t, m.Unlock())
	}
	assert.True(t, m.State().Free())

	err := m.Unlock()
	require.ErrorIs(t, err, ErrInvalidOperation)
	require.ErrorIs(t, err, ErrNotLocked)
	var target *InvalidOperationError
	require.ErrorAs(t, err, &target)
	assert.Equal(t, `Unlock`, target.Op)
	assert.True(t, m.State().Free())
}

func TestMutex_excludesOtherGoroutines(t *testing.T) {
	var m Mutex
	a, b := newHolder(t), newHolder(t)

	require.NoError(t, a.do(func() error { _, err := m.Lock(); return err }))
	require.NoError(t, b.do(func() error {
		g, ok, err := m.TryLock()
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, g)
		return nil
	}))

	locked := b.async(func() error { _, err := m.Lock(); return err })
	requireBlocked(t, locked)
	require.NoError(t, a.do(m.Unlock))
	require.NoError(t, requireDone(t, locked))

	// only the owner may unlock
	require.ErrorIs(t, a.do(m.Unlock), ErrNotLocked)
	require.NoError(t, b.do(m.Unlock))
	assert.True(t, m.State().Free())
}

func TestSharedMutex_lockAfterShared(t *testing.T) {
	var m SharedMutex
	g, err := m.SharedLock()
	require.NoError(t, err)
	before := m.State()

	_, err = m.Lock()
	require.ErrorIs(t, err, ErrLockAfterShared)
	require.ErrorIs(t, err, ErrInvalidOperation)

	lg, ok, err := m.TryLock()
	require.ErrorIs(t, err, ErrTryLockAfterShared)
	assert.False(t, ok)
	assert.Nil(t, lg)

	assert.Equal(t, before, m.State())
	require.NoError(t, g.Unlock())
	assert.True(t, m.State().Free())
}

func TestSharedMutex_concurrentShared(t *testing.T) {
	var m SharedMutex
	a, b, c := newHolder(t), newHolder(t), newHolder(t)
	require.NoError(t, a.do(func() error { _, err := m.SharedLock(); return err }))
	require.NoError(t, b.do(func() error { _, err := m.SharedLock(); return err }))
	assert.Len(t, m.State().Shared, 2)

	require.NoError(t, c.do(func() error {
		_, ok, err := m.TryLock()
		assert.False(t, ok)
		return err
	}))

	locked := c.async(func() error { _, err := m.Lock(); return err })
	requireBlocked(t, locked)
	require.NoError(t, a.do(m.SharedUnlock))
	requireBlocked(t, locked)
	require.NoError(t, b.do(m.SharedUnlock))
	require.NoError(t, requireDone(t, locked))

	// shared waits for the exclusive owner
	shared := a.async(func() error { _, err := m.SharedLock(); return err })
	requireBlocked(t, shared)
	require.NoError(t, c.do(m.Unlock))
	require.NoError(t, requireDone(t, shared))
	require.NoError(t, a.do(m.SharedUnlock))
	assert.True(t, m.State().Free())
}

func TestSharedMutex_sharedRecursive(t *testing.T) {
	var m SharedMutex
	for range 3 {
		_, err := m.SharedLock()
		require.NoError(t, err)
	}
	assert.Equal(t, map[uint64]int{goroutineid.Get(): 3}, m.State().Shared)
	for range 3 {
		require.NoError(t, m.SharedUnlock())
	}
	require.ErrorIs(t, m.SharedUnlock(), ErrNotLocked)
	assert.True(t, m.State().Free())
}

func TestSharedMutex_sharedWhileExclusive(t *testing.T) {
	var m SharedMutex
	other := newHolder(t)

	_, err := m.Lock()
	require.NoError(t, err)
	sg, ok, err := m.TrySharedLock()
	require.NoError(t, err)
	require.True(t, ok)

	// the shared hold outlives the exclusive one
	require.NoError(t, m.Unlock())
	s := m.State()
	assert.Zero(t, s.Owner)
	assert.Equal(t, map[uint64]int{goroutineid.Get(): 1}, s.Shared)

	require.NoError(t, other.do(func() error {
		_, ok, err := m.TryLock()
		assert.False(t, ok)
		return err
	}))

	require.NoError(t, sg.Unlock())
	assert.True(t, m.State().Free())
}

func TestUpgradableMutex_upgradeWaitsForOtherShared(t *testing.T) {
	var m UpgradableMutex
	a, b := newHolder(t), newHolder(t)

	require.NoError(t, a.do(func() error { _, err := m.UpgradableSharedLock(); return err }))
	require.NoError(t, b.do(func() error { _, err := m.SharedLock(); return err }))

	require.NoError(t, a.do(func() error {
		_, ok, err := m.TryLock()
		assert.False(t, ok)
		return err
	}))

	upgraded := a.async(func() error { _, err := m.Lock(); return err })
	requireBlocked(t, upgraded)
	require.NoError(t, b.do(m.SharedUnlock))
	require.NoError(t, requireDone(t, upgraded))

	s := m.State()
	assert.NotZero(t, s.Owner)
	assert.Equal(t, s.Owner, s.Upgrader)
	assert.True(t, s.Upgraded)

	// new shared holders wait for the exclusive lock
	shared := b.async(func() error { _, err := m.SharedLock(); return err })
	requireBlocked(t, shared)

	// back to upgradable-shared standing, not unlocked
	require.NoError(t, a.do(m.Unlock))
	require.NoError(t, requireDone(t, shared))
	s = m.State()
	assert.Zero(t, s.Owner)
	assert.False(t, s.Upgraded)
	assert.Equal(t, 1, s.UpgradableDepth)
	assert.NotZero(t, s.Upgrader)

	require.NoError(t, b.do(m.SharedUnlock))
	require.NoError(t, a.do(m.UpgradableSharedUnlock))
	assert.True(t, m.State().Free())
}

func TestUpgradableMutex_illegalTransitions(t *testing.T) {
	t.Run(`upgradable after shared`, func(t *testing.T) {
		var m UpgradableMutex
		_, err := m.SharedLock()
		require.NoError(t, err)
		_, err = m.UpgradableSharedLock()
		require.ErrorIs(t, err, ErrUpgradableAfterShared)
		_, ok, err := m.TryUpgradableSharedLock()
		require.ErrorIs(t, err, ErrUpgradableAfterShared)
		assert.False(t, ok)
		require.NoError(t, m.SharedUnlock())
		assert.True(t, m.State().Free())
	})

	t.Run(`shared after upgradable`, func(t *testing.T) {
		var m UpgradableMutex
		_, err := m.UpgradableSharedLock()
		require.NoError(t, err)
		_, err = m.SharedLock()
		require.ErrorIs(t, err, ErrSharedAfterUpgradable)

		// allowed once upgraded, since exclusive implies shared
		_, err = m.Lock()
		require.NoError(t, err)
		sg, err := m.SharedLock()
		require.NoError(t, err)
		require.NoError(t, sg.Unlock())
		require.NoError(t, m.Unlock())
		require.NoError(t, m.UpgradableSharedUnlock())
		assert.True(t, m.State().Free())
	})

	t.Run(`unlock upgradable while upgraded`, func(t *testing.T) {
		var m UpgradableMutex
		ug, err := m.UpgradableSharedLock()
		require.NoError(t, err)
		lg, err := m.Lock()
		require.NoError(t, err)

		err = m.UpgradableSharedUnlock()
		require.ErrorIs(t, err, ErrUpgradeStillLocked)
		require.ErrorIs(t, ug.Unlock(), ErrUpgradeStillLocked)
		assert.True(t, ug.Held())

		require.NoError(t, lg.Unlock())
		require.NoError(t, ug.Unlock())
		assert.False(t, ug.Held())
		assert.True(t, m.State().Free())
	})

	t.Run(`lock after shared with upgradable held elsewhere`, func(t *testing.T) {
		var m UpgradableMutex
		other := newHolder(t)
		require.NoError(t, other.do(func() error { _, err := m.UpgradableSharedLock(); return err }))
		_, err := m.SharedLock()
		require.NoError(t, err)
		_, err = m.Lock()
		require.ErrorIs(t, err, ErrLockAfterShared)
		require.NoError(t, m.SharedUnlock())
		require.NoError(t, other.do(m.UpgradableSharedUnlock))
	})
}

func TestUpgradableMutex_singleUpgrader(t *testing.T) {
	var m UpgradableMutex
	a, b := newHolder(t), newHolder(t)

	require.NoError(t, a.do(func() error {
		for range 2 {
			if _, err := m.UpgradableSharedLock(); err != nil {
				return err
			}
		}
		return nil
	}))
	require.NoError(t, b.do(func() error {
		_, ok, err := m.TryUpgradableSharedLock()
		assert.False(t, ok)
		return err
	}))

	second := b.async(func() error { _, err := m.UpgradableSharedLock(); return err })
	requireBlocked(t, second)
	require.NoError(t, a.do(m.UpgradableSharedUnlock))
	requireBlocked(t, second)
	require.NoError(t, a.do(m.UpgradableSharedUnlock))
	require.NoError(t, requireDone(t, second))
	require.NoError(t, b.do(m.UpgradableSharedUnlock))
	assert.True(t, m.State().Free())
}

func TestUpgradableMutex_upgraderBlocksExclusive(t *testing.T) {
	var m UpgradableMutex
	a, b := newHolder(t), newHolder(t)
	require.NoError(t, a.do(func() error { _, err := m.UpgradableSharedLock(); return err }))
	locked := b.async(func() error { _, err := m.Lock(); return err })
	requireBlocked(t, locked)
	require.NoError(t, a.do(m.UpgradableSharedUnlock))
	require.NoError(t, requireDone(t, locked))
	require.NoError(t, b.do(m.Unlock))
}

func TestUpgradableMutex_contention(t *testing.T) {
	var (
		m       UpgradableMutex
		counter int
		wg      sync.WaitGroup
		errs    = make(chan error, 64)
	)
	const workers, iterations = 8, 200
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range iterations {
				var err error
				switch i % 3 {
				case 0:
					err = m.LockAndDo(func() error {
						return m.LockAndDo(func() error {
							counter++
							return nil
						})
					})
				case 1:
					var g *SharedLockGuard
					if g, err = m.SharedLock(); err == nil {
						_ = counter
						err = g.Unlock()
					}
				case 2:
					var ug *UpgradableSharedLockGuard
					if ug, err = m.UpgradableSharedLock(); err == nil {
						var lg *LockGuard
						if lg, err = m.Lock(); err == nil {
							counter++
							err = lg.Unlock()
						}
						err = errors.Join(err, ug.Unlock())
					}
				}
				if err != nil {
					errs <- err
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	var want int
	for i := range workers {
		if i%3 != 1 {
			want += iterations
		}
	}
	assert.Equal(t, want, counter)
	assert.True(t, m.State().Free())
}
