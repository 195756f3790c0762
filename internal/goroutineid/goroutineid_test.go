package goroutineid

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_stable(t *testing.T) {
	a := Get()
	b := Get()
	require.NotZero(t, a)
	assert.Equal(t, a, b)
}

func TestGet_distinct(t *testing.T) {
	const n = 32
	ids := make([]uint64, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids[i] = Get()
		}()
	}
	wg.Wait()
	seen := make(map[uint64]struct{}, n)
	for _, id := range ids {
		require.NotZero(t, id)
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, n)
	assert.NotContains(t, seen, Get())
}

func TestParse(t *testing.T) {
	for _, tc := range [...]struct {
		name  string
		input string
		want  uint64
		panic bool
	}{
		{name: `typical`, input: "goroutine 18 [running]:\nmain.main()", want: 18},
		{name: `large`, input: "goroutine 18446744073709551 [running]:", want: 18446744073709551},
		{name: `empty`, input: ``, panic: true},
		{name: `zero`, input: `goroutine 0 [running]:`, panic: true},
		{name: `bad prefix`, input: `thread 1 [running]:`, panic: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if tc.panic {
				assert.Panics(t, func() { parse([]byte(tc.input)) })
				return
			}
			assert.Equal(t, tc.want, parse([]byte(tc.input)))
		})
	}
}
