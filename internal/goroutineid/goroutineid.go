// Package goroutineid exposes the runtime ID of the calling goroutine.
//
// The ID is parsed from the first line of the goroutine's stack trace, which
// has the stable form "goroutine <id> [<status>]:". It is used as the owner
// identity by the lock implementations in this module.
package goroutineid

import (
	"runtime"
)

// Get returns the ID of the current goroutine. It never returns 0.
func Get() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	return parse(buf[:n])
}

func parse(b []byte) (id uint64) {
	const prefix = "goroutine "
	if len(b) <= len(prefix) || string(b[:len(prefix)]) != prefix {
		panic("goroutineid: unexpected stack format")
	}
	for _, c := range b[len(prefix):] {
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + uint64(c-'0')
	}
	if id == 0 {
		panic("goroutineid: unexpected stack format")
	}
	return id
}
