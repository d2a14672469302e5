package ctime

import (
	"sync/atomic"
	"time"
)

// Coarse cached clock. While the background ticker runs, a read is a single
// atomic load; without it reads fall through to time.Now(), so the package
// works as a plain library without goroutines of its own.

var (
	started atomic.Bool
	nowUnix atomic.Int64
)

func Start(resolution time.Duration) func() {
	nowUnix.Store(time.Now().UnixNano())
	started.Store(true)
	t := time.NewTicker(resolution)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case tt := <-t.C:
				nowUnix.Store(tt.UnixNano())
			case <-done:
				t.Stop()
				started.Store(false)
				return
			}
		}
	}()
	return func() { close(done) }
}

func Now() time.Time { return time.Unix(0, UnixNano()) }

func UnixNano() int64 {
	if frozen.Load() {
		return frozenNano.Load()
	}
	if started.Load() {
		return nowUnix.Load()
	}
	return time.Now().UnixNano()
}

var (
	frozen     atomic.Bool
	frozenNano atomic.Int64
)

// Freeze pins the clock to the given unix-milli instant and returns a restore
// func. Test helper, not for production use.
func Freeze(ms int64) func() {
	frozenNano.Store(ms * int64(time.Millisecond))
	frozen.Store(true)
	return func() { frozen.Store(false) }
}

// Advance shifts a frozen clock forward by the given amount of milliseconds.
func Advance(ms int64) {
	frozenNano.Add(ms * int64(time.Millisecond))
}

// UnixMilli is the time source for all window arithmetic.
func UnixMilli() int64 { return UnixNano() / int64(time.Millisecond) }

func Since(t time.Time) time.Duration { return Now().Sub(t) }
