package degrade

import (
	"sync/atomic"

	"github.com/Borislavv/traffic-guard/pkg/ctime"
	"github.com/Borislavv/traffic-guard/pkg/guard"
	"github.com/Borislavv/traffic-guard/pkg/window"
)

// slowCounter is the per-bucket statistic of a slow-call breaker.
type slowCounter struct {
	slow  atomic.Int64
	total atomic.Int64
}

func (c *slowCounter) reset() {
	c.slow.Store(0)
	c.total.Store(0)
}

type slowCounterHooks struct{}

func (slowCounterHooks) NewEmptyBucket(int64) *slowCounter { return &slowCounter{} }

func (slowCounterHooks) ResetWindowTo(w *window.Wrap[*slowCounter], startMs int64) *window.Wrap[*slowCounter] {
	w.ResetTo(startMs)
	w.Value().reset()
	return w
}

// SlowRtBreaker trips when the ratio of calls slower than the allowed rt
// exceeds the threshold.
type SlowRtBreaker struct {
	breakerBase
	minRequestAmount int64
	threshold        float64
	maxAllowedRtMs   int64
	stat             *window.Ring[*slowCounter]
}

func NewSlowRtBreaker(rule *Rule, observers *ObserverRegistry) *SlowRtBreaker {
	b := &SlowRtBreaker{
		breakerBase:      newBreakerBase(rule, observers),
		minRequestAmount: rule.minRequests(),
		threshold:        rule.Count,
		maxAllowedRtMs:   rule.MaxAllowedRt.Milliseconds(),
		stat:             window.NewRing[*slowCounter](slowCounterHooks{}, 1, rule.StatIntervalMs()),
	}
	b.resetStat = func() {
		b.stat.CurrentWindow(ctime.UnixMilli()).Value().reset()
	}
	return b
}

func (b *SlowRtBreaker) OnRequestComplete(ctx *guard.Context) {
	entry := ctx.CurrentEntry()
	if entry == nil {
		return
	}
	rt := entry.CompleteMs() - entry.CreateMs()
	counter := b.stat.CurrentWindow(ctime.UnixMilli()).Value()
	if rt > b.maxAllowedRtMs {
		counter.slow.Add(1)
	}
	counter.total.Add(1)
	b.handleStateChangeWhenThresholdExceeded(rt)
}

func (b *SlowRtBreaker) handleStateChangeWhenThresholdExceeded(rt int64) {
	switch b.CurrentState() {
	case Open:
		return
	case HalfOpen:
		// The probe verdict is its own response time.
		if rt > b.maxAllowedRtMs {
			b.fromHalfOpenToOpen(1.0)
		} else {
			b.fromHalfOpenToClosed()
		}
		return
	}

	now := ctime.UnixMilli()
	var slowCount, totalCount int64
	for _, c := range b.stat.Values(now) {
		slowCount += c.slow.Load()
		totalCount += c.total.Load()
	}
	if totalCount < b.minRequestAmount {
		return
	}
	metric := float64(slowCount) / float64(totalCount)
	if metric > b.threshold {
		b.transformToOpen(metric)
	}
}
