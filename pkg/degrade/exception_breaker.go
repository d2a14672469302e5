package degrade

import (
	"sync/atomic"

	"github.com/Borislavv/traffic-guard/pkg/ctime"
	"github.com/Borislavv/traffic-guard/pkg/guard"
	"github.com/Borislavv/traffic-guard/pkg/window"
)

// errCounter is the per-bucket statistic of an exception breaker.
type errCounter struct {
	errors atomic.Int64
	total  atomic.Int64
}

func (c *errCounter) reset() {
	c.errors.Store(0)
	c.total.Store(0)
}

type errCounterHooks struct{}

func (errCounterHooks) NewEmptyBucket(int64) *errCounter { return &errCounter{} }

func (errCounterHooks) ResetWindowTo(w *window.Wrap[*errCounter], startMs int64) *window.Wrap[*errCounter] {
	w.ResetTo(startMs)
	w.Value().reset()
	return w
}

// ExceptionBreaker trips on the error count or error ratio observed over its
// own dedicated ring.
type ExceptionBreaker struct {
	breakerBase
	minRequestAmount int64
	threshold        float64
	ratioMode        bool
	stat             *window.Ring[*errCounter]
}

func NewExceptionBreaker(rule *Rule, observers *ObserverRegistry) *ExceptionBreaker {
	b := &ExceptionBreaker{
		breakerBase:      newBreakerBase(rule, observers),
		minRequestAmount: rule.minRequests(),
		threshold:        rule.Count,
		ratioMode:        rule.Grade == GradeExceptionRatio,
		stat:             window.NewRing[*errCounter](errCounterHooks{}, 1, rule.StatIntervalMs()),
	}
	b.resetStat = func() {
		b.stat.CurrentWindow(ctime.UnixMilli()).Value().reset()
	}
	return b
}

func (b *ExceptionBreaker) OnRequestComplete(ctx *guard.Context) {
	entry := ctx.CurrentEntry()
	if entry == nil {
		return
	}
	err := entry.Err()
	counter := b.stat.CurrentWindow(ctime.UnixMilli()).Value()
	if err != nil {
		counter.errors.Add(1)
	}
	counter.total.Add(1)
	b.handleStateChangeWhenThresholdExceeded(err)
}

func (b *ExceptionBreaker) handleStateChangeWhenThresholdExceeded(err error) {
	switch b.CurrentState() {
	case Open:
		return
	case HalfOpen:
		if err == nil {
			b.fromHalfOpenToClosed()
		} else {
			b.fromHalfOpenToOpen(1.0)
		}
		return
	}

	now := ctime.UnixMilli()
	var errCount, totalCount int64
	for _, c := range b.stat.Values(now) {
		errCount += c.errors.Load()
		totalCount += c.total.Load()
	}
	if totalCount < b.minRequestAmount {
		return
	}
	metric := float64(errCount)
	if b.ratioMode {
		metric = float64(errCount) / float64(totalCount)
	}
	if metric > b.threshold {
		b.transformToOpen(metric)
	}
}
