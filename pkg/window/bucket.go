package window

import (
	"fmt"
	"sync/atomic"

	"github.com/Borislavv/traffic-guard/pkg/config"
)

// MetricBucket aggregates event counters over one window slice. Every counter
// is independently atomic; there is no multi-counter transaction. Counters only
// grow within a bucket's lifetime, Reset is the sole way down.
type MetricBucket struct {
	counters [eventCount]atomic.Int64
	minRt    atomic.Int64
}

func NewMetricBucket() *MetricBucket {
	b := &MetricBucket{}
	b.initMinRt()
	return b
}

func (b *MetricBucket) initMinRt() {
	b.minRt.Store(config.Stat().StatisticMaxRtMs)
}

func (b *MetricBucket) Add(e Event, n int64) {
	b.counters[e].Add(n)
}

func (b *MetricBucket) Get(e Event) int64 {
	return b.counters[e].Load()
}

// AddRt records one response time sample and keeps the bucket minimum.
func (b *MetricBucket) AddRt(rt int64) {
	b.Add(EventRt, rt)
	for {
		min := b.minRt.Load()
		if rt >= min || b.minRt.CompareAndSwap(min, rt) {
			return
		}
	}
}

func (b *MetricBucket) MinRt() int64 {
	return b.minRt.Load()
}

// Reset zeroes every counter in place, the bucket is recycled, not replaced.
func (b *MetricBucket) Reset() *MetricBucket {
	for i := range b.counters {
		b.counters[i].Store(0)
	}
	b.initMinRt()
	return b
}

// ResetFrom zeroes the bucket and seeds it with the counters of src. Used when
// a borrow bucket materialises into the regular ring.
func (b *MetricBucket) ResetFrom(src *MetricBucket) *MetricBucket {
	for i := range b.counters {
		b.counters[i].Store(src.counters[i].Load())
	}
	b.initMinRt()
	return b
}

func (b *MetricBucket) Pass() int64         { return b.Get(EventPass) }
func (b *MetricBucket) Block() int64        { return b.Get(EventBlock) }
func (b *MetricBucket) Exception() int64    { return b.Get(EventException) }
func (b *MetricBucket) Success() int64      { return b.Get(EventSuccess) }
func (b *MetricBucket) Rt() int64           { return b.Get(EventRt) }
func (b *MetricBucket) OccupiedPass() int64 { return b.Get(EventOccupiedPass) }

func (b *MetricBucket) String() string {
	return fmt.Sprintf("p:%d b:%d s:%d e:%d rt:%d op:%d",
		b.Pass(), b.Block(), b.Success(), b.Exception(), b.Rt(), b.OccupiedPass())
}
