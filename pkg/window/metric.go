package window

import (
	"github.com/Borislavv/traffic-guard/pkg/config"
)

// MetricRing is the ring surface a SlidingMetric runs on. The occupiable ring
// implements the borrow lane, the plain ring stubs it out.
type MetricRing interface {
	CurrentWindow(timeMs int64) *Wrap[*MetricBucket]
	PreviousWindow(timeMs int64) *Wrap[*MetricBucket]
	WindowValue(timeMs int64) (*MetricBucket, bool)
	Values(timeMs int64) []*MetricBucket
	List(timeMs int64) []*Wrap[*MetricBucket]
	SampleCount() int
	IntervalMs() int64
	IntervalSeconds() float64
	CurrentWaiting(nowMs int64) int64
	AddWaiting(timeMs int64, n int64)
}

var (
	_ MetricRing = (*BucketRing)(nil)
	_ MetricRing = (*OccupiableRing)(nil)
)

// MetricItem is the per-bucket detail row exposed to metric fetchers.
type MetricItem struct {
	Timestamp    int64
	Pass         int64
	Block        int64
	Success      int64
	Exception    int64
	Rt           int64
	OccupiedPass int64
}

// IsMeaningful reports whether at least one counter is positive.
func (m MetricItem) IsMeaningful() bool {
	return m.Pass > 0 || m.Block > 0 || m.Success > 0 || m.Exception > 0 || m.Rt > 0 || m.OccupiedPass > 0
}

// SlidingMetric is the window-spanning accessor over one ring. The sums,
// MaxSuccess, MinRt, Details and the previous-window reads first touch the
// current window so a quiet ring still rolls forward; WindowPass reads the
// slot as it is.
type SlidingMetric struct {
	data MetricRing
}

// NewSlidingMetric builds a metric over a fresh ring. enableOccupy selects the
// occupiable flavor with its borrow lane.
func NewSlidingMetric(sampleCount int, intervalMs int64, enableOccupy bool) *SlidingMetric {
	if enableOccupy {
		return &SlidingMetric{data: NewOccupiableRing(sampleCount, intervalMs)}
	}
	return &SlidingMetric{data: NewBucketRing(sampleCount, intervalMs)}
}

func (m *SlidingMetric) sum(nowMs int64, e Event) int64 {
	m.data.CurrentWindow(nowMs)
	var total int64
	for _, b := range m.data.Values(nowMs) {
		total += b.Get(e)
	}
	return total
}

func (m *SlidingMetric) Pass(nowMs int64) int64         { return m.sum(nowMs, EventPass) }
func (m *SlidingMetric) Block(nowMs int64) int64        { return m.sum(nowMs, EventBlock) }
func (m *SlidingMetric) Success(nowMs int64) int64      { return m.sum(nowMs, EventSuccess) }
func (m *SlidingMetric) Exception(nowMs int64) int64    { return m.sum(nowMs, EventException) }
func (m *SlidingMetric) Rt(nowMs int64) int64           { return m.sum(nowMs, EventRt) }
func (m *SlidingMetric) OccupiedPass(nowMs int64) int64 { return m.sum(nowMs, EventOccupiedPass) }

// MaxSuccess returns the largest per-bucket success count, at least 1.
func (m *SlidingMetric) MaxSuccess(nowMs int64) int64 {
	m.data.CurrentWindow(nowMs)
	var max int64
	for _, b := range m.data.Values(nowMs) {
		if s := b.Success(); s > max {
			max = s
		}
	}
	if max < 1 {
		return 1
	}
	return max
}

// MinRt returns the smallest bucket min-rt, clamped to [1, statistic max rt].
func (m *SlidingMetric) MinRt(nowMs int64) int64 {
	m.data.CurrentWindow(nowMs)
	min := config.Stat().StatisticMaxRtMs
	for _, b := range m.data.Values(nowMs) {
		if r := b.MinRt(); r < min {
			min = r
		}
	}
	if min < 1 {
		return 1
	}
	return min
}

func (m *SlidingMetric) AddPass(nowMs, n int64)      { m.data.CurrentWindow(nowMs).Value().Add(EventPass, n) }
func (m *SlidingMetric) AddBlock(nowMs, n int64)     { m.data.CurrentWindow(nowMs).Value().Add(EventBlock, n) }
func (m *SlidingMetric) AddSuccess(nowMs, n int64)   { m.data.CurrentWindow(nowMs).Value().Add(EventSuccess, n) }
func (m *SlidingMetric) AddException(nowMs, n int64) { m.data.CurrentWindow(nowMs).Value().Add(EventException, n) }
func (m *SlidingMetric) AddRt(nowMs, rt int64)       { m.data.CurrentWindow(nowMs).Value().AddRt(rt) }

func (m *SlidingMetric) AddOccupiedPass(nowMs, n int64) {
	m.data.CurrentWindow(nowMs).Value().Add(EventOccupiedPass, n)
}

// AddWaiting schedules n passes into the borrow slot covering timeMs.
func (m *SlidingMetric) AddWaiting(timeMs, n int64) { m.data.AddWaiting(timeMs, n) }

// Waiting returns the total scheduled-future pass count.
func (m *SlidingMetric) Waiting(nowMs int64) int64 { return m.data.CurrentWaiting(nowMs) }

// WindowPass returns the pass count of the bucket covering timeMs, zero when
// the bucket is stale or absent.
func (m *SlidingMetric) WindowPass(timeMs int64) int64 {
	b, ok := m.data.WindowValue(timeMs)
	if !ok {
		return 0
	}
	return b.Pass()
}

func (m *SlidingMetric) PreviousWindowPass(nowMs int64) int64 {
	m.data.CurrentWindow(nowMs)
	if w := m.data.PreviousWindow(nowMs); w != nil {
		return w.Value().Pass()
	}
	return 0
}

func (m *SlidingMetric) PreviousWindowBlock(nowMs int64) int64 {
	m.data.CurrentWindow(nowMs)
	if w := m.data.PreviousWindow(nowMs); w != nil {
		return w.Value().Block()
	}
	return 0
}

// Details returns one item per valid bucket of the window ending at nowMs.
// The rt column is the bucket average.
func (m *SlidingMetric) Details(nowMs int64) []MetricItem {
	m.data.CurrentWindow(nowMs)
	wraps := m.data.List(nowMs)
	items := make([]MetricItem, 0, len(wraps))
	for _, w := range wraps {
		items = append(items, itemFromWrap(w))
	}
	return items
}

func itemFromWrap(w *Wrap[*MetricBucket]) MetricItem {
	b := w.Value()
	item := MetricItem{
		Timestamp:    w.StartMs(),
		Pass:         b.Pass(),
		Block:        b.Block(),
		Success:      b.Success(),
		Exception:    b.Exception(),
		Rt:           b.Rt(),
		OccupiedPass: b.OccupiedPass(),
	}
	if item.Success != 0 {
		item.Rt = b.Rt() / item.Success
	}
	return item
}

func (m *SlidingMetric) SampleCount() int         { return m.data.SampleCount() }
func (m *SlidingMetric) IntervalMs() int64        { return m.data.IntervalMs() }
func (m *SlidingMetric) IntervalSeconds() float64 { return m.data.IntervalSeconds() }
