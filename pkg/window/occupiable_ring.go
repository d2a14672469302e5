package window

// OccupiableRing composes the standard ring with a parallel borrow ring. When
// a new current bucket is materialised it is seeded with whatever pass count
// was scheduled into the matching future slot, without double-counting: the
// consumed borrow slot is overwritten on its own next recycle.
type OccupiableRing struct {
	*Ring[*MetricBucket]
	borrow *FutureRing
}

type occupiableHooks struct {
	borrow *FutureRing
}

func (h occupiableHooks) NewEmptyBucket(nowMs int64) *MetricBucket {
	b := NewMetricBucket()
	if bb, ok := h.borrow.WindowValue(nowMs); ok {
		b.ResetFrom(bb)
	}
	return b
}

func (h occupiableHooks) ResetWindowTo(w *Wrap[*MetricBucket], startMs int64) *Wrap[*MetricBucket] {
	w.ResetTo(startMs)
	w.Value().Reset()
	if bb, ok := h.borrow.WindowValue(startMs); ok {
		w.Value().Add(EventPass, bb.Pass())
	}
	return w
}

func NewOccupiableRing(sampleCount int, intervalMs int64) *OccupiableRing {
	borrow := NewFutureRing(sampleCount, intervalMs)
	return &OccupiableRing{
		Ring:   NewRing[*MetricBucket](occupiableHooks{borrow: borrow}, sampleCount, intervalMs),
		borrow: borrow,
	}
}

// CurrentWaiting sums the pass counts scheduled into still-future slots.
func (r *OccupiableRing) CurrentWaiting(nowMs int64) int64 {
	r.borrow.CurrentWindow(nowMs)
	var waiting int64
	for _, b := range r.borrow.Values(nowMs) {
		waiting += b.Pass()
	}
	return waiting
}

// AddWaiting records n scheduled passes into the borrow slot covering timeMs.
func (r *OccupiableRing) AddWaiting(timeMs int64, n int64) {
	r.borrow.CurrentWindow(timeMs).Value().Add(EventPass, n)
}
