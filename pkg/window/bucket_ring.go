package window

type bucketHooks struct{}

func (bucketHooks) NewEmptyBucket(int64) *MetricBucket { return NewMetricBucket() }

func (bucketHooks) ResetWindowTo(w *Wrap[*MetricBucket], startMs int64) *Wrap[*MetricBucket] {
	w.ResetTo(startMs)
	w.Value().Reset()
	return w
}

// BucketRing is the standard sliding ring of metric buckets.
type BucketRing struct {
	*Ring[*MetricBucket]
}

func NewBucketRing(sampleCount int, intervalMs int64) *BucketRing {
	return &BucketRing{Ring: NewRing[*MetricBucket](bucketHooks{}, sampleCount, intervalMs)}
}

// CurrentWaiting is always zero, a plain ring has no borrow lane.
func (r *BucketRing) CurrentWaiting(int64) int64 { return 0 }

func (r *BucketRing) AddWaiting(int64, int64) {
	panic("window: occupancy is not supported by a plain bucket ring")
}
