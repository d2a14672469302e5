package window

// FutureRing holds scheduled-future pass counts only. A slot counts as stale
// the moment its start time arrives, so the regular ring can absorb it on the
// next recycle.
type FutureRing struct {
	*Ring[*MetricBucket]
}

func NewFutureRing(sampleCount int, intervalMs int64) *FutureRing {
	return &FutureRing{Ring: NewFutureOnlyRing[*MetricBucket](bucketHooks{}, sampleCount, intervalMs)}
}
