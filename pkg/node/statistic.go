package node

import (
	"sync/atomic"

	"github.com/Borislavv/traffic-guard/pkg/config"
	"github.com/Borislavv/traffic-guard/pkg/ctime"
	"github.com/Borislavv/traffic-guard/pkg/window"
)

// StatisticNode holds the two rings behind every node: a sub-second occupiable
// ring sized by the process-wide stat config and a one-minute ring of sixty
// one-second buckets, plus the live thread counter.
//
// The minute ring never undercounts relative to the sub-second ring: every
// write lands in both, and occupied passes are booked straight into it.
type StatisticNode struct {
	// Swapped wholesale by Reset, hence the pointer.
	rollingCounterInSecond atomic.Pointer[window.SlidingMetric]
	rollingCounterInMinute *window.SlidingMetric

	curThreadNum atomic.Int64

	// Watermark for Metrics. Advances monotonically, single-threaded caller
	// expected.
	lastFetchMs int64
}

func NewStatisticNode() *StatisticNode {
	n := &StatisticNode{
		rollingCounterInMinute: window.NewSlidingMetric(60, 60*1000, false),
		lastFetchMs:            -1,
	}
	cfg := config.Stat()
	n.rollingCounterInSecond.Store(window.NewSlidingMetric(cfg.SampleCount, cfg.IntervalMs, true))
	return n
}

func (n *StatisticNode) second() *window.SlidingMetric { return n.rollingCounterInSecond.Load() }

// Reset replaces the sub-second ring with a fresh one built from the current
// stat config. The minute ring is left alone.
func (n *StatisticNode) Reset() {
	cfg := config.Stat()
	n.rollingCounterInSecond.Store(window.NewSlidingMetric(cfg.SampleCount, cfg.IntervalMs, true))
}

func (n *StatisticNode) TotalRequest() int64 {
	now := ctime.UnixMilli()
	return n.rollingCounterInMinute.Pass(now) + n.rollingCounterInMinute.Block(now)
}

func (n *StatisticNode) TotalPass() int64      { return n.rollingCounterInMinute.Pass(ctime.UnixMilli()) }
func (n *StatisticNode) TotalSuccess() int64   { return n.rollingCounterInMinute.Success(ctime.UnixMilli()) }
func (n *StatisticNode) TotalException() int64 { return n.rollingCounterInMinute.Exception(ctime.UnixMilli()) }
func (n *StatisticNode) BlockRequest() int64   { return n.rollingCounterInMinute.Block(ctime.UnixMilli()) }

func (n *StatisticNode) PassQps() float64 {
	sec := n.second()
	return float64(sec.Pass(ctime.UnixMilli())) / sec.IntervalSeconds()
}

func (n *StatisticNode) BlockQps() float64 {
	sec := n.second()
	return float64(sec.Block(ctime.UnixMilli())) / sec.IntervalSeconds()
}

func (n *StatisticNode) TotalQps() float64 { return n.PassQps() + n.BlockQps() }

func (n *StatisticNode) SuccessQps() float64 {
	sec := n.second()
	return float64(sec.Success(ctime.UnixMilli())) / sec.IntervalSeconds()
}

// MaxSuccessQps extrapolates the busiest bucket to a per-interval rate.
func (n *StatisticNode) MaxSuccessQps() float64 {
	sec := n.second()
	return float64(sec.MaxSuccess(ctime.UnixMilli())) * float64(sec.SampleCount()) / sec.IntervalSeconds()
}

func (n *StatisticNode) ExceptionQps() float64 {
	sec := n.second()
	return float64(sec.Exception(ctime.UnixMilli())) / sec.IntervalSeconds()
}

func (n *StatisticNode) OccupiedPassQps() float64 {
	sec := n.second()
	return float64(sec.OccupiedPass(ctime.UnixMilli())) / sec.IntervalSeconds()
}

func (n *StatisticNode) AvgRt() float64 {
	sec := n.second()
	now := ctime.UnixMilli()
	success := sec.Success(now)
	if success == 0 {
		return 0
	}
	return float64(sec.Rt(now)) / float64(success)
}

func (n *StatisticNode) MinRt() float64 {
	return float64(n.second().MinRt(ctime.UnixMilli()))
}

func (n *StatisticNode) CurThreadNum() int64 { return n.curThreadNum.Load() }

func (n *StatisticNode) PreviousPassQps() float64 {
	return float64(n.rollingCounterInMinute.PreviousWindowPass(ctime.UnixMilli()))
}

func (n *StatisticNode) PreviousBlockQps() float64 {
	return float64(n.rollingCounterInMinute.PreviousWindowBlock(ctime.UnixMilli()))
}

// Metrics returns the per-second detail rows of completed seconds that carry
// at least one positive counter and have not been fetched before, then moves
// the watermark. Callers must serialise access per node.
func (n *StatisticNode) Metrics() map[int64]window.MetricItem {
	now := ctime.UnixMilli()
	currentSecond := now - now%1000
	items := n.rollingCounterInMinute.Details(now)
	metrics := make(map[int64]window.MetricItem, len(items))
	newLastFetch := n.lastFetchMs
	for _, item := range items {
		if item.Timestamp > n.lastFetchMs && item.Timestamp < currentSecond && item.IsMeaningful() {
			metrics[item.Timestamp] = item
			if item.Timestamp > newLastFetch {
				newLastFetch = item.Timestamp
			}
		}
	}
	n.lastFetchMs = newLastFetch
	return metrics
}

func (n *StatisticNode) AddPassRequest(count int64) {
	now := ctime.UnixMilli()
	n.second().AddPass(now, count)
	n.rollingCounterInMinute.AddPass(now, count)
}

func (n *StatisticNode) AddRtAndSuccess(rt, successCount int64) {
	now := ctime.UnixMilli()
	sec := n.second()
	sec.AddSuccess(now, successCount)
	sec.AddRt(now, rt)
	n.rollingCounterInMinute.AddSuccess(now, successCount)
	n.rollingCounterInMinute.AddRt(now, rt)
}

func (n *StatisticNode) IncreaseBlockQps(count int64) {
	now := ctime.UnixMilli()
	n.second().AddBlock(now, count)
	n.rollingCounterInMinute.AddBlock(now, count)
}

func (n *StatisticNode) IncreaseExceptionQps(count int64) {
	now := ctime.UnixMilli()
	n.second().AddException(now, count)
	n.rollingCounterInMinute.AddException(now, count)
}

func (n *StatisticNode) IncreaseThreadNum() { n.curThreadNum.Add(1) }
func (n *StatisticNode) DecreaseThreadNum() { n.curThreadNum.Add(-1) }

// TryOccupyNext returns the wait in milliseconds after which acquireCount
// requests become admissible under the given per-second threshold, or the
// configured occupy timeout when no bucket within the budget frees enough
// headroom. The occupy timeout is read exactly once per call.
//
// The read of the current pass total is not atomic with the admission that
// follows, slightly over-admitting under contention is accepted.
func (n *StatisticNode) TryOccupyNext(currentTimeMs int64, acquireCount int64, threshold float64) int64 {
	cfg := config.Stat()
	occupyTimeout := cfg.OccupyTimeoutMs
	maxCount := threshold * float64(cfg.IntervalMs) / 1000

	sec := n.second()
	currentBorrow := sec.Waiting(currentTimeMs)
	if float64(currentBorrow) >= maxCount {
		return occupyTimeout
	}

	windowLength := cfg.IntervalMs / int64(cfg.SampleCount)
	earliestTime := currentTimeMs - currentTimeMs%windowLength + windowLength - cfg.IntervalMs

	currentPass := sec.Pass(currentTimeMs)
	var idx int64
	for earliestTime < currentTimeMs {
		waitInMs := idx*windowLength + windowLength - currentTimeMs%windowLength
		if waitInMs >= occupyTimeout {
			break
		}
		windowPass := sec.WindowPass(earliestTime)
		if float64(currentPass+currentBorrow+acquireCount-windowPass) <= maxCount {
			return waitInMs
		}
		earliestTime += windowLength
		currentPass -= windowPass
		idx++
	}
	return occupyTimeout
}

func (n *StatisticNode) Waiting() int64 {
	return n.second().Waiting(ctime.UnixMilli())
}

func (n *StatisticNode) AddWaitingRequest(futureTimeMs int64, acquireCount int64) {
	n.second().AddWaiting(futureTimeMs, acquireCount)
}

// AddOccupiedPass books an already-admitted future pass into the minute ring
// so it never undercounts, the sub-second ring picks it up when the borrowed
// slot materialises.
func (n *StatisticNode) AddOccupiedPass(acquireCount int64) {
	now := ctime.UnixMilli()
	n.rollingCounterInMinute.AddOccupiedPass(now, acquireCount)
	n.rollingCounterInMinute.AddPass(now, acquireCount)
}
