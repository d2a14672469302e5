package node

import "github.com/Borislavv/traffic-guard/pkg/window"

// Node is the statistic surface shared by every node flavor in the invocation
// topology. Admission controllers consult it, the pipeline feeds it.
type Node interface {
	// Minute-ring totals.
	TotalRequest() int64
	TotalPass() int64
	TotalSuccess() int64
	TotalException() int64
	BlockRequest() int64

	// Sub-second rates.
	PassQps() float64
	BlockQps() float64
	TotalQps() float64
	SuccessQps() float64
	MaxSuccessQps() float64
	ExceptionQps() float64
	OccupiedPassQps() float64
	AvgRt() float64
	MinRt() float64
	CurThreadNum() int64
	PreviousPassQps() float64
	PreviousBlockQps() float64

	// Metrics drains fresh per-second detail rows. Single-threaded caller
	// expected per node.
	Metrics() map[int64]window.MetricItem

	Reset()

	// Bookkeeping, driven by the pipeline.
	AddPassRequest(n int64)
	AddRtAndSuccess(rt, n int64)
	IncreaseBlockQps(n int64)
	IncreaseExceptionQps(n int64)
	IncreaseThreadNum()
	DecreaseThreadNum()

	// Priority occupancy.
	TryOccupyNext(currentTimeMs int64, acquireCount int64, threshold float64) int64
	Waiting() int64
	AddWaitingRequest(futureTimeMs int64, acquireCount int64)
	AddOccupiedPass(acquireCount int64)
}

var (
	_ Node = (*StatisticNode)(nil)
	_ Node = (*DefaultNode)(nil)
	_ Node = (*EntranceNode)(nil)
	_ Node = (*ClusterNode)(nil)
)
