package flow

import (
	"context"
	"math"
	"time"

	"github.com/Borislavv/traffic-guard/pkg/config"
	"github.com/Borislavv/traffic-guard/pkg/ctime"
	"github.com/Borislavv/traffic-guard/pkg/guard"
	"github.com/Borislavv/traffic-guard/pkg/node"
)

// TrafficShapingController decides whether an entry may pass the selected
// node. ok=false with a nil error is a plain rejection; guard.ErrPriorityWait
// reports a completed priority wait.
type TrafficShapingController interface {
	CanPass(goCtx context.Context, n node.Node, acquireCount int64, prioritized bool) (ok bool, err error)
}

// DefaultController is the reject-or-borrow controller: under the threshold it
// passes, over it a prioritized QPS request may occupy a future bucket and
// wait for it, everything else is rejected.
type DefaultController struct {
	count float64
	grade Grade
}

func NewDefaultController(count float64, grade Grade) *DefaultController {
	return &DefaultController{count: count, grade: grade}
}

func (d *DefaultController) CanPass(goCtx context.Context, n node.Node, acquireCount int64, prioritized bool) (bool, error) {
	cur := d.usedTokens(n)
	if cur+float64(acquireCount) <= d.count {
		return true, nil
	}

	if prioritized && d.grade == GradeQps {
		// One occupy-timeout read per call, the same value bounds the
		// decision and the sleep.
		occupyTimeoutMs := config.OccupyTimeoutMs()
		currentTime := ctime.UnixMilli()
		waitInMs := n.TryOccupyNext(currentTime, acquireCount, d.count)
		if waitInMs < occupyTimeoutMs {
			n.AddWaitingRequest(currentTime+waitInMs, acquireCount)
			n.AddOccupiedPass(acquireCount)
			sleep(goCtx, waitInMs)
			return false, guard.ErrPriorityWait
		}
	}
	return false, nil
}

func (d *DefaultController) usedTokens(n node.Node) float64 {
	if n == nil {
		return 0
	}
	if d.grade == GradeThread {
		return float64(n.CurThreadNum())
	}
	return math.Floor(n.PassQps())
}

// sleep waits the given amount of milliseconds or until the caller's context
// is cancelled; cancellation turns into a zero-wait admission.
func sleep(goCtx context.Context, ms int64) {
	if ms <= 0 {
		return
	}
	t := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer t.Stop()
	select {
	case <-goCtx.Done():
	case <-t.C:
	}
}
