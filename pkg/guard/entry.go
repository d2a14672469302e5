package guard

import (
	"sync/atomic"

	"github.com/Borislavv/traffic-guard/pkg/ctime"
	"github.com/Borislavv/traffic-guard/pkg/node"
)

// Entry is one in-flight protected call. It is created by Guard.Entry and
// must be finished with Exit exactly once; Exit is idempotent.
type Entry struct {
	res        *Resource
	ctx        *Context
	guard      *Guard
	parent     *Entry
	count      int64
	createMs   int64
	completeMs int64

	curNode    *node.DefaultNode
	originNode *node.StatisticNode

	err      error
	blockErr *BlockError

	terminateHooks []func(*Context, *Entry)
	exited         atomic.Bool
}

func (e *Entry) Resource() *Resource             { return e.res }
func (e *Entry) Context() *Context               { return e.ctx }
func (e *Entry) CreateMs() int64                 { return e.createMs }
func (e *Entry) CompleteMs() int64               { return e.completeMs }
func (e *Entry) Node() *node.DefaultNode         { return e.curNode }
func (e *Entry) OriginNode() *node.StatisticNode { return e.originNode }
func (e *Entry) BlockError() *BlockError         { return e.blockErr }
func (e *Entry) Err() error                      { return e.err }

// SetError records a business error on the entry; it is counted as an
// exception on exit and is never swallowed by the pipeline.
func (e *Entry) SetError(err error) {
	if e.err == nil {
		e.err = err
	}
}

// WhenTerminate registers a hook run when the entry finishes, whether it was
// blocked at admission or exited normally.
func (e *Entry) WhenTerminate(hook func(*Context, *Entry)) {
	e.terminateHooks = append(e.terminateHooks, hook)
}

// Exit completes the entry: computes the response time, feeds the statistic
// nodes, drives the circuit breakers and runs the terminate hooks. A blocked
// entry only runs the hooks, its bookkeeping happened at admission.
func (e *Entry) Exit() {
	if !e.exited.CompareAndSwap(false, true) {
		return
	}

	if e.blockErr == nil {
		e.completeMs = ctime.UnixMilli()
		rt := e.completeMs - e.createMs
		e.recordCompleteFor(e.curNode, rt)
		if e.originNode != nil {
			e.recordCompleteFor(e.originNode, rt)
		}
		if e.res.TrafficType() == Inbound {
			e.recordCompleteFor(e.guard.inbound, rt)
		}
		if e.guard.degrade != nil {
			e.guard.degrade.OnRequestComplete(e.ctx, e.res)
		}
	}

	e.terminate()
}

func (e *Entry) recordCompleteFor(n node.Node, rt int64) {
	n.AddRtAndSuccess(rt, e.count)
	n.DecreaseThreadNum()
	if e.err != nil && !IsBlockError(e.err) {
		n.IncreaseExceptionQps(e.count)
	}
}

// terminate runs the hooks and pops the entry off its call chain.
func (e *Entry) terminate() {
	for _, hook := range e.terminateHooks {
		hook(e.ctx, e)
	}
	if e.ctx.curEntry == e {
		e.ctx.curEntry = e.parent
	}
}
