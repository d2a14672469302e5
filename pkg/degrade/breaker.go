package degrade

import (
	"sync"
	"sync/atomic"

	"github.com/Borislavv/traffic-guard/pkg/ctime"
	"github.com/Borislavv/traffic-guard/pkg/guard"
)

// State is the circuit-breaker state machine position.
type State int32

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// StateChangeObserver is notified synchronously on the transitioning
// goroutine. snapshot carries the trigger metric where one exists, zero
// otherwise.
type StateChangeObserver func(prev, cur State, rule *Rule, snapshot float64)

// ObserverRegistry is the explicit fan-out target a breaker is constructed
// with; there is no process-global registry.
type ObserverRegistry struct {
	mu        sync.Mutex
	observers atomic.Pointer[[]StateChangeObserver]
}

func NewObserverRegistry() *ObserverRegistry {
	r := &ObserverRegistry{}
	empty := make([]StateChangeObserver, 0)
	r.observers.Store(&empty)
	return r
}

func (r *ObserverRegistry) Register(o StateChangeObserver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	old := *r.observers.Load()
	next := make([]StateChangeObserver, len(old)+1)
	copy(next, old)
	next[len(old)] = o
	r.observers.Store(&next)
}

func (r *ObserverRegistry) notify(prev, cur State, rule *Rule, snapshot float64) {
	for _, o := range *r.observers.Load() {
		o(prev, cur, rule, snapshot)
	}
}

// CircuitBreaker is one breaker bound to a resource.
type CircuitBreaker interface {
	Rule() *Rule
	CurrentState() State
	// TryPass decides admission; in half-open it admits exactly one probe and
	// arms a terminate hook that re-opens the breaker when the probe is
	// blocked downstream.
	TryPass(ctx *guard.Context) bool
	// OnRequestComplete feeds one finished, non-blocked entry back into the
	// breaker statistics.
	OnRequestComplete(ctx *guard.Context)
}

// breakerBase carries the state machine shared by every breaker flavor.
type breakerBase struct {
	rule              *Rule
	recoveryTimeoutMs int64
	state             atomic.Int32
	nextRetryMs       atomic.Int64
	observers         *ObserverRegistry
	resetStat         func()
}

func newBreakerBase(rule *Rule, observers *ObserverRegistry) breakerBase {
	return breakerBase{
		rule:              rule,
		recoveryTimeoutMs: rule.TimeWindow.Milliseconds(),
		observers:         observers,
	}
}

func (b *breakerBase) Rule() *Rule         { return b.rule }
func (b *breakerBase) CurrentState() State { return State(b.state.Load()) }

// NextRetryMs exposes the earliest probe instant, tests and exporters only.
func (b *breakerBase) NextRetryMs() int64 { return b.nextRetryMs.Load() }

func (b *breakerBase) TryPass(ctx *guard.Context) bool {
	switch b.CurrentState() {
	case Closed:
		return true
	case Open:
		return b.retryTimeoutArrived() && b.fromOpenToHalfOpen(ctx)
	default:
		// Half-open keeps exactly one probe in flight.
		return false
	}
}

func (b *breakerBase) retryTimeoutArrived() bool {
	return ctime.UnixMilli() >= b.nextRetryMs.Load()
}

func (b *breakerBase) updateNextRetryMs() {
	b.nextRetryMs.Store(ctime.UnixMilli() + b.recoveryTimeoutMs)
}

func (b *breakerBase) cas(from, to State) bool {
	return b.state.CompareAndSwap(int32(from), int32(to))
}

func (b *breakerBase) fromClosedToOpen(snapshot float64) bool {
	if b.cas(Closed, Open) {
		b.updateNextRetryMs()
		b.observers.notify(Closed, Open, b.rule, snapshot)
		return true
	}
	return false
}

func (b *breakerBase) fromOpenToHalfOpen(ctx *guard.Context) bool {
	if !b.cas(Open, HalfOpen) {
		return false
	}
	b.observers.notify(Open, HalfOpen, b.rule, 0)

	// When the probe entry terminates blocked by a downstream rule the
	// breaker snaps back to open without touching its statistics.
	if entry := ctx.CurrentEntry(); entry != nil {
		entry.WhenTerminate(func(_ *guard.Context, e *guard.Entry) {
			if e.BlockError() != nil {
				b.fromHalfOpenToOpen(1.0)
			}
		})
	}
	return true
}

func (b *breakerBase) fromHalfOpenToOpen(snapshot float64) bool {
	if b.cas(HalfOpen, Open) {
		b.updateNextRetryMs()
		b.observers.notify(HalfOpen, Open, b.rule, snapshot)
		return true
	}
	return false
}

func (b *breakerBase) fromHalfOpenToClosed() bool {
	if b.cas(HalfOpen, Closed) {
		if b.resetStat != nil {
			b.resetStat()
		}
		b.observers.notify(HalfOpen, Closed, b.rule, 0)
		return true
	}
	return false
}

func (b *breakerBase) transformToOpen(trigger float64) {
	switch b.CurrentState() {
	case Closed:
		b.fromClosedToOpen(trigger)
	case HalfOpen:
		b.fromHalfOpenToOpen(trigger)
	}
}
