package degrade

import (
	"sync"
	"sync/atomic"

	"github.com/Borislavv/traffic-guard/pkg/guard"
	"github.com/rs/zerolog/log"
)

// Manager holds the circuit breakers per resource behind one atomic pointer
// and implements the guard.DegradeChecker surface. Reloading rules rebuilds
// the breakers, their statistics start fresh.
type Manager struct {
	breakers  atomic.Pointer[map[string][]CircuitBreaker]
	observers *ObserverRegistry
	mu        sync.Mutex // writers only
}

var _ guard.DegradeChecker = (*Manager)(nil)

func NewManager() *Manager {
	m := &Manager{observers: NewObserverRegistry()}
	empty := make(map[string][]CircuitBreaker)
	m.breakers.Store(&empty)
	return m
}

// RegisterStateChangeObserver adds a synchronous observer for every breaker
// built by this manager, existing ones included.
func (m *Manager) RegisterStateChangeObserver(o StateChangeObserver) {
	m.observers.Register(o)
}

// LoadRules replaces the whole breaker table. Invalid rules are rejected here
// with a warning and never reach admission.
func (m *Manager) LoadRules(rules []*Rule) {
	table := make(map[string][]CircuitBreaker, len(rules))
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			log.Warn().Err(err).Msgf("[degrade] rejected invalid rule %v", r)
			continue
		}
		table[r.Resource] = append(table[r.Resource], newBreakerOf(r, m.observers))
	}

	m.mu.Lock()
	m.breakers.Store(&table)
	m.mu.Unlock()

	log.Info().Msgf("[degrade] loaded %d resources with circuit breakers", len(table))
}

func newBreakerOf(rule *Rule, observers *ObserverRegistry) CircuitBreaker {
	if rule.Grade == GradeSlowRatio {
		return NewSlowRtBreaker(rule, observers)
	}
	return NewExceptionBreaker(rule, observers)
}

// BreakersFor returns the breakers of one resource, nil when unguarded.
func (m *Manager) BreakersFor(resource string) []CircuitBreaker {
	return (*m.breakers.Load())[resource]
}

// TryPass implements guard.DegradeChecker: every breaker of the resource must
// admit the entry.
func (m *Manager) TryPass(ctx *guard.Context, res *guard.Resource) error {
	for _, cb := range m.BreakersFor(res.Name()) {
		if !cb.TryPass(ctx) {
			return guard.NewBlockError(guard.BlockTypeDegrade, cb.Rule())
		}
	}
	return nil
}

// OnRequestComplete implements guard.DegradeChecker, called by the pipeline
// for every non-blocked completion.
func (m *Manager) OnRequestComplete(ctx *guard.Context, res *guard.Resource) {
	if ctx.CurrentEntry() == nil {
		return
	}
	for _, cb := range m.BreakersFor(res.Name()) {
		cb.OnRequestComplete(ctx)
	}
}
