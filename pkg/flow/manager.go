package flow

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// boundRule pairs a validated rule with its traffic-shaping controller, built
// once at registration.
type boundRule struct {
	rule       *Rule
	controller TrafficShapingController
}

// Manager holds the flow-rule table behind one atomic pointer; LoadRules
// swaps the whole table so readers never lock.
type Manager struct {
	rules atomic.Pointer[map[string][]*boundRule]
	mu    sync.Mutex // writers only
}

func NewManager() *Manager {
	m := &Manager{}
	empty := make(map[string][]*boundRule)
	m.rules.Store(&empty)
	return m
}

// LoadRules replaces the whole rule table. Invalid rules are rejected here
// with a warning and never reach admission.
func (m *Manager) LoadRules(rules []*Rule) {
	table := make(map[string][]*boundRule, len(rules))
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			log.Warn().Err(err).Msgf("[flow] rejected invalid rule %v", r)
			continue
		}
		if r.LimitApp == "" {
			r.LimitApp = LimitOriginDefault
		}
		table[r.Resource] = append(table[r.Resource], &boundRule{
			rule:       r,
			controller: NewDefaultController(r.Count, r.Grade),
		})
	}

	m.mu.Lock()
	m.rules.Store(&table)
	m.mu.Unlock()

	log.Info().Msgf("[flow] loaded %d resources with flow rules", len(table))
}

// RulesFor returns the bound rules of one resource, nil when unguarded.
func (m *Manager) RulesFor(resource string) []*boundRule {
	return (*m.rules.Load())[resource]
}

// Rules returns a flat snapshot of every registered rule.
func (m *Manager) Rules() []*Rule {
	table := *m.rules.Load()
	out := make([]*Rule, 0, len(table))
	for _, brs := range table {
		for _, br := range brs {
			out = append(out, br.rule)
		}
	}
	return out
}

// IsOtherOrigin reports whether origin is not explicitly named by any rule of
// the resource, which makes it eligible for "other"-scoped rules.
func (m *Manager) IsOtherOrigin(origin, resource string) bool {
	if origin == "" {
		return false
	}
	for _, br := range m.RulesFor(resource) {
		if br.rule.LimitApp == origin {
			return false
		}
	}
	return true
}
