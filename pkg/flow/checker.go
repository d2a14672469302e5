package flow

import (
	"context"

	"github.com/Borislavv/traffic-guard/pkg/guard"
	"github.com/Borislavv/traffic-guard/pkg/node"
)

// ClusterNodeProvider resolves the per-resource aggregate a RELATE strategy
// refers to. The guard engine satisfies it.
type ClusterNodeProvider interface {
	ClusterNode(resource string) *node.ClusterNode
}

// Checker runs every flow rule of a resource against the node the rule's
// strategy selects. The first failing rule rejects the entry with a typed
// block failure carrying the rule and its limit origin.
type Checker struct {
	manager *Manager
	nodes   ClusterNodeProvider
}

func NewChecker(manager *Manager, nodes ClusterNodeProvider) *Checker {
	return &Checker{manager: manager, nodes: nodes}
}

var _ guard.FlowChecker = (*Checker)(nil)

// CheckFlow implements the guard.FlowChecker surface.
func (c *Checker) CheckFlow(goCtx context.Context, gctx *guard.Context, res *guard.Resource, n *node.DefaultNode, count int64, prioritized bool) error {
	for _, br := range c.manager.RulesFor(res.Name()) {
		if err := c.canPassRule(goCtx, br, gctx, n, count, prioritized); err != nil {
			return err
		}
	}
	return nil
}

func (c *Checker) canPassRule(goCtx context.Context, br *boundRule, gctx *guard.Context, n *node.DefaultNode, count int64, prioritized bool) error {
	if br.rule.ClusterMode {
		// Only the local-fallback contract is wired: without a token service
		// the rule either degrades to the local check or passes outright.
		if !br.rule.FallbackToLocal {
			return nil
		}
	}
	return c.passLocalCheck(goCtx, br, gctx, n, count, prioritized)
}

func (c *Checker) passLocalCheck(goCtx context.Context, br *boundRule, gctx *guard.Context, n *node.DefaultNode, count int64, prioritized bool) error {
	selected := c.selectNodeByRequesterAndStrategy(br.rule, gctx, n)
	if selected == nil {
		return nil
	}
	ok, err := br.controller.CanPass(goCtx, selected, count, prioritized)
	if err != nil {
		return err
	}
	if !ok {
		return guard.NewBlockError(guard.BlockTypeFlow, br.rule)
	}
	return nil
}

// filterOrigin rejects the reserved origin names from specific-origin
// matching.
func filterOrigin(origin string) bool {
	return origin != LimitOriginDefault && origin != LimitOriginOther && origin != ""
}

func (c *Checker) selectNodeByRequesterAndStrategy(rule *Rule, gctx *guard.Context, n *node.DefaultNode) node.Node {
	limitApp := rule.LimitApp
	origin := gctx.Origin()

	switch {
	case limitApp == origin && filterOrigin(origin):
		if rule.Strategy == StrategyDirect {
			if on := gctx.OriginNode(); on != nil {
				return on
			}
			return nil
		}
		return c.selectReferenceNode(rule, gctx, n)

	case limitApp == LimitOriginDefault:
		if rule.Strategy == StrategyDirect {
			return n.ClusterNode()
		}
		return c.selectReferenceNode(rule, gctx, n)

	case limitApp == LimitOriginOther && c.manager.IsOtherOrigin(origin, rule.Resource):
		if rule.Strategy == StrategyDirect {
			if on := gctx.OriginNode(); on != nil {
				return on
			}
			return nil
		}
		return c.selectReferenceNode(rule, gctx, n)
	}
	return nil
}

func (c *Checker) selectReferenceNode(rule *Rule, gctx *guard.Context, n *node.DefaultNode) node.Node {
	if rule.RefResource == "" {
		return nil
	}
	switch rule.Strategy {
	case StrategyRelate:
		if cn := c.nodes.ClusterNode(rule.RefResource); cn != nil {
			return cn
		}
		return nil
	case StrategyChain:
		if rule.RefResource != gctx.Name() {
			return nil
		}
		return n
	default:
		return nil
	}
}
