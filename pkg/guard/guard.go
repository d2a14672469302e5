package guard

import (
	"context"
	"errors"

	"github.com/Borislavv/traffic-guard/pkg/ctime"
	"github.com/Borislavv/traffic-guard/pkg/node"
)

// FlowChecker is the flow-rule admission surface consulted on every entry.
// Implementations return nil to pass, ErrPriorityWait after a completed
// priority wait, or a *BlockError to reject.
type FlowChecker interface {
	CheckFlow(goCtx context.Context, c *Context, res *Resource, n *node.DefaultNode, count int64, prioritized bool) error
}

// DegradeChecker is the circuit-breaker surface. TryPass returns nil or a
// *BlockError; OnRequestComplete feeds completions back into the breakers.
type DegradeChecker interface {
	TryPass(c *Context, res *Resource) error
	OnRequestComplete(c *Context, res *Resource)
}

// Meter receives admission outcomes for export, it must be cheap and
// non-blocking.
type Meter interface {
	IncPass(resource string)
	IncBlock(resource, blockType, limitApp string)
}

// Guard is the statistics-and-decision engine. It owns the node registry and
// the global in-bound aggregate; admission controllers and observers are
// passed at construction, there is no ambient process state.
type Guard struct {
	registry *registry
	inbound  *node.ClusterNode
	flow     FlowChecker
	degrade  DegradeChecker
	meter    Meter
}

type Option func(*Guard)

func WithFlowChecker(f FlowChecker) Option       { return func(g *Guard) { g.flow = f } }
func WithDegradeChecker(d DegradeChecker) Option { return func(g *Guard) { g.degrade = d } }
func WithMeter(m Meter) Option                   { return func(g *Guard) { g.meter = m } }

const (
	// DefaultContextName is used when an entry does not name its context.
	DefaultContextName = "default_context"
	globalInboundName  = "__global_inbound__"
)

func New(opts ...Option) *Guard {
	g := &Guard{
		registry: newRegistry(),
		inbound:  node.NewClusterNode(globalInboundName),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// SetFlowChecker installs the flow checker after construction. Flow checkers
// usually resolve reference nodes through the engine itself, which makes the
// two mutually dependent; wire the checker before serving traffic.
func (g *Guard) SetFlowChecker(f FlowChecker) { g.flow = f }

// InboundNode exposes the global in-bound aggregate.
func (g *Guard) InboundNode() *node.ClusterNode { return g.inbound }

// ClusterNode returns the per-resource aggregate if it exists. Satisfies the
// node-provider surface the flow checker resolves RELATE strategies through.
func (g *Guard) ClusterNode(resource string) *node.ClusterNode {
	return g.registry.ClusterNodeIfPresent(resource)
}

// ForEachClusterNode visits every known resource aggregate.
func (g *Guard) ForEachClusterNode(visit func(*node.ClusterNode)) {
	g.registry.ForEachClusterNode(visit)
}

type entryOptions struct {
	contextName string
	origin      string
	trafficType TrafficType
	count       int64
	prioritized bool
	parent      *Entry
	goCtx       context.Context
}

type EntryOption func(*entryOptions)

// WithContext names the call chain; the first entry from a new name creates
// its entrance node.
func WithContext(name string) EntryOption { return func(o *entryOptions) { o.contextName = name } }

// WithOrigin attaches the caller identity; stats are additionally recorded on
// the per-origin node of the resource cluster.
func WithOrigin(origin string) EntryOption { return func(o *entryOptions) { o.origin = origin } }

// WithTrafficType marks the entry in- or out-bound.
func WithTrafficType(t TrafficType) EntryOption { return func(o *entryOptions) { o.trafficType = t } }

// WithCount sets the batch size acquired by the entry.
func WithCount(n int64) EntryOption { return func(o *entryOptions) { o.count = n } }

// WithPrioritized lets a rejected request wait for a future bucket instead of
// failing immediately.
func WithPrioritized(p bool) EntryOption { return func(o *entryOptions) { o.prioritized = p } }

// WithParent nests the entry under an already-open one, sharing its context.
func WithParent(parent *Entry) EntryOption { return func(o *entryOptions) { o.parent = parent } }

// WithGoContext bounds the priority-wait sleep; cancellation admits the
// request immediately.
func WithGoContext(ctx context.Context) EntryOption { return func(o *entryOptions) { o.goCtx = ctx } }

// Entry runs the admission pipeline for one protected call: flow rules first,
// then circuit breakers, then statistic bookkeeping. On success the returned
// entry must be finished with Exit. On rejection the typed block failure is
// returned and the block is already counted.
func (g *Guard) Entry(resource string, opts ...EntryOption) (*Entry, error) {
	o := entryOptions{contextName: DefaultContextName, count: 1, goCtx: context.Background()}
	for _, opt := range opts {
		opt(&o)
	}

	res := NewResource(resource, o.trafficType)

	var c *Context
	if o.parent != nil {
		c = o.parent.ctx
	} else {
		c = &Context{
			name:         o.contextName,
			origin:       o.origin,
			entranceNode: g.registry.EntranceNode(o.contextName),
		}
	}

	var treeParent interface{ AddChild(node.Node) }
	if c.curEntry != nil {
		treeParent = c.curEntry.curNode
	} else {
		treeParent = c.entranceNode
	}
	n := g.registry.DefaultNode(c.name, resource, treeParent)

	var originNode *node.StatisticNode
	if c.origin != "" {
		originNode = n.ClusterNode().GetOrCreateOriginNode(c.origin)
	}

	entry := &Entry{
		res:        res,
		ctx:        c,
		guard:      g,
		parent:     c.curEntry,
		count:      o.count,
		createMs:   ctime.UnixMilli(),
		curNode:    n,
		originNode: originNode,
	}
	c.curEntry = entry

	var err error
	if g.flow != nil {
		err = g.flow.CheckFlow(o.goCtx, c, res, n, o.count, o.prioritized)
	}
	if err == nil && g.degrade != nil {
		err = g.degrade.TryPass(c, res)
	}

	switch {
	case err == nil:
		g.onPass(entry, true)
		return entry, nil

	case errors.Is(err, ErrPriorityWait):
		// Already booked as an occupied pass, only the live thread counters
		// move here.
		g.onPass(entry, false)
		return entry, nil

	default:
		var be *BlockError
		if errors.As(err, &be) {
			entry.blockErr = be
			g.onBlock(entry, be)
			entry.Exit()
			return nil, be
		}
		// Non-block failure from a controller: no pass was booked, so only
		// terminate and surface it untouched.
		entry.err = err
		entry.exited.Store(true)
		entry.terminate()
		return nil, err
	}
}

func (g *Guard) onPass(e *Entry, countPass bool) {
	e.curNode.IncreaseThreadNum()
	if countPass {
		e.curNode.AddPassRequest(e.count)
	}
	if e.originNode != nil {
		e.originNode.IncreaseThreadNum()
		if countPass {
			e.originNode.AddPassRequest(e.count)
		}
	}
	if e.res.TrafficType() == Inbound {
		g.inbound.IncreaseThreadNum()
		if countPass {
			g.inbound.AddPassRequest(e.count)
		}
	}
	if g.meter != nil {
		g.meter.IncPass(e.res.Name())
	}
}

func (g *Guard) onBlock(e *Entry, be *BlockError) {
	e.curNode.IncreaseBlockQps(e.count)
	if e.originNode != nil {
		e.originNode.IncreaseBlockQps(e.count)
	}
	if e.res.TrafficType() == Inbound {
		g.inbound.IncreaseBlockQps(e.count)
	}
	if g.meter != nil {
		g.meter.IncBlock(e.res.Name(), be.BlockType().String(), be.LimitApp())
	}
}
