package guard

import "github.com/Borislavv/traffic-guard/pkg/node"

// Context names one call chain. Each top-level Entry gets its own Context
// value; nested entries share the parent's. The entrance node behind the name
// is process-wide, the Context itself is not reused across requests.
type Context struct {
	name         string
	origin       string
	entranceNode *node.EntranceNode
	curEntry     *Entry
}

func (c *Context) Name() string                     { return c.name }
func (c *Context) Origin() string                   { return c.origin }
func (c *Context) EntranceNode() *node.EntranceNode { return c.entranceNode }

// CurrentEntry returns the innermost live entry of this call chain.
func (c *Context) CurrentEntry() *Entry { return c.curEntry }

// OriginNode returns the origin statistic node of the current entry, nil when
// the context carries no origin.
func (c *Context) OriginNode() *node.StatisticNode {
	if c.curEntry == nil {
		return nil
	}
	return c.curEntry.originNode
}
