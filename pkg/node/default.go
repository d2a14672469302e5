package node

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// DefaultNode is the per-(context, resource) node of the invocation tree.
// Every statistic write mirrors into the shared cluster node of the resource.
// The child list is an atomic immutable slice swapped under a short mutex, so
// tree reads never lock.
type DefaultNode struct {
	*StatisticNode

	id          string // resource name
	clusterNode *ClusterNode

	childList atomic.Pointer[[]Node]
	mu        sync.Mutex // child list swaps only
}

func NewDefaultNode(id string, clusterNode *ClusterNode) *DefaultNode {
	n := &DefaultNode{StatisticNode: NewStatisticNode(), id: id, clusterNode: clusterNode}
	empty := make([]Node, 0)
	n.childList.Store(&empty)
	return n
}

func (n *DefaultNode) ID() string                { return n.id }
func (n *DefaultNode) ClusterNode() *ClusterNode { return n.clusterNode }

func (n *DefaultNode) Children() []Node { return *n.childList.Load() }

// AddChild links a child node below this entry point. Duplicates and nils are
// ignored.
func (n *DefaultNode) AddChild(child Node) {
	if child == nil {
		log.Warn().Msgf("[node] trying to add nil child to node <%s>, ignored", n.id)
		return
	}
	if n.hasChild(child) {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.hasChild(child) {
		return
	}
	old := *n.childList.Load()
	next := make([]Node, len(old)+1)
	copy(next, old)
	next[len(old)] = child
	n.childList.Store(&next)
}

func (n *DefaultNode) hasChild(child Node) bool {
	for _, c := range *n.childList.Load() {
		if c == child {
			return true
		}
	}
	return false
}

func (n *DefaultNode) RemoveChildren() {
	n.mu.Lock()
	defer n.mu.Unlock()
	empty := make([]Node, 0)
	n.childList.Store(&empty)
}

func (n *DefaultNode) AddPassRequest(count int64) {
	n.StatisticNode.AddPassRequest(count)
	n.clusterNode.AddPassRequest(count)
}

func (n *DefaultNode) AddRtAndSuccess(rt, successCount int64) {
	n.StatisticNode.AddRtAndSuccess(rt, successCount)
	n.clusterNode.AddRtAndSuccess(rt, successCount)
}

func (n *DefaultNode) IncreaseBlockQps(count int64) {
	n.StatisticNode.IncreaseBlockQps(count)
	n.clusterNode.IncreaseBlockQps(count)
}

func (n *DefaultNode) IncreaseExceptionQps(count int64) {
	n.StatisticNode.IncreaseExceptionQps(count)
	n.clusterNode.IncreaseExceptionQps(count)
}

func (n *DefaultNode) IncreaseThreadNum() {
	n.StatisticNode.IncreaseThreadNum()
	n.clusterNode.IncreaseThreadNum()
}

func (n *DefaultNode) DecreaseThreadNum() {
	n.StatisticNode.DecreaseThreadNum()
	n.clusterNode.DecreaseThreadNum()
}
