package guard

import (
	"sync"

	"github.com/Borislavv/traffic-guard/pkg/node"
	"github.com/zeebo/xxh3"
)

// registry resolves resource and context names to their nodes. It is sharded
// by xxh3 so unrelated resources never contend, and every node lives for the
// process once created.
const registryShards = 256

type registry struct {
	shards [registryShards]registryShard
}

type registryShard struct {
	mu        sync.RWMutex
	clusters  map[string]*node.ClusterNode
	entrances map[string]*node.EntranceNode
	defaults  map[string]*node.DefaultNode
}

func newRegistry() *registry {
	r := &registry{}
	for i := range r.shards {
		r.shards[i].clusters = make(map[string]*node.ClusterNode)
		r.shards[i].entrances = make(map[string]*node.EntranceNode)
		r.shards[i].defaults = make(map[string]*node.DefaultNode)
	}
	return r
}

func (r *registry) shard(key string) *registryShard {
	return &r.shards[xxh3.HashString(key)&(registryShards-1)]
}

// ClusterNode returns the per-resource aggregate, creating it lazily.
func (r *registry) ClusterNode(resource string) *node.ClusterNode {
	s := r.shard(resource)

	s.mu.RLock()
	c, ok := s.clusters[resource]
	s.mu.RUnlock()
	if ok {
		return c
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok = s.clusters[resource]; ok {
		return c
	}
	c = node.NewClusterNode(resource)
	s.clusters[resource] = c
	return c
}

// ClusterNodeIfPresent returns the per-resource aggregate without creating it.
func (r *registry) ClusterNodeIfPresent(resource string) *node.ClusterNode {
	s := r.shard(resource)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clusters[resource]
}

// EntranceNode returns the root node of the given context, creating it on the
// first entry from that context.
func (r *registry) EntranceNode(contextName string) *node.EntranceNode {
	s := r.shard(contextName)

	s.mu.RLock()
	e, ok := s.entrances[contextName]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok = s.entrances[contextName]; ok {
		return e
	}
	e = node.NewEntranceNode(contextName, r.clusterNodeLocked(s, contextName))
	s.entrances[contextName] = e
	return e
}

// clusterNodeLocked resolves a cluster node while already holding the shard
// lock of the same key.
func (r *registry) clusterNodeLocked(s *registryShard, name string) *node.ClusterNode {
	if c, ok := s.clusters[name]; ok {
		return c
	}
	c := node.NewClusterNode(name)
	s.clusters[name] = c
	return c
}

// DefaultNode returns the per-(context, resource) node. On creation it is
// linked under the given parent so the invocation tree forms lazily.
func (r *registry) DefaultNode(contextName, resource string, parent interface{ AddChild(node.Node) }) *node.DefaultNode {
	key := contextName + "\x00" + resource
	s := r.shard(key)

	s.mu.RLock()
	d, ok := s.defaults[key]
	s.mu.RUnlock()
	if ok {
		return d
	}

	// Resolved outside the shard lock: the cluster key may map to this very
	// shard and the lock is not reentrant.
	cluster := r.ClusterNode(resource)

	s.mu.Lock()
	d, ok = s.defaults[key]
	if !ok {
		d = node.NewDefaultNode(resource, cluster)
		s.defaults[key] = d
	}
	s.mu.Unlock()

	if !ok && parent != nil {
		parent.AddChild(d)
	}
	return d
}

// ForEachClusterNode visits every cluster node, used by metric exporters.
func (r *registry) ForEachClusterNode(visit func(*node.ClusterNode)) {
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.RLock()
		nodes := make([]*node.ClusterNode, 0, len(s.clusters))
		for _, c := range s.clusters {
			nodes = append(nodes, c)
		}
		s.mu.RUnlock()
		for _, c := range nodes {
			visit(c)
		}
	}
}
