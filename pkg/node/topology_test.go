package node

import (
	"sync"
	"testing"

	"github.com/Borislavv/traffic-guard/pkg/ctime"
	"github.com/stretchr/testify/assert"
)

func TestDefaultNode_MirrorsIntoClusterNode(t *testing.T) {
	defer ctime.Freeze(70_000_000)()

	cluster := NewClusterNode("res")
	a := NewDefaultNode("res", cluster)
	b := NewDefaultNode("res", cluster)

	a.AddPassRequest(2)
	b.AddPassRequest(3)
	a.IncreaseBlockQps(1)
	a.IncreaseThreadNum()
	b.AddRtAndSuccess(30, 1)

	assert.InDelta(t, 2.0, a.PassQps(), 0.001)
	assert.InDelta(t, 5.0, cluster.PassQps(), 0.001)
	assert.InDelta(t, 1.0, cluster.BlockQps(), 0.001)
	assert.Equal(t, int64(1), cluster.CurThreadNum())
	assert.InDelta(t, 30.0, cluster.AvgRt(), 0.001)
}

func TestEntranceNode_AggregatesChildren(t *testing.T) {
	defer ctime.Freeze(80_000_000)()

	entrance := NewEntranceNode("ctx", NewClusterNode("ctx"))
	c1 := NewDefaultNode("r1", NewClusterNode("r1"))
	c2 := NewDefaultNode("r2", NewClusterNode("r2"))
	entrance.AddChild(c1)
	entrance.AddChild(c2)

	// c1: pass qps 30, avg rt 20; c2: pass qps 10, avg rt 40.
	c1.AddPassRequest(30)
	c1.AddRtAndSuccess(600, 30)
	c2.AddPassRequest(10)
	c2.AddRtAndSuccess(400, 10)

	assert.InDelta(t, 40.0, entrance.PassQps(), 0.001)
	assert.InDelta(t, 25.0, entrance.AvgRt(), 0.001)
	assert.Equal(t, int64(40), entrance.TotalPass())
}

func TestEntranceNode_AvgRtWithIdleChildren(t *testing.T) {
	defer ctime.Freeze(90_000_000)()

	entrance := NewEntranceNode("ctx", NewClusterNode("ctx"))
	entrance.AddChild(NewDefaultNode("r1", NewClusterNode("r1")))

	assert.InDelta(t, 0.0, entrance.AvgRt(), 0.001)
}

func TestDefaultNode_AddChildIgnoresDuplicatesAndNil(t *testing.T) {
	n := NewDefaultNode("res", NewClusterNode("res"))
	child := NewDefaultNode("child", NewClusterNode("child"))

	n.AddChild(child)
	n.AddChild(child)
	n.AddChild(nil)

	assert.Len(t, n.Children(), 1)
}

func TestClusterNode_OriginNodesAreCreatedOnce(t *testing.T) {
	cluster := NewClusterNode("res")

	wg := &sync.WaitGroup{}
	results := make([]*StatisticNode, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = cluster.GetOrCreateOriginNode("app1")
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Same(t, results[0], r)
	}

	_, ok := cluster.OriginNode("app2")
	assert.False(t, ok)
}
