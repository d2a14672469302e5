package guard_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Borislavv/traffic-guard/pkg/ctime"
	"github.com/Borislavv/traffic-guard/pkg/guard"
	"github.com/Borislavv/traffic-guard/pkg/node"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBusiness = errors.New("business failure")

func TestGuard_PassBookkeeping(t *testing.T) {
	defer ctime.Freeze(300_000_000)()

	g := guard.New()
	e, err := g.Entry("res",
		guard.WithContext("ctx"),
		guard.WithOrigin("app1"),
		guard.WithTrafficType(guard.Inbound),
	)
	require.NoError(t, err)

	n := e.Node()
	assert.Equal(t, int64(1), n.CurThreadNum())
	assert.Equal(t, int64(1), n.TotalPass())
	assert.Equal(t, int64(1), e.OriginNode().CurThreadNum())
	assert.Equal(t, int64(1), g.InboundNode().CurThreadNum())
	assert.Equal(t, int64(1), g.InboundNode().TotalPass())

	ctime.Advance(40)
	e.Exit()

	assert.Equal(t, int64(0), n.CurThreadNum())
	assert.Equal(t, int64(0), g.InboundNode().CurThreadNum())
	assert.InDelta(t, 40.0, n.AvgRt(), 0.001)
	assert.InDelta(t, 40.0, e.OriginNode().AvgRt(), 0.001)
}

func TestGuard_ExitIsIdempotent(t *testing.T) {
	defer ctime.Freeze(310_000_000)()

	g := guard.New()
	e, err := g.Entry("res")
	require.NoError(t, err)

	e.Exit()
	e.Exit()

	assert.Equal(t, int64(0), e.Node().CurThreadNum())
	assert.Equal(t, int64(1), e.Node().TotalSuccess())
}

func TestGuard_BusinessErrorCountsAsException(t *testing.T) {
	defer ctime.Freeze(320_000_000)()

	g := guard.New()
	e, err := g.Entry("res")
	require.NoError(t, err)

	e.SetError(errBusiness)
	e.Exit()

	assert.Equal(t, int64(1), e.Node().TotalException())
	assert.Equal(t, int64(1), e.Node().TotalSuccess())
}

type rejectAll struct{ rule guard.Rule }

func (r rejectAll) CheckFlow(_ context.Context, _ *guard.Context, _ *guard.Resource, _ *node.DefaultNode, _ int64, _ bool) error {
	return guard.NewBlockError(guard.BlockTypeFlow, r.rule)
}

type staticRule struct{ resource, limitApp string }

func (s staticRule) ResourceName() string { return s.resource }
func (s staticRule) LimitOrigin() string  { return s.limitApp }

func TestGuard_BlockBookkeeping(t *testing.T) {
	defer ctime.Freeze(330_000_000)()

	g := guard.New(guard.WithFlowChecker(rejectAll{rule: staticRule{"res", "default"}}))

	e, err := g.Entry("res", guard.WithTrafficType(guard.Inbound))
	assert.Nil(t, e)
	require.Error(t, err)
	assert.True(t, guard.IsBlockError(err))

	// Blocks are counted, threads are not.
	cluster := g.ClusterNode("res")
	require.NotNil(t, cluster)
	assert.Equal(t, int64(1), cluster.BlockRequest())
	assert.Equal(t, int64(0), cluster.CurThreadNum())
	assert.Equal(t, int64(1), g.InboundNode().BlockRequest())
	assert.Equal(t, int64(0), g.InboundNode().TotalPass())
}

func TestGuard_NestedEntriesFormTree(t *testing.T) {
	defer ctime.Freeze(340_000_000)()

	g := guard.New()
	outer, err := g.Entry("outer", guard.WithContext("ctx"))
	require.NoError(t, err)
	inner, err := g.Entry("inner", guard.WithParent(outer))
	require.NoError(t, err)

	assert.Same(t, outer.Context(), inner.Context())

	children := outer.Node().Children()
	require.Len(t, children, 1)
	assert.Same(t, inner.Node(), children[0].(*node.DefaultNode))

	entranceChildren := outer.Context().EntranceNode().Children()
	require.Len(t, entranceChildren, 1)
	assert.Same(t, outer.Node(), entranceChildren[0].(*node.DefaultNode))

	inner.Exit()
	outer.Exit()
}

func TestGuard_EntranceAggregatesAcrossEntries(t *testing.T) {
	defer ctime.Freeze(350_000_000)()

	g := guard.New()
	e1, err := g.Entry("r1", guard.WithContext("agg-ctx"))
	require.NoError(t, err)
	e2, err := g.Entry("r2", guard.WithContext("agg-ctx"))
	require.NoError(t, err)

	entrance := e1.Context().EntranceNode()
	assert.InDelta(t, 2.0, entrance.PassQps(), 0.001)

	e1.Exit()
	e2.Exit()
}

func TestGuard_SameResourceSharesClusterAcrossContexts(t *testing.T) {
	defer ctime.Freeze(360_000_000)()

	g := guard.New()
	e1, err := g.Entry("res", guard.WithContext("ctx-a"))
	require.NoError(t, err)
	e2, err := g.Entry("res", guard.WithContext("ctx-b"))
	require.NoError(t, err)

	assert.NotSame(t, e1.Node(), e2.Node())
	assert.Same(t, e1.Node().ClusterNode(), e2.Node().ClusterNode())
	assert.Equal(t, int64(2), e1.Node().ClusterNode().TotalPass())

	e1.Exit()
	e2.Exit()
}

type recordingMeter struct {
	passes []string
	blocks []string
}

func (m *recordingMeter) IncPass(resource string) { m.passes = append(m.passes, resource) }
func (m *recordingMeter) IncBlock(resource, blockType, limitApp string) {
	m.blocks = append(m.blocks, resource+"/"+blockType+"/"+limitApp)
}

func TestGuard_MeterSeesOutcomes(t *testing.T) {
	defer ctime.Freeze(370_000_000)()

	meter := &recordingMeter{}
	g := guard.New(guard.WithMeter(meter))

	e, err := g.Entry("res")
	require.NoError(t, err)
	e.Exit()
	assert.Equal(t, []string{"res"}, meter.passes)

	g2 := guard.New(
		guard.WithMeter(meter),
		guard.WithFlowChecker(rejectAll{rule: staticRule{"res", "app1"}}),
	)
	_, err = g2.Entry("res")
	require.Error(t, err)
	assert.Equal(t, []string{"res/flow/app1"}, meter.blocks)
}
