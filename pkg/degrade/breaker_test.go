package degrade_test

import (
	"errors"
	"testing"
	"time"

	"github.com/Borislavv/traffic-guard/pkg/ctime"
	"github.com/Borislavv/traffic-guard/pkg/degrade"
	"github.com/Borislavv/traffic-guard/pkg/guard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func newEngine(rules ...*degrade.Rule) (*guard.Guard, *degrade.Manager) {
	mgr := degrade.NewManager()
	mgr.LoadRules(rules)
	return guard.New(guard.WithDegradeChecker(mgr)), mgr
}

func failOnce(t *testing.T, engine *guard.Guard, resource string) {
	t.Helper()
	e, err := engine.Entry(resource)
	require.NoError(t, err)
	e.SetError(errBoom)
	e.Exit()
}

func succeedOnce(t *testing.T, engine *guard.Guard, resource string) {
	t.Helper()
	e, err := engine.Entry(resource)
	require.NoError(t, err)
	e.Exit()
}

func TestExceptionBreaker_OpensRecoversAndCloses(t *testing.T) {
	defer ctime.Freeze(200_000_000)()

	engine, mgr := newEngine(&degrade.Rule{
		Resource:         "res",
		Grade:            degrade.GradeExceptionCount,
		Count:            0,
		TimeWindow:       30 * time.Second,
		StatInterval:     500 * time.Millisecond,
		MinRequestAmount: 1,
	})
	cb := mgr.BreakersFor("res")[0]

	// One failure trips the breaker.
	failOnce(t, engine, "res")
	assert.Equal(t, degrade.Open, cb.CurrentState())

	// Still short-circuiting five seconds later.
	ctime.Advance(5_000)
	_, err := engine.Entry("res")
	require.Error(t, err)
	assert.True(t, guard.IsBlockError(err))
	assert.Equal(t, degrade.Open, cb.CurrentState())

	// After the recovery timeout one probe goes through half-open.
	ctime.Advance(25_000)
	probe, err := engine.Entry("res")
	require.NoError(t, err)
	assert.Equal(t, degrade.HalfOpen, cb.CurrentState())

	probe.Exit()
	assert.Equal(t, degrade.Closed, cb.CurrentState())
}

func TestExceptionBreaker_HalfOpenAdmitsSingleProbe(t *testing.T) {
	defer ctime.Freeze(210_000_000)()

	engine, mgr := newEngine(&degrade.Rule{
		Resource:         "res",
		Grade:            degrade.GradeExceptionCount,
		Count:            0,
		TimeWindow:       10 * time.Second,
		MinRequestAmount: 1,
	})
	cb := mgr.BreakersFor("res")[0]

	failOnce(t, engine, "res")
	require.Equal(t, degrade.Open, cb.CurrentState())

	ctime.Advance(10_000)
	probe, err := engine.Entry("res")
	require.NoError(t, err)

	// The second caller is rejected while the probe is in flight.
	_, err = engine.Entry("res")
	require.Error(t, err)

	probe.SetError(errBoom)
	probe.Exit()
	assert.Equal(t, degrade.Open, cb.CurrentState())
}

func TestExceptionBreaker_RatioMode(t *testing.T) {
	defer ctime.Freeze(220_000_000)()

	engine, mgr := newEngine(&degrade.Rule{
		Resource:         "res",
		Grade:            degrade.GradeExceptionRatio,
		Count:            0.5,
		TimeWindow:       10 * time.Second,
		MinRequestAmount: 4,
	})
	cb := mgr.BreakersFor("res")[0]

	// 2/4 errors: ratio 0.5 is not strictly above the threshold.
	failOnce(t, engine, "res")
	succeedOnce(t, engine, "res")
	failOnce(t, engine, "res")
	succeedOnce(t, engine, "res")
	assert.Equal(t, degrade.Closed, cb.CurrentState())

	// One more failure pushes the ratio over.
	failOnce(t, engine, "res")
	assert.Equal(t, degrade.Open, cb.CurrentState())
}

func TestExceptionBreaker_MinRequestAmountHoldsFire(t *testing.T) {
	defer ctime.Freeze(230_000_000)()

	engine, mgr := newEngine(&degrade.Rule{
		Resource:         "res",
		Grade:            degrade.GradeExceptionCount,
		Count:            0,
		TimeWindow:       10 * time.Second,
		MinRequestAmount: 3,
	})
	cb := mgr.BreakersFor("res")[0]

	failOnce(t, engine, "res")
	failOnce(t, engine, "res")
	assert.Equal(t, degrade.Closed, cb.CurrentState())

	failOnce(t, engine, "res")
	assert.Equal(t, degrade.Open, cb.CurrentState())
}

func TestBreaker_ProbeBlockedDownstreamReopens(t *testing.T) {
	defer ctime.Freeze(240_000_000)()

	// Two breakers on the same resource with different recovery timeouts:
	// when the first goes half-open its probe is still blocked by the second,
	// and the terminate hook snaps the first back to open.
	engine, mgr := newEngine(
		&degrade.Rule{
			Resource:         "res",
			Grade:            degrade.GradeExceptionCount,
			Count:            0,
			TimeWindow:       30 * time.Second,
			MinRequestAmount: 1,
		},
		&degrade.Rule{
			Resource:         "res",
			Grade:            degrade.GradeExceptionCount,
			Count:            0,
			TimeWindow:       60 * time.Second,
			MinRequestAmount: 1,
		},
	)
	b1 := mgr.BreakersFor("res")[0]
	b2 := mgr.BreakersFor("res")[1]

	failOnce(t, engine, "res")
	require.Equal(t, degrade.Open, b1.CurrentState())
	require.Equal(t, degrade.Open, b2.CurrentState())

	ctime.Advance(30_000)
	_, err := engine.Entry("res")
	require.Error(t, err)
	assert.True(t, guard.IsBlockError(err))

	assert.Equal(t, degrade.Open, b1.CurrentState())
	assert.Equal(t, degrade.Open, b2.CurrentState())
}

func TestSlowRtBreaker_OpensOnSlowRatio(t *testing.T) {
	restore := ctime.Freeze(250_000_000)

	engine, mgr := newEngine(&degrade.Rule{
		Resource:         "res",
		Grade:            degrade.GradeSlowRatio,
		Count:            0.4,
		TimeWindow:       10 * time.Second,
		MaxAllowedRt:     50 * time.Millisecond,
		MinRequestAmount: 2,
	})
	cb := mgr.BreakersFor("res")[0]

	// Fast call.
	succeedOnce(t, engine, "res")

	// Slow call: the clock moves between entry and exit.
	e, err := engine.Entry("res")
	require.NoError(t, err)
	ctime.Advance(200)
	e.Exit()

	assert.Equal(t, degrade.Open, cb.CurrentState())
	restore()
}

func TestBreaker_NextRetryIncreasesOnEveryOpen(t *testing.T) {
	defer ctime.Freeze(260_000_000)()

	engine, mgr := newEngine(&degrade.Rule{
		Resource:         "res",
		Grade:            degrade.GradeExceptionCount,
		Count:            0,
		TimeWindow:       10 * time.Second,
		MinRequestAmount: 1,
	})
	cb := mgr.BreakersFor("res")[0].(*degrade.ExceptionBreaker)

	failOnce(t, engine, "res")
	first := cb.NextRetryMs()
	assert.Equal(t, int64(260_000_000+10_000), first)

	// Failed probe: half-open back to open with a later retry instant.
	ctime.Advance(10_000)
	probe, err := engine.Entry("res")
	require.NoError(t, err)
	probe.SetError(errBoom)
	probe.Exit()

	second := cb.NextRetryMs()
	assert.Greater(t, second, first)
	assert.Equal(t, degrade.Open, cb.CurrentState())
}

func TestBreaker_ObserversAreNotifiedSynchronously(t *testing.T) {
	defer ctime.Freeze(270_000_000)()

	engine, mgr := newEngine(&degrade.Rule{
		Resource:         "res",
		Grade:            degrade.GradeExceptionCount,
		Count:            0,
		TimeWindow:       10 * time.Second,
		MinRequestAmount: 1,
	})

	type transition struct{ prev, cur degrade.State }
	var seen []transition
	mgr.RegisterStateChangeObserver(func(prev, cur degrade.State, rule *degrade.Rule, snapshot float64) {
		seen = append(seen, transition{prev, cur})
	})

	failOnce(t, engine, "res")
	require.Len(t, seen, 1)
	assert.Equal(t, transition{degrade.Closed, degrade.Open}, seen[0])
}

func TestManager_RejectsInvalidRules(t *testing.T) {
	mgr := degrade.NewManager()
	mgr.LoadRules([]*degrade.Rule{
		{Resource: "", TimeWindow: time.Second},
		{Resource: "res", TimeWindow: 0},
		{Resource: "res", Grade: degrade.GradeExceptionRatio, Count: 1.5, TimeWindow: time.Second},
		{Resource: "res", TimeWindow: time.Second},
	})
	assert.Len(t, mgr.BreakersFor("res"), 1)
}
