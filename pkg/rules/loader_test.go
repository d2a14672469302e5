package rules

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Borislavv/traffic-guard/pkg/degrade"
	"github.com/Borislavv/traffic-guard/pkg/flow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRules = `
flow:
  - resource: "GET:/api/v1/users"
    grade: qps
    count: 50
    strategy: relate
    ref_resource: "GET:/api/v1/orders"
    limit_app: default
  - resource: "GET:/api/v1/orders"
    grade: thread
    count: 8

degrade:
  - resource: "GET:/api/v1/users"
    grade: slow_ratio
    count: 0.3
    time_window: 15s
    stat_interval: 1s
    max_allowed_rt: 100ms
    min_request_amount: 10
  - resource: "GET:/api/v1/orders"
    grade: exception_count
    count: 5
    time_window: 30s
`

func TestLoad_ParsesFlowAndDegradeRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleRules), 0o644))

	f, err := Load(path)
	require.NoError(t, err)
	require.Len(t, f.Flow, 2)
	require.Len(t, f.Degrade, 2)

	assert.Equal(t, flow.GradeQps, f.Flow[0].Grade)
	assert.Equal(t, flow.StrategyRelate, f.Flow[0].Strategy)
	assert.Equal(t, "GET:/api/v1/orders", f.Flow[0].RefResource)
	assert.Equal(t, flow.GradeThread, f.Flow[1].Grade)

	assert.Equal(t, degrade.GradeSlowRatio, f.Degrade[0].Grade)
	assert.Equal(t, 100*time.Millisecond, f.Degrade[0].MaxAllowedRt)
	assert.Equal(t, degrade.GradeExceptionCount, f.Degrade[1].Grade)

	fm := flow.NewManager()
	dm := degrade.NewManager()
	f.Apply(fm, dm)
	assert.Len(t, fm.RulesFor("GET:/api/v1/users"), 1)
	assert.Len(t, dm.BreakersFor("GET:/api/v1/orders"), 1)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/does/not/exist.yaml")
	assert.Error(t, err)
}

func TestLoad_BrokenYaml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("flow: ["), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
