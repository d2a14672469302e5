package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatDefaults(t *testing.T) {
	c := Stat()
	assert.Equal(t, DefaultSampleCount, c.SampleCount)
	assert.Equal(t, int64(DefaultIntervalMs), c.IntervalMs)
	assert.Equal(t, int64(DefaultOccupyTimeoutMs), c.OccupyTimeoutMs)
	assert.Equal(t, int64(DefaultStatisticMaxRtMs), c.StatisticMaxRtMs)
}

func TestApplyStatValidation(t *testing.T) {
	cur := Stat()
	defer func() { require.NoError(t, ApplyStat(cur)) }()

	assert.Error(t, ApplyStat(&StatConfig{SampleCount: 0, IntervalMs: 1000, OccupyTimeoutMs: 500, StatisticMaxRtMs: 5000}))
	assert.Error(t, ApplyStat(&StatConfig{SampleCount: 3, IntervalMs: 1000, OccupyTimeoutMs: 500, StatisticMaxRtMs: 5000}))
	assert.Error(t, ApplyStat(&StatConfig{SampleCount: 2, IntervalMs: 1000, OccupyTimeoutMs: 1500, StatisticMaxRtMs: 5000}))
	assert.Error(t, ApplyStat(&StatConfig{SampleCount: 2, IntervalMs: 1000, OccupyTimeoutMs: 500, StatisticMaxRtMs: 0}))

	require.NoError(t, ApplyStat(&StatConfig{SampleCount: 4, IntervalMs: 2000, OccupyTimeoutMs: 400, StatisticMaxRtMs: 4000}))
	assert.Equal(t, 4, Stat().SampleCount)
}

func TestApplyStatFromYamlMergesOverCurrent(t *testing.T) {
	cur := Stat()
	defer func() { require.NoError(t, ApplyStat(cur)) }()

	require.NoError(t, ApplyStatFromYaml(Stats{Interval: 2 * time.Second}))
	assert.Equal(t, int64(2000), Stat().IntervalMs)
	assert.Equal(t, cur.SampleCount, Stat().SampleCount)
}

func TestApplyStatFromEnvOverrides(t *testing.T) {
	cur := Stat()
	defer func() { require.NoError(t, ApplyStat(cur)) }()

	t.Setenv("GUARD_SAMPLE_COUNT", "4")
	t.Setenv("GUARD_INTERVAL_MS", "2000")

	require.NoError(t, ApplyStatFromEnv())
	assert.Equal(t, 4, Stat().SampleCount)
	assert.Equal(t, int64(2000), Stat().IntervalMs)
}
