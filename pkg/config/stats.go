package config

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/spf13/viper"
)

// Process-wide statistic knobs. They are read on every node construction and on
// every priority-wait decision, so they live behind one atomic pointer instead
// of a lock. Defaults match the classic sliding-window setup: two 500 ms
// buckets per second.
type StatConfig struct {
	SampleCount      int   // buckets in the sub-second window
	IntervalMs       int64 // total sub-second window span
	OccupyTimeoutMs  int64 // upper bound for a priority wait
	StatisticMaxRtMs int64 // rt ceiling, also the initial min-rt of a fresh bucket
}

const (
	DefaultSampleCount      = 2
	DefaultIntervalMs       = 1000
	DefaultOccupyTimeoutMs  = 500
	DefaultStatisticMaxRtMs = 5000
)

var statCfg atomic.Pointer[StatConfig]

func init() {
	statCfg.Store(&StatConfig{
		SampleCount:      DefaultSampleCount,
		IntervalMs:       DefaultIntervalMs,
		OccupyTimeoutMs:  DefaultOccupyTimeoutMs,
		StatisticMaxRtMs: DefaultStatisticMaxRtMs,
	})
}

// Stat returns the current statistic knobs. The pointer is immutable, callers
// must not mutate it.
func Stat() *StatConfig {
	return statCfg.Load()
}

// ApplyStat swaps the process-wide knobs. Rings created before the swap keep
// their geometry, which is why applications apply it once on startup.
func ApplyStat(c *StatConfig) error {
	if c.SampleCount <= 0 {
		return fmt.Errorf("invalid sample count: %d", c.SampleCount)
	}
	if c.IntervalMs <= 0 || c.IntervalMs%int64(c.SampleCount) != 0 {
		return fmt.Errorf("interval %dms is not evenly divided by sample count %d", c.IntervalMs, c.SampleCount)
	}
	if c.OccupyTimeoutMs <= 0 || c.OccupyTimeoutMs > c.IntervalMs {
		return fmt.Errorf("occupy timeout %dms must be in (0, %dms]", c.OccupyTimeoutMs, c.IntervalMs)
	}
	if c.StatisticMaxRtMs <= 0 {
		return fmt.Errorf("invalid statistic max rt: %dms", c.StatisticMaxRtMs)
	}
	statCfg.Store(c)
	return nil
}

// ApplyStatFromYaml merges the yaml stats section over the current knobs.
func ApplyStatFromYaml(s Stats) error {
	c := *Stat()
	if s.SampleCount > 0 {
		c.SampleCount = s.SampleCount
	}
	if s.Interval > 0 {
		c.IntervalMs = s.Interval.Milliseconds()
	}
	if s.OccupyTimeout > 0 {
		c.OccupyTimeoutMs = s.OccupyTimeout.Milliseconds()
	}
	if s.StatisticMaxRt > 0 {
		c.StatisticMaxRtMs = s.StatisticMaxRt.Milliseconds()
	}
	return ApplyStat(&c)
}

// ApplyStatFromEnv overrides the knobs from GUARD_* environment variables:
// GUARD_SAMPLE_COUNT, GUARD_INTERVAL_MS, GUARD_OCCUPY_TIMEOUT_MS,
// GUARD_STATISTIC_MAX_RT_MS. Called after the yaml config so the environment
// always wins.
func ApplyStatFromEnv() error {
	v := viper.New()
	v.SetEnvPrefix("GUARD")
	v.AutomaticEnv()

	cur := Stat()
	v.SetDefault("SAMPLE_COUNT", cur.SampleCount)
	v.SetDefault("INTERVAL_MS", cur.IntervalMs)
	v.SetDefault("OCCUPY_TIMEOUT_MS", cur.OccupyTimeoutMs)
	v.SetDefault("STATISTIC_MAX_RT_MS", cur.StatisticMaxRtMs)

	return ApplyStat(&StatConfig{
		SampleCount:      v.GetInt("SAMPLE_COUNT"),
		IntervalMs:       v.GetInt64("INTERVAL_MS"),
		OccupyTimeoutMs:  v.GetInt64("OCCUPY_TIMEOUT_MS"),
		StatisticMaxRtMs: v.GetInt64("STATISTIC_MAX_RT_MS"),
	})
}

// OccupyTimeoutMs is the single read a priority-wait decision is allowed to
// make, the value is then carried through the whole wait.
func OccupyTimeoutMs() int64 { return Stat().OccupyTimeoutMs }

// Interval returns the sub-second window span as a duration.
func Interval() time.Duration { return time.Duration(Stat().IntervalMs) * time.Millisecond }
