package window

import (
	"testing"

	"github.com/Borislavv/traffic-guard/pkg/config"
	"github.com/stretchr/testify/assert"
)

func TestSlidingMetric_SumsAndDetails(t *testing.T) {
	m := NewSlidingMetric(2, 1000, false)

	m.AddPass(100, 3)
	m.AddBlock(100, 1)
	m.AddSuccess(100, 2)
	m.AddRt(100, 40)
	m.AddRt(100, 10)
	m.AddException(600, 1)
	m.AddPass(600, 2)

	assert.Equal(t, int64(5), m.Pass(900))
	assert.Equal(t, int64(1), m.Block(900))
	assert.Equal(t, int64(2), m.Success(900))
	assert.Equal(t, int64(1), m.Exception(900))
	assert.Equal(t, int64(50), m.Rt(900))
	assert.Equal(t, int64(10), m.MinRt(900))

	items := m.Details(900)
	assert.Len(t, items, 2)
	for _, item := range items {
		if item.Timestamp == 0 {
			assert.Equal(t, int64(3), item.Pass)
			// rt column is the per-bucket average
			assert.Equal(t, int64(25), item.Rt)
		}
	}
}

func TestSlidingMetric_MaxSuccessIsAtLeastOne(t *testing.T) {
	m := NewSlidingMetric(2, 1000, false)
	assert.Equal(t, int64(1), m.MaxSuccess(100))

	m.AddSuccess(100, 7)
	m.AddSuccess(600, 3)
	assert.Equal(t, int64(7), m.MaxSuccess(900))
}

func TestSlidingMetric_WindowPass(t *testing.T) {
	m := NewSlidingMetric(2, 1000, true)
	m.AddPass(100, 4)

	assert.Equal(t, int64(4), m.WindowPass(100))
	assert.Equal(t, int64(0), m.WindowPass(600))  // different bucket
	assert.Equal(t, int64(0), m.WindowPass(1100)) // recycled moment
}

func TestSlidingMetric_WaitingRoundTrip(t *testing.T) {
	m := NewSlidingMetric(2, 1000, true)

	m.AddWaiting(1000, 2)
	assert.Equal(t, int64(2), m.Waiting(700))

	// The borrowed passes surface in the pass sum once the slot arrives.
	assert.Equal(t, int64(2), m.Pass(1100))
	assert.Equal(t, int64(0), m.Waiting(1100))
}

func TestSlidingMetric_PreviousWindowCounters(t *testing.T) {
	m := NewSlidingMetric(2, 1000, false)
	m.AddPass(600, 5)
	m.AddBlock(600, 2)

	assert.Equal(t, int64(5), m.PreviousWindowPass(1100))
	assert.Equal(t, int64(2), m.PreviousWindowBlock(1100))
	assert.Equal(t, int64(0), m.PreviousWindowPass(2300))
}

func TestMetricBucket_ResetRestoresMinRt(t *testing.T) {
	b := NewMetricBucket()
	b.AddRt(17)
	assert.Equal(t, int64(17), b.MinRt())

	b.Reset()
	assert.Equal(t, config.Stat().StatisticMaxRtMs, b.MinRt())
	assert.Equal(t, int64(0), b.Rt())
}
