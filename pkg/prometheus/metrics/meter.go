package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/Borislavv/traffic-guard/pkg/prometheus/metrics/keyword"
	"github.com/VictoriaMetrics/metrics"
)

// Meter receives admission outcomes and breaker transitions for export.
type Meter interface {
	IncPass(resource string)
	IncBlock(resource, blockType, limitApp string)
	SetBreakerState(resource string, state int)
	ObserveResponseTime(resource string, d time.Duration)
}

type Metrics struct{}

var _ Meter = (*Metrics)(nil)

func New() *Metrics {
	return &Metrics{}
}

var bufPool = sync.Pool{
	New: func() any {
		b := make([]byte, 0, 128)
		return &b
	},
}

func getBuf() *[]byte {
	return bufPool.Get().(*[]byte)
}

func putBuf(b *[]byte) {
	*b = (*b)[:0]
	bufPool.Put(b)
}

func (m *Metrics) IncPass(resource string) {
	safe := sanitize(resource)

	buf := getBuf()
	defer putBuf(buf)

	*buf = append(*buf, keyword.PassTotal...)
	*buf = append(*buf, `{resource="`...)
	*buf = append(*buf, safe...)
	*buf = append(*buf, `"}`...)

	metrics.GetOrCreateCounter(string(*buf)).Inc()
}

func (m *Metrics) IncBlock(resource, blockType, limitApp string) {
	safeResource, safeType, safeApp := sanitize(resource), sanitize(blockType), sanitize(limitApp)

	buf := getBuf()
	defer putBuf(buf)

	*buf = append(*buf, keyword.BlockTotal...)
	*buf = append(*buf, `{resource="`...)
	*buf = append(*buf, safeResource...)
	*buf = append(*buf, `",type="`...)
	*buf = append(*buf, safeType...)
	*buf = append(*buf, `",limit_app="`...)
	*buf = append(*buf, safeApp...)
	*buf = append(*buf, `"}`...)

	metrics.GetOrCreateCounter(string(*buf)).Inc()
}

func (m *Metrics) SetBreakerState(resource string, state int) {
	safe := sanitize(resource)

	buf := getBuf()
	defer putBuf(buf)

	*buf = append(*buf, keyword.BreakerState...)
	*buf = append(*buf, `{resource="`...)
	*buf = append(*buf, safe...)
	*buf = append(*buf, `"}`...)

	metrics.GetOrCreateGauge(string(*buf), nil).Set(float64(state))
}

func (m *Metrics) ObserveResponseTime(resource string, d time.Duration) {
	safe := sanitize(resource)

	buf := getBuf()
	defer putBuf(buf)

	*buf = append(*buf, keyword.ResponseTimeMs...)
	*buf = append(*buf, `{resource="`...)
	*buf = append(*buf, safe...)
	*buf = append(*buf, `"}`...)

	metrics.GetOrCreateHistogram(string(*buf)).Update(float64(d.Milliseconds()))
}

// sanitize escapes quotes and backslashes in label values.
func sanitize(s string) string {
	if !strings.ContainsAny(s, `"\`) {
		return s
	}
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}
