package api

import (
	"github.com/VictoriaMetrics/metrics"
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"
)

// MetricsController exposes the VictoriaMetrics registry in Prometheus text
// format.
type MetricsController struct{}

func NewMetricsController() *MetricsController { return &MetricsController{} }

func (c *MetricsController) AddRoute(r *router.Router) {
	r.GET("/metrics", func(ctx *fasthttp.RequestCtx) {
		metrics.WritePrometheus(ctx, true)
	})
}
