package api

import (
	"github.com/Borislavv/traffic-guard/pkg/k8s/probe/liveness"
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"
)

// ProbeController answers k8s liveness checks from the cached probe verdict.
type ProbeController struct {
	probe liveness.Prober
}

func NewProbeController(probe liveness.Prober) *ProbeController {
	return &ProbeController{probe: probe}
}

func (c *ProbeController) AddRoute(r *router.Router) {
	r.GET("/healthz", func(ctx *fasthttp.RequestCtx) {
		if c.probe.IsAlive() {
			ctx.SetStatusCode(fasthttp.StatusOK)
			return
		}
		ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
	})
}
