package middleware

import (
	"errors"

	"github.com/Borislavv/traffic-guard/pkg/guard"
	"github.com/savsgio/gotils/strconv"
	"github.com/valyala/fasthttp"
)

var (
	blockedBody        = []byte(`{"error":"too many requests"}`)
	errUpstreamFailure = errors.New("handler returned 5xx")
)

// GuardMiddleware runs every request through the traffic-governance pipeline.
// The resource name is "<METHOD>:<path>", the context is the server name and
// the origin is taken from the X-Origin-App header when present.
type GuardMiddleware struct {
	guard       *guard.Guard
	contextName string
}

func NewGuardMiddleware(g *guard.Guard, contextName string) *GuardMiddleware {
	return &GuardMiddleware{guard: g, contextName: contextName}
}

func (m *GuardMiddleware) Middleware(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		resource := resourceName(ctx)
		origin := strconv.B2S(ctx.Request.Header.Peek("X-Origin-App"))

		entry, err := m.guard.Entry(resource,
			guard.WithContext(m.contextName),
			guard.WithOrigin(origin),
			guard.WithTrafficType(guard.Inbound),
		)
		if err != nil {
			ctx.SetStatusCode(fasthttp.StatusTooManyRequests)
			ctx.SetBody(blockedBody)
			return
		}

		next(ctx)

		if ctx.Response.StatusCode() >= fasthttp.StatusInternalServerError {
			entry.SetError(errUpstreamFailure)
		}
		entry.Exit()
	}
}

// resourceName builds "<METHOD>:<path>" with a single buffer allocation; the
// returned string shares that buffer instead of copying it.
func resourceName(ctx *fasthttp.RequestCtx) string {
	method := ctx.Method()
	path := ctx.Path()
	buf := make([]byte, 0, len(method)+1+len(path))
	buf = append(buf, method...)
	buf = append(buf, ':')
	buf = append(buf, path...)
	return strconv.B2S(buf)
}
