package middleware

import "github.com/valyala/fasthttp"

// HttpMiddleware wraps the request handler, first in the slice runs first.
type HttpMiddleware interface {
	Middleware(next fasthttp.RequestHandler) fasthttp.RequestHandler
}
