package mux

import "net/http"

// Adapt bridges a standard net/http middleware into the route table. The
// wrapped handler continues the walk, so the remaining entries run inside
// mw with the request and response writer it passes down. A response
// written by mw itself closes the chain.
//
//	r.Use(mux.Adapt(middleware.RealIP))
func Adapt(mw func(http.Handler) http.Handler) MiddlewareFunc {
	return func(c *Context, next NextFunc) {
		inner := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			prevW, prevReq := c.w, c.request

			c.w, c.request = w, req
			if req.Method != c.method {
				c.method = req.Method
			}

			next()

			c.w, c.request = prevW, prevReq
		})

		mw(inner).ServeHTTP(c.w, c.request)
	}
}

// WrapHandler turns a plain http.Handler into a terminal handler entry.
// The response is considered final when h returns.
func WrapHandler(h http.Handler) HandlerFunc {
	return func(c *Context) {
		h.ServeHTTP(c.w, c.request)
		c.open = false
	}
}

// WrapHandlerFunc is WrapHandler for a handler function.
func WrapHandlerFunc(f func(http.ResponseWriter, *http.Request)) HandlerFunc {
	return WrapHandler(http.HandlerFunc(f))
}
