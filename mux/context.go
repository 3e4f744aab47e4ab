package mux

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
)

// HandlerFunc is a terminal route handler. It is expected to finalize the
// response; the dispatcher moves on to the next matching entry when it
// returns, but every finalizer is a no-op once the response is closed.
type HandlerFunc func(c *Context)

// NextFunc resumes the walk of the route table after a middleware. Only the
// first call per middleware invocation has an effect, and the remainder of
// the chain has run by the time it returns.
type NextFunc func()

// MiddlewareFunc is a route table entry that cooperates with the entries
// after it through next. Returning without calling next halts the chain.
type MiddlewareFunc func(c *Context, next NextFunc)

// Context carries one request through the route table and accumulates the
// response. It is created by Router.ServeHTTP, owned by the goroutine
// serving the request and must not be retained after the handler returns.
type Context struct {
	rw      *responseWriter
	w       http.ResponseWriter
	request *http.Request
	router  *Router

	method   string
	path     string
	segments []string
	params   map[string]string
	query    url.Values
	cookies  map[string]string
	values   map[any]any

	// mount is the effective prefix of the table whose entry is running.
	mount string
	// route is the full template of the last handler entry invoked.
	route string
	// handled is set once any handler entry has run.
	handled bool

	status      int
	jar         []cookiePair
	jarLine     string
	open        bool
	codec       Codec
	codecMinLen int
	beforeWrite []func(*Context)
	done        []func(*Context)
}

type cookiePair struct {
	name  string
	value string
}

func newContext(w http.ResponseWriter, req *http.Request, router *Router, path string) *Context {
	rw := &responseWriter{ResponseWriter: w}
	c := &Context{
		rw:       rw,
		w:        rw,
		request:  req,
		router:   router,
		method:   req.Method,
		path:     path,
		segments: splitPath(path),
		params:   make(map[string]string),
		status:   http.StatusOK,
		open:     true,
	}
	rw.owner = c
	return c
}

// NewContext returns a standalone context for w and req, as if req had been
// dispatched by r. It is intended for testing handlers and middleware
// outside of a route table. r may be nil.
func NewContext(w http.ResponseWriter, req *http.Request, r *Router) *Context {
	if r == nil {
		r = NewRouter()
	}
	return newContext(w, req, r, cleanPath(req.URL.Path))
}

// --- Request ---

// Request returns the request being served. Middleware that replace the
// request context should use SetContext.
func (c *Context) Request() *http.Request {
	return c.request
}

// Writer returns the response writer. Writing to it directly closes the
// response for the rest of the chain.
func (c *Context) Writer() http.ResponseWriter {
	return c.w
}

// Context returns the request context.
func (c *Context) Context() context.Context {
	return c.request.Context()
}

// SetContext replaces the request context, for example to attach a span or
// a deadline for the rest of the chain.
func (c *Context) SetContext(ctx context.Context) {
	c.request = c.request.WithContext(ctx)
}

// Method returns the request method used for route matching.
func (c *Context) Method() string {
	return c.method
}

// SetMethod changes the method used to match the remaining entries.
func (c *Context) SetMethod(method string) {
	c.method = method
	c.request.Method = method
}

// Path returns the (cleaned) request path used for route matching.
func (c *Context) Path() string {
	return c.path
}

// MountPath returns the effective prefix of the router whose entry is
// running. It is empty at the root.
func (c *Context) MountPath() string {
	return c.mount
}

// RelativePath returns the request path with the segments of MountPath
// removed. A trailing "*" in the mount path does not consume a segment.
// The result always starts with a slash.
func (c *Context) RelativePath() string {
	if c.mount == "" {
		return c.path
	}

	p := compilePattern(c.mount)
	depth := p.literalDepth()
	if len(c.segments) <= depth {
		return "/"
	}

	return "/" + strings.Join(c.segments[depth:], "/")
}

// Route returns the full template of the last handler entry invoked, or an
// empty string when none has run yet.
func (c *Context) Route() string {
	return c.route
}

// Param returns the path parameter bound under name.
func (c *Context) Param(name string) string {
	return c.params[name]
}

// Params returns the mutable map of bound path parameters.
func (c *Context) Params() map[string]string {
	return c.params
}

// RequestHeader returns the first value of the request header name.
func (c *Context) RequestHeader(name string) string {
	return c.request.Header.Get(name)
}

// Query returns the first value of the query parameter name.
func (c *Context) Query(name string) string {
	return c.QueryValues().Get(name)
}

// QueryValues returns the parsed query string. It is parsed once per request.
func (c *Context) QueryValues() url.Values {
	if c.query == nil {
		c.query = c.request.URL.Query()
	}
	return c.query
}

// Cookies returns the request cookies by name. When a name is repeated the
// first occurrence wins.
func (c *Context) Cookies() map[string]string {
	if c.cookies == nil {
		list := c.request.Cookies()
		c.cookies = make(map[string]string, len(list))
		for _, ck := range list {
			if _, ok := c.cookies[ck.Name]; !ok {
				c.cookies[ck.Name] = ck.Value
			}
		}
	}
	return c.cookies
}

// CookieValue returns the value of the request cookie name.
func (c *Context) CookieValue(name string) (string, bool) {
	v, ok := c.Cookies()[name]
	return v, ok
}

// Set stores a value for the rest of the chain.
func (c *Context) Set(key, value any) {
	if c.values == nil {
		c.values = make(map[any]any)
	}
	c.values[key] = value
}

// Get returns a value stored with Set.
func (c *Context) Get(key any) (any, bool) {
	v, ok := c.values[key]
	return v, ok
}

// --- Response state ---

// Closed reports whether the response has been finalized or the client has
// gone away. Once Closed is true no further entries are dispatched.
func (c *Context) Closed() bool {
	return !c.open || c.request.Context().Err() != nil
}

// ResponseStatus returns the status code sent, or the pending status while
// the response is open.
func (c *Context) ResponseStatus() int {
	if c.rw.wroteHeader {
		return c.rw.status
	}
	return c.status
}

// ResponseHeader returns the response header map.
func (c *Context) ResponseHeader() http.Header {
	return c.w.Header()
}

// BytesWritten returns the number of body bytes written to the client.
func (c *Context) BytesWritten() int64 {
	return c.rw.written
}

// OnBeforeWrite registers fn to run right before the status line is
// written, while headers can still be changed. Hooks run in registration
// order.
func (c *Context) OnBeforeWrite(fn func(c *Context)) {
	c.beforeWrite = append(c.beforeWrite, fn)
}

// OnDone registers fn to run once the router has answered the request,
// after the route walk and any not-found reply. Hooks run in reverse
// registration order, like deferred calls. They do not run for contexts
// created with NewContext.
func (c *Context) OnDone(fn func(c *Context)) {
	c.done = append(c.done, fn)
}

func (c *Context) runDone() {
	for i := len(c.done) - 1; i >= 0; i-- {
		c.done[i](c)
	}
	c.done = nil
}

// UseCodec makes Send and Stream encode bodies with codec. Bodies passed to
// Send that are shorter than minLength are sent as is. A nil codec disables
// encoding.
func (c *Context) UseCodec(codec Codec, minLength int) {
	c.codec = codec
	c.codecMinLen = minLength
}

// Hijack hands the connection over to the caller, for protocols such as
// WebSocket that take over the response. The response is closed for the
// rest of the chain.
func (c *Context) Hijack() (http.ResponseWriter, *http.Request) {
	c.open = false
	return c.rw.ResponseWriter, c.request
}

// --- Response writer ---

// responseWriter records what reached the client. Sending the status line
// closes the owning context, whether it comes from a finalizer, a handler
// writing to Writer or an adapted net/http middleware.
type responseWriter struct {
	http.ResponseWriter
	owner       *Context
	status      int
	wroteHeader bool
	written     int64
}

func (w *responseWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.status = code
	w.wroteHeader = true
	if w.owner != nil {
		w.owner.open = false
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.written += int64(n)
	return n, err
}

// Flush implements http.Flusher when the underlying writer does.
func (w *responseWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		if !w.wroteHeader {
			w.WriteHeader(http.StatusOK)
		}
		f.Flush()
	}
}

// Hijack implements http.Hijacker when the underlying writer does.
func (w *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := w.ResponseWriter.(http.Hijacker); ok {
		if w.owner != nil {
			w.owner.open = false
		}
		return h.Hijack()
	}
	return nil, nil, errors.New("mux: response writer does not support hijacking")
}

// Unwrap returns the underlying writer for http.ResponseController.
func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
