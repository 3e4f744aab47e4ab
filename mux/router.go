package mux

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
)

// Router is an ordered table of route entries: middleware, handlers and
// mounted sub-routers. Entries are evaluated in registration order and the
// first match decides; middleware decide whether the walk continues by
// calling next.
//
// It implements the http.Handler interface, so it can be registered to serve
// requests:
//
//	r := mux.NewRouter()
//	r.Get("/:id", handler)
//	http.ListenAndServe(":8080", r)
//
// A router is configured from a single goroutine and compiled on the first
// request (or Listen). From then on it is frozen: it is shared read-only by
// concurrent requests and further registrations are rejected.
type Router struct {
	// NotFoundHandler runs when the walk of the root table ends without any
	// handler entry matching and without a response. If nil, a 404
	// "404 page not found" reply is sent.
	// Corresponds to 404 Not Found per RFC 7231 Section 6.5.4.
	NotFoundHandler HandlerFunc

	// Files resolves names passed to Context.SendFile.
	// If nil, the process working directory is used.
	Files FileSystem

	// Codecs are the content codings offered by Context.SendFile, in
	// preference order. If nil, gzip and deflate at default level are used.
	Codecs []Codec

	// MIMETypes resolves the Content-Type of files sent by SendFile.
	// If nil, DefaultMIMEResolver is used.
	MIMETypes MIMEResolver

	// JSON encodes values for Context.SendJSON.
	// If nil, encoding/json is used.
	JSON JSONEncoder

	entries   []*entry
	skipClean bool

	errMu sync.Mutex
	err   error

	frozen   atomic.Bool
	once     sync.Once
	compiled *table
}

// NewRouter returns a new, empty router.
func NewRouter() *Router {
	return &Router{}
}

// ServeHTTP walks the route table for the request.
// Implements http.Handler per RFC 7230 Section 3.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	t, err := r.table()
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	// Normalize the request path per RFC 3986 Section 5.2.4
	// (removing dot segments) unless SkipClean is enabled.
	path := req.URL.Path
	if !r.skipClean {
		path = cleanPath(path)
	}

	c := newContext(w, req, r, path)

	switch result := t.walk(c); {
	case !c.open:
	case result == walkExhausted && !c.handled:
		nf := r.NotFoundHandler
		if nf == nil {
			nf = notFound
		}
		nf(c)
	}

	if c.open {
		// Halted chains and handlers that never finalized still owe the
		// client a status line.
		_ = c.End()
	}

	c.runDone()
}

// SkipClean defines the path cleaning behavior of the router.
// When true, the request path is matched as received.
func (r *Router) SkipClean(value bool) *Router {
	r.skipClean = value
	return r
}

// Err returns the configuration errors recorded by registration calls and
// by compilation, joined, or nil.
func (r *Router) Err() error {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	return r.err
}

// table compiles the router once and returns the compiled table.
func (r *Router) table() (*table, error) {
	r.once.Do(func() {
		if err := r.Err(); err != nil {
			return
		}

		t, err := compile(r, "", make(map[*Router]bool))
		if err != nil {
			r.recordErr(err)
			return
		}
		if err := r.treeErr(make(map[*Router]bool)); err != nil {
			r.recordErr(err)
			return
		}

		r.compiled = t
	})

	if r.compiled == nil {
		return nil, r.Err()
	}

	return r.compiled, nil
}

// Compile freezes the router and every router mounted in it and returns the
// first configuration error found. It is called implicitly by ServeHTTP and
// Listen.
func (r *Router) Compile() error {
	_, err := r.table()
	return err
}

// treeErr collects configuration errors recorded on mounted routers.
func (r *Router) treeErr(seen map[*Router]bool) error {
	if seen[r] {
		return nil
	}
	seen[r] = true

	var errs []error
	for _, e := range r.entries {
		if e.kind != entryRouter {
			continue
		}
		if err := e.router.Err(); err != nil {
			errs = append(errs, err)
		}
		if err := e.router.treeErr(seen); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (r *Router) recordErr(err error) {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	r.err = errors.Join(r.err, err)
}

// add validates and appends e. Invalid or late registrations are dropped
// and recorded.
func (r *Router) add(e *entry) *Router {
	if r.frozen.Load() {
		r.recordErr(fmt.Errorf("%w: %s %q", ErrRouterFrozen, e.kind, e.pattern))
		return r
	}

	switch {
	case e.kind == entryMiddleware && e.middleware == nil,
		e.kind == entryHandler && e.handler == nil:
		r.recordErr(fmt.Errorf("%w: %s %q", ErrNilHandler, e.kind, e.pattern))
		return r
	case e.kind == entryRouter && e.router == nil:
		r.recordErr(fmt.Errorf("%w: mount %q", ErrNilRouter, e.pattern))
		return r
	case e.pattern != "" && !strings.HasPrefix(e.pattern, "/"):
		r.recordErr(fmt.Errorf("%w: %q must start with a slash", ErrInvalidPattern, e.pattern))
		return r
	}

	r.entries = append(r.entries, e)
	return r
}

// --- Registration ---

// Use appends a middleware that runs for every request reaching this
// position of the table.
func (r *Router) Use(mw MiddlewareFunc) *Router {
	return r.add(&entry{kind: entryMiddleware, middleware: mw})
}

// UsePath appends a middleware that runs only for requests whose path
// starts with the segments of prefix (relative to the router's own mount
// point).
func (r *Router) UsePath(prefix string, mw MiddlewareFunc) *Router {
	return r.add(&entry{kind: entryMiddleware, pattern: prefix, middleware: mw})
}

// Mount appends sub as a nested table at prefix. The effective prefix of
// sub is resolved when the root router is compiled, so sub may be filled
// before or after it is mounted and may be mounted more than once.
func (r *Router) Mount(prefix string, sub *Router) *Router {
	return r.add(&entry{kind: entryRouter, pattern: prefix, router: sub})
}

// Group mounts sub at the router's own prefix.
func (r *Router) Group(sub *Router) *Router {
	return r.Mount("", sub)
}

// Handle appends a handler for method and pattern. An empty method matches
// any method; an empty pattern matches every path under the router prefix.
func (r *Router) Handle(method, pattern string, h HandlerFunc) *Router {
	return r.add(&entry{kind: entryHandler, method: method, pattern: pattern, handler: h})
}

// All appends a handler for pattern that matches any method.
func (r *Router) All(pattern string, h HandlerFunc) *Router {
	return r.Handle("", pattern, h)
}

// Get appends a GET handler for pattern.
func (r *Router) Get(pattern string, h HandlerFunc) *Router {
	return r.Handle(http.MethodGet, pattern, h)
}

// Head appends a HEAD handler for pattern.
func (r *Router) Head(pattern string, h HandlerFunc) *Router {
	return r.Handle(http.MethodHead, pattern, h)
}

// Post appends a POST handler for pattern.
func (r *Router) Post(pattern string, h HandlerFunc) *Router {
	return r.Handle(http.MethodPost, pattern, h)
}

// Put appends a PUT handler for pattern.
func (r *Router) Put(pattern string, h HandlerFunc) *Router {
	return r.Handle(http.MethodPut, pattern, h)
}

// Patch appends a PATCH handler for pattern.
func (r *Router) Patch(pattern string, h HandlerFunc) *Router {
	return r.Handle(http.MethodPatch, pattern, h)
}

// Delete appends a DELETE handler for pattern.
func (r *Router) Delete(pattern string, h HandlerFunc) *Router {
	return r.Handle(http.MethodDelete, pattern, h)
}

// Options appends an OPTIONS handler for pattern.
func (r *Router) Options(pattern string, h HandlerFunc) *Router {
	return r.Handle(http.MethodOptions, pattern, h)
}

// Trace appends a TRACE handler for pattern.
func (r *Router) Trace(pattern string, h HandlerFunc) *Router {
	return r.Handle(http.MethodTrace, pattern, h)
}

// Connect appends a CONNECT handler for pattern.
func (r *Router) Connect(pattern string, h HandlerFunc) *Router {
	return r.Handle(http.MethodConnect, pattern, h)
}

// --- Inspection ---

// RouteInfo describes one entry visited by Walk.
type RouteInfo struct {
	// Kind is "middleware", "handler" or "router".
	Kind string
	// Method is the handler method, empty for any.
	Method string
	// Pattern is the entry template joined with every enclosing mount
	// path. Empty means the entry applies to all paths.
	Pattern string
	// Depth is the number of routers enclosing the entry.
	Depth int
}

// WalkFunc is the type of the function called for each entry visited by
// Walk. Returning SkipRouter from a router entry skips its contents.
type WalkFunc func(info RouteInfo) error

// SkipRouter is used as a return value from WalkFunc to indicate that the
// router that walk is about to descend into should be skipped.
var SkipRouter = errors.New("skip this router") //nolint:revive,staticcheck // matches filepath.SkipDir naming

// Walk visits every entry of the router and its mounted routers in dispatch
// order. Walk does not freeze the router.
func (r *Router) Walk(fn WalkFunc) error {
	return r.walkEntries(fn, "", 0, make(map[*Router]bool))
}

func (r *Router) walkEntries(fn WalkFunc, prefix string, depth int, visiting map[*Router]bool) error {
	if visiting[r] {
		return fmt.Errorf("%w: router mounted inside itself at %q", ErrMountCycle, prefix)
	}
	visiting[r] = true
	defer delete(visiting, r)

	for _, e := range r.entries {
		info := RouteInfo{
			Kind:   e.kind.String(),
			Method: e.method,
			Depth:  depth,
		}

		switch e.kind {
		case entryRouter:
			info.Pattern = mountPath(prefix, e.pattern)
		case entryMiddleware:
			info.Pattern = mountPath(prefix, e.pattern)
		default:
			info.Pattern = joinPath(prefix, e.pattern)
		}

		err := fn(info)
		if errors.Is(err, SkipRouter) {
			continue
		}
		if err != nil {
			return err
		}

		if e.kind == entryRouter {
			if err := e.router.walkEntries(fn, info.Pattern, depth+1, visiting); err != nil {
				return err
			}
		}
	}

	return nil
}

// Methods returns the methods of the handler entries whose pattern matches
// path, sorted and without duplicates. A handler registered for any method
// contributes every standard method. It is used to answer OPTIONS
// preflights and to populate Allow headers.
func (r *Router) Methods(path string) []string {
	t, err := r.table()
	if err != nil {
		return nil
	}

	segs := splitPath(cleanPath(path))
	found := make(map[string]bool)
	t.collectMethods(segs, found)

	return sortedMethods(found)
}

func (t *table) collectMethods(segs []string, found map[string]bool) {
	for i := range t.entries {
		e := &t.entries[i]
		if e.hasPath && !e.path.match(segs, e.prefix) {
			continue
		}

		switch e.kind {
		case entryRouter:
			e.table.collectMethods(segs, found)
		case entryHandler:
			if e.method == "" {
				for _, m := range standardMethods {
					found[m] = true
				}
				continue
			}
			found[e.method] = true
		}
	}
}

// notFound is the default NotFoundHandler.
func notFound(c *Context) {
	_ = c.Status(http.StatusNotFound).
		Header("Content-Type", "text/plain; charset=utf-8").
		Header("X-Content-Type-Options", "nosniff").
		SendString("404 page not found\n")
}
