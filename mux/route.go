package mux

import (
	"fmt"
	"strings"
)

// entryKind tags the variant stored in an entry.
type entryKind uint8

const (
	entryMiddleware entryKind = iota
	entryHandler
	entryRouter
)

// String returns the lowercase name of the entry kind.
func (k entryKind) String() string {
	switch k {
	case entryMiddleware:
		return "middleware"
	case entryHandler:
		return "handler"
	case entryRouter:
		return "router"
	default:
		return "unknown"
	}
}

// entry is one registered unit of routing behaviour. Exactly one of
// middleware, handler and router is set, according to kind.
type entry struct {
	kind entryKind

	// method restricts handler entries to one request method.
	// Empty matches any method.
	method string

	// pattern is the path template as registered, relative to the owning
	// router. Empty means "no path restriction".
	pattern string

	middleware MiddlewareFunc
	handler    HandlerFunc
	router     *Router
}

// compiledEntry is an entry bound to the effective prefix of the table it
// was compiled into.
type compiledEntry struct {
	*entry

	// path is the full template (table prefix joined with the entry
	// pattern). Only meaningful when hasPath is set.
	path    pathPattern
	hasPath bool

	// prefix selects leading-subset matching instead of exact matching.
	prefix bool

	// table is the compiled nested table of a router entry.
	table *table
}

// table is the immutable, compiled form of a Router used during dispatch.
type table struct {
	prefix  string
	entries []compiledEntry
}

// matches evaluates the method check and then the path check for the entry.
// Parameters are bound into the context only when both succeed.
func (e *compiledEntry) matches(c *Context) bool {
	if e.method != "" && e.method != c.method {
		return false
	}

	if !e.hasPath {
		return true
	}

	if !e.path.match(c.segments, e.prefix) {
		return false
	}

	e.path.bind(c.segments, c.params)

	return true
}

// catchAllPattern is the handler template that matches any depth.
const catchAllPattern = "/*"

// compile builds the dispatch table of r mounted at prefix. visiting
// tracks the routers on the current mount chain to reject cycles.
func compile(r *Router, prefix string, visiting map[*Router]bool) (*table, error) {
	if visiting[r] {
		return nil, fmt.Errorf("%w: router mounted inside itself at %q", ErrMountCycle, prefix)
	}

	visiting[r] = true
	defer delete(visiting, r)

	r.frozen.Store(true)

	t := &table{
		prefix:  prefix,
		entries: make([]compiledEntry, 0, len(r.entries)),
	}

	var base pathPattern
	if prefix != "" {
		base = compilePattern(prefix)
	}

	for _, e := range r.entries {
		ce := compiledEntry{entry: e}

		switch e.kind {
		case entryRouter:
			sub := mountPath(prefix, e.pattern)

			child, err := compile(e.router, sub, visiting)
			if err != nil {
				return nil, err
			}

			ce.table = child
			if sub != "" {
				ce.path = compilePattern(sub)
				ce.hasPath = true
				ce.prefix = true
			}

		case entryMiddleware:
			switch {
			case e.pattern != "":
				if full := mountPath(prefix, e.pattern); full != "" {
					ce.path = compilePattern(full)
					ce.hasPath = true
					ce.prefix = true
				}
			case prefix != "":
				ce.path = base
				ce.hasPath = true
				ce.prefix = true
			}

		case entryHandler:
			switch {
			case e.pattern == catchAllPattern:
				// "/*" answers every path at or under the table prefix.
				ce.path = compilePattern(joinPath(prefix, e.pattern))
				ce.hasPath = true
				ce.prefix = true
			case e.pattern != "":
				ce.path = compilePattern(joinPath(prefix, e.pattern))
				ce.hasPath = true
			case prefix != "":
				ce.path = base
				ce.hasPath = true
				ce.prefix = true
			}
		}

		t.entries = append(t.entries, ce)
	}

	return t, nil
}

// joinPath appends the template p to the table prefix base. A template of
// "/" inside a mounted table addresses the mount point itself.
func joinPath(base, p string) string {
	if p == "" {
		return base
	}

	if base == "" {
		return p
	}

	if p == "/" {
		return base
	}

	return strings.TrimSuffix(base, "/") + p
}

// mountPath joins like joinPath and drops a trailing slash, so that "/" and
// "" both denote the root and "/api/" mounts the same table as "/api".
func mountPath(base, p string) string {
	return strings.TrimSuffix(joinPath(base, p), "/")
}
