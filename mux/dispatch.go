package mux

// walkResult is the outcome of walking one compiled table.
type walkResult uint8

const (
	// walkExhausted: every entry was considered and the walk may continue
	// in the enclosing table.
	walkExhausted walkResult = iota
	// walkHalted: a middleware returned without calling next.
	walkHalted
	// walkClosed: the response was finalized or the client went away.
	walkClosed
)

// walker iterates one compiled table for one request. The cursor lives in
// the walker, never in the shared table, so concurrent requests do not
// interfere.
type walker struct {
	t      *table
	c      *Context
	cursor int

	// armed is true while a middleware invocation may still call next.
	armed bool

	done   bool
	result walkResult
}

// walk runs the entries of t against c until the table is exhausted, a
// middleware halts the chain or the response is closed.
func (t *table) walk(c *Context) walkResult {
	w := walker{t: t, c: c}
	w.loop()
	return w.result
}

// loop resumes iteration at the cursor. It is entered once from walk and
// once from every next call that advances the chain.
func (w *walker) loop() {
	entries := w.t.entries

	for w.cursor < len(entries) {
		if w.c.Closed() {
			w.finish(walkClosed)
			return
		}

		e := &entries[w.cursor]
		if !e.matches(w.c) {
			w.cursor++
			continue
		}

		w.c.mount = w.t.prefix

		switch e.kind {
		case entryMiddleware:
			w.armed = true
			e.middleware(w.c, w.next)
			w.armed = false

			// Either next already drove the walk to its end, or the
			// middleware returned without calling it.
			w.finish(walkHalted)
			return

		case entryHandler:
			w.c.route = e.path.template
			w.c.handled = true
			e.handler(w.c)
			w.cursor++

		case entryRouter:
			switch e.table.walk(w.c) {
			case walkHalted:
				w.finish(walkHalted)
				return
			case walkClosed:
				w.finish(walkClosed)
				return
			}
			w.cursor++
		}
	}

	if w.c.Closed() {
		w.finish(walkClosed)
		return
	}

	w.finish(walkExhausted)
}

// finish records the first terminal result of the walk.
func (w *walker) finish(r walkResult) {
	if w.done {
		return
	}
	w.done = true
	w.result = r
}

// next is the continuation handed to middleware. Only the first call per
// middleware invocation advances the walk; later calls are no-ops. The rest
// of the chain runs before next returns.
func (w *walker) next() {
	if !w.armed || w.done {
		return
	}
	w.armed = false

	mount := w.c.mount
	defer func() { w.c.mount = mount }()

	w.cursor++
	w.loop()
}
