// Package mux implements an ordered route table with continuation-style
// middleware for net/http.
//
// The package implements routing semantics based on:
//   - RFC 9110 (HTTP Semantics, successor to RFC 7231)
//   - RFC 9112 (HTTP/1.1, successor to RFC 7230)
//   - RFC 3986 (URIs)
//   - RFC 6265 (Cookies)
//
// # Router
//
// A Router is a list of entries evaluated in registration order. Each entry
// is a middleware, a handler or a mounted sub-router:
//
//	r := mux.NewRouter()
//	r.Use(logRequests)
//	r.Get("/:id", showItem)
//	r.Mount("/api", api)
//	http.ListenAndServe(":8080", r)
//
// # Path Patterns
//
// Patterns are split on "/" and compared segment by segment:
//
//	/users/:id     ":id" matches any segment and binds it
//	/files/*       "*" matches any segment; as the last segment it also
//	               matches everything below
//	/about         literal segments compare byte for byte
//
// Handler patterns must cover the whole request path. Middleware filters
// (UsePath) and mount points match leading segments only.
//
//	r.Get("/:id/pupu/:di", func(c *mux.Context) {
//		c.SendString(c.Param("id") + "-" + c.Param("di"))
//	})
//
// # Continuations
//
// A middleware receives the context and a next function. Calling next runs
// the rest of the table before it returns; returning without calling it
// halts the chain:
//
//	r.Use(func(c *mux.Context, next mux.NextFunc) {
//		if c.RequestHeader("Authorization") == "" {
//			c.Status(http.StatusUnauthorized).End()
//			return
//		}
//		next()
//	})
//
// Handlers run, the walk advances automatically, and once a response is
// finalized no further entries are dispatched. A request that reaches the
// end of the table without a response is answered by NotFoundHandler.
//
// # Sub-routers
//
// Mounted routers inherit the prefix of their mount point. The prefix is
// resolved when the root router starts serving, so the order in which
// routers are filled and mounted does not matter:
//
//	admin := mux.NewRouter()
//	admin.Use(requireAdmin)
//	admin.Get("/:id", showUser)
//	r.Mount("/admin", admin)   // GET /admin/42
//
// # Responses
//
// The Context accumulates status, headers and cookies and writes them with
// a finalizer: Send, SendString, SendJSON, SendXML, Render, End, Redirect,
// SendFile and Stream. Mutators are no-ops after a finalizer ran.
//
//	c.Status(http.StatusCreated).Header("X-Id", id).SendJSON(item)
//
// # net/http Interop
//
// Adapt bridges func(http.Handler) http.Handler middleware into the table
// and WrapHandler mounts a plain http.Handler as a terminal handler.
package mux
