package mux

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder collects the order in which entries run.
type recorder struct {
	mu    sync.Mutex
	steps []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, s)
}

func (r *recorder) middleware(name string) MiddlewareFunc {
	return func(_ *Context, next NextFunc) {
		r.add(name + ":before")
		next()
		r.add(name + ":after")
	}
}

func (r *recorder) handler(name string) HandlerFunc {
	return func(c *Context) {
		r.add(name)
		_ = c.SendString(name)
	}
}

func TestDispatchContinuation(t *testing.T) {
	t.Run("middleware wraps the rest of the chain", func(t *testing.T) {
		rec := &recorder{}
		r := NewRouter()
		r.Use(rec.middleware("a"))
		r.Use(rec.middleware("b"))
		r.Get("/", rec.handler("h"))

		w := serve(r, http.MethodGet, "/")

		assert.Equal(t, "h", w.Body.String())
		assert.Equal(t, []string{"a:before", "b:before", "h", "b:after", "a:after"}, rec.steps)
	})

	t.Run("next is effective once per invocation", func(t *testing.T) {
		var calls int
		r := NewRouter()
		r.Use(func(_ *Context, next NextFunc) {
			next()
			next()
			next()
		})
		r.Use(func(_ *Context, next NextFunc) {
			calls++
			next()
		})
		r.Get("/", sendText("ok"))

		w := serve(r, http.MethodGet, "/")
		assert.Equal(t, "ok", w.Body.String())
		assert.Equal(t, 1, calls)
	})

	t.Run("not calling next halts the chain", func(t *testing.T) {
		var reached bool
		r := NewRouter()
		r.Use(func(c *Context, _ NextFunc) {
			c.Status(http.StatusTeapot).Header("X-Halted", "yes")
		})
		r.Get("/", func(c *Context) {
			reached = true
			_ = c.SendString("unreachable")
		})

		w := serve(r, http.MethodGet, "/")

		assert.False(t, reached)
		assert.Equal(t, http.StatusTeapot, w.Code)
		assert.Equal(t, "yes", w.Header().Get("X-Halted"))
		assert.Empty(t, w.Body.String())
	})

	t.Run("middleware can respond after next", func(t *testing.T) {
		r := NewRouter()
		r.Use(func(c *Context, next NextFunc) {
			next()
			_ = c.Status(http.StatusGone).SendString("fallback")
		})

		w := serve(r, http.MethodGet, "/nothing-here")
		assert.Equal(t, http.StatusGone, w.Code)
		assert.Equal(t, "fallback", w.Body.String())
	})

	t.Run("closed response stops dispatch", func(t *testing.T) {
		rec := &recorder{}
		r := NewRouter()
		r.Get("/", rec.handler("first"))
		r.Get("/", rec.handler("second"))
		r.Use(rec.middleware("late"))

		w := serve(r, http.MethodGet, "/")

		assert.Equal(t, "first", w.Body.String())
		assert.Equal(t, []string{"first"}, rec.steps)
	})

	t.Run("direct writes close the response", func(t *testing.T) {
		var secondRan bool
		r := NewRouter()
		r.Get("/x", func(c *Context) {
			c.Writer().WriteHeader(http.StatusCreated)
			_, _ = c.Writer().Write([]byte("first"))
		})
		r.Get("/x", func(c *Context) {
			secondRan = true
			_ = c.Status(http.StatusTeapot).SendString("second")
		})

		w := serve(r, http.MethodGet, "/x")

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "first", w.Body.String())
		assert.False(t, secondRan)
	})

	t.Run("direct body write without status closes the response", func(t *testing.T) {
		r := NewRouter()
		r.Get("/x", func(c *Context) {
			_, _ = c.Writer().Write([]byte("raw"))
		})
		r.Get("/x", func(c *Context) {
			_ = c.SendString("again")
		})

		w := serve(r, http.MethodGet, "/x")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "raw", w.Body.String())
	})

	t.Run("wrapped handler closes the response", func(t *testing.T) {
		r := NewRouter()
		r.Get("/x", WrapHandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusAccepted)
		}))
		r.Get("/x", func(c *Context) {
			_ = c.SendString("late")
		})

		w := serve(r, http.MethodGet, "/x")

		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.Empty(t, w.Body.String())
	})

	t.Run("handlers that do not close fall through", func(t *testing.T) {
		rec := &recorder{}
		r := NewRouter()
		r.All("/", func(c *Context) {
			rec.add("observer")
			c.Header("X-Observed", "1")
		})
		r.Get("/", rec.handler("final"))

		w := serve(r, http.MethodGet, "/")

		assert.Equal(t, "final", w.Body.String())
		assert.Equal(t, "1", w.Header().Get("X-Observed"))
		assert.Equal(t, []string{"observer", "final"}, rec.steps)
	})

	t.Run("finalizers after close are no-ops", func(t *testing.T) {
		var errs []error
		r := NewRouter()
		r.Get("/", func(c *Context) {
			errs = append(errs, c.SendString("one"))
			errs = append(errs, c.Status(http.StatusInternalServerError).SendString("two"))
			errs = append(errs, c.End())
		})

		w := serve(r, http.MethodGet, "/")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "one", w.Body.String())
		assert.Equal(t, []error{nil, nil, nil}, errs)
	})

	t.Run("client disconnect counts as closed", func(t *testing.T) {
		var reached bool
		r := NewRouter()
		r.Get("/", func(*Context) { reached = true })

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
		r.ServeHTTP(httptest.NewRecorder(), req)

		assert.False(t, reached)
	})

	t.Run("disconnect during middleware stops the walk", func(t *testing.T) {
		var reached bool
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		r := NewRouter()
		r.Use(func(_ *Context, next NextFunc) {
			cancel()
			next()
		})
		r.Get("/", func(*Context) { reached = true })

		req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
		r.ServeHTTP(httptest.NewRecorder(), req)

		assert.False(t, reached)
	})
}

func TestDispatchPathFilters(t *testing.T) {
	t.Run("UsePath runs only under its prefix", func(t *testing.T) {
		var hits []string
		r := NewRouter()
		r.UsePath("/admin", func(c *Context, next NextFunc) {
			hits = append(hits, c.Path())
			next()
		})
		r.Get("/admin/users", sendText("users"))
		r.Get("/public", sendText("public"))

		serve(r, http.MethodGet, "/admin/users")
		serve(r, http.MethodGet, "/public")
		serve(r, http.MethodGet, "/administrator")

		assert.Equal(t, []string{"/admin/users"}, hits)
	})

	t.Run("UsePath can bind params", func(t *testing.T) {
		r := NewRouter()
		r.UsePath("/tenants/:tenant", func(c *Context, next NextFunc) {
			c.Set("tenant", c.Param("tenant"))
			next()
		})
		r.Get("/tenants/:tenant/items", func(c *Context) {
			v, _ := c.Get("tenant")
			_ = c.SendString(v.(string))
		})

		assert.Equal(t, "acme", serve(r, http.MethodGet, "/tenants/acme/items").Body.String())
	})

	t.Run("failed matches leave no bindings", func(t *testing.T) {
		r := NewRouter()
		r.Get("/:a/x", sendText("x"))
		r.Post("/:c/y", sendText("post"))
		r.Get("/:b/y", func(c *Context) {
			_ = c.SendJSON(c.Params())
		})

		w := serve(r, http.MethodGet, "/1/y")
		assert.JSONEq(t, `{"b":"1"}`, w.Body.String())
	})
}

func TestDispatchSubRouters(t *testing.T) {
	t.Run("mount isolation", func(t *testing.T) {
		var adminMW int
		root := NewRouter()
		admin := NewRouter()

		admin.Use(func(_ *Context, next NextFunc) {
			adminMW++
			next()
		})
		admin.Get("/:id", func(c *Context) { _ = c.SendString("admin " + c.Param("id")) })

		root.Mount("/admin", admin)
		root.Get("/:id", func(c *Context) { _ = c.SendString("root " + c.Param("id")) })

		assert.Equal(t, "admin 42", serve(root, http.MethodGet, "/admin/42").Body.String())
		assert.Equal(t, 1, adminMW)

		assert.Equal(t, "root 42", serve(root, http.MethodGet, "/42").Body.String())
		assert.Equal(t, 1, adminMW)
	})

	t.Run("exhausted sub-router returns to parent", func(t *testing.T) {
		rec := &recorder{}
		root := NewRouter()
		api := NewRouter()
		api.Use(rec.middleware("api"))
		api.Get("/users", rec.handler("users"))
		root.Mount("/api", api)
		root.Get("/api/other", rec.handler("other"))

		w := serve(root, http.MethodGet, "/api/other")

		// The sub-router middleware only wraps the sub-router's own entries.
		assert.Equal(t, "other", w.Body.String())
		assert.Equal(t, []string{"api:before", "api:after", "other"}, rec.steps)
	})

	t.Run("halt inside sub-router propagates", func(t *testing.T) {
		var reached bool
		root := NewRouter()
		secure := NewRouter()
		secure.Use(func(c *Context, _ NextFunc) {
			c.Status(http.StatusUnauthorized)
		})
		root.Mount("/secure", secure)
		root.All("/secure/data", func(*Context) { reached = true })

		w := serve(root, http.MethodGet, "/secure/data")

		assert.False(t, reached)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("mount order does not matter", func(t *testing.T) {
		root := NewRouter()
		v1 := NewRouter()
		api := NewRouter()

		root.Mount("/api", api)
		api.Mount("/v1", v1)
		v1.Get("/ping", sendText("pong"))

		assert.Equal(t, "pong", serve(root, http.MethodGet, "/api/v1/ping").Body.String())
	})

	t.Run("same router at two prefixes", func(t *testing.T) {
		root := NewRouter()
		shared := NewRouter()
		shared.Get("/where", func(c *Context) { _ = c.SendString(c.MountPath()) })
		root.Mount("/a", shared)
		root.Mount("/b", shared)

		assert.Equal(t, "/a", serve(root, http.MethodGet, "/a/where").Body.String())
		assert.Equal(t, "/b", serve(root, http.MethodGet, "/b/where").Body.String())
	})

	t.Run("params from mount path", func(t *testing.T) {
		root := NewRouter()
		org := NewRouter()
		org.Get("/repos/:repo", func(c *Context) {
			_ = c.SendString(c.Param("org") + "/" + c.Param("repo"))
		})
		root.Mount("/orgs/:org", org)

		assert.Equal(t, "acme/relay", serve(root, http.MethodGet, "/orgs/acme/repos/relay").Body.String())
	})

	t.Run("slash pattern addresses the mount point", func(t *testing.T) {
		root := NewRouter()
		api := NewRouter()
		api.Get("/", sendText("api index"))
		root.Mount("/api", api)

		assert.Equal(t, "api index", serve(root, http.MethodGet, "/api").Body.String())
	})

	t.Run("catch-all mount and relative path", func(t *testing.T) {
		root := NewRouter()
		files := NewRouter()
		files.Get("", func(c *Context) { _ = c.SendString(c.RelativePath()) })
		root.Get("/api", sendText("api"))
		root.Mount("/*", files)

		assert.Equal(t, "api", serve(root, http.MethodGet, "/api").Body.String())
		assert.Equal(t, "/css/site.css", serve(root, http.MethodGet, "/css/site.css").Body.String())
		assert.Equal(t, "/", serve(root, http.MethodGet, "/").Body.String())
	})

	t.Run("group keeps the current prefix", func(t *testing.T) {
		root := NewRouter()
		api := NewRouter()
		grp := NewRouter()
		grp.Use(func(c *Context, next NextFunc) {
			c.Header("X-Group", "1")
			next()
		})
		grp.Get("/in", sendText("in"))
		api.Group(grp)
		root.Mount("/api", api)

		w := serve(root, http.MethodGet, "/api/in")
		assert.Equal(t, "in", w.Body.String())
		assert.Equal(t, "1", w.Header().Get("X-Group"))
	})
}

func TestDispatchConcurrent(t *testing.T) {
	r := NewRouter()
	r.Use(func(c *Context, next NextFunc) {
		c.Header("X-Id", c.Param("id"))
		next()
	})
	r.Get("/items/:id", func(c *Context) { _ = c.SendString(c.Param("id")) })

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := fmt.Sprint(i)
			w := serve(r, http.MethodGet, "/items/"+id)
			assert.Equal(t, id, w.Body.String())
		}()
	}
	wg.Wait()

	require.NoError(t, r.Err())
}
