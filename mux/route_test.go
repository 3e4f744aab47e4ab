package mux

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinPath(t *testing.T) {
	tests := []struct {
		base, p, want string
	}{
		{"", "", ""},
		{"", "/", "/"},
		{"", "/a", "/a"},
		{"/api", "", "/api"},
		{"/api", "/", "/api"},
		{"/api", "/users", "/api/users"},
		{"/api/", "/users", "/api/users"},
	}

	for _, tt := range tests {
		t.Run(tt.base+"+"+tt.p, func(t *testing.T) {
			assert.Equal(t, tt.want, joinPath(tt.base, tt.p))
		})
	}
}

func TestMountPath(t *testing.T) {
	assert.Equal(t, "", mountPath("", "/"))
	assert.Equal(t, "", mountPath("", ""))
	assert.Equal(t, "/api", mountPath("", "/api/"))
	assert.Equal(t, "/api/v1", mountPath("/api", "/v1"))
	assert.Equal(t, "/api", mountPath("/api", "/"))
	assert.Equal(t, "/*", mountPath("", "/*"))
}

func TestEntryKindString(t *testing.T) {
	assert.Equal(t, "middleware", entryMiddleware.String())
	assert.Equal(t, "handler", entryHandler.String())
	assert.Equal(t, "router", entryRouter.String())
	assert.Equal(t, "unknown", entryKind(42).String())
}

func TestCompile(t *testing.T) {
	noop := func(*Context) {}
	mw := func(_ *Context, next NextFunc) { next() }

	t.Run("resolves prefixes at compile time", func(t *testing.T) {
		root := NewRouter()
		api := NewRouter()
		v1 := NewRouter()

		// Mount before the sub-routers are filled.
		root.Mount("/api", api)
		api.Mount("/v1", v1)
		v1.Get("/users/:id", noop)
		v1.Use(mw)

		tbl, err := compile(root, "", map[*Router]bool{})
		require.NoError(t, err)

		apiTbl := tbl.entries[0].table
		assert.Equal(t, "/api", apiTbl.prefix)

		v1Tbl := apiTbl.entries[0].table
		assert.Equal(t, "/api/v1", v1Tbl.prefix)
		assert.Equal(t, "/api/v1/users/:id", v1Tbl.entries[0].path.template)
		assert.False(t, v1Tbl.entries[0].prefix)

		// Pattern-less middleware is filtered by the table prefix.
		assert.True(t, v1Tbl.entries[1].hasPath)
		assert.True(t, v1Tbl.entries[1].prefix)
		assert.Equal(t, "/api/v1", v1Tbl.entries[1].path.template)
	})

	t.Run("root entries without pattern match everything", func(t *testing.T) {
		root := NewRouter()
		root.Use(mw)
		root.All("", noop)

		tbl, err := compile(root, "", map[*Router]bool{})
		require.NoError(t, err)

		assert.False(t, tbl.entries[0].hasPath)
		assert.False(t, tbl.entries[1].hasPath)
	})

	t.Run("mount at slash is flat", func(t *testing.T) {
		root := NewRouter()
		sub := NewRouter()
		sub.Get("/x", noop)
		root.Mount("/", sub)

		tbl, err := compile(root, "", map[*Router]bool{})
		require.NoError(t, err)

		assert.False(t, tbl.entries[0].hasPath)
		assert.Equal(t, "", tbl.entries[0].table.prefix)
		assert.Equal(t, "/x", tbl.entries[0].table.entries[0].path.template)
	})

	t.Run("same router under two prefixes", func(t *testing.T) {
		root := NewRouter()
		shared := NewRouter()
		shared.Get("/ping", noop)
		root.Mount("/a", shared)
		root.Mount("/b", shared)

		tbl, err := compile(root, "", map[*Router]bool{})
		require.NoError(t, err)

		assert.Equal(t, "/a/ping", tbl.entries[0].table.entries[0].path.template)
		assert.Equal(t, "/b/ping", tbl.entries[1].table.entries[0].path.template)
	})

	t.Run("detects cycles", func(t *testing.T) {
		a := NewRouter()
		b := NewRouter()
		a.Mount("/b", b)
		b.Mount("/a", a)

		_, err := compile(a, "", map[*Router]bool{})
		assert.ErrorIs(t, err, ErrMountCycle)
		assert.ErrorIs(t, err, ErrConfiguration)
	})

	t.Run("freezes every router", func(t *testing.T) {
		root := NewRouter()
		sub := NewRouter()
		root.Mount("/s", sub)

		_, err := compile(root, "", map[*Router]bool{})
		require.NoError(t, err)

		assert.True(t, root.frozen.Load())
		assert.True(t, sub.frozen.Load())
	})
}
