package mux

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompilePattern(t *testing.T) {
	t.Run("classifies segments", func(t *testing.T) {
		p := compilePattern("/users/:id/*")

		assert.Equal(t, []segment{
			{kind: segmentLiteral, value: ""},
			{kind: segmentLiteral, value: "users"},
			{kind: segmentParam, value: "id"},
			{kind: segmentWildcard},
		}, p.segments)
		assert.True(t, p.catchAll)
		assert.True(t, p.hasParams)
	})

	t.Run("lone colon is a literal", func(t *testing.T) {
		p := compilePattern("/:")
		assert.Equal(t, segmentLiteral, p.segments[1].kind)
		assert.False(t, p.hasParams)
	})

	t.Run("param names in order", func(t *testing.T) {
		p := compilePattern("/:id/pupu/:di")
		assert.Equal(t, []string{"id", "di"}, p.paramNames())
	})
}

func TestPatternMatch(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		path    string
		prefix  bool
		want    bool
	}{
		{"literal equal", "/about", "/about", false, true},
		{"literal case sensitive", "/about", "/About", false, false},
		{"literal differs", "/about", "/contact", false, false},
		{"segment count differs", "/a", "/a/b", false, false},
		{"root", "/", "/", false, true},
		{"root does not match deeper", "/", "/a", false, false},
		{"param matches any segment", "/:id", "/42", false, true},
		{"param matches empty segment", "/:id", "/", false, true},
		{"wildcard single segment", "/*/x", "/anything/x", false, true},
		{"trailing wildcard is one segment", "/files/*", "/files/a", false, true},
		{"trailing wildcard does not match deeper", "/files/*", "/files/a/b/c", false, false},
		{"trailing wildcard needs one segment", "/files/*", "/files", false, false},
		{"mixed", "/:id/pupu/:di", "/42/pupu/7", false, true},
		{"mixed literal mismatch", "/:id/pupu/:di", "/42/papa/7", false, false},
		{"prefix leading subset", "/api", "/api/users/1", true, true},
		{"prefix equal", "/api", "/api", true, true},
		{"prefix shorter path", "/api/v1", "/api", true, false},
		{"prefix is segment based", "/api", "/apix", true, false},
		{"prefix catch-all covers mount point", "/static/*", "/static", true, true},
		{"prefix catch-all covers below", "/static/*", "/static/css/a.css", true, true},
		{"prefix root catch-all", "/*", "/", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := compilePattern(tt.pattern)
			assert.Equal(t, tt.want, p.match(splitPath(tt.path), tt.prefix))
		})
	}
}

func TestPatternBind(t *testing.T) {
	t.Run("binds every param", func(t *testing.T) {
		p := compilePattern("/:id/pupu/:di")
		params := map[string]string{}

		req := splitPath("/42/pupu/7")
		if assert.True(t, p.match(req, false)) {
			p.bind(req, params)
		}

		assert.Equal(t, map[string]string{"id": "42", "di": "7"}, params)
	})

	t.Run("last writer wins", func(t *testing.T) {
		params := map[string]string{"id": "old", "keep": "yes"}
		p := compilePattern("/:id")
		p.bind(splitPath("/new"), params)

		assert.Equal(t, map[string]string{"id": "new", "keep": "yes"}, params)
	})

	t.Run("failed match binds nothing", func(t *testing.T) {
		p := compilePattern("/:a/:b/fixed")
		req := splitPath("/1/2/other")

		assert.False(t, p.match(req, false))
	})
}

func TestLiteralDepth(t *testing.T) {
	tests := []struct {
		pattern string
		want    int
	}{
		{"/*", 1},
		{"/static/*", 2},
		{"/static", 2},
	}

	for _, tt := range tests {
		p := compilePattern(tt.pattern)
		assert.Equal(t, tt.want, p.literalDepth(), tt.pattern)
	}
}
