package mux

import (
	"bytes"
	"compress/gzip"
	"encoding/xml"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextMutators(t *testing.T) {
	t.Run("status and headers", func(t *testing.T) {
		c, w := newTestContext(http.MethodGet, "/")

		err := c.Status(http.StatusCreated).
			Header("X-One", "1").
			Header("X-One", "2").
			AddHeader("X-Many", "a").
			AddHeader("X-Many", "b").
			SendString("created")
		require.NoError(t, err)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "2", w.Header().Get("X-One"))
		assert.Equal(t, []string{"a", "b"}, w.Header().Values("X-Many"))
		assert.Equal(t, "7", w.Header().Get("Content-Length"))
		assert.Equal(t, "created", w.Body.String())
	})

	t.Run("invalid status is ignored", func(t *testing.T) {
		c, w := newTestContext(http.MethodGet, "/")
		require.NoError(t, c.Status(42).Status(1000).End())
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("mutators after close do nothing", func(t *testing.T) {
		c, w := newTestContext(http.MethodGet, "/")
		require.NoError(t, c.SendString("done"))

		c.Status(http.StatusTeapot).Header("X-Late", "1").Cookie("late", "1").ClearCookies()

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("X-Late"))
		assert.Empty(t, w.Header().Get("Set-Cookie"))
		assert.Equal(t, http.StatusOK, c.ResponseStatus())
	})
}

func TestContextCookies(t *testing.T) {
	t.Run("jar in insertion order", func(t *testing.T) {
		c, w := newTestContext(http.MethodGet, "/")

		c.Cookie("a", "1").Cookie("b", "2")
		assert.Equal(t, "a=1;b=2", c.ResponseHeader().Get("Set-Cookie"))

		c.Cookie("a", "3")
		require.NoError(t, c.End())

		assert.Equal(t, []string{"a=3;b=2"}, w.Header().Values("Set-Cookie"))
	})

	t.Run("attribute cookies get their own header", func(t *testing.T) {
		c, w := newTestContext(http.MethodGet, "/")

		c.Cookie("a", "1")
		c.SetCookie(&http.Cookie{Name: "sid", Value: "xyz", Path: "/", HttpOnly: true})
		c.SetCookie(&http.Cookie{Name: "bad name", Value: "x"})
		c.SetCookie(nil)
		c.Cookie("b", "2")
		require.NoError(t, c.End())

		assert.Equal(t, []string{"a=1;b=2", "sid=xyz; Path=/; HttpOnly"}, w.Header().Values("Set-Cookie"))
	})

	t.Run("raw set-cookie headers survive the jar", func(t *testing.T) {
		c, w := newTestContext(http.MethodGet, "/")

		c.AddHeader("Set-Cookie", "raw=1; Path=/").Cookie("a", "1")
		c.AddHeader("Set-Cookie", "raw2=2").Cookie("b", "2")
		require.NoError(t, c.End())

		assert.Equal(t, []string{"raw=1; Path=/", "a=1;b=2", "raw2=2"}, w.Header().Values("Set-Cookie"))
	})

	t.Run("clear cookies", func(t *testing.T) {
		c, w := newTestContext(http.MethodGet, "/")
		require.NoError(t, c.ClearCookies().End())
		assert.Equal(t, `"cookies"`, w.Header().Get("Clear-Site-Data"))
	})
}

func TestContextFinalizers(t *testing.T) {
	t.Run("end sends headers only", func(t *testing.T) {
		c, w := newTestContext(http.MethodGet, "/")
		require.NoError(t, c.Status(http.StatusAccepted).End())

		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.Equal(t, "0", w.Header().Get("Content-Length"))
		assert.Empty(t, w.Body.String())
	})

	t.Run("head request has no body", func(t *testing.T) {
		c, w := newTestContext(http.MethodHead, "/")
		require.NoError(t, c.SendString("hello"))

		assert.Equal(t, "5", w.Header().Get("Content-Length"))
		assert.Empty(t, w.Body.String())
	})

	t.Run("no content has no body", func(t *testing.T) {
		c, w := newTestContext(http.MethodGet, "/")
		require.NoError(t, c.Status(http.StatusNoContent).SendString("ignored"))

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Body.String())
	})

	t.Run("redirect defaults to 302", func(t *testing.T) {
		c, w := newTestContext(http.MethodGet, "/")
		require.NoError(t, c.Redirect("/login"))

		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/login", w.Header().Get("Location"))
		assert.True(t, c.Closed())
	})

	t.Run("redirect with status", func(t *testing.T) {
		c, w := newTestContext(http.MethodPost, "/")
		require.NoError(t, c.RedirectWithStatus(http.StatusSeeOther, "/done"))

		assert.Equal(t, http.StatusSeeOther, w.Code)
		assert.Equal(t, "/done", w.Header().Get("Location"))
	})

	t.Run("render html", func(t *testing.T) {
		c, w := newTestContext(http.MethodGet, "/")
		require.NoError(t, c.Render("<h1>hi</h1>"))

		assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
		assert.Equal(t, "<h1>hi</h1>", w.Body.String())
	})

	t.Run("stream with size", func(t *testing.T) {
		c, w := newTestContext(http.MethodGet, "/")
		require.NoError(t, c.Stream(5, strings.NewReader("hello")))

		assert.Equal(t, "5", w.Header().Get("Content-Length"))
		assert.Equal(t, "hello", w.Body.String())
	})

	t.Run("stream without size", func(t *testing.T) {
		c, w := newTestContext(http.MethodGet, "/")
		require.NoError(t, c.Stream(-1, strings.NewReader("hello")))

		assert.Empty(t, w.Header().Get("Content-Length"))
		assert.Equal(t, "hello", w.Body.String())
	})
}

func TestContextSendJSON(t *testing.T) {
	t.Run("encodes value", func(t *testing.T) {
		c, w := newTestContext(http.MethodGet, "/")
		require.NoError(t, c.Status(http.StatusCreated).SendJSON(map[string]string{"key": "value"}))

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		assert.JSONEq(t, `{"key":"value"}`, w.Body.String())
	})

	t.Run("keeps explicit content type", func(t *testing.T) {
		c, w := newTestContext(http.MethodGet, "/")
		require.NoError(t, c.Header("Content-Type", "application/problem+json").SendJSON(map[string]int{"status": 400}))

		assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	})

	t.Run("encoding failure leaves the response open", func(t *testing.T) {
		c, w := newTestContext(http.MethodGet, "/")

		err := c.SendJSON(math.Inf(1))
		require.Error(t, err)
		assert.False(t, c.Closed())

		require.NoError(t, c.Status(http.StatusInternalServerError).End())
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("router encoder", func(t *testing.T) {
		r := NewRouter()
		r.JSON = func(any) ([]byte, error) { return []byte(`"custom"`), nil }
		w := httptest.NewRecorder()
		c := NewContext(w, httptest.NewRequest(http.MethodGet, "/", nil), r)

		require.NoError(t, c.SendJSON(1))
		assert.Equal(t, `"custom"`, w.Body.String())
	})

	t.Run("router encoder error", func(t *testing.T) {
		r := NewRouter()
		r.JSON = func(any) ([]byte, error) { return nil, errors.New("boom") }
		c := NewContext(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil), r)

		assert.ErrorContains(t, c.SendJSON(1), "boom")
	})
}

func TestContextSendXML(t *testing.T) {
	type item struct {
		XMLName xml.Name `xml:"item"`
		Name    string   `xml:"name"`
	}

	t.Run("encodes value", func(t *testing.T) {
		c, w := newTestContext(http.MethodGet, "/")
		require.NoError(t, c.SendXML(item{Name: "test"}))

		assert.Equal(t, "application/xml", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Body.String(), "<item><name>test</name></item>")
	})

	t.Run("encoding failure", func(t *testing.T) {
		c, _ := newTestContext(http.MethodGet, "/")
		assert.Error(t, c.SendXML(make(chan int)))
		assert.False(t, c.Closed())
	})
}

func TestContextSendFile(t *testing.T) {
	body := strings.Repeat("relay ", 200)
	files := fstest.MapFS{
		"index.html":    {Data: []byte(body)},
		"logo.png":      {Data: []byte("png-bytes")},
		"docs/readme":   {Data: []byte("readme")},
		"docs/sub/a.js": {Data: []byte("js")},
	}

	newRouter := func() *Router {
		r := NewRouter()
		r.Files = FS(files)
		return r
	}

	t.Run("serves file with type and length", func(t *testing.T) {
		w := httptest.NewRecorder()
		c := NewContext(w, httptest.NewRequest(http.MethodGet, "/", nil), newRouter())

		require.NoError(t, c.SendFile("index.html"))

		assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
		assert.Equal(t, "1200", w.Header().Get("Content-Length"))
		assert.Equal(t, body, w.Body.String())
		assert.True(t, c.Closed())
	})

	t.Run("gzip when accepted", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Accept-Encoding", "gzip, deflate")
		c := NewContext(w, req, newRouter())

		require.NoError(t, c.SendFile("/index.html"))

		assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
		assert.Equal(t, "Accept-Encoding", w.Header().Get("Vary"))
		assert.Empty(t, w.Header().Get("Content-Length"))

		zr, err := gzip.NewReader(w.Body)
		require.NoError(t, err)
		plain, err := io.ReadAll(zr)
		require.NoError(t, err)
		assert.Equal(t, body, string(plain))
	})

	t.Run("images are not encoded", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Accept-Encoding", "gzip")
		c := NewContext(w, req, newRouter())

		require.NoError(t, c.SendFile("logo.png"))

		assert.Empty(t, w.Header().Get("Content-Encoding"))
		assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
		assert.Equal(t, "png-bytes", w.Body.String())
	})

	t.Run("unknown extension", func(t *testing.T) {
		w := httptest.NewRecorder()
		c := NewContext(w, httptest.NewRequest(http.MethodGet, "/", nil), newRouter())

		require.NoError(t, c.SendFile("docs/readme"))
		assert.Equal(t, "application/octet-stream", w.Header().Get("Content-Type"))
	})

	t.Run("custom mime resolver", func(t *testing.T) {
		r := newRouter()
		r.MIMETypes = func(name string) string {
			if strings.HasSuffix(name, "readme") {
				return "text/markdown"
			}
			return ""
		}
		w := httptest.NewRecorder()
		c := NewContext(w, httptest.NewRequest(http.MethodGet, "/", nil), r)

		require.NoError(t, c.SendFile("docs/readme"))
		assert.Equal(t, "text/markdown", w.Header().Get("Content-Type"))
	})

	t.Run("missing file", func(t *testing.T) {
		w := httptest.NewRecorder()
		c := NewContext(w, httptest.NewRequest(http.MethodGet, "/", nil), newRouter())

		err := c.SendFile("nope.txt")
		assert.ErrorIs(t, err, ErrFileNotFound)
		assert.False(t, c.Closed())
		assert.Empty(t, w.Body.String())
	})

	t.Run("directory", func(t *testing.T) {
		c := NewContext(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil), newRouter())
		assert.ErrorIs(t, c.SendFile("docs"), ErrFileNotFound)
	})

	t.Run("head request", func(t *testing.T) {
		w := httptest.NewRecorder()
		c := NewContext(w, httptest.NewRequest(http.MethodHead, "/", nil), newRouter())

		require.NoError(t, c.SendFile("index.html"))
		assert.Equal(t, "1200", w.Header().Get("Content-Length"))
		assert.Empty(t, w.Body.String())
	})
}

func TestContextUseCodec(t *testing.T) {
	gz, err := GzipCodec(0)
	require.NoError(t, err)

	t.Run("encodes long bodies", func(t *testing.T) {
		c, w := newTestContext(http.MethodGet, "/")
		c.UseCodec(gz, 10)

		body := strings.Repeat("a", 100)
		require.NoError(t, c.SendString(body))

		assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
		zr, err := gzip.NewReader(bytes.NewReader(w.Body.Bytes()))
		require.NoError(t, err)
		plain, _ := io.ReadAll(zr)
		assert.Equal(t, body, string(plain))
	})

	t.Run("short bodies are sent as is", func(t *testing.T) {
		c, w := newTestContext(http.MethodGet, "/")
		c.UseCodec(gz, 10)

		require.NoError(t, c.SendString("short"))
		assert.Empty(t, w.Header().Get("Content-Encoding"))
		assert.Equal(t, "short", w.Body.String())
	})

	t.Run("existing content encoding wins", func(t *testing.T) {
		c, w := newTestContext(http.MethodGet, "/")
		c.UseCodec(gz, 0)

		require.NoError(t, c.Header("Content-Encoding", "br").SendString("already-encoded"))
		assert.Equal(t, "br", w.Header().Get("Content-Encoding"))
		assert.Equal(t, "already-encoded", w.Body.String())
	})

	t.Run("stream encoded", func(t *testing.T) {
		c, w := newTestContext(http.MethodGet, "/")
		require.NoError(t, c.StreamEncoded(3, strings.NewReader("abc"), nil))
		assert.Equal(t, "3", w.Header().Get("Content-Length"))
		assert.Equal(t, "abc", w.Body.String())
	})
}
