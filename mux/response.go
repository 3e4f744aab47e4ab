package mux

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
)

// --- Mutators ---
//
// Mutators return the context for chaining and are silent no-ops once the
// response is closed.

// Status sets the response status code. Codes outside 100-999 are ignored.
func (c *Context) Status(code int) *Context {
	if c.open && code >= 100 && code <= 999 {
		c.status = code
	}
	return c
}

// Header sets the response header name to value, replacing existing values.
func (c *Context) Header(name, value string) *Context {
	if c.open {
		c.w.Header().Set(name, value)
	}
	return c
}

// AddHeader appends value to the response header name.
func (c *Context) AddHeader(name, value string) *Context {
	if c.open {
		c.w.Header().Add(name, value)
	}
	return c
}

// Cookie adds name=value to the cookie jar. Setting an existing name
// replaces its value in place. The jar is sent as a single Set-Cookie
// header in insertion order, "a=1;b=2".
func (c *Context) Cookie(name, value string) *Context {
	if !c.open {
		return c
	}

	for i := range c.jar {
		if c.jar[i].name == name {
			c.jar[i].value = value
			c.syncCookies()
			return c
		}
	}

	c.jar = append(c.jar, cookiePair{name: name, value: value})
	c.syncCookies()
	return c
}

// SetCookie adds a cookie with attributes as its own Set-Cookie header
// per RFC 6265 Section 4.1. Invalid cookies are dropped.
func (c *Context) SetCookie(ck *http.Cookie) *Context {
	if !c.open || ck == nil {
		return c
	}
	if ck.Valid() != nil {
		return c
	}

	c.w.Header().Add("Set-Cookie", ck.String())
	return c
}

// ClearCookies asks the client to drop every cookie of the origin
// (Clear-Site-Data, W3C).
func (c *Context) ClearCookies() *Context {
	return c.Header("Clear-Site-Data", `"cookies"`)
}

// syncCookies re-serializes the jar into its Set-Cookie header, in place.
// Set-Cookie values added by SetCookie or AddHeader are left untouched.
func (c *Context) syncCookies() {
	var b strings.Builder
	for i, ck := range c.jar {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(ck.name)
		b.WriteByte('=')
		b.WriteString(ck.value)
	}
	line := b.String()

	h := c.w.Header()
	values := h["Set-Cookie"]
	for i, v := range values {
		if c.jarLine != "" && v == c.jarLine {
			values[i] = line
			c.jarLine = line
			return
		}
	}

	h.Add("Set-Cookie", line)
	c.jarLine = line
}

// --- Finalizers ---
//
// Finalizers write the status line, headers and body and close the
// response. On a closed response they return nil without writing.

// Send writes body with a Content-Length header and closes the response.
// When a codec is active and body is long enough, it is encoded instead.
func (c *Context) Send(body []byte) error {
	if !c.open {
		return nil
	}

	if codec := c.activeCodec(len(body)); codec != nil {
		return c.stream(-1, bytes.NewReader(body), codec)
	}

	defer c.close()

	c.w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	c.writeHeader()

	if !c.bodyAllowed() {
		return nil
	}

	_, err := c.w.Write(body)
	return err
}

// SendString is Send for a string body.
func (c *Context) SendString(body string) error {
	return c.Send([]byte(body))
}

// End writes the status line and headers without a body and closes the
// response.
func (c *Context) End() error {
	if !c.open {
		return nil
	}

	defer c.close()

	h := c.w.Header()
	if h.Get("Content-Length") == "" && h.Get("Transfer-Encoding") == "" && c.bodyAllowed() {
		h.Set("Content-Length", "0")
	}
	c.writeHeader()

	return nil
}

// SendJSON encodes v with the router's JSON encoder and sends it as
// application/json. On encoding failure nothing is written and the
// response stays open.
func (c *Context) SendJSON(v any) error {
	if !c.open {
		return nil
	}

	enc := c.router.JSON
	if enc == nil {
		enc = json.Marshal
	}

	data, err := enc(v)
	if err != nil {
		return fmt.Errorf("mux: encode json: %w", err)
	}

	if c.w.Header().Get("Content-Type") == "" {
		c.w.Header().Set("Content-Type", "application/json")
	}

	return c.Send(data)
}

// SendXML encodes v as XML and sends it as application/xml. On encoding
// failure nothing is written and the response stays open.
func (c *Context) SendXML(v any) error {
	if !c.open {
		return nil
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	if err := xml.NewEncoder(&buf).Encode(v); err != nil {
		return fmt.Errorf("mux: encode xml: %w", err)
	}

	if c.w.Header().Get("Content-Type") == "" {
		c.w.Header().Set("Content-Type", "application/xml")
	}

	return c.Send(buf.Bytes())
}

// Render sends html as text/html.
func (c *Context) Render(html string) error {
	return c.Header("Content-Type", "text/html; charset=utf-8").SendString(html)
}

// Redirect sends a 302 Found redirect to url per RFC 7231 Section 6.4.3.
func (c *Context) Redirect(url string) error {
	return c.RedirectWithStatus(http.StatusFound, url)
}

// RedirectWithStatus sends a redirect to url with the given 3xx code.
func (c *Context) RedirectWithStatus(code int, url string) error {
	return c.Header("Location", url).Status(code).End()
}

// SendFile streams the file name from the router's file system. The
// Content-Type is resolved from the name unless already set, and the body
// is encoded when the client accepts one of the router's codecs and the
// type is worth compressing. A missing file returns ErrFileNotFound and
// leaves the response open.
func (c *Context) SendFile(name string) error {
	if !c.open {
		return nil
	}

	files := c.router.files()
	ctx := c.Context()

	info, err := files.Stat(ctx, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, name)
		}
		return err
	}
	if info.IsDir {
		return fmt.Errorf("%w: %s is a directory", ErrFileNotFound, name)
	}

	rc, err := files.Open(ctx, name)
	if err != nil {
		return err
	}
	defer rc.Close()

	h := c.w.Header()
	if h.Get("Content-Type") == "" {
		h.Set("Content-Type", c.router.mimeType(name))
	}

	codec := c.codec
	if codec == nil {
		codec = c.NegotiateCodec()
	}
	if !isCompressibleType(h.Get("Content-Type")) {
		codec = nil
	}

	return c.stream(info.Size, rc, codec)
}

// Stream sends the headers and then copies r to the client. size is sent as
// Content-Length when it is not negative and no codec is active.
func (c *Context) Stream(size int64, r io.Reader) error {
	if !c.open {
		return nil
	}

	codec := c.codec
	if codec != nil && !isCompressibleType(c.w.Header().Get("Content-Type")) {
		codec = nil
	}

	return c.stream(size, r, codec)
}

// StreamEncoded is Stream with an explicit codec, bypassing negotiation.
// A nil codec streams the body as is.
func (c *Context) StreamEncoded(size int64, r io.Reader, codec Codec) error {
	if !c.open {
		return nil
	}
	return c.stream(size, r, codec)
}

// NegotiateCodec returns the router codec preferred by the request's
// Accept-Encoding header, or nil.
func (c *Context) NegotiateCodec() Codec {
	return NegotiateCodec(c.request.Header.Get("Accept-Encoding"), c.router.codecs())
}

func (c *Context) stream(size int64, r io.Reader, codec Codec) error {
	defer c.close()

	h := c.w.Header()
	if h.Get("Content-Encoding") != "" {
		codec = nil
	}

	switch {
	case codec != nil:
		h.Set("Content-Encoding", codec.Encoding())
		h.Add("Vary", "Accept-Encoding")
		h.Del("Content-Length")
	case size >= 0:
		h.Set("Content-Length", strconv.FormatInt(size, 10))
	}

	c.writeHeader()

	if !c.bodyAllowed() {
		return nil
	}

	if codec == nil {
		_, err := io.Copy(c.w, r)
		return err
	}

	zw := codec.NewWriter(c.w)
	if _, err := io.Copy(zw, r); err != nil {
		zw.Close()
		return err
	}

	return zw.Close()
}

// activeCodec returns the context codec when a body of length n should be
// encoded.
func (c *Context) activeCodec(n int) Codec {
	if c.codec == nil || n < c.codecMinLen {
		return nil
	}

	h := c.w.Header()
	if h.Get("Content-Encoding") != "" || !isCompressibleType(h.Get("Content-Type")) {
		return nil
	}

	return c.codec
}

// writeHeader runs the before-write hooks and sends the status line.
func (c *Context) writeHeader() {
	hooks := c.beforeWrite
	c.beforeWrite = nil
	for _, fn := range hooks {
		fn(c)
	}

	c.w.WriteHeader(c.status)
}

// bodyAllowed reports whether a body may follow the status line: never for
// HEAD requests (RFC 7231 Section 4.3.2) and never for 1xx, 204 and 304.
func (c *Context) bodyAllowed() bool {
	return c.request.Method != http.MethodHead && bodyAllowedForStatus(c.status)
}

func (c *Context) close() {
	c.open = false
}

// --- Router collaborators ---

func (r *Router) files() FileSystem {
	if r.Files != nil {
		return r.Files
	}
	return defaultFiles
}

func (r *Router) codecs() []Codec {
	if r.Codecs != nil {
		return r.Codecs
	}
	return defaultCodecs
}

func (r *Router) mimeType(name string) string {
	if r.MIMETypes != nil {
		if t := r.MIMETypes(name); t != "" {
			return t
		}
	}
	return DefaultMIMEResolver(name)
}

