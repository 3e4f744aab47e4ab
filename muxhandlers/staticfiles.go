package muxhandlers

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/vitalvas/relay/mux"
)

// ErrStaticFilesNoFS is returned when neither StaticFilesConfig.Files nor
// StaticFilesConfig.FS is set.
var ErrStaticFilesNoFS = errors.New("static files: file system must not be nil")

// ErrStaticFilesNoIndexHTML is returned when SPAFallback is enabled
// but the file system does not contain an index.html at the root.
var ErrStaticFilesNoIndexHTML = errors.New("static files: index.html is required when SPA fallback is enabled")

// ErrStaticFilesInvalidRange is returned when StaticFilesConfig.MaxRangeBytes
// is negative.
var ErrStaticFilesInvalidRange = errors.New("static files: max range bytes must not be negative")

const (
	// DefaultStaticCacheControl is sent with every file when
	// StaticFilesConfig.CacheControl is empty.
	DefaultStaticCacheControl = "public, max-age=3600"

	// DefaultMaxRangeBytes caps the window served for one Range request.
	DefaultMaxRangeBytes int64 = 10 << 20

	staticNotFoundBody = "Oops 404 Error"
	staticNotFoundPage = "404.html"
	staticIndexPage    = "index.html"
)

// StaticFilesConfig configures the static file handler.
type StaticFilesConfig struct {
	// Files is the file system to serve files from: a local directory
	// (mux.Dir), an io/fs file system (mux.FS) or remote storage.
	Files mux.FileSystem

	// FS is used through mux.FS when Files is nil. Works with os.DirFS,
	// embed.FS, and any fs.FS implementation.
	FS fs.FS

	// CacheControl is the Cache-Control value sent with every file.
	// Defaults to DefaultStaticCacheControl.
	CacheControl string

	// MaxRangeBytes caps the number of bytes sent for a Range request.
	// Defaults to DefaultMaxRangeBytes when zero.
	MaxRangeBytes int64

	// MIMETypes resolves the Content-Type from the file name.
	// Defaults to mux.DefaultMIMEResolver.
	MIMETypes mux.MIMEResolver

	// Codecs are the content codings offered to clients, in preference
	// order. Defaults to gzip and deflate at the default level.
	Codecs []mux.Codec

	// SPAFallback serves the root index.html for any path that does
	// not match an existing file. This allows client-side routers to
	// handle all routes. Requires index.html at the root of the file
	// system.
	SPAFallback bool
}

type staticFiles struct {
	files        mux.FileSystem
	cacheControl string
	maxRange     int64
	mimeTypes    mux.MIMEResolver
	codecs       []mux.Codec
	spa          bool
}

// StaticFilesHandler returns a router that serves files for GET and HEAD
// requests. Mount it at the prefix the files live under, or at "/*" to
// serve the whole tree; the request path relative to the mount point is
// resolved against the file system:
//
//   - an empty path or a trailing slash maps to index.html
//   - "<path>.html" is preferred over "<path>" when it exists
//   - a directory maps to its index.html
//   - anything else answers 404 with 404.html when present, or a fixed body
//
// Requests with a Range header get a single window starting at the first
// offset in the header and capped at MaxRangeBytes (RFC 7233). Suffix and
// multi-range requests are not interpreted.
func StaticFilesHandler(cfg StaticFilesConfig) (*mux.Router, error) {
	files := cfg.Files
	if files == nil && cfg.FS != nil {
		files = mux.FS(cfg.FS)
	}

	if files == nil {
		return nil, ErrStaticFilesNoFS
	}

	if cfg.MaxRangeBytes < 0 {
		return nil, ErrStaticFilesInvalidRange
	}

	if cfg.SPAFallback {
		info, err := files.Stat(context.Background(), staticIndexPage)
		if err != nil || info.IsDir {
			return nil, ErrStaticFilesNoIndexHTML
		}
	}

	s := &staticFiles{
		files:        files,
		cacheControl: cfg.CacheControl,
		maxRange:     cfg.MaxRangeBytes,
		mimeTypes:    cfg.MIMETypes,
		codecs:       cfg.Codecs,
		spa:          cfg.SPAFallback,
	}

	if s.cacheControl == "" {
		s.cacheControl = DefaultStaticCacheControl
	}

	if s.maxRange == 0 {
		s.maxRange = DefaultMaxRangeBytes
	}

	if s.mimeTypes == nil {
		s.mimeTypes = mux.DefaultMIMEResolver
	}

	if s.codecs == nil {
		gz, err := mux.GzipCodec(0)
		if err != nil {
			return nil, err
		}

		deflate, err := mux.DeflateCodec(0)
		if err != nil {
			return nil, err
		}

		s.codecs = []mux.Codec{gz, deflate}
	}

	r := mux.NewRouter()
	r.Get("", s.serve)
	r.Head("", s.serve)

	return r, nil
}

func (s *staticFiles) serve(c *mux.Context) {
	name, info, err := s.resolve(c.Context(), c.RelativePath())

	switch {
	case errors.Is(err, fs.ErrNotExist):
		s.notFound(c)
	case err != nil:
		sendStatus(c, http.StatusInternalServerError)
	default:
		s.send(c, name, info, true)
	}
}

// resolve maps a request path to a regular file, or returns an error
// matching fs.ErrNotExist.
func (s *staticFiles) resolve(ctx context.Context, rel string) (string, mux.FileInfo, error) {
	name, ok := staticName(rel)
	if !ok {
		return "", mux.FileInfo{}, fs.ErrNotExist
	}

	var candidates []string
	switch {
	case name == "":
		candidates = []string{staticIndexPage}
	case strings.HasSuffix(rel, "/"):
		candidates = []string{name + "/" + staticIndexPage}
	default:
		candidates = []string{name + ".html", name, name + "/" + staticIndexPage}
	}

	if s.spa {
		candidates = append(candidates, staticIndexPage)
	}

	for _, candidate := range candidates {
		info, err := s.files.Stat(ctx, candidate)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}

		if err != nil {
			return "", mux.FileInfo{}, err
		}

		if info.IsDir {
			continue
		}

		return candidate, info, nil
	}

	return "", mux.FileInfo{}, fs.ErrNotExist
}

// staticName turns the request path into a file system name. Dot segments,
// NUL bytes and backslashes are rejected.
func staticName(rel string) (string, bool) {
	if strings.ContainsAny(rel, "\x00\\") {
		return "", false
	}

	name := strings.Trim(rel, "/")
	if name == "" {
		return "", true
	}

	for seg := range strings.SplitSeq(name, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", false
		}
	}

	return name, true
}

func (s *staticFiles) notFound(c *mux.Context) {
	c.Status(http.StatusNotFound)

	info, err := s.files.Stat(c.Context(), staticNotFoundPage)
	if err == nil && !info.IsDir {
		s.send(c, staticNotFoundPage, info, false)
		return
	}

	_ = c.Header("Content-Type", "text/plain; charset=utf-8").SendString(staticNotFoundBody)
}

// send delivers name with the pending status, or a 206 window when ranged
// and the request carries a Range header with an offset.
func (s *staticFiles) send(c *mux.Context, name string, info mux.FileInfo, ranged bool) {
	contentType := s.mimeTypes(name)
	if contentType == "" {
		contentType = mux.DefaultMIMEResolver(name)
	}

	if ranged {
		if start, ok := rangeStart(c.RequestHeader("Range")); ok {
			s.sendRange(c, name, contentType, info.Size, start)
			return
		}
	}

	c.Header("Content-Type", contentType).
		Header("Cache-Control", s.cacheControl).
		Header("Accept-Ranges", "bytes")

	if c.Request().Method == http.MethodHead {
		_ = c.Header("Content-Length", strconv.FormatInt(info.Size, 10)).End()
		return
	}

	rc, err := s.files.Open(c.Context(), name)
	if err != nil {
		sendStatus(c, http.StatusInternalServerError)
		return
	}
	defer rc.Close()

	var codec mux.Codec
	if encodable(contentType) {
		codec = mux.NegotiateCodec(c.RequestHeader("Accept-Encoding"), s.codecs)
	}

	_ = c.StreamEncoded(info.Size, rc, codec)
}

// sendRange answers a byte-range request per RFC 7233 Section 4.1, or 416
// per Section 4.4 when start lies beyond the end of the file.
func (s *staticFiles) sendRange(c *mux.Context, name, contentType string, size, start int64) {
	if start >= size {
		_ = c.Header("Content-Range", fmt.Sprintf("bytes */%d", size)).
			Status(http.StatusRequestedRangeNotSatisfiable).
			End()
		return
	}

	end := min(start+s.maxRange-1, size-1)
	length := end - start + 1

	c.Header("Content-Type", contentType).
		Header("Cache-Control", s.cacheControl).
		Header("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size)).
		Header("Accept-Ranges", "bytes").
		Header("Accept-Range", "bytes").
		Status(http.StatusPartialContent)

	if c.Request().Method == http.MethodHead {
		_ = c.Header("Content-Length", strconv.FormatInt(length, 10)).End()
		return
	}

	rc, err := s.files.OpenRange(c.Context(), name, start, end)
	if err != nil {
		sendStatus(c, http.StatusInternalServerError)
		return
	}
	defer rc.Close()

	_ = c.StreamEncoded(length, rc, nil)
}

// rangeStart returns the first run of digits in a Range header value. An
// offset too large to represent is reported as unsatisfiable.
func rangeStart(header string) (int64, bool) {
	i := strings.IndexAny(header, "0123456789")
	if i < 0 {
		return 0, false
	}

	j := i
	for j < len(header) && header[j] >= '0' && header[j] <= '9' {
		j++
	}

	n, err := strconv.ParseInt(header[i:j], 10, 64)
	if err != nil {
		return math.MaxInt64, true
	}

	return n, true
}

// encodable reports whether a body of contentType is worth compressing.
func encodable(contentType string) bool {
	ct := strings.ToLower(contentType)
	return !strings.HasPrefix(ct, "audio/") && !strings.HasPrefix(ct, "video/")
}
