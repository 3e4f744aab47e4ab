package mux

import (
	"compress/flate"
	"compress/gzip"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

// Codec is a content coding (RFC 7231 Section 3.1.2.1) applied to response
// bodies.
type Codec interface {
	// Encoding is the Content-Encoding token, such as "gzip".
	Encoding() string
	// NewWriter returns a writer that encodes into w. Closing it flushes
	// the encoder but does not close w.
	NewWriter(w io.Writer) io.WriteCloser
}

// compressor is the common interface implemented by both gzip.Writer and
// flate.Writer.
type compressor interface {
	io.WriteCloser
	Reset(w io.Writer)
}

// poolCodec hands out pooled encoders.
type poolCodec struct {
	encoding string
	pool     sync.Pool
}

func (p *poolCodec) Encoding() string {
	return p.encoding
}

func (p *poolCodec) NewWriter(w io.Writer) io.WriteCloser {
	z := p.pool.Get().(compressor)
	z.Reset(w)
	return &pooledWriter{compressor: z, pool: &p.pool}
}

// pooledWriter returns its compressor to the pool on Close.
type pooledWriter struct {
	compressor
	pool *sync.Pool
}

func (w *pooledWriter) Close() error {
	if w.compressor == nil {
		return nil
	}
	err := w.compressor.Close()
	w.pool.Put(w.compressor)
	w.compressor = nil
	return err
}

// GzipCodec returns a gzip codec. Level zero selects
// flate.DefaultCompression.
func GzipCodec(level int) (Codec, error) {
	level, err := checkLevel(level)
	if err != nil {
		return nil, err
	}

	c := &poolCodec{encoding: "gzip"}
	c.pool.New = func() any {
		w, _ := gzip.NewWriterLevel(io.Discard, level)
		return w
	}
	return c, nil
}

// DeflateCodec returns a deflate codec. Level zero selects
// flate.DefaultCompression.
func DeflateCodec(level int) (Codec, error) {
	level, err := checkLevel(level)
	if err != nil {
		return nil, err
	}

	c := &poolCodec{encoding: "deflate"}
	c.pool.New = func() any {
		w, _ := flate.NewWriter(io.Discard, level)
		return w
	}
	return c, nil
}

func checkLevel(level int) (int, error) {
	if level == 0 {
		return flate.DefaultCompression, nil
	}
	if level < flate.HuffmanOnly || level > flate.BestCompression {
		return 0, fmt.Errorf("%w: %d", ErrInvalidCompressionLevel, level)
	}
	return level, nil
}

// defaultCodecs are used by routers without Codecs.
var defaultCodecs = func() []Codec {
	gz, _ := GzipCodec(0)
	df, _ := DeflateCodec(0)
	return []Codec{gz, df}
}()

// NegotiateCodec returns the codec preferred by an Accept-Encoding header
// value (RFC 7231 Section 5.3.4), or nil when none is acceptable. Among
// codings of equal quality the one listed first in codecs wins; "*" applies
// to codings the header does not name.
func NegotiateCodec(acceptEncoding string, codecs []Codec) Codec {
	if acceptEncoding == "" || len(codecs) == 0 {
		return nil
	}

	qualities := make(map[string]float64)
	wildQ := -1.0

	for part := range strings.SplitSeq(acceptEncoding, ",") {
		name, quality := parseEncoding(strings.TrimSpace(part))
		if name == "" {
			continue
		}
		q := parseQuality(quality)

		if name == "*" {
			wildQ = q
			continue
		}
		qualities[strings.ToLower(name)] = q
	}

	var (
		best  Codec
		bestQ float64
	)

	for _, c := range codecs {
		q, ok := qualities[c.Encoding()]
		if !ok {
			q = wildQ
		}
		if q > bestQ {
			best, bestQ = c, q
		}
	}

	return best
}

// parseQuality converts a quality string to a float64.
// An empty string defaults to 1.0 per RFC 9110 Section 12.4.2.
func parseQuality(s string) float64 {
	if s == "" {
		return 1.0
	}

	q, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}

	return q
}

// parseEncoding splits an encoding token into the encoding name and quality
// value. For "gzip;q=0.8" it returns ("gzip", "0.8"). When no quality value
// is present it returns the encoding and an empty string.
func parseEncoding(s string) (encoding, quality string) {
	encoding, params, ok := strings.Cut(s, ";")
	if !ok {
		return strings.TrimSpace(encoding), ""
	}

	params = strings.TrimSpace(params)
	if key, val, found := strings.Cut(params, "="); found && strings.TrimSpace(key) == "q" {
		return strings.TrimSpace(encoding), strings.TrimSpace(val)
	}

	return strings.TrimSpace(encoding), ""
}

// incompressibleTypes contains content type prefixes and exact types that
// are already compressed and should not be double-compressed.
var incompressibleTypes = []string{
	"image/",
	"video/",
	"audio/",
	"application/zip",
	"application/gzip",
	"application/x-gzip",
	"application/x-bzip2",
	"application/x-xz",
	"application/zstd",
	"application/x-7z-compressed",
	"application/x-rar-compressed",
}

// isCompressibleType reports whether a body of content type ct is worth
// encoding.
func isCompressibleType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))

	for _, prefix := range incompressibleTypes {
		if strings.HasPrefix(ct, prefix) {
			return false
		}
	}

	return true
}
