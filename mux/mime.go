package mux

import (
	"mime"
	"path"
)

// MIMEResolver maps a file name to a Content-Type. An empty result falls
// back to DefaultMIMEResolver.
type MIMEResolver func(name string) string

// JSONEncoder serializes a value for Context.SendJSON.
type JSONEncoder func(v any) ([]byte, error)

// DefaultMIMEResolver resolves the type from the file extension using the
// system MIME tables and falls back to application/octet-stream.
func DefaultMIMEResolver(name string) string {
	if t := mime.TypeByExtension(path.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}
