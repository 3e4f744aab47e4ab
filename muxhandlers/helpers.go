package muxhandlers

import (
	"net/http"

	"github.com/vitalvas/relay/mux"
)

// sendStatus answers with code and its status text as a plain text body,
// matching the output of http.Error.
func sendStatus(c *mux.Context, code int) {
	_ = c.Header("Content-Type", "text/plain; charset=utf-8").
		Header("X-Content-Type-Options", "nosniff").
		Status(code).
		SendString(http.StatusText(code) + "\n")
}
