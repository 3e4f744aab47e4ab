package mux

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanPath(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "empty path", input: "", expected: "/"},
		{name: "root path", input: "/", expected: "/"},
		{name: "simple path", input: "/foo", expected: "/foo"},
		{name: "trailing slash", input: "/foo/", expected: "/foo/"},
		{name: "double slash", input: "/foo//bar", expected: "/foo/bar"},
		{name: "dot segments", input: "/foo/./bar", expected: "/foo/bar"},
		{name: "dotdot segments", input: "/foo/bar/../baz", expected: "/foo/baz"},
		{name: "no leading slash", input: "foo", expected: "/foo"},
		{name: "trailing slash preserved", input: "/foo/bar/", expected: "/foo/bar/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, cleanPath(tt.input))
		})
	}
}

func TestSortedMethods(t *testing.T) {
	assert.Nil(t, sortedMethods(nil))
	assert.Equal(t,
		[]string{http.MethodDelete, http.MethodGet, http.MethodPost},
		sortedMethods(map[string]bool{http.MethodPost: true, http.MethodGet: true, http.MethodDelete: true}),
	)
}

func TestBodyAllowedForStatus(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{http.StatusContinue, false},
		{http.StatusSwitchingProtocols, false},
		{http.StatusOK, true},
		{http.StatusNoContent, false},
		{http.StatusNotModified, false},
		{http.StatusNotFound, true},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, bodyAllowedForStatus(tt.status))
		})
	}
}
