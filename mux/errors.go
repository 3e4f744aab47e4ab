package mux

import (
	"errors"
	"fmt"
	"io/fs"
)

// ErrConfiguration is the parent of every error recorded while building a
// route table. Test with errors.Is.
var ErrConfiguration = errors.New("mux: invalid configuration")

var (
	// ErrNilHandler is recorded when a middleware or handler entry is
	// registered with a nil function.
	ErrNilHandler = fmt.Errorf("%w: nil handler", ErrConfiguration)

	// ErrNilRouter is recorded when a nil router is mounted.
	ErrNilRouter = fmt.Errorf("%w: nil router", ErrConfiguration)

	// ErrMountCycle is reported when a router is mounted, directly or
	// transitively, inside itself.
	ErrMountCycle = fmt.Errorf("%w: mount cycle", ErrConfiguration)

	// ErrRouterFrozen is recorded when an entry is registered after the
	// router has started serving.
	ErrRouterFrozen = fmt.Errorf("%w: router is frozen", ErrConfiguration)

	// ErrInvalidPattern is recorded for path templates that do not start
	// with a slash.
	ErrInvalidPattern = fmt.Errorf("%w: invalid pattern", ErrConfiguration)
)

// ErrFileNotFound is returned by Context.SendFile when the file does not
// exist or is a directory. It matches fs.ErrNotExist.
var ErrFileNotFound = fmt.Errorf("mux: file not found: %w", fs.ErrNotExist)

// ErrInvalidCompressionLevel is returned when a codec is created with a
// compression level outside the range accepted by its encoder.
var ErrInvalidCompressionLevel = errors.New("mux: invalid compression level")
