package mux

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"time"
)

// FileInfo describes a file returned by FileSystem.Stat.
type FileInfo struct {
	Name    string
	Size    int64
	ModTime time.Time
	IsDir   bool
}

// FileSystem is the storage consulted by SendFile and the static file
// responder. Names are slash-separated and relative to the root of the file
// system; a leading slash is ignored. Missing files are reported with an
// error matching fs.ErrNotExist.
type FileSystem interface {
	// Stat reports whether name exists and its size.
	Stat(ctx context.Context, name string) (FileInfo, error)
	// Open opens name for reading from the start.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// OpenRange opens name for reading the inclusive byte range
	// [start, end].
	OpenRange(ctx context.Context, name string, start, end int64) (io.ReadCloser, error)
}

// defaultFiles serves routers without Files.
var defaultFiles = Dir(".")

// FS adapts an io/fs file system, such as embed.FS or fstest.MapFS.
func FS(fsys fs.FS) FileSystem {
	return ioFS{fsys: fsys}
}

// Dir returns a FileSystem rooted at the local directory dir.
func Dir(dir string) FileSystem {
	return FS(os.DirFS(dir))
}

type ioFS struct {
	fsys fs.FS
}

// fsName converts name to the unrooted form expected by io/fs.
func fsName(name string) (string, error) {
	n := path.Clean("/" + name)[1:]
	if n == "" {
		n = "."
	}
	if !fs.ValidPath(n) {
		return "", &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return n, nil
}

func (f ioFS) Stat(_ context.Context, name string) (FileInfo, error) {
	n, err := fsName(name)
	if err != nil {
		return FileInfo{}, err
	}

	fi, err := fs.Stat(f.fsys, n)
	if err != nil {
		return FileInfo{}, err
	}

	return FileInfo{
		Name:    fi.Name(),
		Size:    fi.Size(),
		ModTime: fi.ModTime(),
		IsDir:   fi.IsDir(),
	}, nil
}

func (f ioFS) Open(_ context.Context, name string) (io.ReadCloser, error) {
	n, err := fsName(name)
	if err != nil {
		return nil, err
	}
	return f.fsys.Open(n)
}

func (f ioFS) OpenRange(ctx context.Context, name string, start, end int64) (io.ReadCloser, error) {
	if start < 0 || end < start {
		return nil, fmt.Errorf("mux: invalid range %d-%d", start, end)
	}

	rc, err := f.Open(ctx, name)
	if err != nil {
		return nil, err
	}

	n := end - start + 1

	switch file := rc.(type) {
	case io.ReaderAt:
		return readCloser{Reader: io.NewSectionReader(file, start, n), Closer: rc}, nil
	case io.Seeker:
		if _, err := file.Seek(start, io.SeekStart); err != nil {
			rc.Close()
			return nil, err
		}
	default:
		if _, err := io.CopyN(io.Discard, rc, start); err != nil {
			rc.Close()
			return nil, err
		}
	}

	return readCloser{Reader: io.LimitReader(rc, n), Closer: rc}, nil
}

// readCloser pairs a derived reader with the closer of its source.
type readCloser struct {
	io.Reader
	io.Closer
}
