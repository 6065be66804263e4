// Package blobstore defines the FileStore interface used for checkpoint and
// store artifacts. Backends: local disk, BadgerDB and S3-compatible object
// stores.
package blobstore

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// FileStore is a minimal interface for file-oriented storage.
//
// Paths are forward-slash separated and relative to the store root.
type FileStore interface {
	// Read opens the named file for reading.
	// If the file does not exist, an error wrapping fs.ErrNotExist is returned.
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// Write opens the named file for writing. Data becomes visible under
	// path only once the returned writer is closed without error.
	// Parent directories are created automatically.
	Write(ctx context.Context, path string) (io.WriteCloser, error)

	// Delete removes the named file. Missing files are not an error.
	Delete(ctx context.Context, path string) error

	// Exists reports whether the named file exists.
	Exists(ctx context.Context, path string) (bool, error)
}

// WriteFile writes data to path in one call.
func WriteFile(ctx context.Context, fs FileStore, path string, data []byte) error {
	w, err := fs.Write(ctx, path)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		_ = abort(w)
		return err
	}
	return w.Close()
}

// ReadFile reads the whole named file.
func ReadFile(ctx context.Context, fs FileStore, path string) ([]byte, error) {
	r, err := fs.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// Aborter is implemented by writers that can discard pending data instead
// of committing it on Close.
type Aborter interface {
	Abort() error
}

func abort(w io.WriteCloser) error {
	if a, ok := w.(Aborter); ok {
		return a.Abort()
	}
	return w.Close()
}

// Abort discards a pending write when the writer supports it, and closes it
// otherwise.
func Abort(w io.WriteCloser) error { return abort(w) }

// cleanPath normalizes a storage path to a slash-separated relative key.
func cleanPath(path string) (string, error) {
	p := strings.Trim(strings.ReplaceAll(path, "\\", "/"), "/")
	if p == "" {
		return "", fmt.Errorf("blobstore: empty path")
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", fmt.Errorf("blobstore: path %q escapes store root", path)
		}
	}
	return p, nil
}
