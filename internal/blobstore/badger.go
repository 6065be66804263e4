package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"

	badger "github.com/dgraph-io/badger/v4"
)

// Badger is a FileStore backed by BadgerDB. Each path is stored as a single
// value, so every write is committed in one transaction.
type Badger struct {
	db     *badger.DB
	prefix string
}

var _ FileStore = (*Badger)(nil)

// BadgerOptions configures the BadgerDB store.
type BadgerOptions struct {
	// Dir is the directory for BadgerDB data files. Required unless InMemory.
	Dir string

	// InMemory runs BadgerDB without disk persistence.
	InMemory bool

	// Prefix namespaces every key written by this store.
	Prefix string
}

// NewBadger opens a BadgerDB-backed FileStore.
func NewBadger(opts BadgerOptions) (*Badger, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("blobstore: BadgerOptions.Dir is required for on-disk mode")
	}
	dbOpts := badger.DefaultOptions(opts.Dir).WithLogger(nil)
	if opts.InMemory {
		dbOpts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("blobstore: open badger: %w", err)
	}
	return &Badger{db: db, prefix: opts.Prefix}, nil
}

func (b *Badger) key(path string) ([]byte, error) {
	p, err := cleanPath(path)
	if err != nil {
		return nil, err
	}
	return []byte(b.prefix + p), nil
}

// Read returns the stored value for path.
func (b *Badger) Read(_ context.Context, path string) (io.ReadCloser, error) {
	k, err := b.key(path)
	if err != nil {
		return nil, err
	}
	var val []byte
	err = b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("blobstore: read %s: %w", path, fs.ErrNotExist)
	}
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(val)), nil
}

// Write buffers data in memory and commits it on Close.
func (b *Badger) Write(_ context.Context, path string) (io.WriteCloser, error) {
	k, err := b.key(path)
	if err != nil {
		return nil, err
	}
	return &badgerWriter{db: b.db, key: k}, nil
}

// Delete removes the value stored for path.
func (b *Badger) Delete(_ context.Context, path string) error {
	k, err := b.key(path)
	if err != nil {
		return err
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(k)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	return err
}

// Exists reports whether a value is stored for path.
func (b *Badger) Exists(_ context.Context, path string) (bool, error) {
	k, err := b.key(path)
	if err != nil {
		return false, err
	}
	err = b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(k)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Close releases the underlying database.
func (b *Badger) Close() error {
	return b.db.Close()
}

type badgerWriter struct {
	db   *badger.DB
	key  []byte
	buf  bytes.Buffer
	done bool
}

func (w *badgerWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *badgerWriter) Close() error {
	if w.done {
		return nil
	}
	w.done = true
	return w.db.Update(func(txn *badger.Txn) error {
		return txn.Set(w.key, w.buf.Bytes())
	})
}

func (w *badgerWriter) Abort() error {
	w.done = true
	w.buf.Reset()
	return nil
}
