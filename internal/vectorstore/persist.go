package vectorstore

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"

	"textbook-rag/internal/blobstore"
	"textbook-rag/internal/domain"
	"textbook-rag/internal/vectorstore/flat"
)

const (
	artifactFormat  = "textbook-rag/store"
	artifactVersion = 1
)

// artifact is the on-disk envelope. Index holds the flat index's own
// binary encoding, or nil when the store has no index.
type artifact struct {
	Format    string                 `msgpack:"format"`
	Version   int                    `msgpack:"version"`
	Documents []domain.DocumentChunk `msgpack:"documents"`
	Index     []byte                 `msgpack:"index"`
}

// Save writes store to path in fs as a single artifact.
func Save(ctx context.Context, fs blobstore.FileStore, path string, store *Store) error {
	a := artifact{Format: artifactFormat, Version: artifactVersion, Documents: store.Documents}
	if store.Index != nil {
		blob, err := store.Index.MarshalBinary()
		if err != nil {
			return fmt.Errorf("vectorstore: serialize index: %w", err)
		}
		a.Index = blob
	}
	data, err := msgpack.Marshal(&a)
	if err != nil {
		return fmt.Errorf("vectorstore: encode store: %w", err)
	}
	if err := blobstore.WriteFile(ctx, fs, path, data); err != nil {
		return fmt.Errorf("vectorstore: write %s: %w", path, err)
	}
	return nil
}

// Load reads a store previously written by Save. A missing index field
// yields a store without an index.
func Load(ctx context.Context, fs blobstore.FileStore, path string) (*Store, error) {
	data, err := blobstore.ReadFile(ctx, fs, path)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: read %s: %w", path, err)
	}
	var a artifact
	if err := msgpack.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("vectorstore: decode %s: %w", path, err)
	}
	if a.Format != artifactFormat {
		return nil, fmt.Errorf("vectorstore: %s is not a store artifact (format %q)", path, a.Format)
	}
	if a.Version != artifactVersion {
		return nil, fmt.Errorf("vectorstore: unsupported store version %d", a.Version)
	}
	store := &Store{Documents: a.Documents}
	if len(a.Index) > 0 {
		idx, err := flat.Decode(a.Index)
		if err != nil {
			return nil, fmt.Errorf("vectorstore: decode index: %w", err)
		}
		store.Index = idx
	}
	return store, nil
}

// SaveFile writes store to a local path, creating parent directories.
func SaveFile(ctx context.Context, path string, store *Store) error {
	fs, err := blobstore.NewLocal(filepath.Dir(path))
	if err != nil {
		return fmt.Errorf("vectorstore: %w", err)
	}
	return Save(ctx, fs, filepath.Base(path), store)
}

// LoadFile reads a store from a local path.
func LoadFile(ctx context.Context, path string) (*Store, error) {
	fs, err := blobstore.NewLocal(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("vectorstore: %w", err)
	}
	return Load(ctx, fs, filepath.Base(path))
}
