package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"textbook-rag/internal/blobstore"
	"textbook-rag/internal/checkpoint"
	"textbook-rag/internal/chunker"
	"textbook-rag/internal/domain"
	"textbook-rag/internal/embedding/hashing"
	"textbook-rag/internal/llm"
	"textbook-rag/internal/pipeline"
	"textbook-rag/internal/vectorstore"
)

type staticLoader []domain.Textbook

func (l staticLoader) LoadTextbooks(ctx context.Context) ([]domain.Textbook, error) {
	return l, ctx.Err()
}

func library() staticLoader {
	return staticLoader{
		{
			Path: "/lib/biology/cells.pdf", Category: "biology", Filename: "cells.pdf",
			Content: "Mitochondria produce ATP through cellular respiration.\n\nThe nucleus stores genetic material.",
		},
		{
			Path: "/lib/physics/motion.pdf", Category: "physics", Filename: "motion.pdf",
			Content: "Newton's second law relates force, mass and acceleration.\n\nMomentum is conserved in collisions.",
		},
		{
			Path: "/lib/botany/plants.pdf", Category: "botany", Filename: "plants.pdf",
			Content: "Chloroplasts capture light energy during photosynthesis.",
		},
	}
}

func newService(t *testing.T, loader staticLoader) (*RAGServiceImpl, blobstore.FileStore) {
	t.Helper()
	ckpt, err := blobstore.NewLocal(t.TempDir())
	require.NoError(t, err)
	svc := NewRAGService(Deps{
		Loader:      func(string) domain.TextbookLoader { return loader },
		Chunker:     chunker.NewRecursiveChunker(60, 10),
		Embedder:    hashing.NewEmbedder(256),
		Checkpoints: checkpoint.NewManager(ckpt, nil),
		Pipeline:    pipeline.Options{BatchSize: 2, SubBatchSize: 1, Pause: -1},
		Generator:   llm.NewExtractive(1),
	})
	return svc, ckpt
}

func TestBuildThenQuery(t *testing.T) {
	ctx := context.Background()
	out := filepath.Join(t.TempDir(), "index", "textbooks.store")
	svc, ckpt := newService(t, library())

	summary, err := svc.Build(ctx, "/lib", out)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Textbooks)
	assert.Greater(t, summary.Chunks, 3)
	assert.Equal(t, summary.Chunks, summary.Indexed)
	assert.Zero(t, summary.Dropped)

	ok, err := ckpt.Exists(ctx, checkpoint.InfoFile)
	require.NoError(t, err)
	assert.False(t, ok, "checkpoints are removed after a successful build")

	answer, err := svc.Query(ctx, "How do chloroplasts capture light energy?", 2)
	require.NoError(t, err)
	require.Len(t, answer.Sources, 2)
	assert.Equal(t, "plants.pdf", answer.Sources[0].Chunk.Metadata.Filename)
	assert.Contains(t, answer.Response, "Chloroplasts")

	// a fresh service can open the saved store
	reader, _ := newService(t, nil)
	require.NoError(t, reader.Open(ctx, out))
	again, err := reader.Query(ctx, "How do chloroplasts capture light energy?", 2)
	require.NoError(t, err)
	assert.Equal(t, answer.Sources, again.Sources)
}

func TestQueryBeforeBuild(t *testing.T) {
	svc, _ := newService(t, nil)
	_, err := svc.Query(context.Background(), "anything", 3)
	require.ErrorIs(t, err, ErrNoStore)

	_, err = svc.Query(context.Background(), "   ", 3)
	require.Error(t, err)
}

func TestBuildWithNoTextbooksGivesEmptyStore(t *testing.T) {
	ctx := context.Background()
	out := filepath.Join(t.TempDir(), "empty.store")
	svc, _ := newService(t, staticLoader{})

	summary, err := svc.Build(ctx, "/lib", out)
	require.NoError(t, err)
	assert.Zero(t, summary.Indexed)

	_, err = svc.Query(ctx, "anything at all", 3)
	require.ErrorIs(t, err, vectorstore.ErrEmptyStore)
}

func TestBuildToArtifactStore(t *testing.T) {
	ctx := context.Background()
	artifacts, err := blobstore.NewBadger(blobstore.BadgerOptions{InMemory: true})
	require.NoError(t, err)
	defer artifacts.Close()

	svc, _ := newService(t, library())
	svc.deps.Artifacts = artifacts
	_, err = svc.Build(ctx, "/lib", "stores/textbooks.store")
	require.NoError(t, err)

	store, err := vectorstore.Load(ctx, artifacts, "stores/textbooks.store")
	require.NoError(t, err)
	assert.True(t, store.HasIndex())
}
