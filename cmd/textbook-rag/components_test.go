package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"textbook-rag/internal/blobstore"
	"textbook-rag/internal/chunker"
	"textbook-rag/internal/config"
	"textbook-rag/internal/llm"
)

func TestNewEmbedder(t *testing.T) {
	ctx := context.Background()

	emb, err := newEmbedder(ctx, config.EmbedderConfig{Type: "hashing", Hashing: &config.HashingConfig{Dimension: 64}})
	require.NoError(t, err)
	assert.Equal(t, 64, emb.Dimension())

	_, err = newEmbedder(ctx, config.EmbedderConfig{Type: "word2vec"})
	require.Error(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	emb, err = newEmbedder(ctx, config.EmbedderConfig{Type: "ollama", Ollama: &config.OllamaConfig{BaseURL: srv.URL, Model: "all-minilm"}})
	require.NoError(t, err)
	assert.Equal(t, "ollama/all-minilm", emb.Name())
	srv.Close()

	// an unreachable runtime fails up front
	_, err = newEmbedder(ctx, config.EmbedderConfig{Type: "ollama", Ollama: &config.OllamaConfig{BaseURL: srv.URL}})
	require.Error(t, err)
}

func TestNewChunker(t *testing.T) {
	ch, err := newChunker(config.ChunkerConfig{Type: "recursive", ChunkSize: 100, ChunkOverlap: 10})
	require.NoError(t, err)
	assert.IsType(t, &chunker.RecursiveChunker{}, ch)

	ch, err = newChunker(config.ChunkerConfig{Type: "sentence", SentencesPerChunk: 3})
	require.NoError(t, err)
	assert.IsType(t, &chunker.SentenceChunker{}, ch)

	_, err = newChunker(config.ChunkerConfig{Type: "paragraph"})
	require.Error(t, err)
}

func TestNewGenerator(t *testing.T) {
	g, err := newGenerator(config.LLMConfig{Type: "extractive"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &llm.Extractive{}, g)

	g, err = newGenerator(config.LLMConfig{Type: "ollama", Ollama: &config.OllamaConfig{Model: "mistral"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "mistral", g.(*llm.Ollama).Model())

	_, err = newGenerator(config.LLMConfig{Type: "openai"}, nil)
	require.Error(t, err)
}

func TestNewCheckpointStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	fs, closeFn, err := newCheckpointStore(ctx, config.CheckpointConfig{Backend: "local", Dir: filepath.Join(dir, "local")})
	require.NoError(t, err)
	assert.IsType(t, &blobstore.Local{}, fs)
	require.NoError(t, closeFn())

	fs, closeFn, err = newCheckpointStore(ctx, config.CheckpointConfig{Backend: "badger", Dir: filepath.Join(dir, "badger")})
	require.NoError(t, err)
	assert.IsType(t, &blobstore.Badger{}, fs)
	require.NoError(t, closeFn())

	_, _, err = newCheckpointStore(ctx, config.CheckpointConfig{Backend: "s3"})
	require.Error(t, err)

	_, _, err = newCheckpointStore(ctx, config.CheckpointConfig{Backend: "floppy"})
	require.Error(t, err)
}

func TestNewArtifactStore(t *testing.T) {
	fs, err := newArtifactStore(context.Background(), config.StoreConfig{Backend: "local"})
	require.NoError(t, err)
	assert.Nil(t, fs)

	_, err = newArtifactStore(context.Background(), config.StoreConfig{Backend: "ftp"})
	require.Error(t, err)
}

// stuckEmbedder never returns and ignores its context.
type stuckEmbedder struct{ release chan struct{} }

func (s stuckEmbedder) Name() string   { return "stuck" }
func (s stuckEmbedder) Dimension() int { return 1 }

func (s stuckEmbedder) Embed(context.Context, string) ([]float32, error) {
	<-s.release
	return []float32{1}, nil
}

func TestBuildEmbedderBoundsStuckBackend(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	emb := buildEmbedder(stuckEmbedder{release: release}, 20*time.Millisecond)

	start := time.Now()
	_, err := emb.Embed(context.Background(), "photosynthesis")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, "stuck", emb.Name())
}

func TestQueryEmbedderCaches(t *testing.T) {
	emb, err := newEmbedder(context.Background(), config.EmbedderConfig{Type: "hashing"})
	require.NoError(t, err)
	q := queryEmbedder(emb, config.EmbedderConfig{CacheSize: 4, CacheTTLSecs: 60}, time.Second)

	first, err := q.Embed(context.Background(), "mitochondria")
	require.NoError(t, err)
	second, err := q.Embed(context.Background(), "mitochondria")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, emb.Dimension(), q.Dimension())
}
