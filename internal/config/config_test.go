package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.Embedder.Type)
	require.NotNil(t, cfg.Embedder.Ollama)
	assert.Equal(t, "http://localhost:11434", cfg.Embedder.Ollama.BaseURL)
	assert.Equal(t, 8, cfg.Pipeline.BatchSize)
	assert.Equal(t, 2, cfg.Pipeline.SubBatchSize)
	assert.Equal(t, 100*time.Millisecond, cfg.Pipeline.PauseDuration())
	assert.Equal(t, 120*time.Second, cfg.Pipeline.ItemTimeout())
	assert.Equal(t, "checkpoints", cfg.Checkpoint.Dir)
	assert.Equal(t, 1000, cfg.Chunker.ChunkSize)
	assert.Equal(t, 200, cfg.Chunker.ChunkOverlap)
	assert.Equal(t, "llama3", cfg.LLM.Model)
	assert.Equal(t, "llama3", cfg.LLM.Ollama.Model)
	assert.Equal(t, 5, cfg.Retrieval.NumResults)
}

func TestLoadOverridesAndFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
embedder:
  type: openai
  openai:
    model: text-embedding-3-large
pipeline:
  batch_size: 16
checkpoint:
  backend: badger
  dir: /tmp/ckpt
llm:
  type: extractive
retrieval:
  num_results: 3
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Embedder.OpenAI)
	assert.Equal(t, "text-embedding-3-large", cfg.Embedder.OpenAI.Model)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Embedder.OpenAI.APIKeyEnv)
	assert.Equal(t, 16, cfg.Pipeline.BatchSize)
	assert.Equal(t, 2, cfg.Pipeline.SubBatchSize)
	assert.Equal(t, "badger", cfg.Checkpoint.Backend)
	assert.Equal(t, "/tmp/ckpt", cfg.Checkpoint.Dir)
	assert.Equal(t, "extractive", cfg.LLM.Type)
	assert.Equal(t, 3, cfg.Retrieval.NumResults)
	assert.Equal(t, 200, cfg.Chunker.ChunkOverlap)
}

func TestLoadRejectsInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("embedder: [unclosed"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultConfig()
	cfg.Embedder.Type = "hashing"
	cfg.Embedder.Hashing = &HashingConfig{Dimension: 128}
	cfg.Store = StoreConfig{Backend: "s3", S3: &S3Config{Bucket: "books", Prefix: "indexes", Region: "eu-west-1"}}
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 128, loaded.Embedder.Hashing.Dimension)
	require.NotNil(t, loaded.Store.S3)
	assert.Equal(t, "books", loaded.Store.S3.Bucket)
	assert.Equal(t, "s3", loaded.Store.Backend)
}

func TestLoadDefaultWritesUserConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, path, err := LoadDefault()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "textbook-rag", "config.yaml"), path)
	assert.Equal(t, "ollama", cfg.Embedder.Type)
	_, err = os.Stat(path)
	require.NoError(t, err)
}
