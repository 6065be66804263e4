package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"textbook-rag/internal/blobstore"
	"textbook-rag/internal/chunker"
	"textbook-rag/internal/config"
	"textbook-rag/internal/domain"
	"textbook-rag/internal/embedding"
	"textbook-rag/internal/embedding/hashing"
	"textbook-rag/internal/embedding/ollama"
	"textbook-rag/internal/embedding/openai"
	"textbook-rag/internal/llm"
)

// newEmbedder builds the configured backend. Remote backends are checked
// before use so a missing runtime fails the command up front.
func newEmbedder(ctx context.Context, cfg config.EmbedderConfig) (embedding.Embedder, error) {
	var emb embedding.Embedder
	switch cfg.Type {
	case "ollama", "":
		if cfg.Ollama == nil {
			return nil, fmt.Errorf("ollama embedder config missing")
		}
		client, err := ollama.NewClient(ollama.Config{
			BaseURL:    cfg.Ollama.BaseURL,
			Model:      cfg.Ollama.Model,
			Timeout:    time.Duration(cfg.Ollama.TimeoutSecs) * time.Second,
			MaxRetries: cfg.Ollama.MaxRetries,
		})
		if err != nil {
			return nil, fmt.Errorf("ollama embedder init failed: %w", err)
		}
		if err := client.Ping(ctx); err != nil {
			return nil, fmt.Errorf("ollama embedder init failed: %w", err)
		}
		emb = client
	case "openai":
		if cfg.OpenAI == nil {
			return nil, fmt.Errorf("openai embedder config missing")
		}
		client, err := openai.NewClient(openai.Config{
			BaseURL:   cfg.OpenAI.BaseURL,
			APIKeyEnv: cfg.OpenAI.APIKeyEnv,
			Model:     cfg.OpenAI.Model,
			Timeout:   time.Duration(cfg.OpenAI.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder init failed: %w", err)
		}
		emb = client
	case "hashing":
		dim := hashing.DefaultDimension
		if cfg.Hashing != nil {
			dim = cfg.Hashing.Dimension
		}
		emb = hashing.NewEmbedder(dim)
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Type)
	}
	if cfg.RateLimit > 0 {
		emb = embedding.WithRateLimit(emb, cfg.RateLimit, cfg.RateBurst)
	}
	return emb, nil
}

// buildEmbedder bounds every build-time embedding by the pipeline item
// timeout, including backends that ignore their context.
func buildEmbedder(emb embedding.Embedder, timeout time.Duration) embedding.Embedder {
	return embedding.WithTimeout(emb, timeout)
}

// queryEmbedder bounds query embedding by timeout and adds the query
// cache when configured.
func queryEmbedder(emb embedding.Embedder, cfg config.EmbedderConfig, timeout time.Duration) embedding.Embedder {
	emb = embedding.WithTimeout(emb, timeout)
	if cfg.CacheSize <= 0 {
		return emb
	}
	return embedding.WithCache(emb, cfg.CacheSize, time.Duration(cfg.CacheTTLSecs)*time.Second)
}

func newChunker(cfg config.ChunkerConfig) (domain.Chunker, error) {
	switch cfg.Type {
	case "recursive", "":
		return chunker.NewRecursiveChunker(cfg.ChunkSize, cfg.ChunkOverlap), nil
	case "sentence":
		return chunker.NewSentenceChunker(cfg.SentencesPerChunk, cfg.OverlapSentences), nil
	default:
		return nil, fmt.Errorf("unknown chunker: %s", cfg.Type)
	}
}

func newGenerator(cfg config.LLMConfig, logger *zap.Logger) (domain.Generator, error) {
	switch cfg.Type {
	case "ollama", "":
		oc := cfg.Ollama
		if oc == nil {
			oc = &config.OllamaConfig{}
		}
		model := oc.Model
		if model == "" {
			model = cfg.Model
		}
		return llm.NewOllama(llm.OllamaConfig{
			BaseURL: oc.BaseURL,
			Model:   model,
			Timeout: time.Duration(oc.TimeoutSecs) * time.Second,
		}, logger), nil
	case "openai":
		if cfg.OpenAI == nil {
			return nil, fmt.Errorf("openai llm config missing")
		}
		return llm.NewOpenAI(llm.OpenAIConfig{
			BaseURL:   cfg.OpenAI.BaseURL,
			APIKeyEnv: cfg.OpenAI.APIKeyEnv,
			Model:     cfg.OpenAI.Model,
			Timeout:   time.Duration(cfg.OpenAI.TimeoutSecs) * time.Second,
		})
	case "extractive":
		return llm.NewExtractive(cfg.MaxSentences), nil
	default:
		return nil, fmt.Errorf("unknown llm: %s", cfg.Type)
	}
}

// newCheckpointStore opens the configured checkpoint backend. The returned
// closer releases it.
func newCheckpointStore(ctx context.Context, cfg config.CheckpointConfig) (blobstore.FileStore, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Backend {
	case "local", "":
		fs, err := blobstore.NewLocal(cfg.Dir)
		return fs, noop, err
	case "badger":
		fs, err := blobstore.NewBadger(blobstore.BadgerOptions{Dir: cfg.Dir, Prefix: "checkpoints/"})
		if err != nil {
			return nil, noop, err
		}
		return fs, fs.Close, nil
	case "s3":
		fs, err := newS3(ctx, cfg.S3)
		return fs, noop, err
	default:
		return nil, noop, fmt.Errorf("unknown checkpoint backend: %s", cfg.Backend)
	}
}

// newArtifactStore returns nil for local paths.
func newArtifactStore(ctx context.Context, cfg config.StoreConfig) (blobstore.FileStore, error) {
	switch cfg.Backend {
	case "local", "":
		return nil, nil
	case "s3":
		return newS3(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Backend)
	}
}

func newS3(ctx context.Context, cfg *config.S3Config) (*blobstore.S3, error) {
	if cfg == nil {
		return nil, fmt.Errorf("s3 config missing")
	}
	return blobstore.NewS3FromConfig(ctx, blobstore.S3Options{
		Bucket:       cfg.Bucket,
		Prefix:       cfg.Prefix,
		Region:       cfg.Region,
		Endpoint:     cfg.Endpoint,
		UsePathStyle: cfg.UsePathStyle,
	})
}
