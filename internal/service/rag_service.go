package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"textbook-rag/internal/blobstore"
	"textbook-rag/internal/checkpoint"
	"textbook-rag/internal/chunker"
	"textbook-rag/internal/domain"
	"textbook-rag/internal/embedding"
	"textbook-rag/internal/llm"
	"textbook-rag/internal/pipeline"
	"textbook-rag/internal/vectorstore"
)

// ErrNoStore is returned by Query before a store has been built or opened.
var ErrNoStore = errors.New("service: no store loaded, build or open an index first")

// Deps wires the service. Artifacts is where the final store is written
// and read; when nil, paths are local files.
type Deps struct {
	Loader      func(root string) domain.TextbookLoader
	Chunker     domain.Chunker
	Embedder    embedding.Embedder
	Checkpoints *checkpoint.Manager
	Pipeline    pipeline.Options
	Artifacts   blobstore.FileStore
	Generator   domain.Generator
	Logger      *zap.Logger
}

type RAGServiceImpl struct {
	deps   Deps
	logger *zap.Logger

	mu        sync.RWMutex
	retriever *vectorstore.Retriever
}

var _ domain.RAGService = (*RAGServiceImpl)(nil)

func NewRAGService(deps Deps) *RAGServiceImpl {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RAGServiceImpl{deps: deps, logger: logger}
}

// Build loads the textbooks under textbooksDir, embeds their chunks and
// writes the store to outputPath. An interrupted build resumes from the
// last checkpoint when run again.
func (s *RAGServiceImpl) Build(ctx context.Context, textbooksDir, outputPath string) (domain.BuildSummary, error) {
	summary := domain.BuildSummary{Output: outputPath}
	if s.deps.Loader == nil || s.deps.Chunker == nil {
		return summary, errors.New("service: loader and chunker are required to build")
	}
	books, err := s.deps.Loader(textbooksDir).LoadTextbooks(ctx)
	if err != nil {
		return summary, err
	}
	summary.Textbooks = len(books)

	s.logger.Info("processing documents")
	chunks := chunker.SplitAll(s.deps.Chunker, books)
	summary.Chunks = len(chunks)
	s.logger.Info("created document chunks", zap.Int("chunks", len(chunks)))

	p := pipeline.New(s.deps.Embedder, s.deps.Checkpoints, s.deps.Pipeline, s.logger)
	store, report, err := p.Run(ctx, chunks)
	if err != nil {
		return summary, err
	}
	summary.Indexed = report.Indexed
	summary.Dropped = len(report.Dropped)
	if !store.HasIndex() {
		s.logger.Warn("no valid embeddings were created, index is empty")
	}

	if err := s.save(ctx, outputPath, store); err != nil {
		return summary, err
	}
	s.logger.Info("vector store saved", zap.String("path", outputPath), zap.Int("documents", store.Len()))

	if err := p.Cleanup(ctx, report); err != nil {
		// the store is already safe, stale checkpoints only cost disk
		s.logger.Warn("could not remove checkpoints", zap.Error(err))
	}
	s.setStore(store)
	return summary, nil
}

// Open loads a previously built store for querying.
func (s *RAGServiceImpl) Open(ctx context.Context, path string) error {
	var (
		store *vectorstore.Store
		err   error
	)
	if s.deps.Artifacts != nil {
		store, err = vectorstore.Load(ctx, s.deps.Artifacts, path)
	} else {
		store, err = vectorstore.LoadFile(ctx, path)
	}
	if err != nil {
		return err
	}
	s.logger.Info("vector store loaded", zap.String("path", path), zap.Int("documents", store.Len()))
	s.setStore(store)
	return nil
}

// Query retrieves the k best chunks for question and asks the generator
// for an answer grounded in them.
func (s *RAGServiceImpl) Query(ctx context.Context, question string, k int) (domain.Answer, error) {
	answer := domain.Answer{Question: question}
	question = strings.TrimSpace(question)
	if question == "" {
		return answer, errors.New("service: empty question")
	}
	s.mu.RLock()
	r := s.retriever
	s.mu.RUnlock()
	if r == nil {
		return answer, ErrNoStore
	}
	results, err := r.Search(ctx, question, k)
	if err != nil {
		return answer, err
	}
	answer.Sources = results
	if s.deps.Generator == nil {
		return answer, errors.New("service: no generator configured")
	}
	resp, err := s.deps.Generator.Generate(ctx, llm.BuildPrompt(question, results))
	if err != nil {
		return answer, fmt.Errorf("service: generate: %w", err)
	}
	answer.Response = strings.TrimSpace(resp)
	return answer, nil
}

func (s *RAGServiceImpl) save(ctx context.Context, path string, store *vectorstore.Store) error {
	if s.deps.Artifacts != nil {
		return vectorstore.Save(ctx, s.deps.Artifacts, path, store)
	}
	return vectorstore.SaveFile(ctx, path, store)
}

func (s *RAGServiceImpl) setStore(store *vectorstore.Store) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retriever = vectorstore.NewRetriever(store, s.deps.Embedder, s.logger)
}
