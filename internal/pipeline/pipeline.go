// Package pipeline embeds document chunks in checkpointed batches and
// builds the searchable store from the result.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"go.uber.org/zap"

	"textbook-rag/internal/checkpoint"
	"textbook-rag/internal/domain"
	"textbook-rag/internal/embedding"
	"textbook-rag/internal/normalize"
	"textbook-rag/internal/vectorstore"
)

// ErrNoEmbedder is returned when Run is called without an embedding backend.
var ErrNoEmbedder = errors.New("pipeline: embedder is not initialized")

// Defaults applied by Options for zero values.
const (
	DefaultBatchSize    = 8
	DefaultSubBatchSize = 2
	DefaultPause        = 100 * time.Millisecond
	DefaultItemTimeout  = 120 * time.Second
)

// Options tunes batching. Zero values take the defaults above, except
// Pause and ItemTimeout where a negative value disables them.
type Options struct {
	BatchSize    int
	SubBatchSize int
	Pause        time.Duration
	ItemTimeout  time.Duration

	// Progress, when set, is called after every batch has been
	// checkpointed.
	Progress func(batch, totalBatches, added int)
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.SubBatchSize <= 0 {
		o.SubBatchSize = DefaultSubBatchSize
	}
	if o.Pause == 0 {
		o.Pause = DefaultPause
	}
	if o.ItemTimeout == 0 {
		o.ItemTimeout = DefaultItemTimeout
	}
	return o
}

// Dropped identifies a chunk that was left out of the index.
type Dropped struct {
	Position int
	Metadata domain.Metadata
	Reason   string
}

// Report summarizes a Run.
type Report struct {
	RunID        string
	TotalBatches int
	// ResumedFrom is the first batch processed by this run.
	ResumedFrom int
	Indexed     int
	Dropped     []Dropped
}

// Pipeline turns chunks into a vectorstore.Store.
type Pipeline struct {
	embedder    embedding.Embedder
	checkpoints *checkpoint.Manager
	opts        Options
	logger      *zap.Logger
	sleep       func(ctx context.Context, d time.Duration) error
}

// New creates a Pipeline. checkpoints may be nil, in which case progress
// lives only in memory.
func New(embedder embedding.Embedder, checkpoints *checkpoint.Manager, opts Options, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		embedder:    embedder,
		checkpoints: checkpoints,
		opts:        opts.withDefaults(),
		logger:      logger,
		sleep:       sleepContext,
	}
}

// TotalBatches returns the number of batches n documents split into.
func (p *Pipeline) TotalBatches(n int) int {
	return (n + p.opts.BatchSize - 1) / p.opts.BatchSize
}

// Run embeds docs batch by batch, resuming from the last checkpoint, and
// builds the index. A failing item is logged and dropped; only a missing
// embedder, a checkpoint write failure or context cancellation stop the
// run. Checkpoints are left in place; call Cleanup once the store has been
// persisted.
func (p *Pipeline) Run(ctx context.Context, docs []domain.DocumentChunk) (*vectorstore.Store, Report, error) {
	if p.embedder == nil {
		return nil, Report{}, ErrNoEmbedder
	}
	total := p.TotalBatches(len(docs))
	report := Report{TotalBatches: total}

	var progress checkpoint.Progress
	if p.checkpoints != nil {
		var err error
		progress, err = p.checkpoints.Recover(ctx)
		if err != nil {
			return nil, report, err
		}
	}
	report.RunID = progress.RunID
	report.ResumedFrom = progress.NextBatch
	state := progress.State
	if progress.NextBatch > total {
		p.logger.Warn("checkpoint is ahead of the document set",
			zap.Int("next_batch", progress.NextBatch), zap.Int("total_batches", total))
	}

	p.logger.Info("embedding documents",
		zap.Int("documents", len(docs)),
		zap.Int("total_batches", total),
		zap.Int("start_batch", progress.NextBatch),
		zap.String("embedder", p.embedder.Name()))

	for b := progress.NextBatch; b < total; b++ {
		if err := ctx.Err(); err != nil {
			return nil, report, err
		}
		runtime.GC()

		start := b * p.opts.BatchSize
		end := min(start+p.opts.BatchSize, len(docs))
		batchDocs, batchVecs, dropped, err := p.embedBatch(ctx, docs[start:end], start)
		if err != nil {
			return nil, report, err
		}
		report.Dropped = append(report.Dropped, dropped...)

		if len(batchDocs) == 0 {
			p.logger.Warn("no valid texts in batch", zap.Int("batch", b))
		}
		state.Documents = append(state.Documents, batchDocs...)
		state.Embeddings = append(state.Embeddings, batchVecs...)
		// every batch gets a snapshot, empty or not, so Recover always
		// finds the artifact next_batch points past
		if p.checkpoints != nil {
			if err := p.checkpoints.Save(ctx, b, state); err != nil {
				return nil, report, err
			}
		}
		runtime.GC()

		p.logger.Info("processed batch",
			zap.Int("batch", b+1),
			zap.Int("total_batches", total),
			zap.Int("added", len(batchDocs)),
			zap.Int("indexed", state.Len()))
		if p.opts.Progress != nil {
			p.opts.Progress(b, total, len(batchDocs))
		}
	}

	store, err := vectorstore.Build(state.Documents, state.Embeddings)
	if err != nil {
		return nil, report, fmt.Errorf("pipeline: build index: %w", err)
	}
	report.Indexed = store.Len()
	if len(report.Dropped) > 0 {
		p.logger.Warn("some documents were not indexed", zap.Int("dropped", len(report.Dropped)))
	}
	return store, report, nil
}

// Cleanup removes the checkpoints left by a completed run.
func (p *Pipeline) Cleanup(ctx context.Context, report Report) error {
	if p.checkpoints == nil {
		return nil
	}
	return p.checkpoints.Purge(ctx, report.TotalBatches)
}

// embedBatch embeds one batch in sub-batches. offset is the position of
// batch[0] within the whole document set.
func (p *Pipeline) embedBatch(ctx context.Context, batch []domain.DocumentChunk, offset int) ([]domain.DocumentChunk, [][]float32, []Dropped, error) {
	var (
		docs    []domain.DocumentChunk
		vecs    [][]float32
		dropped []Dropped
	)
	for i := 0; i < len(batch); i += p.opts.SubBatchSize {
		if i > 0 && p.opts.Pause > 0 {
			if err := p.sleep(ctx, p.opts.Pause); err != nil {
				return nil, nil, nil, err
			}
		}
		end := min(i+p.opts.SubBatchSize, len(batch))
		for j := i; j < end; j++ {
			doc := batch[j]
			text := normalize.Text(doc.Content)
			if text == "" {
				dropped = append(dropped, Dropped{Position: offset + j, Metadata: doc.Metadata, Reason: "empty after normalization"})
				continue
			}
			vec, err := p.embedItem(ctx, text)
			if err != nil {
				if ctx.Err() != nil {
					return nil, nil, nil, ctx.Err()
				}
				p.logger.Warn("error embedding document",
					zap.Int("position", offset+j),
					zap.String("filename", doc.Metadata.Filename),
					zap.Int("chunk_id", doc.Metadata.ChunkID),
					zap.Error(err))
				dropped = append(dropped, Dropped{Position: offset + j, Metadata: doc.Metadata, Reason: err.Error()})
				continue
			}
			docs = append(docs, doc)
			vecs = append(vecs, vec)
		}
	}
	return docs, vecs, dropped, nil
}

func (p *Pipeline) embedItem(ctx context.Context, text string) ([]float32, error) {
	if p.opts.ItemTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.ItemTimeout)
		defer cancel()
	}
	vec, err := p.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vec) == 0 {
		return nil, embedding.ErrEmptyInput
	}
	return vec, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
