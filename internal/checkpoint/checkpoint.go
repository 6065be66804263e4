// Package checkpoint makes the batch embedding run resumable. After every
// batch the full accumulator is written as a self-contained snapshot and a
// small info record points at the next batch to process.
package checkpoint

import (
	"bytes"
	"context"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"textbook-rag/internal/blobstore"
	"textbook-rag/internal/domain"
)

// InfoFile is the name of the checkpoint-info record.
const InfoFile = "checkpoint_info.json"

// ErrUnpaired is returned when documents and embeddings differ in length.
var ErrUnpaired = errors.New("checkpoint: documents and embeddings are not paired")

// State is the accumulator of a build run. Documents[i] was embedded as
// Embeddings[i].
type State struct {
	Documents  []domain.DocumentChunk
	Embeddings [][]float32
}

// Len returns the number of document/embedding pairs.
func (s State) Len() int { return len(s.Documents) }

// Validate checks the pairing invariant.
func (s State) Validate() error {
	if len(s.Documents) != len(s.Embeddings) {
		return fmt.Errorf("%w: %d documents, %d embeddings", ErrUnpaired, len(s.Documents), len(s.Embeddings))
	}
	return nil
}

// Info is the checkpoint-info record.
type Info struct {
	NextBatch int       `json:"next_batch"`
	RunID     string    `json:"run_id,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Progress is what Recover hands back to the pipeline.
type Progress struct {
	NextBatch int
	RunID     string
	State     State
}

// Manager reads and writes checkpoint artifacts in a FileStore.
type Manager struct {
	store  blobstore.FileStore
	logger *zap.Logger
	now    func() time.Time
	runID  string
}

// NewManager creates a Manager over store. A nil logger disables logging.
func NewManager(store blobstore.FileStore, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{store: store, logger: logger, now: time.Now}
}

// ArtifactName returns the snapshot name for a batch index.
func ArtifactName(batch int) string {
	return fmt.Sprintf("checkpoint_%d.gob", batch)
}

// Recover loads the most recent snapshot. Anything missing, corrupt or
// inconsistent yields a fresh start at batch 0; only context cancellation
// is returned as an error.
func (m *Manager) Recover(ctx context.Context) (Progress, error) {
	if err := ctx.Err(); err != nil {
		return Progress{}, err
	}
	fresh := Progress{RunID: uuid.NewString()}
	m.runID = fresh.RunID

	info, err := m.readInfo(ctx)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			m.logger.Warn("unreadable checkpoint info, starting from the beginning", zap.Error(err))
		}
		return fresh, nil
	}
	if info.NextBatch <= 0 {
		return fresh, nil
	}

	last := info.NextBatch - 1
	state, err := m.readState(ctx, last)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			m.logger.Warn("checkpoint file not found, starting from the beginning",
				zap.Int("batch", last), zap.String("artifact", ArtifactName(last)))
		} else {
			m.logger.Warn("error loading checkpoint, starting from the beginning",
				zap.Int("batch", last), zap.Error(err))
		}
		return fresh, nil
	}

	if info.RunID != "" {
		m.runID = info.RunID
	}
	m.logger.Info("loaded checkpoint",
		zap.Int("batch", last),
		zap.Int("next_batch", info.NextBatch),
		zap.Int("documents", state.Len()),
		zap.String("run_id", m.runID))
	return Progress{NextBatch: info.NextBatch, RunID: m.runID, State: state}, nil
}

// Save writes a whole-state snapshot for batch and then moves the info
// pointer to batch+1. The snapshot is written first so the pointer never
// refers to an artifact that does not exist.
func (m *Manager) Save(ctx context.Context, batch int, state State) error {
	if err := state.Validate(); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&state); err != nil {
		return fmt.Errorf("checkpoint: encode batch %d: %w", batch, err)
	}
	if err := blobstore.WriteFile(ctx, m.store, ArtifactName(batch), buf.Bytes()); err != nil {
		return fmt.Errorf("checkpoint: write batch %d: %w", batch, err)
	}
	return m.Advance(ctx, batch)
}

// Advance records batch as processed without writing a snapshot.
func (m *Manager) Advance(ctx context.Context, batch int) error {
	info := Info{NextBatch: batch + 1, RunID: m.runID, UpdatedAt: m.now().UTC()}
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	if err := blobstore.WriteFile(ctx, m.store, InfoFile, data); err != nil {
		return fmt.Errorf("checkpoint: write info: %w", err)
	}
	return nil
}

// Purge removes every snapshot below totalBatches and the info record.
func (m *Manager) Purge(ctx context.Context, totalBatches int) error {
	var errs []error
	for i := 0; i < totalBatches; i++ {
		if err := m.store.Delete(ctx, ArtifactName(i)); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", ArtifactName(i), err))
		}
	}
	if err := m.store.Delete(ctx, InfoFile); err != nil {
		errs = append(errs, fmt.Errorf("delete %s: %w", InfoFile, err))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("checkpoint: purge: %w", err)
	}
	m.logger.Info("cleaned up checkpoint files", zap.Int("batches", totalBatches))
	return nil
}

// ReadInfo returns the stored info record.
func (m *Manager) ReadInfo(ctx context.Context) (Info, error) {
	return m.readInfo(ctx)
}

func (m *Manager) readInfo(ctx context.Context) (Info, error) {
	data, err := blobstore.ReadFile(ctx, m.store, InfoFile)
	if err != nil {
		return Info{}, err
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return Info{}, fmt.Errorf("checkpoint: decode info: %w", err)
	}
	return info, nil
}

// ReadState returns the snapshot stored for batch.
func (m *Manager) ReadState(ctx context.Context, batch int) (State, error) {
	return m.readState(ctx, batch)
}

func (m *Manager) readState(ctx context.Context, batch int) (State, error) {
	r, err := m.store.Read(ctx, ArtifactName(batch))
	if err != nil {
		return State{}, err
	}
	defer r.Close()
	var state State
	if err := gob.NewDecoder(r).Decode(&state); err != nil {
		return State{}, fmt.Errorf("checkpoint: decode batch %d: %w", batch, err)
	}
	if err := state.Validate(); err != nil {
		return State{}, err
	}
	return state, nil
}
