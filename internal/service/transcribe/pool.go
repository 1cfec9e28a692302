package transcribe

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pulse-ai/pulse/internal/blob"
	"github.com/pulse-ai/pulse/internal/model/mood"
	"github.com/pulse-ai/pulse/internal/store"
)

// Job identifies one audio snapshot to transcribe.
type Job struct {
	SnapshotID string
	UserID     string
	MediaKey   string
}

// Sink receives finished transcripts.
type Sink interface {
	AttachTranscript(ctx context.Context, userID, snapshotID, text, engine string) error
}

// PendingLister finds audio snapshots still missing a transcript.
type PendingLister interface {
	ListPendingTranscriptions(ctx context.Context, olderThan time.Time, limit int) ([]mood.Snapshot, error)
}

// Pool runs a fixed number of transcription workers over a bounded queue.
type Pool struct {
	transcriber Transcriber
	blobs       blob.Store
	workers     int
	jobs        chan Job
	logger      *zap.Logger

	mu      sync.Mutex
	queued  map[string]struct{}
	started bool
	wg      sync.WaitGroup
}

// NewPool returns an idle pool. Call Start to begin processing.
func NewPool(transcriber Transcriber, blobs blob.Store, workers, queueSize int, logger *zap.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		transcriber: transcriber,
		blobs:       blobs,
		workers:     workers,
		jobs:        make(chan Job, queueSize),
		queued:      make(map[string]struct{}),
		logger:      logger.Named("transcribe"),
	}
}

// Enqueue schedules a job without blocking. It returns false when the queue
// is full or the snapshot is already queued.
func (p *Pool) Enqueue(job Job) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, dup := p.queued[job.SnapshotID]; dup {
		return false
	}
	select {
	case p.jobs <- job:
		p.queued[job.SnapshotID] = struct{}{}
		return true
	default:
		p.logger.Warn("transcription queue full", zap.String("snapshot_id", job.SnapshotID))
		return false
	}
}

// Start launches the workers. They exit when ctx is cancelled.
func (p *Pool) Start(ctx context.Context, sink Sink) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func(worker int) {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job := <-p.jobs:
					if err := p.process(ctx, sink, job); err != nil {
						p.logger.Warn("transcription failed",
							zap.Int("worker", worker),
							zap.String("snapshot_id", job.SnapshotID),
							zap.Error(err))
					}
					p.mu.Lock()
					delete(p.queued, job.SnapshotID)
					p.mu.Unlock()
				}
			}
		}(i)
	}
	p.logger.Info("transcription workers started", zap.Int("workers", p.workers))
}

// Wait blocks until every worker has exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) process(ctx context.Context, sink Sink, job Job) error {
	audio, err := p.blobs.Get(ctx, job.MediaKey)
	if err != nil {
		return fmt.Errorf("load audio: %w", err)
	}
	defer audio.Close()

	text, err := p.transcriber.Transcribe(ctx, path.Base(job.MediaKey), audio)
	if err != nil {
		return err
	}

	err = sink.AttachTranscript(ctx, job.UserID, job.SnapshotID, text, p.transcriber.Engine())
	if errors.Is(err, store.ErrConflict) {
		return nil
	}
	return err
}

// Sweep re-enqueues audio snapshots older than age that still lack a transcript.
func (p *Pool) Sweep(ctx context.Context, lister PendingLister, age time.Duration, limit int) int {
	pending, err := lister.ListPendingTranscriptions(ctx, time.Now().UTC().Add(-age), limit)
	if err != nil {
		p.logger.Warn("list pending transcriptions", zap.Error(err))
		return 0
	}

	enqueued := 0
	for _, snapshot := range pending {
		if p.Enqueue(Job{SnapshotID: snapshot.ID, UserID: snapshot.UserID, MediaKey: snapshot.MediaKey}) {
			enqueued++
		}
	}
	if enqueued > 0 {
		p.logger.Info("re-enqueued pending transcriptions", zap.Int("count", enqueued))
	}
	return enqueued
}
