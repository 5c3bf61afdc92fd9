package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/nashrakhan-aithon/service1-text-extraction/idgen"
	"github.com/nashrakhan-aithon/service1-text-extraction/progress"
	"github.com/nashrakhan-aithon/service1-text-extraction/queue"
)

// ErrInvalidRequest means the submission itself was malformed. The only
// error Submit returns; everything later lands in the batch snapshot.
var ErrInvalidRequest = errors.New("invalid request")

// CoordinatorConfig wires a Coordinator's collaborators.
type CoordinatorConfig struct {
	Queue     queue.Repository
	Processor *Processor
	Tracker   *progress.Tracker

	// Workers bounds concurrent document runs per batch. Default: 5.
	Workers int

	// BatchID generates ids for submissions that don't bring one.
	// Default: idgen.Default.
	BatchID idgen.Generator

	Logger *slog.Logger
}

// Coordinator accepts batch submissions and fans them out over a bounded
// worker pool. Submit returns as soon as the batch is registered; the
// tracker carries everything after that.
type Coordinator struct {
	queue     queue.Repository
	processor *Processor
	tracker   *progress.Tracker
	workers   int
	batchID   idgen.Generator
	logger    *slog.Logger
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	if cfg.Workers <= 0 {
		cfg.Workers = 5
	}
	if cfg.BatchID == nil {
		cfg.BatchID = idgen.Default
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Coordinator{
		queue:     cfg.Queue,
		processor: cfg.Processor,
		tracker:   cfg.Tracker,
		workers:   cfg.Workers,
		batchID:   cfg.BatchID,
		logger:    cfg.Logger,
	}
}

// Submit registers a batch for queueIDs and starts it in the background.
// An empty batchID gets a generated one; the id is returned immediately
// and is pollable from that moment.
func (c *Coordinator) Submit(ctx context.Context, queueIDs []int64, batchID string) (string, error) {
	if len(queueIDs) == 0 {
		return "", fmt.Errorf("%w: no queue ids", ErrInvalidRequest)
	}
	if batchID == "" {
		batchID = c.batchID()
	}

	c.tracker.Create(batchID, len(queueIDs))
	c.logger.Info("batch submitted",
		"batch_id", batchID, "documents", len(queueIDs))

	// The batch outlives the submitting request.
	go c.run(context.WithoutCancel(ctx), batchID, queueIDs)

	return batchID, nil
}

// run executes one batch: fetch, fan out, finish. Runs in its own
// goroutine; all outcomes land in the tracker.
func (c *Coordinator) run(ctx context.Context, batchID string, queueIDs []int64) {
	entries, err := c.queue.FetchByIDs(ctx, queueIDs)
	if err != nil {
		c.logger.Error("queue fetch failed", "batch_id", batchID, "error", err)
		c.tracker.Fail(batchID, fmt.Sprintf("queue fetch failed: %v", err))
		return
	}
	if len(entries) == 0 {
		c.tracker.Fail(batchID, "no queue entries found")
		return
	}
	c.tracker.SetTotalDocuments(batchID, len(entries))

	// Stable percentage denominator from queue metadata.
	totalPages := 0
	for _, e := range entries {
		totalPages += e.PageCount
	}
	c.tracker.SetTotalPages(batchID, totalPages)

	rep := &batchReporter{tracker: c.tracker, batchID: batchID}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for _, entry := range entries {
		g.Go(func() error {
			res := c.processor.Process(gctx, entry, rep)
			c.tracker.AppendResult(batchID, res)
			return nil
		})
	}
	g.Wait()

	// Document failures don't fail the batch; the batch ran.
	c.tracker.Complete(batchID)
	c.logger.Info("batch finished", "batch_id", batchID, "documents", len(entries))
}

// batchReporter binds processor progress callbacks to one batch.
type batchReporter struct {
	tracker *progress.Tracker
	batchID string
}

func (r *batchReporter) Stage(docID, stage, operation string) {
	r.tracker.SetStage(r.batchID, docID, stage, operation)
}

func (r *batchReporter) PagesDone(n int) {
	r.tracker.PagesDone(r.batchID, n)
}
