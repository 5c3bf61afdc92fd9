// Package progress tracks live extraction batches for polling callers.
//
// The tracker is a process-wide registry keyed by batch id. Workers push
// increments while a poller reads consistent snapshots; each batch has
// its own lock so batches never contend with each other. Terminal
// batches stay readable until a TTL sweep reclaims them; reading an
// unknown or already-evicted id yields a synthetic completed snapshot so
// polling loops terminate instead of erroring.
package progress

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Batch status values.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Stages a batch moves through, surfaced to polling callers.
const (
	StageInitializing = "initializing"
	StageDownloading  = "downloading"
	StageExtracting   = "extracting"
	StageCompleted    = "completed"
)

// DocumentResult is the outcome of one document within a batch.
type DocumentResult struct {
	DocID           string `json:"doc_id"`
	Success         bool   `json:"success"`
	Skipped         bool   `json:"skipped,omitempty"`
	Error           string `json:"error,omitempty"`
	TotalPages      int    `json:"total_pages"`
	ProcessedPages  int    `json:"processed_pages"`
	TextURI         string `json:"text_uri,omitempty"`
	DurationSeconds int    `json:"duration_seconds"`
}

// Snapshot is a consistent copy of one batch's progress.
type Snapshot struct {
	BatchID            string           `json:"batch_id"`
	Status             string           `json:"status"`
	TotalDocuments     int              `json:"total_documents"`
	ProcessedDocuments int              `json:"processed_documents"`
	TotalPages         int              `json:"total_pages"`
	ProcessedPages     int              `json:"processed_pages"`
	ProgressPercentage int              `json:"progress_percentage"`
	CurrentDocument    string           `json:"current_document,omitempty"`
	CurrentStage       string           `json:"current_stage,omitempty"`
	CurrentOperation   string           `json:"current_operation,omitempty"`
	StartedAt          time.Time        `json:"started_at"`
	CompletedAt        *time.Time       `json:"completed_at,omitempty"`
	Results            []DocumentResult `json:"results"`
	Errors             []string         `json:"errors"`
}

func (s *Snapshot) terminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusFailed
}

type batch struct {
	mu        sync.Mutex
	snap      Snapshot
	expiresAt time.Time // zero until terminal
}

// Options configures a Tracker.
type Options struct {
	// TTL is how long a terminal batch stays readable. Default: 5m.
	TTL time.Duration
	// Logger overrides the default slog logger.
	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.TTL <= 0 {
		o.TTL = 5 * time.Minute
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Tracker is the batch registry. Safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	batches map[string]*batch
	opts    Options
}

// NewTracker creates an empty registry.
func NewTracker(opts Options) *Tracker {
	opts.defaults()
	return &Tracker{
		batches: make(map[string]*batch),
		opts:    opts,
	}
}

// Create registers a new batch in processing state.
func (t *Tracker) Create(batchID string, totalDocs int) {
	b := &batch{
		snap: Snapshot{
			BatchID:          batchID,
			Status:           StatusProcessing,
			TotalDocuments:   totalDocs,
			CurrentStage:     StageInitializing,
			CurrentOperation: "Preparing text extraction",
			StartedAt:        time.Now(),
			Results:          []DocumentResult{},
			Errors:           []string{},
		},
	}
	t.mu.Lock()
	t.batches[batchID] = b
	t.mu.Unlock()

	t.opts.Logger.Info("batch registered", "batch_id", batchID, "documents", totalDocs)
}

// SetTotalDocuments corrects the document count once unknown ids have
// been dropped by the queue fetch.
func (t *Tracker) SetTotalDocuments(batchID string, total int) {
	t.mutate(batchID, func(s *Snapshot) {
		s.TotalDocuments = total
	})
}

// SetTotalPages fixes the percentage denominator once page counts are known.
func (t *Tracker) SetTotalPages(batchID string, total int) {
	t.mutate(batchID, func(s *Snapshot) {
		s.TotalPages = total
		recompute(s)
	})
}

// SetStage updates the current document/stage/operation shown to pollers.
func (t *Tracker) SetStage(batchID, docID, stage, operation string) {
	t.mutate(batchID, func(s *Snapshot) {
		s.CurrentDocument = docID
		s.CurrentStage = stage
		s.CurrentOperation = operation
	})
}

// PagesDone adds n successfully extracted pages and recomputes the
// percentage. Counters only grow.
func (t *Tracker) PagesDone(batchID string, n int) {
	if n <= 0 {
		return
	}
	t.mutate(batchID, func(s *Snapshot) {
		s.ProcessedPages += n
		recompute(s)
	})
}

// AppendResult records one document outcome and bumps the processed
// document counter. Failures also land in the batch error list.
func (t *Tracker) AppendResult(batchID string, res DocumentResult) {
	t.mutate(batchID, func(s *Snapshot) {
		s.ProcessedDocuments++
		s.Results = append(s.Results, res)
		if !res.Success && res.Error != "" {
			s.Errors = append(s.Errors, res.DocID+": "+res.Error)
		}
	})
}

// Complete marks the batch terminal-success and freezes it.
func (t *Tracker) Complete(batchID string) {
	now := time.Now()
	t.finish(batchID, func(s *Snapshot) {
		s.Status = StatusCompleted
		s.CompletedAt = &now
		s.CurrentDocument = ""
		s.CurrentStage = StageCompleted
		s.CurrentOperation = "Text extraction completed"
		s.ProgressPercentage = 100
	})
}

// Fail marks the batch terminal-failure. Used only when the batch could
// not start at all; individual document failures keep the batch completed.
func (t *Tracker) Fail(batchID, errMsg string) {
	now := time.Now()
	t.finish(batchID, func(s *Snapshot) {
		s.Status = StatusFailed
		s.CompletedAt = &now
		s.CurrentDocument = ""
		s.CurrentStage = StageCompleted
		s.CurrentOperation = errMsg
		s.Errors = append(s.Errors, errMsg)
	})
}

// Read returns a consistent copy of the batch. Unknown ids yield a
// synthetic completed snapshot with zero totals.
func (t *Tracker) Read(batchID string) Snapshot {
	t.mu.Lock()
	b, ok := t.batches[batchID]
	t.mu.Unlock()
	if !ok {
		return Snapshot{
			BatchID:            batchID,
			Status:             StatusCompleted,
			CurrentStage:       StageCompleted,
			CurrentOperation:   "Text extraction completed",
			ProgressPercentage: 100,
			Results:            []DocumentResult{},
			Errors:             []string{},
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	snap := b.snap
	snap.Results = append([]DocumentResult(nil), b.snap.Results...)
	snap.Errors = append([]string(nil), b.snap.Errors...)
	return snap
}

// Run sweeps expired terminal batches until ctx is cancelled.
func (t *Tracker) Run(ctx context.Context) {
	interval := t.opts.TTL / 2
	if interval > 30*time.Second {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Sweep(time.Now())
		}
	}
}

// Sweep evicts terminal batches whose TTL elapsed before now. Returns the
// number of evicted batches.
func (t *Tracker) Sweep(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	evicted := 0
	for id, b := range t.batches {
		b.mu.Lock()
		expired := !b.expiresAt.IsZero() && b.expiresAt.Before(now)
		b.mu.Unlock()
		if expired {
			delete(t.batches, id)
			evicted++
		}
	}
	if evicted > 0 {
		t.opts.Logger.Info("evicted terminal batches", "count", evicted)
	}
	return evicted
}

// mutate applies f under the batch lock. Missing and terminal batches are
// left untouched — terminal snapshots are frozen.
func (t *Tracker) mutate(batchID string, f func(*Snapshot)) {
	t.mu.Lock()
	b, ok := t.batches[batchID]
	t.mu.Unlock()
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.snap.terminal() {
		return
	}
	f(&b.snap)
}

// finish transitions to a terminal state exactly once and arms eviction.
func (t *Tracker) finish(batchID string, f func(*Snapshot)) {
	t.mu.Lock()
	b, ok := t.batches[batchID]
	t.mu.Unlock()
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.snap.terminal() {
		return
	}
	f(&b.snap)
	b.expiresAt = time.Now().Add(t.opts.TTL)

	t.opts.Logger.Info("batch finished",
		"batch_id", batchID,
		"status", b.snap.Status,
		"documents", b.snap.ProcessedDocuments,
		"pages", b.snap.ProcessedPages)
}

// recompute derives the floor percentage; a zero denominator stays 0%.
// The percentage never moves backwards even if totals are adjusted.
func recompute(s *Snapshot) {
	if s.TotalPages <= 0 {
		return
	}
	pct := 100 * s.ProcessedPages / s.TotalPages
	if pct > 100 {
		pct = 100
	}
	if pct > s.ProgressPercentage {
		s.ProgressPercentage = pct
	}
}
