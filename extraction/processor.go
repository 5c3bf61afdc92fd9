// Package extraction orchestrates batch text extraction: the coordinator
// fans a batch out over a bounded worker pool, the processor runs one
// document end to end, and the service exposes both over HTTP.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nashrakhan-aithon/service1-text-extraction/pdfextract"
	"github.com/nashrakhan-aithon/service1-text-extraction/progress"
	"github.com/nashrakhan-aithon/service1-text-extraction/queue"
	"github.com/nashrakhan-aithon/service1-text-extraction/storage"
)

// Reporter receives live progress from a document run. The coordinator
// binds one to its batch; tests substitute their own.
type Reporter interface {
	Stage(docID, stage, operation string)
	PagesDone(n int)
}

// nopReporter is used when no batch is listening.
type nopReporter struct{}

func (nopReporter) Stage(docID, stage, operation string) {}
func (nopReporter) PagesDone(n int)                      {}

// ProcessorConfig wires a Processor's collaborators.
type ProcessorConfig struct {
	Queue     queue.Repository
	Extractor pdfextract.Extractor
	Sink      storage.Sink

	// Timeout bounds one document run. Default: 10m.
	Timeout time.Duration

	// DefaultPassword is tried when a queue entry carries none.
	DefaultPassword string

	Logger *slog.Logger
}

// Processor runs one document end to end: lock, open, page loop,
// storage writes, terminal status row. Safe for concurrent use.
type Processor struct {
	queue     queue.Repository
	extractor pdfextract.Extractor
	sink      storage.Sink
	timeout   time.Duration
	password  string
	logger    *slog.Logger
}

// NewProcessor creates a Processor.
func NewProcessor(cfg ProcessorConfig) *Processor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Processor{
		queue:     cfg.Queue,
		extractor: cfg.Extractor,
		sink:      cfg.Sink,
		timeout:   cfg.Timeout,
		password:  cfg.DefaultPassword,
		logger:    cfg.Logger,
	}
}

// Process runs the full extraction attempt for one queue entry and
// returns the document outcome. Every entry that gets past the lock ends
// with a terminal status row; the lock is always released.
func (p *Processor) Process(ctx context.Context, entry queue.Entry, rep Reporter) progress.DocumentResult {
	if rep == nil {
		rep = nopReporter{}
	}
	start := time.Now()
	result := progress.DocumentResult{
		DocID:      entry.DocID,
		TotalPages: entry.PageCount,
	}

	ok, err := p.queue.TryAcquireLock(ctx, entry.ExtractionID)
	if err != nil {
		result.Error = fmt.Sprintf("acquire lock: %v", err)
		return result
	}
	if !ok {
		// Another run owns this document. Not a failure: the row keeps
		// whatever status that run produces.
		p.logger.Info("document already processing, skipping",
			"doc_id", entry.DocID, "extraction_id", entry.ExtractionID)
		result.Skipped = true
		result.Error = "already processing"
		return result
	}
	// Release must survive timeout and shutdown.
	releaseCtx := context.WithoutCancel(ctx)
	defer func() {
		if err := p.queue.ReleaseLock(releaseCtx, entry.ExtractionID); err != nil {
			p.logger.Error("release lock failed",
				"doc_id", entry.DocID, "error", err)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	p.run(ctx, entry, rep, &result)

	result.DurationSeconds = int(time.Since(start).Seconds())
	p.persist(releaseCtx, entry, result)
	return result
}

// run drives the extraction attempt and fills in result. Separated from
// Process so the terminal bookkeeping around it stays in one place.
func (p *Processor) run(ctx context.Context, entry queue.Entry, rep Reporter, result *progress.DocumentResult) {
	rep.Stage(entry.DocID, progress.StageDownloading, "Resolving source document")

	sourceURI := entry.RawURI
	if sourceURI == "" {
		sourceURI = entry.SourceURI
	}
	if sourceURI == "" {
		result.Error = "no source uri on queue entry"
		return
	}

	password := entry.Password
	if password == "" {
		password = p.password
	}

	doc, err := p.extractor.Open(ctx, sourceURI, password)
	if err != nil {
		result.Error = failureMessage(ctx, fmt.Sprintf("open source: %v", err))
		return
	}
	defer doc.Close()

	if entry.RawURI == "" {
		if err := p.queue.UpdateRawURI(ctx, entry.ExtractionID, sourceURI); err != nil {
			p.logger.Warn("raw uri update failed",
				"doc_id", entry.DocID, "error", err)
		}
	}

	pageCount := doc.PageCount()
	result.TotalPages = pageCount
	rep.Stage(entry.DocID, progress.StageExtracting,
		fmt.Sprintf("Extracting text from %d pages", pageCount))

	var pageErrs []string
	for page := 1; page <= pageCount; page++ {
		if ctx.Err() != nil {
			pageErrs = append(pageErrs, failureMessage(ctx, ctx.Err().Error()))
			break
		}

		text, method, err := doc.ExtractPage(ctx, page)
		if err != nil {
			p.logger.Warn("page extraction failed",
				"doc_id", entry.DocID, "page", page, "error", err)
			pageErrs = append(pageErrs, fmt.Sprintf("page %d: %v", page, err))
			continue
		}

		key := fmt.Sprintf("%s/extracted_text/page_%04d_%s.md", entry.DocID, page, method)
		content := fmt.Sprintf("# Page %d - %s\n\n%s", page, strings.ToUpper(method), text)
		if _, err := p.sink.Put(ctx, key, []byte(content), "text/markdown"); err != nil {
			p.logger.Warn("page store failed",
				"doc_id", entry.DocID, "page", page, "error", err)
			pageErrs = append(pageErrs, fmt.Sprintf("page %d: store: %v", page, err))
			continue
		}

		result.ProcessedPages++
		rep.PagesDone(1)
	}

	if ctx.Err() != nil {
		// Deadline expiry fails the document even when some pages made
		// it out. Already-stored pages stay where they are; a retry
		// overwrites them.
		result.Success = false
		result.Error = strings.Join(pageErrs, "; ")
		return
	}
	if result.ProcessedPages > 0 {
		// Partial extraction still counts: the pages that exist are
		// served, the misses are visible in the page counts.
		result.Success = true
		result.TextURI = p.sink.ResolveRoot(entry.DocID)
		return
	}
	if len(pageErrs) > 0 {
		result.Error = strings.Join(pageErrs, "; ")
	} else {
		result.Error = "document has no pages"
	}
}

// persist writes the terminal status row. Uses a context detached from
// the document deadline so a timed-out run still records its failure.
func (p *Processor) persist(ctx context.Context, entry queue.Entry, result progress.DocumentResult) {
	upd := queue.StatusUpdate{
		ExtractedPages:  result.ProcessedPages,
		DurationSeconds: result.DurationSeconds,
	}
	if result.Success {
		upd.Status = queue.StatusComplete
		upd.TextURI = result.TextURI
	} else {
		upd.Status = queue.StatusFailed
		upd.ErrorMessage = result.Error
	}
	if err := p.queue.UpdateStatus(ctx, entry.ExtractionID, upd); err != nil {
		p.logger.Error("status update failed",
			"doc_id", entry.DocID, "status", upd.Status, "error", err)
		return
	}
	p.logger.Info("document finished",
		"doc_id", entry.DocID,
		"status", upd.Status,
		"pages", result.ProcessedPages,
		"duration_s", result.DurationSeconds)
}

// failureMessage labels deadline expiries as timeouts so queue rows and
// batch errors name the cause.
func failureMessage(ctx context.Context, msg string) string {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "timeout: " + msg
	}
	return msg
}
