// Package orchestrator drives the per-record migration pipeline over an input
// queue in fixed-size windows: document folder → content folder → assets →
// compose → create. One record's failure never aborts the run.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/contentforge/newsmigrate/internal/liferay"
	"github.com/contentforge/newsmigrate/internal/model"
)

// FolderResolver resolves or creates the destination folder for a record.
type FolderResolver interface {
	Resolve(ctx context.Context, pathSegments []string, title string) (model.FolderHandle, error)
}

// AssetUploader uploads a record's assets; individual failures are absorbed
// inside the implementation, so the mapping may be partial or empty.
type AssetUploader interface {
	UploadAll(ctx context.Context, folder model.FolderHandle, rec model.ContentRecord) map[string]model.AssetHandle
}

// ContentComposer assembles the structured-content payload.
type ContentComposer interface {
	Compose(rec model.ContentRecord, assets map[string]model.AssetHandle) (liferay.ContentPayload, error)
}

// ContentCreator creates the structured-content entry at the destination.
type ContentCreator interface {
	CreateStructuredContent(ctx context.Context, folderID int64, payload liferay.ContentPayload) (liferay.StructuredContent, error)
}

// Options tunes one run.
type Options struct {
	// BatchSize is the window length drawn from the input queue.
	BatchSize int
	// BatchDelay is the pause between windows, respecting destination rate
	// limits.
	BatchDelay time.Duration
	// MaxConcurrency bounds how many pipelines of a window run at once.
	MaxConcurrency int
	// PathSegments is the folder chain above each record's leaf folder.
	PathSegments []string
	// FallbackDocumentFolderID, when non-zero, is substituted if a record's
	// document folder cannot be resolved. Zero means folder failure is fatal
	// for the item. Content-folder failure is always fatal.
	FallbackDocumentFolderID int64
}

// Orchestrator owns the run loop, statistics and per-item results.
type Orchestrator struct {
	opts           Options
	docFolders     FolderResolver
	contentFolders FolderResolver
	uploader       AssetUploader
	composer       ContentComposer
	creator        ContentCreator
	stats          *Stats
	logger         *slog.Logger
}

// New wires an orchestrator. The Stats recorder is shared with the resolver
// and uploader hooks so their creations land in the same counters.
func New(opts Options, docFolders, contentFolders FolderResolver, uploader AssetUploader, composer ContentComposer, creator ContentCreator, stats *Stats, logger *slog.Logger) *Orchestrator {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = opts.BatchSize
	}
	return &Orchestrator{
		opts:           opts,
		docFolders:     docFolders,
		contentFolders: contentFolders,
		uploader:       uploader,
		composer:       composer,
		creator:        creator,
		stats:          stats,
		logger:         logger,
	}
}

// Run processes all records and returns the final statistics plus one result
// per processed record, in input order. Cancellation stops new windows from
// starting; in-flight items finish, statistics are finalized either way, and
// the context error is returned so the caller can report the interruption.
func (o *Orchestrator) Run(ctx context.Context, records []model.ContentRecord) (model.RunStatistics, []model.MigrationResult, error) {
	o.stats.begin(len(records))
	defer o.stats.finish()

	results := make([]model.MigrationResult, len(records))
	done := make([]bool, len(records))

	windows := 0
	for start := 0; start < len(records); start += o.opts.BatchSize {
		if ctx.Err() != nil {
			o.logger.Warn("run interrupted, stopping before next window", "remaining", len(records)-start)
			break
		}
		end := start + o.opts.BatchSize
		if end > len(records) {
			end = len(records)
		}
		windows++
		o.logger.Info("processing window", "window", windows, "items", end-start)

		g := new(errgroup.Group)
		g.SetLimit(o.opts.MaxConcurrency)
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				res := o.processItem(ctx, records[i])
				o.stats.itemDone(res)
				results[i] = res
				done[i] = true
				return nil
			})
		}
		_ = g.Wait()

		if end < len(records) && o.opts.BatchDelay > 0 {
			o.logger.Debug("waiting before next window", "delay", o.opts.BatchDelay)
			select {
			case <-ctx.Done():
			case <-time.After(o.opts.BatchDelay):
			}
		}
	}

	final := make([]model.MigrationResult, 0, len(records))
	for i, ok := range done {
		if ok {
			final = append(final, results[i])
		}
	}
	// Finalize before snapshotting so the returned statistics carry EndTime;
	// the deferred finish stays a no-op then.
	o.stats.finish()
	return o.stats.Snapshot(), final, ctx.Err()
}

// processItem drives one record through the pipeline state machine and
// finalizes its MigrationResult exactly once.
func (o *Orchestrator) processItem(ctx context.Context, rec model.ContentRecord) model.MigrationResult {
	start := time.Now()
	state := model.StatePending

	fail := func(msg string, err error) model.MigrationResult {
		o.logger.Warn("item failed", "title", rec.Title, "state", state, "error", err)
		res := model.MigrationResult{
			Title:     rec.Title,
			SourceURL: rec.URL,
			Success:   false,
			State:     model.StateFailed,
			Message:   msg,
			Elapsed:   time.Since(start),
		}
		if err != nil {
			res.Error = err.Error()
		}
		return res
	}

	if !rec.Eligible() {
		return fail("record ineligible: extractor failure or empty title", nil)
	}

	docFolder, err := o.docFolders.Resolve(ctx, o.opts.PathSegments, rec.Title)
	if err != nil {
		if o.opts.FallbackDocumentFolderID == 0 {
			return fail("document folder resolution failed", err)
		}
		o.logger.Warn("document folder resolution failed, using fallback",
			"title", rec.Title, "fallbackId", o.opts.FallbackDocumentFolderID, "error", err)
		docFolder = model.FolderHandle{ID: o.opts.FallbackDocumentFolderID, Name: "fallback"}
	}
	contentFolder, err := o.contentFolders.Resolve(ctx, o.opts.PathSegments, rec.Title)
	if err != nil {
		return fail("content folder resolution failed", err)
	}
	state = model.StateFolderResolved

	// Asset failures are absorbed: the mapping may be empty and the item
	// still proceeds.
	assets := o.uploader.UploadAll(ctx, docFolder, rec)
	state = model.StateAssetsUploaded

	payload, err := o.composer.Compose(rec, assets)
	if err != nil {
		return fail("content composition failed", err)
	}
	state = model.StateContentComposed

	content, err := o.creator.CreateStructuredContent(ctx, contentFolder.ID, payload)
	if err != nil {
		return fail("content creation failed", err)
	}
	state = model.StateCreated

	o.logger.Info("item migrated", "title", rec.Title, "contentId", content.ID,
		"assets", len(assets), "elapsed", time.Since(start))
	return model.MigrationResult{
		Title:     rec.Title,
		SourceURL: rec.URL,
		Success:   true,
		State:     state,
		Message:   fmt.Sprintf("content created with %d assets", len(assets)),
		ContentID: content.ID,
		Elapsed:   time.Since(start),
	}
}
