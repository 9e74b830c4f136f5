// Package orchestrator runs the two polling download workers, one for
// content files and one for thumbnails. The workers share the store and the
// filesystem but nothing else; a site-wide outage observed by either one
// cancels both.
package orchestrator

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"furarchiver/pkg/config"
	errs "furarchiver/pkg/errors"
	"furarchiver/pkg/layout"
	"furarchiver/pkg/logger"
	"furarchiver/pkg/politeness"
	"furarchiver/pkg/site"
	"furarchiver/pkg/store"
)

// Store is the subset of the persistent store the workers need
type Store interface {
	UnsavedContent(ctx context.Context) ([]store.Submission, error)
	UnsavedThumbnails(ctx context.Context) ([]store.Submission, error)
	MarkContentSaved(ctx context.Context, url string) error
	MarkContentMissing(ctx context.Context, url string) error
	MarkThumbnailSaved(ctx context.Context, url string) error
	MarkThumbnailMissing(ctx context.Context, url string) error
}

// Prober performs the lightweight existence and reachability checks
type Prober interface {
	Exists(ctx context.Context, url string) bool
	SiteActive(ctx context.Context) bool
}

// Downloader streams a remote file to a local path
type Downloader interface {
	Download(ctx context.Context, url, dest string, progress site.ProgressFunc) error
}

// outcome classifies the handling of one item
type outcome int

const (
	outcomeSaved outcome = iota
	outcomeMissing
	outcomeAbandoned
	outcomeSkipped
	outcomeSiteDown
)

// Orchestrator supervises the content and thumbnail workers
type Orchestrator struct {
	store      Store
	prober     Prober
	downloader Downloader
	logger     logger.Logger

	root             string
	contentRetries   int
	thumbnailRetries int
	probeTimeout     time.Duration
	contentWait      politeness.Waiter
	thumbnailWait    politeness.Waiter

	wg           sync.WaitGroup
	mu           sync.Mutex
	thumbRunning bool
	cancel       context.CancelFunc
	siteDown     atomic.Bool
}

// New creates an orchestrator
func New(st Store, prober Prober, dl Downloader, cfg *config.Config, log logger.Logger) *Orchestrator {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Orchestrator{
		store:            st,
		prober:           prober,
		downloader:       dl,
		logger:           log,
		root:             cfg.Output.RootDirectory,
		contentRetries:   cfg.Download.ContentRetries,
		thumbnailRetries: cfg.Download.ThumbnailRetries,
		probeTimeout:     cfg.Download.ProbeTimeout,
		contentWait:      politeness.NewJitter(cfg.Download.ContentDelayMin, cfg.Download.ContentDelayMax),
		thumbnailWait:    politeness.NewJitter(cfg.Download.ThumbnailDelayMin, cfg.Download.ThumbnailDelayMax),
	}
}

// Run starts the content worker (which in turn starts the thumbnail worker)
// and blocks until both drain their queues or the context is cancelled.
// A detected outage cancels both workers and is returned as a site-down error.
func (o *Orchestrator) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	defer cancel()

	logger.LogComponentStart("download_orchestrator", map[string]interface{}{
		"content_retries":   o.contentRetries,
		"thumbnail_retries": o.thumbnailRetries,
	})

	o.wg.Add(1)
	go o.contentWorker(ctx)

	o.wg.Wait()

	o.mu.Lock()
	o.thumbRunning = false
	o.mu.Unlock()

	if o.siteDown.Load() {
		logger.LogComponentStop("download_orchestrator", "site down")
		return errs.New(errs.ErrorTypeSiteDown, "remote site unreachable, downloads halted")
	}

	logger.LogComponentStop("download_orchestrator", "queues drained")
	return ctx.Err()
}

// declareOutage sets the shared cancellation signal observed by both workers
func (o *Orchestrator) declareOutage() {
	if o.siteDown.CompareAndSwap(false, true) {
		logger.LogOutage("download_orchestrator")
	}
	o.cancel()
}

// ensureThumbnailWorker starts the thumbnail worker if it is not already
// running. The content worker calls this on startup, giving an informal but
// effective two-way concurrent schedule.
func (o *Orchestrator) ensureThumbnailWorker(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.thumbRunning {
		return
	}
	o.thumbRunning = true
	o.wg.Add(1)
	go o.thumbnailWorker(ctx)
}

func (o *Orchestrator) contentWorker(ctx context.Context) {
	defer o.wg.Done()
	o.ensureThumbnailWorker(ctx)
	o.pollLoop(ctx, "content", o.store.UnsavedContent, o.processContent, o.contentWait)
}

func (o *Orchestrator) thumbnailWorker(ctx context.Context) {
	defer o.wg.Done()
	o.pollLoop(ctx, "thumbnail", o.store.UnsavedThumbnails, o.processThumbnail, o.thumbnailWait)
}

// pollLoop repeatedly queries for unsaved items and processes them in the
// store's deterministic order. It exits when a poll returns no rows, when a
// full pass makes no progress (every remaining item abandoned its retry
// budget), or when the shared context is cancelled.
func (o *Orchestrator) pollLoop(
	ctx context.Context,
	kind string,
	query func(context.Context) ([]store.Submission, error),
	process func(context.Context, *store.Submission) outcome,
	wait politeness.Waiter,
) {
	for {
		if ctx.Err() != nil {
			return
		}

		items, err := query(ctx)
		if err != nil {
			o.logger.WithError(err).WithField("worker", kind).Error("poll query failed")
			return
		}
		if len(items) == 0 {
			return
		}

		progressed := false
		for i := range items {
			if ctx.Err() != nil {
				return
			}

			switch process(ctx, &items[i]) {
			case outcomeSaved, outcomeMissing:
				progressed = true
			case outcomeSiteDown:
				o.declareOutage()
				return
			}

			if err := wait.Wait(ctx); err != nil {
				return
			}
		}

		if !progressed {
			o.logger.WarnWithFields("no progress in pass, leaving remaining items for next run", map[string]interface{}{
				"worker":    kind,
				"remaining": len(items),
			})
			return
		}
	}
}

// processContent handles one content item: probe, classify, stream, mark
func (o *Orchestrator) processContent(ctx context.Context, sub *store.Submission) outcome {
	if !layout.ValidName(sub.ContentName) {
		o.logger.WarnWithFields("skipping item with invalid content name", map[string]interface{}{
			"url": sub.URL,
		})
		return outcomeSkipped
	}

	dest := layout.DownloadPath(o.root, sub.ContentName)

	// A verified pre-existing file counts as saved without a download.
	if fileExists(dest) || fileExists(layout.ContentPath(o.root, sub)) {
		if err := o.store.MarkContentSaved(ctx, sub.URL); err != nil {
			o.logger.WithError(err).WithField("url", sub.URL).Error("failed to mark pre-existing content saved")
			return outcomeSkipped
		}
		return outcomeSaved
	}

	return o.acquire(ctx, sub.URL, sub.ContentURL, dest, "content", sub.Username,
		o.contentRetries, o.store.MarkContentSaved, o.store.MarkContentMissing)
}

// processThumbnail handles one thumbnail item
func (o *Orchestrator) processThumbnail(ctx context.Context, sub *store.Submission) outcome {
	if !layout.ValidName(sub.ThumbnailName) {
		o.logger.WarnWithFields("skipping item with invalid thumbnail name", map[string]interface{}{
			"url": sub.URL,
		})
		return outcomeSkipped
	}

	dest := layout.ThumbnailPath(o.root, sub)

	if fileExists(dest) {
		if err := o.store.MarkThumbnailSaved(ctx, sub.URL); err != nil {
			o.logger.WithError(err).WithField("url", sub.URL).Error("failed to mark pre-existing thumbnail saved")
			return outcomeSkipped
		}
		return outcomeSaved
	}

	return o.acquire(ctx, sub.URL, sub.ThumbnailURL, dest, "thumbnail", sub.Username,
		o.thumbnailRetries, o.store.MarkThumbnailSaved, o.store.MarkThumbnailMissing)
}

// acquire probes the remote resource, classifies a failed probe as NotFound
// or SiteDown, then streams the file with immediate bounded retries.
func (o *Orchestrator) acquire(
	ctx context.Context,
	url, remoteURL, dest, kind, username string,
	retries int,
	markSaved func(context.Context, string) error,
	markMissing func(context.Context, string) error,
) outcome {
	if !o.probeExists(ctx, remoteURL) {
		if ctx.Err() != nil {
			return outcomeSkipped
		}
		if !o.probeSiteActive(ctx) {
			return outcomeSiteDown
		}

		// The site answers but the resource is gone. Sticky, no retry.
		if err := markMissing(ctx, url); err != nil {
			o.logger.WithError(err).WithField("url", url).Error("failed to mark item missing")
			return outcomeSkipped
		}
		logger.LogDownload(username, dest, kind, false, nil)
		return outcomeMissing
	}

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		if ctx.Err() != nil {
			return outcomeSkipped
		}

		err := o.downloader.Download(ctx, remoteURL, dest, o.progressFunc(url, kind))
		if err == nil {
			if err := markSaved(ctx, url); err != nil {
				o.logger.WithError(err).WithField("url", url).Error("failed to mark item saved")
				return outcomeSkipped
			}
			logger.LogDownload(username, dest, kind, true, nil)
			return outcomeSaved
		}

		lastErr = err
		o.logger.WarnWithFields("download attempt failed, retrying immediately", map[string]interface{}{
			"url":     url,
			"kind":    kind,
			"attempt": attempt,
			"error":   err.Error(),
		})
	}

	// Budget exhausted: abandon for this pass, eligible again next poll.
	logger.LogDownload(username, dest, kind, false, lastErr)
	return outcomeAbandoned
}

// probeExists bounds the existence check with the configured probe timeout
func (o *Orchestrator) probeExists(ctx context.Context, url string) bool {
	if o.probeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.probeTimeout)
		defer cancel()
	}
	return o.prober.Exists(ctx, url)
}

// probeSiteActive bounds the reachability check with the configured probe timeout
func (o *Orchestrator) probeSiteActive(ctx context.Context) bool {
	if o.probeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.probeTimeout)
		defer cancel()
	}
	return o.prober.SiteActive(ctx)
}

// progressFunc reports transfer progress at debug level
func (o *Orchestrator) progressFunc(url, kind string) site.ProgressFunc {
	return func(transferred, total int64) {
		o.logger.DebugWithFields("transfer progress", map[string]interface{}{
			"url":         url,
			"kind":        kind,
			"transferred": transferred,
			"total":       total,
		})
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
