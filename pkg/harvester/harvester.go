package harvester

import (
	"context"
	"errors"
	"time"

	"github.com/PuerkitoBio/goquery"

	"furarchiver/pkg/config"
	"furarchiver/pkg/logger"
	"furarchiver/pkg/politeness"
	"furarchiver/pkg/retry"
	"furarchiver/pkg/site"
	"furarchiver/pkg/store"
)

// Store is the subset of the persistent store the harvester needs
type Store interface {
	UnharvestedSubmissions(ctx context.Context) ([]store.Submission, error)
	UpdateMetadata(ctx context.Context, url string, fields map[string]interface{}) error
	UpsertComments(ctx context.Context, submissionID int64, comments []store.Comment) error
	DeleteSubmission(ctx context.Context, url string) error
}

// Fetcher retrieves a page as a queryable document
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*goquery.Document, error)
}

// Harvester fetches detail pages for discovered submissions and persists
// their structured metadata. One bad link never blocks the queue: fetch
// failures that exhaust the (halved) retry budget skip the item and move on.
type Harvester struct {
	store   Store
	fetcher Fetcher
	wait    politeness.Waiter
	logger  logger.Logger

	maxRetries      int
	retryStep       time.Duration
	harvestComments bool
	delayEvery      int
}

// Report is the accounting for one harvest pass
type Report struct {
	Harvested int
	Deleted   int
	Skipped   int
}

// New creates a harvester
func New(st Store, fetcher Fetcher, cfg *config.Config, log logger.Logger) *Harvester {
	if log == nil {
		log = logger.GetLogger()
	}

	// Half the walker's budget: a single dead link is not worth the full wait.
	maxRetries := cfg.Walk.MaxFetchRetries / 2
	if maxRetries < 1 {
		maxRetries = 1
	}

	delayEvery := cfg.Harvest.DelayEvery
	if delayEvery < 1 {
		delayEvery = 1
	}

	return &Harvester{
		store:           st,
		fetcher:         fetcher,
		wait:            politeness.NewJitter(cfg.Harvest.Delay, cfg.Harvest.Delay*2),
		logger:          log,
		maxRetries:      maxRetries,
		retryStep:       cfg.Walk.RetryStep,
		harvestComments: cfg.Harvest.Comments,
		delayEvery:      delayEvery,
	}
}

// Run harvests metadata for every submission that has none yet
func (h *Harvester) Run(ctx context.Context) (*Report, error) {
	report := &Report{}

	subs, err := h.store.UnharvestedSubmissions(ctx)
	if err != nil {
		return report, err
	}

	logger.LogComponentStart("harvester", map[string]interface{}{
		"pending": len(subs),
	})

	for i, sub := range subs {
		if err := ctx.Err(); err != nil {
			logger.LogComponentStop("harvester", "cancelled")
			return report, err
		}

		if err := h.harvestOne(ctx, &sub, report); err != nil {
			if ctx.Err() != nil {
				logger.LogComponentStop("harvester", "cancelled")
				return report, ctx.Err()
			}
			// Partial-failure contract: skip this item, advance the index.
			report.Skipped++
			h.logger.WarnWithFields("skipping submission after repeated failures", map[string]interface{}{
				"url":   sub.URL,
				"error": err.Error(),
			})
		}

		// Politeness delay interleaved between items, not after every one.
		if (i+1)%h.delayEvery == 0 {
			if err := h.wait.Wait(ctx); err != nil {
				logger.LogComponentStop("harvester", "cancelled")
				return report, err
			}
		}
	}

	logger.LogComponentStop("harvester", "queue drained")
	return report, nil
}

// harvestOne fetches and persists one submission's detail page
func (h *Harvester) harvestOne(ctx context.Context, sub *store.Submission, report *Report) error {
	doc, err := retry.DoWithResult(func() (*goquery.Document, error) {
		return h.fetcher.Fetch(ctx, sub.URL)
	}, &retry.Config{
		MaxAttempts: h.maxRetries,
		Backoff:     &retry.LinearBackoff{Step: h.retryStep},
		RetryIf:     retry.DefaultRetryIf,
		Context:     ctx,
		Logger:      h.logger,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			logger.LogRetryWait("fetch_detail", attempt, delay, err)
		},
	})
	if err != nil {
		return err
	}

	fields, err := site.ParseSubmissionPage(doc, sub.URL)
	if errors.Is(err, site.ErrDeleted) {
		// The remote page reports the content no longer exists.
		if err := h.store.DeleteSubmission(ctx, sub.URL); err != nil {
			return err
		}
		report.Deleted++
		h.logger.InfoWithFields("removed dead link", map[string]interface{}{
			"url": sub.URL,
		})
		return nil
	}
	if err != nil {
		return err
	}

	if err := h.store.UpdateMetadata(ctx, sub.URL, fields.Map()); err != nil {
		return err
	}
	report.Harvested++

	if h.harvestComments {
		if err := h.saveComments(ctx, fields.SubmissionID, doc); err != nil {
			// Comments are best effort; metadata is already persisted.
			h.logger.WithError(err).WithField("url", sub.URL).Warn("failed to save comments")
		}
	}

	h.logger.DebugWithFields("metadata harvested", map[string]interface{}{
		"url":           sub.URL,
		"submission_id": fields.SubmissionID,
		"category":      fields.Category,
	})
	return nil
}

func (h *Harvester) saveComments(ctx context.Context, submissionID int64, doc *goquery.Document) error {
	parsed := site.ParseComments(doc)
	if len(parsed) == 0 {
		return nil
	}

	comments := make([]store.Comment, len(parsed))
	for i, c := range parsed {
		comments[i] = store.Comment{
			AnchorID:    c.AnchorID,
			Username:    c.Username,
			Description: c.Description,
			DatePosted:  c.DatePosted,
		}
	}
	return h.store.UpsertComments(ctx, submissionID, comments)
}
