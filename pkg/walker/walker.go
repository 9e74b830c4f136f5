package walker

import (
	"context"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"

	"furarchiver/pkg/config"
	errs "furarchiver/pkg/errors"
	"furarchiver/pkg/logger"
	"furarchiver/pkg/politeness"
	"furarchiver/pkg/retry"
	"furarchiver/pkg/site"
)

// Store is the subset of the persistent store the walker needs
type Store interface {
	KnownURLs(ctx context.Context, urls []string) (map[string]bool, error)
	InsertLinks(ctx context.Context, urls []string, isScrap bool, username string) (int, error)
	SaveFavorites(ctx context.Context, username string, urls []string) error
}

// Fetcher retrieves a page as a queryable document
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*goquery.Document, error)
}

// Walker paginates a user's gallery, scraps or favorites listing and persists
// newly discovered submission links.
type Walker struct {
	store   Store
	fetcher Fetcher
	wait    politeness.Waiter
	logger  logger.Logger

	baseURL    string
	maxRetries int
	retryStep  time.Duration
}

// Report is the accounting for one completed walk
type Report struct {
	Username     string
	Section      string
	Pages        int
	Found        int
	New          int
	AlreadyKnown int
}

// New creates a walker
func New(store Store, fetcher Fetcher, cfg *config.Config, log logger.Logger) *Walker {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Walker{
		store:      store,
		fetcher:    fetcher,
		wait:       politeness.NewJitter(cfg.Walk.DelayMin, cfg.Walk.DelayMax),
		logger:     log,
		baseURL:    cfg.Site.BaseURL,
		maxRetries: cfg.Walk.MaxFetchRetries,
		retryStep:  cfg.Walk.RetryStep,
	}
}

// WalkGallery traverses a user's main gallery listing
func (w *Walker) WalkGallery(ctx context.Context, username string) (*Report, error) {
	return w.walkPaged(ctx, username, "gallery", false, func(page int) string {
		return site.GalleryPageURL(w.baseURL, username, page)
	})
}

// WalkScraps traverses a user's scraps listing
func (w *Walker) WalkScraps(ctx context.Context, username string) (*Report, error) {
	return w.walkPaged(ctx, username, "scraps", true, func(page int) string {
		return site.ScrapsPageURL(w.baseURL, username, page)
	})
}

// walkPaged runs the FetchPage -> ExtractLinks -> FilterKnown -> PersistNew ->
// AdvancePage loop until a page yields no links.
func (w *Walker) walkPaged(ctx context.Context, username, section string, isScrap bool, pageURL func(int) string) (*Report, error) {
	report := &Report{Username: username, Section: section}

	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		doc, err := w.fetchPage(ctx, pageURL(page))
		if err != nil {
			return report, err
		}
		report.Pages++

		links := site.ParseGalleryPage(doc, w.baseURL)
		if len(links) == 0 {
			break
		}

		if _, err := w.persistNew(ctx, report, links, isScrap, username); err != nil {
			return report, err
		}

		if err := w.wait.Wait(ctx); err != nil {
			return report, err
		}
	}

	logger.LogWalkSummary(username, section, report.Found, report.New, report.AlreadyKnown)
	return report, nil
}

// WalkFavorites traverses a user's favorites listing, following the next-page
// cursor until it is exhausted. Each newly discovered link also gets a
// favorite relation for the walking user.
func (w *Walker) WalkFavorites(ctx context.Context, username string) (*Report, error) {
	report := &Report{Username: username, Section: "favorites"}
	cursor := ""

	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		doc, err := w.fetchPage(ctx, site.FavoritesURL(w.baseURL, username, cursor))
		if err != nil {
			return report, err
		}
		report.Pages++

		links, next := site.ParseFavoritesPage(doc, w.baseURL)
		if len(links) == 0 {
			break
		}

		newLinks, err := w.persistNew(ctx, report, links, false, username)
		if err != nil {
			return report, err
		}
		if len(newLinks) > 0 {
			if err := w.store.SaveFavorites(ctx, username, newLinks); err != nil {
				return report, err
			}
		}

		if next == "" {
			break
		}
		cursor = next

		if err := w.wait.Wait(ctx); err != nil {
			return report, err
		}
	}

	logger.LogWalkSummary(username, "favorites", report.Found, report.New, report.AlreadyKnown)
	return report, nil
}

// persistNew filters out links already in the store, persists the remainder
// and updates the accounting. Only links absent from the store count as new.
func (w *Walker) persistNew(ctx context.Context, report *Report, links []string, isScrap bool, username string) ([]string, error) {
	report.Found += len(links)

	known, err := w.store.KnownURLs(ctx, links)
	if err != nil {
		return nil, err
	}

	newLinks := make([]string, 0, len(links))
	seen := make(map[string]bool, len(links))
	for _, link := range links {
		if known[link] || seen[link] {
			continue
		}
		seen[link] = true
		newLinks = append(newLinks, link)
	}
	report.AlreadyKnown += len(links) - len(newLinks)

	if len(newLinks) == 0 {
		return nil, nil
	}

	n, err := w.store.InsertLinks(ctx, newLinks, isScrap, username)
	if err != nil {
		return nil, err
	}
	report.New += n

	w.logger.DebugWithFields("persisted new links", map[string]interface{}{
		"username": username,
		"count":    n,
	})
	return newLinks, nil
}

// fetchPage retrieves one listing page with the walk's linear backoff policy.
// Exhausting the retry budget declares the site unreachable and halts the
// entire walk.
func (w *Walker) fetchPage(ctx context.Context, url string) (*goquery.Document, error) {
	doc, err := retry.DoWithResult(func() (*goquery.Document, error) {
		return w.fetcher.Fetch(ctx, url)
	}, &retry.Config{
		MaxAttempts: w.maxRetries,
		Backoff:     &retry.LinearBackoff{Step: w.retryStep},
		RetryIf:     retry.DefaultRetryIf,
		Context:     ctx,
		Logger:      w.logger,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			logger.LogRetryWait("fetch_page", attempt, delay, err)
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("walk cancelled: %w", ctx.Err())
		}
		if !retry.DefaultRetryIf(err) {
			// A permanent failure (bad username, forbidden page) is not an outage.
			return nil, err
		}
		logger.LogOutage("walker")
		return nil, errs.Newf(errs.ErrorTypeSiteDown, "repeated fetch failures for %s: %v", url, err)
	}
	return doc, nil
}
