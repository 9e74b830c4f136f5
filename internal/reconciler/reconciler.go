// Package reconciler repairs drift between the persistent record and the
// filesystem: it moves saved files into their canonical location and purges
// records whose filenames could never exist on disk.
package reconciler

import (
	"context"
	"os"

	"furarchiver/pkg/layout"
	"furarchiver/pkg/logger"
	"furarchiver/pkg/store"
)

// Store is the subset of the persistent store the reconciler needs
type Store interface {
	UnmovedContent(ctx context.Context) ([]store.Submission, error)
	SavedContent(ctx context.Context) ([]store.Submission, error)
	MarkContentMoved(ctx context.Context, url string) error
	ResetContentSaved(ctx context.Context, url string) error
}

// Reconciler aligns on-disk file locations with the store's canonical paths
type Reconciler struct {
	store  Store
	root   string
	logger logger.Logger
}

// Report is the accounting for one reconciliation pass
type Report struct {
	Moved        int
	AlreadyMoved int
	Failed       int
	Pruned       int
}

// New creates a reconciler rooted at the archive directory
func New(st Store, root string, log logger.Logger) *Reconciler {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Reconciler{store: st, root: root, logger: log}
}

// Reorganize moves every saved-but-unmoved file into its canonical location.
// The pass is safe to re-run indefinitely: a run with nothing to move is a
// no-op, and a failed move is retried on the next pass.
func (r *Reconciler) Reorganize(ctx context.Context) (*Report, error) {
	report := &Report{}

	subs, err := r.store.UnmovedContent(ctx)
	if err != nil {
		return report, err
	}

	for i := range subs {
		sub := &subs[i]
		if err := ctx.Err(); err != nil {
			return report, err
		}

		src := layout.DownloadPath(r.root, sub.ContentName)
		destDir := layout.ContentDir(r.root, sub)
		dest := layout.ContentPath(r.root, sub)

		if err := os.MkdirAll(destDir, 0755); err != nil {
			report.Failed++
			r.logger.WithError(err).WithField("dir", destDir).Error("failed to create destination directory")
			continue
		}

		if err := os.Rename(src, dest); err != nil {
			// A same-named file already at the destination means some earlier
			// pass moved it but the flag write was lost.
			if _, statErr := os.Stat(dest); statErr == nil {
				if err := r.store.MarkContentMoved(ctx, sub.URL); err != nil {
					return report, err
				}
				report.AlreadyMoved++
				continue
			}

			report.Failed++
			r.logger.WithError(err).WithFields(map[string]interface{}{
				"src":  src,
				"dest": dest,
			}).Error("failed to move file, leaving for next pass")
			continue
		}

		if err := r.store.MarkContentMoved(ctx, sub.URL); err != nil {
			return report, err
		}
		report.Moved++

		r.logger.DebugWithFields("file moved", map[string]interface{}{
			"url":  sub.URL,
			"dest": dest,
		})
	}

	return report, nil
}

// PruneInvalid removes on-disk files whose recorded name is malformed and
// resets their saved flag so the download workers re-acquire them.
func (r *Reconciler) PruneInvalid(ctx context.Context) (*Report, error) {
	report := &Report{}

	subs, err := r.store.SavedContent(ctx)
	if err != nil {
		return report, err
	}

	for i := range subs {
		sub := &subs[i]
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if layout.ValidName(sub.ContentName) {
			continue
		}

		// Best effort: the file may sit at either location.
		for _, path := range []string{
			layout.DownloadPath(r.root, sub.ContentName),
			layout.ContentPath(r.root, sub),
		} {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				r.logger.WithError(err).WithField("path", path).Warn("failed to remove invalid file")
			}
		}

		if err := r.store.ResetContentSaved(ctx, sub.URL); err != nil {
			return report, err
		}
		report.Pruned++

		r.logger.InfoWithFields("pruned invalid record", map[string]interface{}{
			"url":  sub.URL,
			"name": sub.ContentName,
		})
	}

	return report, nil
}
