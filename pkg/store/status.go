package store

import (
	"context"
	"fmt"

	errs "furarchiver/pkg/errors"
)

// Status transitions are monotonic: Unsaved -> Saved or Missing, Missing is
// terminal, and Saved items additionally advance Unmoved -> Moved. Each mark
// method guards its own transition so invalid flag combinations can't occur.

// MarkContentSaved flags a submission's content file as on disk. Refused for
// items already sticky-marked missing.
func (s *Store) MarkContentSaved(ctx context.Context, url string) error {
	return s.setFlag(ctx, url, "is_content_saved", "content_missing = ?", false)
}

// MarkContentMissing sticky-marks a submission's content as gone from the
// remote site. Never applied to content that is already saved.
func (s *Store) MarkContentMissing(ctx context.Context, url string) error {
	return s.setFlag(ctx, url, "content_missing", "is_content_saved = ?", false)
}

// MarkContentMoved records that the reconciler placed the file at its
// canonical location. Only meaningful for saved content.
func (s *Store) MarkContentMoved(ctx context.Context, url string) error {
	return s.setFlag(ctx, url, "moved_content", "is_content_saved = ?", true)
}

// MarkThumbnailSaved flags a submission's thumbnail file as on disk
func (s *Store) MarkThumbnailSaved(ctx context.Context, url string) error {
	return s.setFlag(ctx, url, "is_thumbnail_saved", "thumbnail_missing = ?", false)
}

// MarkThumbnailMissing sticky-marks a submission's thumbnail as gone
func (s *Store) MarkThumbnailMissing(ctx context.Context, url string) error {
	return s.setFlag(ctx, url, "thumbnail_missing", "is_thumbnail_saved = ?", false)
}

func (s *Store) setFlag(ctx context.Context, url, column, guard string, guardValue bool) error {
	res := s.db.WithContext(ctx).
		Model(&Submission{}).
		Where("url = ?", url).
		Where(guard, guardValue).
		Update(column, true)
	if res.Error != nil {
		return fmt.Errorf("failed to set %s: %w", column, res.Error)
	}
	if res.RowsAffected == 0 {
		// Zero rows is either an unknown url or a guard-blocked transition.
		// The latter is the monotonic no-op the mark methods promise.
		var count int64
		err := s.db.WithContext(ctx).
			Model(&Submission{}).
			Where("url = ?", url).
			Count(&count).Error
		if err != nil {
			return fmt.Errorf("failed to set %s: %w", column, err)
		}
		if count == 0 {
			return errs.Newf(errs.ErrorTypeNotFound, "no submission for url %s", url)
		}
	}
	return nil
}

// ResetContentSaved clears the saved and moved flags so a pruned file gets
// re-acquired. Only the reconciler's invalid-record purge uses this.
func (s *Store) ResetContentSaved(ctx context.Context, url string) error {
	err := s.db.WithContext(ctx).
		Model(&Submission{}).
		Where("url = ?", url).
		Updates(map[string]interface{}{
			"is_content_saved": false,
			"moved_content":    false,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to reset saved flag: %w", err)
	}
	return nil
}

// UnharvestedSubmissions returns discovered submissions with no metadata yet,
// in stable url order.
func (s *Store) UnharvestedSubmissions(ctx context.Context) ([]Submission, error) {
	var subs []Submission
	err := s.db.WithContext(ctx).
		Where("submission_id IS NULL").
		Order("url").
		Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query unharvested submissions: %w", err)
	}
	return subs, nil
}

// UnsavedContent returns harvested submissions whose content is neither saved
// nor sticky-missing. Ordered by content name so repeated polls make visible
// progress.
func (s *Store) UnsavedContent(ctx context.Context) ([]Submission, error) {
	var subs []Submission
	err := s.db.WithContext(ctx).
		Where("submission_id IS NOT NULL").
		Where("is_content_saved = ? AND content_missing = ?", false, false).
		Where("content_url <> ''").
		Order("content_name, url").
		Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query unsaved content: %w", err)
	}
	return subs, nil
}

// UnsavedThumbnails returns submissions still needing a thumbnail download.
// Thumbnails are only fetched for the categories whose detail page embeds an
// inline preview image.
func (s *Store) UnsavedThumbnails(ctx context.Context) ([]Submission, error) {
	var subs []Submission
	err := s.db.WithContext(ctx).
		Where("submission_id IS NOT NULL").
		Where("is_thumbnail_saved = ? AND thumbnail_missing = ?", false, false).
		Where("thumbnail_url <> ''").
		Where("category IN ?", ThumbnailCategories()).
		Order("thumbnail_name, url").
		Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query unsaved thumbnails: %w", err)
	}
	return subs, nil
}

// UnmovedContent returns saved submissions whose file is still at the
// download location, in stable order.
func (s *Store) UnmovedContent(ctx context.Context) ([]Submission, error) {
	var subs []Submission
	err := s.db.WithContext(ctx).
		Where("is_content_saved = ? AND moved_content = ?", true, false).
		Order("content_name, url").
		Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query unmoved content: %w", err)
	}
	return subs, nil
}

// SavedContent returns every submission whose content is saved, in stable order
func (s *Store) SavedContent(ctx context.Context) ([]Submission, error) {
	var subs []Submission
	err := s.db.WithContext(ctx).
		Where("is_content_saved = ?", true).
		Order("content_name, url").
		Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query saved content: %w", err)
	}
	return subs, nil
}
