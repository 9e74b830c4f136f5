package store

import (
	"context"
	"fmt"

	errs "furarchiver/pkg/errors"
)

// metadataColumns is the fixed allow-list of columns the harvester may write,
// each paired with a type check. UpdateMetadata refuses anything outside this
// set, so no update statement is ever shaped by caller input.
var metadataColumns = map[string]func(interface{}) bool{
	"submission_id":  isInt64,
	"title":          isString,
	"description":    isString,
	"tags":           isString,
	"username":       isString,
	"account_name":   isString,
	"content_url":    isString,
	"content_name":   isString,
	"thumbnail_url":  isString,
	"thumbnail_name": isString,
	"date_uploaded":  isString,
	"rating":         isString,
	"category":       isString,
}

func isString(v interface{}) bool {
	_, ok := v.(string)
	return ok
}

func isInt64(v interface{}) bool {
	switch v.(type) {
	case int64, int:
		return true
	}
	return false
}

// UpdateMetadata applies a partial update of harvested fields to the
// submission at url. Field names outside the allow-list, or values of the
// wrong type, fail with a validation error before anything is written.
//
// submission_id is set exactly once: a second write with a different id is
// rejected, a write with the same id is dropped.
func (s *Store) UpdateMetadata(ctx context.Context, url string, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}

	updates := make(map[string]interface{}, len(fields))
	for name, value := range fields {
		check, ok := metadataColumns[name]
		if !ok {
			return errs.Newf(errs.ErrorTypeValidation, "unknown metadata field %q", name)
		}
		if !check(value) {
			return errs.Newf(errs.ErrorTypeValidation, "wrong type for metadata field %q", name)
		}
		updates[name] = value
	}

	if raw, ok := updates["submission_id"]; ok {
		id := toInt64(raw)
		sub, err := s.SubmissionByURL(ctx, url)
		if err != nil {
			return err
		}
		if sub.SubmissionID != nil {
			if *sub.SubmissionID != id {
				return errs.Newf(errs.ErrorTypeValidation,
					"submission id for %s is already %d, refusing to change it to %d", url, *sub.SubmissionID, id)
			}
			delete(updates, "submission_id")
		} else {
			updates["submission_id"] = id
		}
	}

	if len(updates) == 0 {
		return nil
	}

	res := s.db.WithContext(ctx).
		Model(&Submission{}).
		Where("url = ?", url).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update metadata: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.Newf(errs.ErrorTypeNotFound, "no submission for url %s", url)
	}

	return nil
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	}
	return 0
}
