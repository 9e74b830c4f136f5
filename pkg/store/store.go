package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	errs "furarchiver/pkg/errors"
)

// Store is the durable record of discovered links, harvested metadata,
// comments, favorites and per-item download status. It is the single source
// of truth for the whole pipeline; every mutation goes through its methods.
type Store struct {
	db *gorm.DB
}

// Open opens (or creates) the sqlite database at path and runs migrations.
// Initialization is idempotent: existing tables and data are preserved,
// missing tables and columns are added.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.Migrate(); err != nil {
		return nil, err
	}

	return s, nil
}

// Migrate creates missing tables and columns. Safe to run on every startup.
func (s *Store) Migrate() error {
	err := s.db.AutoMigrate(
		&Submission{},
		&Comment{},
		&Favorite{},
		&OwnedAccount{},
		&Settings{},
	)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// DB exposes the underlying gorm handle for tests
func (s *Store) DB() *gorm.DB {
	return s.db
}

// InsertLinks stores newly discovered submission urls. A url already present
// is silently skipped; only urls absent from the store count as new.
func (s *Store) InsertLinks(ctx context.Context, urls []string, isScrap bool, username string) (int, error) {
	if len(urls) == 0 {
		return 0, nil
	}

	known, err := s.KnownURLs(ctx, urls)
	if err != nil {
		return 0, err
	}

	subs := make([]Submission, 0, len(urls))
	seen := make(map[string]bool, len(urls))
	for _, url := range urls {
		if url == "" || known[url] || seen[url] {
			continue
		}
		seen[url] = true
		subs = append(subs, Submission{
			URL:      url,
			Username: username,
			IsScrap:  isScrap,
		})
	}

	if len(subs) == 0 {
		return 0, nil
	}

	// OnConflict DoNothing keeps the insert idempotent even against a
	// concurrent writer that slipped a row in after the KnownURLs check.
	// RowsAffected, not len(subs), is the truly-new count in that race.
	res := s.db.WithContext(ctx).
		Clauses(onConflictDoNothing("url")).
		Create(&subs)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to insert links: %w", res.Error)
	}

	return int(res.RowsAffected), nil
}

// KnownURLs returns which of the given urls are already present in the store
func (s *Store) KnownURLs(ctx context.Context, urls []string) (map[string]bool, error) {
	known := make(map[string]bool, len(urls))
	if len(urls) == 0 {
		return known, nil
	}

	var existing []string
	err := s.db.WithContext(ctx).
		Model(&Submission{}).
		Where("url IN ?", urls).
		Pluck("url", &existing).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query known urls: %w", err)
	}

	for _, url := range existing {
		known[url] = true
	}
	return known, nil
}

// SubmissionByURL fetches a single submission record
func (s *Store) SubmissionByURL(ctx context.Context, url string) (*Submission, error) {
	var sub Submission
	err := s.db.WithContext(ctx).First(&sub, "url = ?", url).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errs.Newf(errs.ErrorTypeNotFound, "no submission for url %s", url)
		}
		return nil, fmt.Errorf("failed to load submission: %w", err)
	}
	return &sub, nil
}

// DeleteSubmission removes a submission and its dependent rows. Used when the
// remote page reports the content no longer exists.
func (s *Store) DeleteSubmission(ctx context.Context, url string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sub Submission
		if err := tx.First(&sub, "url = ?", url).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil
			}
			return fmt.Errorf("failed to load submission for delete: %w", err)
		}

		if sub.SubmissionID != nil {
			if err := tx.Where("submission_id = ?", *sub.SubmissionID).Delete(&Comment{}).Error; err != nil {
				return fmt.Errorf("failed to delete comments: %w", err)
			}
		}
		if err := tx.Where("url = ?", url).Delete(&Favorite{}).Error; err != nil {
			return fmt.Errorf("failed to delete favorites: %w", err)
		}
		if err := tx.Delete(&Submission{}, "url = ?", url).Error; err != nil {
			return fmt.Errorf("failed to delete submission: %w", err)
		}
		return nil
	})
}

// UpsertComments stores harvested comments for a submission. An anchor id
// already present for that submission is updated, never duplicated; the same
// anchor on another submission is a distinct comment.
func (s *Store) UpsertComments(ctx context.Context, submissionID int64, comments []Comment) error {
	if len(comments) == 0 {
		return nil
	}

	for i := range comments {
		comments[i].SubmissionID = submissionID
	}

	err := s.db.WithContext(ctx).
		Clauses(onConflictUpdate([]string{"submission_id", "anchor_id"}, "username", "description", "date_posted")).
		Create(&comments).Error
	if err != nil {
		return fmt.Errorf("failed to upsert comments: %w", err)
	}
	return nil
}

// SaveFavorites records favorite relations for a downloading user. The whole
// batch commits in one transaction; empty urls are skipped, they never abort
// the valid rows.
func (s *Store) SaveFavorites(ctx context.Context, username string, urls []string) error {
	if username == "" {
		return errs.New(errs.ErrorTypeValidation, "favorite username must not be empty")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, url := range urls {
			if url == "" {
				continue
			}

			fav := Favorite{Username: username, URL: url}
			if err := tx.Clauses(onConflictDoNothing("username", "url")).Create(&fav).Error; err != nil {
				return fmt.Errorf("failed to save favorite %s: %w", url, err)
			}

			err := tx.Model(&Submission{}).
				Where("url = ?", url).
				Updates(map[string]interface{}{
					"is_favorite":       true,
					"favorite_username": username,
				}).Error
			if err != nil {
				return fmt.Errorf("failed to flag favorite submission %s: %w", url, err)
			}
		}
		return nil
	})
}

// OwnedAccounts returns every username the operator controls, ordered
func (s *Store) OwnedAccounts(ctx context.Context) ([]string, error) {
	var names []string
	err := s.db.WithContext(ctx).
		Model(&OwnedAccount{}).
		Order("username").
		Pluck("username", &names).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query owned accounts: %w", err)
	}
	return names, nil
}

// AddOwnedAccount registers a username whose galleries should be walked
func (s *Store) AddOwnedAccount(ctx context.Context, username string) error {
	if username == "" {
		return errs.New(errs.ErrorTypeValidation, "account username must not be empty")
	}
	err := s.db.WithContext(ctx).
		Clauses(onConflictDoNothing("username")).
		Create(&OwnedAccount{Username: username}).Error
	if err != nil {
		return fmt.Errorf("failed to add owned account: %w", err)
	}
	return nil
}

// RemoveOwnedAccount deletes a username from the owned set
func (s *Store) RemoveOwnedAccount(ctx context.Context, username string) error {
	err := s.db.WithContext(ctx).Delete(&OwnedAccount{}, "username = ?", username).Error
	if err != nil {
		return fmt.Errorf("failed to remove owned account: %w", err)
	}
	return nil
}

// Settings loads the single settings row, creating it if absent
func (s *Store) Settings(ctx context.Context) (*Settings, error) {
	var settings Settings
	err := s.db.WithContext(ctx).FirstOrCreate(&settings, Settings{ID: 1}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	return &settings, nil
}

// SaveSettings persists the settings row
func (s *Store) SaveSettings(ctx context.Context, settings *Settings) error {
	settings.ID = 1
	if err := s.db.WithContext(ctx).Save(settings).Error; err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// TouchLastWalk records when the most recent walk finished
func (s *Store) TouchLastWalk(ctx context.Context) error {
	settings, err := s.Settings(ctx)
	if err != nil {
		return err
	}
	now := time.Now()
	settings.LastWalkAt = &now
	return s.SaveSettings(ctx, settings)
}

// TouchLastReconcile records when the most recent reconcile pass finished
func (s *Store) TouchLastReconcile(ctx context.Context) error {
	settings, err := s.Settings(ctx)
	if err != nil {
		return err
	}
	now := time.Now()
	settings.LastReconcileAt = &now
	return s.SaveSettings(ctx, settings)
}

// Close releases the underlying database connection
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database handle: %w", err)
	}
	return sqlDB.Close()
}
