// Package archiver wires the store, site client, walker, harvester, download
// orchestrator and reconciler into one pipeline and exposes the operations
// the command layer runs.
package archiver

import (
	"context"
	"fmt"
	"strings"

	"furarchiver/internal/orchestrator"
	"furarchiver/internal/reconciler"
	"furarchiver/pkg/config"
	errs "furarchiver/pkg/errors"
	"furarchiver/pkg/harvester"
	"furarchiver/pkg/logger"
	"furarchiver/pkg/site"
	"furarchiver/pkg/store"
	"furarchiver/pkg/walker"
)

// Archiver owns one open store and the components built around it
type Archiver struct {
	cfg    *config.Config
	store  *store.Store
	client *site.Client
	logger logger.Logger

	walker       *walker.Walker
	harvester    *harvester.Harvester
	orchestrator *orchestrator.Orchestrator
	reconciler   *reconciler.Reconciler
}

// New opens the database and builds the full pipeline from cfg
func New(cfg *config.Config) (*Archiver, error) {
	log := logger.GetLogger()

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	client := site.NewClient(&cfg.Site, log)

	return &Archiver{
		cfg:          cfg,
		store:        st,
		client:       client,
		logger:       log,
		walker:       walker.New(st, client, cfg, log),
		harvester:    harvester.New(st, client, cfg, log),
		orchestrator: orchestrator.New(st, client, client, cfg, log),
		reconciler:   reconciler.New(st, cfg.Output.RootDirectory, log),
	}, nil
}

// Store exposes the underlying store for account management commands
func (a *Archiver) Store() *store.Store {
	return a.store
}

// Close releases the database connection
func (a *Archiver) Close() error {
	return a.store.Close()
}

// Run executes the full pipeline for the given usernames: walk every section,
// harvest metadata, download content and thumbnails, then reconcile the
// archive layout. With no usernames it falls back to the owned accounts.
func (a *Archiver) Run(ctx context.Context, usernames []string) error {
	usernames, err := a.resolveUsernames(ctx, usernames)
	if err != nil {
		return err
	}

	if err := a.Walk(ctx, usernames); err != nil {
		return err
	}
	if err := a.Harvest(ctx); err != nil {
		return err
	}
	if err := a.Download(ctx); err != nil {
		return err
	}
	return a.Reconcile(ctx)
}

// Walk discovers submission links for every section of every username
func (a *Archiver) Walk(ctx context.Context, usernames []string) error {
	usernames, err := a.resolveUsernames(ctx, usernames)
	if err != nil {
		return err
	}

	for _, username := range usernames {
		if _, err := a.walker.WalkGallery(ctx, username); err != nil {
			return fmt.Errorf("gallery walk for %s: %w", username, err)
		}
		if _, err := a.walker.WalkScraps(ctx, username); err != nil {
			return fmt.Errorf("scraps walk for %s: %w", username, err)
		}
		if _, err := a.walker.WalkFavorites(ctx, username); err != nil {
			return fmt.Errorf("favorites walk for %s: %w", username, err)
		}
	}

	if err := a.store.TouchLastWalk(ctx); err != nil {
		a.logger.WithError(err).Warn("failed to record walk time")
	}
	return nil
}

// Harvest fills in metadata for every discovered but unharvested submission
func (a *Archiver) Harvest(ctx context.Context) error {
	report, err := a.harvester.Run(ctx)
	if err != nil {
		return err
	}
	a.logger.InfoWithFields("harvest finished", map[string]interface{}{
		"harvested": report.Harvested,
		"deleted":   report.Deleted,
		"skipped":   report.Skipped,
	})
	return nil
}

// Download runs the content and thumbnail workers until their queues drain
func (a *Archiver) Download(ctx context.Context) error {
	return a.orchestrator.Run(ctx)
}

// Reconcile moves downloaded files into their canonical layout and prunes
// entries whose stored names cannot name a file
func (a *Archiver) Reconcile(ctx context.Context) error {
	moved, err := a.reconciler.Reorganize(ctx)
	if err != nil {
		return err
	}
	pruned, err := a.reconciler.PruneInvalid(ctx)
	if err != nil {
		return err
	}

	a.logger.InfoWithFields("reconcile finished", map[string]interface{}{
		"moved":         moved.Moved,
		"already_moved": moved.AlreadyMoved,
		"failed":        moved.Failed,
		"pruned":        pruned.Pruned,
	})

	if err := a.store.TouchLastReconcile(ctx); err != nil {
		a.logger.WithError(err).Warn("failed to record reconcile time")
	}
	return nil
}

// resolveUsernames normalizes the explicit list or falls back to the owned
// accounts stored in the database
func (a *Archiver) resolveUsernames(ctx context.Context, usernames []string) ([]string, error) {
	out := make([]string, 0, len(usernames))
	for _, u := range usernames {
		u = strings.ToLower(strings.TrimSpace(u))
		if u != "" {
			out = append(out, u)
		}
	}
	if len(out) > 0 {
		return out, nil
	}

	owned, err := a.store.OwnedAccounts(ctx)
	if err != nil {
		return nil, err
	}
	if len(owned) == 0 {
		return nil, errs.New(errs.ErrorTypeValidation, "no usernames given and no owned accounts registered")
	}
	return owned, nil
}
