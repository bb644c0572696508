package dashboard

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/unicef-drp/geosight/pkg/auth"
	"github.com/unicef-drp/geosight/pkg/observability"
)

// Janitor removes dashboard cache rows whose dashboard or user is gone
// and purges expired API tokens on a schedule.
type Janitor struct {
	db     *sql.DB
	tokens *auth.Store
	logger *observability.Logger
	cron   *cron.Cron
}

// NewJanitor creates a janitor
func NewJanitor(db *sql.DB, tokens *auth.Store, logger *observability.Logger) *Janitor {
	return &Janitor{db: db, tokens: tokens, logger: logger, cron: cron.New()}
}

// Start schedules the cleanup job. The schedule uses standard cron
// syntax, e.g. "15 3 * * *" for 03:15 daily.
func (j *Janitor) Start(schedule string) error {
	_, err := j.cron.AddFunc(schedule, func() {
		ctx := context.Background()
		if err := j.RunOnce(ctx); err != nil {
			j.logger.WithError(err).Error("Dashboard cache cleanup failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule cache cleanup: %w", err)
	}
	j.cron.Start()
	return nil
}

// Stop halts the schedule, waiting for a running job to finish
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}

// RunOnce performs a single cleanup pass
func (j *Janitor) RunOnce(ctx context.Context) error {
	result, err := j.db.ExecContext(ctx, `
		DELETE FROM dashboard_caches
		WHERE dashboard_id NOT IN (SELECT id FROM dashboards)
		   OR user_id NOT IN (SELECT id FROM users)
	`)
	if err != nil {
		return fmt.Errorf("failed to purge orphaned cache rows: %w", err)
	}
	if purged, err := result.RowsAffected(); err == nil && purged > 0 {
		j.logger.WithField("rows", purged).Info("Purged orphaned dashboard cache rows")
	}

	tokens, err := j.tokens.PurgeExpiredTokens(ctx)
	if err != nil {
		return fmt.Errorf("failed to purge expired tokens: %w", err)
	}
	if tokens > 0 {
		j.logger.WithField("tokens", tokens).Info("Purged expired API tokens")
	}
	return nil
}
