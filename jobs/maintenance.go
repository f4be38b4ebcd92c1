package jobs

import (
	"context"
	"fmt"
	"time"

	"lager_lending_tool/db"
	"lager_lending_tool/logger"
	"lager_lending_tool/notify"

	"go.uber.org/multierr"
)

type overdueRepo interface {
	FlagOverdueLoans(ctx context.Context) (*db.OverdueReport, error)
}

type cleanupRepo interface {
	CleanupInactiveUsers(ctx context.Context, retention time.Duration) (*db.CleanupReport, error)
}

type sessionRevoker interface {
	RevokeAllForSubject(ctx context.Context, subjectID string) error
}

// OverdueSweep flags overdue loans and mails the admins a report when any are found.
type OverdueSweep struct {
	Repo     overdueRepo
	Notifier notify.Notifier
	Log      *logger.Logger
}

func (j *OverdueSweep) Name() string { return "overdue-sweep" }

func (j *OverdueSweep) Run(ctx context.Context) error {
	_, err := j.Sweep(ctx)
	return err
}

// Sweep is Run returning the report, for the manual admin trigger.
func (j *OverdueSweep) Sweep(ctx context.Context) (*db.OverdueReport, error) {
	report, err := j.Repo.FlagOverdueLoans(ctx)
	if err != nil {
		return nil, fmt.Errorf("flag overdue loans: %w", err)
	}
	log := j.logger()
	logCtx := log.WithFields(ctx, map[string]any{
		"overdue": len(report.Overdue),
		"flagged": report.Flagged,
	})
	log.Info(logCtx, "overdue sweep complete")

	if len(report.Overdue) > 0 && j.Notifier != nil {
		subject, body := notify.OverdueReport(report.Overdue)
		if err := j.Notifier.Notify(ctx, subject, body); err != nil {
			log.Error(logCtx, "overdue report mail failed", err)
		}
	}
	return report, nil
}

func (j *OverdueSweep) logger() *logger.Logger {
	if j.Log == nil {
		return logger.Nop()
	}
	return j.Log
}

// RetentionCleanup removes borrower accounts past the retention window and
// revokes whatever sessions they still had.
type RetentionCleanup struct {
	Repo      cleanupRepo
	Sessions  sessionRevoker
	Retention time.Duration
	Log       *logger.Logger
}

func (j *RetentionCleanup) Name() string { return "retention-cleanup" }

func (j *RetentionCleanup) Run(ctx context.Context) error {
	_, err := j.Cleanup(ctx)
	return err
}

func (j *RetentionCleanup) Cleanup(ctx context.Context) (*db.CleanupReport, error) {
	report, err := j.Repo.CleanupInactiveUsers(ctx, j.Retention)
	if err != nil {
		return report, fmt.Errorf("cleanup inactive users: %w", err)
	}

	var revokeErr error
	if j.Sessions != nil {
		for _, id := range report.RemovedIDs {
			revokeErr = multierr.Append(revokeErr, j.Sessions.RevokeAllForSubject(ctx, id))
		}
	}

	log := j.Log
	if log == nil {
		log = logger.Nop()
	}
	logCtx := log.WithFields(ctx, map[string]any{
		"retention":        j.Retention.String(),
		"removed_users":    report.RemovedUsers,
		"anonymized_loans": report.AnonymizedLoans,
	})
	if revokeErr != nil {
		log.Error(logCtx, "session revoke failed for removed users", revokeErr)
	}
	log.Info(logCtx, "retention cleanup complete")
	return report, nil
}
