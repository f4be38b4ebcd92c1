package db

import (
	"context"
	"fmt"
	"time"

	"lager_lending_tool/apperr"
	"lager_lending_tool/models"

	"gorm.io/gorm"
)

type OverdueReport struct {
	Overdue []LoanView `json:"overdue"`
	// Flagged counts loans that got a new overdue flag in this run.
	Flagged int `json:"flagged"`
}

// FlagOverdueLoans opens an overdue flag for each overdue active loan that has no open one yet.
func (r *Repo) FlagOverdueLoans(ctx context.Context) (*OverdueReport, error) {
	overdue, err := r.scanLoanViews(loanViews(r.DB.WithContext(ctx)).
		Where("l.return_date IS NULL AND l.due_date < ?", r.today()).
		Order("l.due_date ASC"))
	if err != nil {
		return nil, err
	}

	report := &OverdueReport{Overdue: overdue}
	err = r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, l := range overdue {
			var open int64
			if err := tx.Model(&models.Flag{}).
				Where("loan_id = ? AND flag_type = ? AND status = ?", l.ID, models.FlagOverdue, models.FlagUnderReview).
				Count(&open).Error; err != nil {
				return apperr.FromDB(err, "")
			}
			if open > 0 {
				continue
			}
			itemID := l.ItemID
			loanID := l.ID
			flag := models.Flag{
				ID:       newID(),
				FlagType: models.FlagOverdue,
				ItemID:   &itemID,
				UserID:   l.UserID,
				LoanID:   &loanID,
				Message:  fmt.Sprintf("Loan %s is overdue (due %s).", l.ID, l.DueDate),
				Status:   models.FlagUnderReview,
			}
			if err := tx.Create(&flag).Error; err != nil {
				return apperr.FromDB(err, "")
			}
			report.Flagged++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

type CleanupReport struct {
	RemovedUsers    int64    `json:"removed_users"`
	AnonymizedLoans int64    `json:"anonymized_loans"`
	RemovedIDs      []string `json:"-"`
}

// CleanupInactiveUsers deletes borrower accounts older than retention that hold nothing,
// keeping their loan history without the link to the person.
func (r *Repo) CleanupInactiveUsers(ctx context.Context, retention time.Duration) (*CleanupReport, error) {
	if retention <= 0 {
		return nil, apperr.Validation("retention must be positive")
	}
	cutoff := r.now().Add(-retention)

	var ids []string
	if err := r.DB.WithContext(ctx).Model(&models.User{}).
		Where("role = ? AND created_at < ?", models.RoleUser, cutoff).
		Pluck("id", &ids).Error; err != nil {
		return nil, apperr.FromDB(err, "")
	}

	report := &CleanupReport{}
	for _, id := range ids {
		err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			anonymised, err := deleteUserTx(tx, id)
			if err != nil {
				return err
			}
			report.AnonymizedLoans += anonymised
			return nil
		})
		switch {
		case err == nil:
			report.RemovedUsers++
			report.RemovedIDs = append(report.RemovedIDs, id)
		case apperr.IsKind(err, apperr.KindConflict), apperr.IsKind(err, apperr.KindNotFound):
			// still borrowing something, or removed meanwhile
		default:
			return report, err
		}
	}
	return report, nil
}
