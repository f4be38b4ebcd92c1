package db

import (
	"context"
	"fmt"
	"strings"

	"lager_lending_tool/apperr"
	"lager_lending_tool/models"

	"gorm.io/gorm"
)

// LoanView is a loan joined with the names the UI shows next to it.
type LoanView struct {
	models.Loan
	ItemName     *string `json:"item_name"`
	ItemBarcode  *string `json:"item_barcode"`
	ItemCategory *string `json:"item_category,omitempty"`
	ItemLocation *string `json:"item_location,omitempty"`
	UserName     *string `json:"user_name"`
	ClassYear    *string `json:"class_year"`
}

func loanViews(tx *gorm.DB) *gorm.DB {
	return tx.Table(models.Loan{}.TableName() + " AS l").
		Select(`l.*,
			i.name AS item_name, i.barcode AS item_barcode,
			i.category AS item_category, i.location AS item_location,
			u.name AS user_name, u.class_year AS class_year`).
		Joins("LEFT JOIN " + models.Item{}.TableName() + " i ON i.id = l.item_id").
		Joins("LEFT JOIN " + models.User{}.TableName() + " u ON u.id = l.user_id")
}

func (r *Repo) scanLoanViews(q *gorm.DB) ([]LoanView, error) {
	views := []LoanView{}
	if err := q.Scan(&views).Error; err != nil {
		return nil, apperr.FromDB(err, "")
	}
	today := r.today()
	for i := range views {
		views[i].Derive(today)
	}
	return views, nil
}

func (r *Repo) GetLoan(ctx context.Context, id string) (*LoanView, error) {
	if err := checkID(id, "loan not found"); err != nil {
		return nil, err
	}
	views, err := r.scanLoanViews(loanViews(r.DB.WithContext(ctx)).Where("l.id = ?", id).Limit(1))
	if err != nil {
		return nil, err
	}
	if len(views) == 0 {
		return nil, apperr.NotFound("loan not found")
	}
	return &views[0], nil
}

// ListActiveLoans is the admin overview, soonest due first.
func (r *Repo) ListActiveLoans(ctx context.Context) ([]LoanView, error) {
	return r.scanLoanViews(loanViews(r.DB.WithContext(ctx)).
		Where("l.return_date IS NULL").
		Order("l.due_date ASC, l.loan_date ASC"))
}

// ListUserLoans returns active loans soonest due first, or the full history newest first.
func (r *Repo) ListUserLoans(ctx context.Context, userID string, activeOnly bool) ([]LoanView, error) {
	q := loanViews(r.DB.WithContext(ctx)).Where("l.user_id = ?", userID)
	if activeOnly {
		q = q.Where("l.return_date IS NULL").Order("l.due_date ASC")
	} else {
		q = q.Order("l.loan_date DESC")
	}
	return r.scanLoanViews(q)
}

func (r *Repo) ListItemLoans(ctx context.Context, itemID string) ([]LoanView, error) {
	return r.scanLoanViews(loanViews(r.DB.WithContext(ctx)).
		Where("l.item_id = ?", itemID).
		Order("l.loan_date DESC"))
}

type CreateLoanInput struct {
	ItemID  string
	UserID  string
	DueDate models.Date
	// Manual loans were registered without scanning and get a manual_loan flag.
	Manual  bool
	ActorID string
}

// CreateLoanResult carries the manual_loan flag, if one was opened.
type CreateLoanResult struct {
	Loan *models.Loan
	Flag *models.Flag
}

// CreateLoan lends one unit of an item. The item row is locked and the decrement is
// conditional, so two borrowers racing for the last unit get one loan and one conflict.
// The borrower row is locked too, so the account cannot be deleted under the new loan.
func (r *Repo) CreateLoan(ctx context.Context, in CreateLoanInput) (*CreateLoanResult, error) {
	switch {
	case in.ItemID == "":
		return nil, apperr.Validation("item_id required")
	case in.UserID == "":
		return nil, apperr.Validation("user_id required")
	case in.DueDate.IsZero():
		return nil, apperr.Validation("due_date required")
	}
	if err := checkID(in.ItemID, "item not found"); err != nil {
		return nil, err
	}
	if err := checkID(in.UserID, "user not found"); err != nil {
		return nil, err
	}

	out := &CreateLoanResult{}
	var loan models.Loan
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var it models.Item
		if err := lockForUpdate(tx).First(&it, "id = ?", in.ItemID).Error; err != nil {
			return apperr.FromDB(err, "item not found")
		}
		var u models.User
		if err := lockForUpdate(tx).Select("id").First(&u, "id = ?", in.UserID).Error; err != nil {
			return apperr.FromDB(err, "user not found")
		}
		if !it.Status.Lendable() {
			return apperr.Conflict(fmt.Sprintf("item is %s and cannot be lent", it.Status))
		}
		if it.Quantity <= 0 {
			return apperr.Conflict("item not available")
		}

		res := tx.Model(&models.Item{}).
			Where("id = ? AND quantity > 0", it.ID).
			Update("quantity", gorm.Expr("quantity - 1"))
		if res.Error != nil {
			return apperr.FromDB(res.Error, "")
		}
		if res.RowsAffected == 0 {
			return apperr.Conflict("item not available")
		}

		loan = models.Loan{
			ID:       newID(),
			ItemID:   it.ID,
			UserID:   &u.ID,
			LoanDate: r.now(),
			DueDate:  in.DueDate,
		}
		if err := tx.Create(&loan).Error; err != nil {
			return apperr.FromDB(err, "")
		}

		if in.Manual {
			flag := models.Flag{
				ID:        newID(),
				FlagType:  models.FlagManualLoan,
				ItemID:    &it.ID,
				UserID:    &u.ID,
				LoanID:    &loan.ID,
				CreatedBy: strPtr(in.ActorID),
				Message:   fmt.Sprintf("Loan %s of %q was registered manually.", loan.ID, it.Name),
				Status:    models.FlagUnderReview,
			}
			if err := tx.Create(&flag).Error; err != nil {
				return apperr.FromDB(err, "")
			}
			out.Flag = &flag
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	loan.Derive(r.today())
	out.Loan = &loan
	return out, nil
}

type ReturnLoanInput struct {
	LoanID  string
	ActorID string
	// OwnerID restricts the return to loans held by this user; empty for admins.
	OwnerID string
	Message string
}

// ReturnLoanResult carries the flag opened for a return message, if any.
type ReturnLoanResult struct {
	Loan *models.Loan
	Flag *models.Flag
}

func (r *Repo) ReturnLoan(ctx context.Context, in ReturnLoanInput) (*ReturnLoanResult, error) {
	if err := checkID(in.LoanID, "loan not found"); err != nil {
		return nil, err
	}
	msg := strings.TrimSpace(in.Message)
	out := &ReturnLoanResult{}
	var loan models.Loan
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).First(&loan, "id = ?", in.LoanID).Error; err != nil {
			return apperr.FromDB(err, "loan not found")
		}
		if in.OwnerID != "" && !loan.OwnedBy(in.OwnerID) {
			return apperr.Forbidden("loan belongs to another user")
		}
		if !loan.Active() {
			return apperr.Conflict("loan already returned")
		}

		now := r.now()
		updates := map[string]any{
			"return_date": now,
			"returned_by": strPtr(in.ActorID),
		}
		if msg != "" {
			updates["return_message"] = msg
		}
		if err := tx.Model(&loan).Updates(updates).Error; err != nil {
			return apperr.FromDB(err, "")
		}
		if err := tx.Model(&models.Item{}).
			Where("id = ?", loan.ItemID).
			Update("quantity", gorm.Expr("quantity + 1")).Error; err != nil {
			return apperr.FromDB(err, "")
		}

		if msg != "" {
			flag, err := returnMessageFlag(tx, &loan, in.ActorID, msg)
			if err != nil {
				return err
			}
			out.Flag = flag
		}
		return apperr.FromDB(tx.First(&loan, "id = ?", loan.ID).Error, "loan not found")
	})
	if err != nil {
		return nil, err
	}
	loan.Derive(r.today())
	out.Loan = &loan
	return out, nil
}

func returnMessageFlag(tx *gorm.DB, loan *models.Loan, actorID, msg string) (*models.Flag, error) {
	itemName := "item " + loan.ItemID
	var it models.Item
	if err := tx.Select("name").First(&it, "id = ?", loan.ItemID).Error; err == nil {
		itemName = it.Name
	}
	userName := "unknown user"
	if loan.UserID != nil {
		var u models.User
		if err := tx.Select("name").First(&u, "id = ?", *loan.UserID).Error; err == nil {
			userName = u.Name
		}
	}

	flag := models.Flag{
		ID:        newID(),
		FlagType:  models.FlagReturnMessage,
		ItemID:    &loan.ItemID,
		UserID:    loan.UserID,
		LoanID:    &loan.ID,
		CreatedBy: strPtr(actorID),
		Message:   fmt.Sprintf("%s returned %q with a message:\n\n%s", userName, itemName, msg),
		Status:    models.FlagUnderReview,
	}
	if err := tx.Create(&flag).Error; err != nil {
		return nil, apperr.FromDB(err, "")
	}
	return &flag, nil
}

type ExtendLoanInput struct {
	LoanID  string
	DueDate models.Date
	OwnerID string
}

// ExtendLoan moves the due date of an active loan. The new date is not checked against anything else.
func (r *Repo) ExtendLoan(ctx context.Context, in ExtendLoanInput) (*models.Loan, error) {
	if in.DueDate.IsZero() {
		return nil, apperr.Validation("due_date required")
	}
	if err := checkID(in.LoanID, "loan not found"); err != nil {
		return nil, err
	}
	var loan models.Loan
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).First(&loan, "id = ?", in.LoanID).Error; err != nil {
			return apperr.FromDB(err, "loan not found")
		}
		if in.OwnerID != "" && !loan.OwnedBy(in.OwnerID) {
			return apperr.Forbidden("loan belongs to another user")
		}
		if !loan.Active() {
			return apperr.Conflict("cannot extend a returned loan")
		}
		if err := tx.Model(&loan).Update("due_date", in.DueDate).Error; err != nil {
			return apperr.FromDB(err, "")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	loan.DueDate = in.DueDate
	loan.Derive(r.today())
	return &loan, nil
}

func (r *Repo) UpdateDelivery(ctx context.Context, loanID string, status *models.DeliveryStatus, notes *string) (*LoanView, error) {
	updates := map[string]any{}
	if status != nil {
		if !status.IsValid() {
			return nil, apperr.Validation(fmt.Sprintf("invalid delivery status %q", *status))
		}
		updates["delivery_status"] = *status
	}
	if notes != nil {
		updates["delivery_notes"] = strings.TrimSpace(*notes)
	}
	if len(updates) == 0 {
		return nil, apperr.Validation("no updates given")
	}
	if err := r.updateLoan(ctx, loanID, updates); err != nil {
		return nil, err
	}
	return r.GetLoan(ctx, loanID)
}

func (r *Repo) UpdateReport(ctx context.Context, loanID, report string) (*LoanView, error) {
	if err := r.updateLoan(ctx, loanID, map[string]any{"report": strings.TrimSpace(report)}); err != nil {
		return nil, err
	}
	return r.GetLoan(ctx, loanID)
}

func (r *Repo) updateLoan(ctx context.Context, loanID string, updates map[string]any) error {
	if err := checkID(loanID, "loan not found"); err != nil {
		return err
	}
	res := r.DB.WithContext(ctx).Model(&models.Loan{}).Where("id = ?", loanID).Updates(updates)
	if res.Error != nil {
		return apperr.FromDB(res.Error, "")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("loan not found")
	}
	return nil
}
