package db

import (
	"context"
	"fmt"
	"strings"

	"lager_lending_tool/apperr"
	"lager_lending_tool/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CreateFlagInput struct {
	Type      models.FlagType
	ItemID    *string
	UserID    *string
	LoanID    *string
	CreatedBy *string
	Message   string
}

// CreateFlag files a report for administrators. Referenced rows must exist.
func (r *Repo) CreateFlag(ctx context.Context, in CreateFlagInput) (*models.Flag, error) {
	if in.Type == "" {
		in.Type = models.FlagGeneral
	}
	if !in.Type.IsValid() {
		return nil, apperr.Validation(fmt.Sprintf("invalid flag type %q", in.Type))
	}
	in.ItemID, in.UserID, in.LoanID = normCode(in.ItemID), normCode(in.UserID), normCode(in.LoanID)
	msg := strings.TrimSpace(in.Message)
	if msg == "" && in.ItemID == nil && in.UserID == nil {
		return nil, apperr.Validation("flag needs a message, an item or a user")
	}

	flag := models.Flag{
		ID:        newID(),
		FlagType:  in.Type,
		ItemID:    in.ItemID,
		UserID:    in.UserID,
		LoanID:    in.LoanID,
		CreatedBy: normCode(in.CreatedBy),
		Message:   msg,
		Status:    models.FlagUnderReview,
	}
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := mustExist(tx, &models.Item{}, in.ItemID, "item not found"); err != nil {
			return err
		}
		if err := mustExist(tx, &models.User{}, in.UserID, "user not found"); err != nil {
			return err
		}
		if err := mustExist(tx, &models.Loan{}, in.LoanID, "loan not found"); err != nil {
			return err
		}
		return apperr.FromDB(tx.Create(&flag).Error, "")
	})
	if err != nil {
		return nil, err
	}
	return &flag, nil
}

func mustExist(tx *gorm.DB, model any, id *string, msg string) error {
	if id == nil {
		return nil
	}
	if err := checkID(*id, msg); err != nil {
		return err
	}
	var n int64
	if err := tx.Model(model).Where("id = ?", *id).Count(&n).Error; err != nil {
		return apperr.FromDB(err, "")
	}
	if n == 0 {
		return apperr.NotFound(msg)
	}
	return nil
}

// ResolveFlag closes a flag that is still under review.
func (r *Repo) ResolveFlag(ctx context.Context, id string, status models.FlagStatus, notes string) (*models.Flag, error) {
	if !status.Terminal() {
		return nil, apperr.Validation("status must be done or rejected")
	}
	if err := checkID(id, "flag not found"); err != nil {
		return nil, err
	}
	var flag models.Flag
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).First(&flag, "id = ?", id).Error; err != nil {
			return apperr.FromDB(err, "flag not found")
		}
		if !flag.Status.CanTransition(status) {
			return apperr.Conflict(fmt.Sprintf("flag is already %s", flag.Status))
		}
		now := r.now()
		updates := map[string]any{"status": status, "resolved_at": now}
		if n := strings.TrimSpace(notes); n != "" {
			updates["resolution_notes"] = n
		}
		if err := tx.Model(&flag).Updates(updates).Error; err != nil {
			return apperr.FromDB(err, "")
		}
		return apperr.FromDB(tx.First(&flag, "id = ?", id).Error, "flag not found")
	})
	if err != nil {
		return nil, err
	}
	return &flag, nil
}

type FlagView struct {
	models.Flag
	ItemName    *string `json:"item_name"`
	ItemBarcode *string `json:"item_barcode"`
	UserName    *string `json:"user_name"`
	ClassYear   *string `json:"class_year"`
}

type FlagQuery struct {
	Status models.FlagStatus
	Type   models.FlagType
}

// ListFlags orders open flags first, then done, then rejected; newest first within each.
func (r *Repo) ListFlags(ctx context.Context, q FlagQuery) ([]FlagView, error) {
	tx := r.DB.WithContext(ctx).
		Table(models.Flag{}.TableName()+" AS f").
		Select(`f.*,
			i.name AS item_name, i.barcode AS item_barcode,
			u.name AS user_name, u.class_year AS class_year`).
		Joins("LEFT JOIN " + models.Item{}.TableName() + " i ON i.id = f.item_id").
		Joins("LEFT JOIN " + models.User{}.TableName() + " u ON u.id = f.user_id")
	if q.Status != "" {
		tx = tx.Where("f.status = ?", q.Status)
	}
	if q.Type != "" {
		tx = tx.Where("f.flag_type = ?", q.Type)
	}
	tx = tx.Clauses(clause.OrderBy{Expression: clause.Expr{
		SQL:                "CASE f.status WHEN ? THEN 0 WHEN ? THEN 1 ELSE 2 END, f.created_at DESC",
		Vars:               []any{models.FlagUnderReview, models.FlagDone},
		WithoutParentheses: true,
	}})

	flags := []FlagView{}
	if err := tx.Scan(&flags).Error; err != nil {
		return nil, apperr.FromDB(err, "")
	}
	return flags, nil
}

func (r *Repo) CountOpenFlags(ctx context.Context) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.Flag{}).
		Where("status = ?", models.FlagUnderReview).
		Count(&n).Error
	return n, apperr.FromDB(err, "")
}
