package db

import (
	"context"
	"fmt"
	"strings"

	"lager_lending_tool/apperr"
	"lager_lending_tool/models"

	"gorm.io/gorm"
)

func (r *Repo) CreateItem(ctx context.Context, it *models.Item) error {
	it.Name = strings.TrimSpace(it.Name)
	if it.Name == "" {
		return apperr.Validation("name required")
	}
	if it.Quantity < 0 {
		return apperr.Validation("quantity cannot be negative")
	}
	if it.Status == "" {
		it.Status = models.ItemAvailable
	}
	if !it.Status.IsValid() {
		return apperr.Validation(fmt.Sprintf("invalid item status %q", it.Status))
	}
	if it.ID == "" {
		it.ID = newID()
	}
	it.Barcode = normCode(it.Barcode)

	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taken, err := barcodeTaken(tx, it.Barcode, "", "")
		if err != nil {
			return apperr.FromDB(err, "")
		}
		if taken {
			return apperr.Validation("duplicate barcode")
		}
		return apperr.FromDB(tx.Create(it).Error, "")
	})
}

type QuickItemInput struct {
	Barcode  string
	Name     string
	Quantity int
}

// QuickCreateItem registers an item for a barcode the resolver did not recognise.
func (r *Repo) QuickCreateItem(ctx context.Context, in QuickItemInput) (*models.Item, error) {
	barcode := strings.TrimSpace(in.Barcode)
	if barcode == "" {
		return nil, apperr.Validation("barcode required")
	}
	qty := in.Quantity
	if qty <= 0 {
		qty = 1
	}
	it := &models.Item{
		Name:     in.Name,
		Barcode:  &barcode,
		Quantity: qty,
		Status:   models.ItemAvailable,
	}
	if err := r.CreateItem(ctx, it); err != nil {
		return nil, err
	}
	return it, nil
}

func (r *Repo) FindItemByID(ctx context.Context, id string) (*models.Item, error) {
	if err := checkID(id, "item not found"); err != nil {
		return nil, err
	}
	var it models.Item
	if err := r.DB.WithContext(ctx).First(&it, "id = ?", id).Error; err != nil {
		return nil, apperr.FromDB(err, "item not found")
	}
	return &it, nil
}

func (r *Repo) FindItemByBarcode(ctx context.Context, barcode string) (*models.Item, error) {
	var it models.Item
	if err := r.DB.WithContext(ctx).Where("barcode = ?", strings.TrimSpace(barcode)).First(&it).Error; err != nil {
		return nil, apperr.FromDB(err, "item not found")
	}
	return &it, nil
}

type ItemQuery struct {
	Q        string
	Category string
	Status   models.ItemStatus
}

func (r *Repo) ListItems(ctx context.Context, q ItemQuery) ([]models.Item, error) {
	tx := r.DB.WithContext(ctx).Model(&models.Item{})
	if s := strings.TrimSpace(q.Q); s != "" {
		like := likePattern(s)
		tx = tx.Where("LOWER(name) LIKE ? OR LOWER(barcode) LIKE ? OR LOWER(location) LIKE ?", like, like, like)
	}
	if q.Category != "" {
		tx = tx.Where("category = ?", q.Category)
	}
	if q.Status != "" {
		tx = tx.Where("status = ?", q.Status)
	}
	items := []models.Item{}
	err := tx.Order("name ASC").Find(&items).Error
	return items, apperr.FromDB(err, "")
}

// CatalogueItem is an item with a summary of who has it right now.
type CatalogueItem struct {
	models.Item
	ActiveLoans int          `json:"active_loans"`
	LoanedTo    *string      `json:"loaned_to"`
	DueDate     *models.Date `json:"due_date"`
	Overdue     bool         `json:"overdue"`
}

// ListCatalogue lists every item with its earliest-due active loan.
func (r *Repo) ListCatalogue(ctx context.Context, q ItemQuery) ([]CatalogueItem, error) {
	items, err := r.ListItems(ctx, q)
	if err != nil {
		return nil, err
	}
	active, err := r.ListActiveLoans(ctx)
	if err != nil {
		return nil, err
	}

	byItem := make(map[string][]LoanView, len(active))
	for _, l := range active {
		byItem[l.ItemID] = append(byItem[l.ItemID], l)
	}

	out := make([]CatalogueItem, 0, len(items))
	for _, it := range items {
		row := CatalogueItem{Item: it}
		loans := byItem[it.ID]
		row.ActiveLoans = len(loans)
		if len(loans) > 0 {
			// active loans come back ordered by due date
			first := loans[0]
			due := first.DueDate
			row.DueDate = &due
			row.LoanedTo = first.UserName
			for _, l := range loans {
				row.Overdue = row.Overdue || l.Overdue
			}
		}
		out = append(out, row)
	}
	return out, nil
}

type ItemDetail struct {
	Item        *models.Item `json:"item"`
	ActiveLoans []LoanView   `json:"active_loans"`
	History     []LoanView   `json:"history"`
}

func (r *Repo) GetItemDetail(ctx context.Context, id string) (*ItemDetail, error) {
	it, err := r.FindItemByID(ctx, id)
	if err != nil {
		return nil, err
	}
	history, err := r.ListItemLoans(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := &ItemDetail{Item: it, ActiveLoans: []LoanView{}, History: history}
	for _, l := range history {
		if l.Active() {
			detail.ActiveLoans = append(detail.ActiveLoans, l)
		}
	}
	return detail, nil
}

// ItemPatch carries the admin-editable fields; nil means unchanged.
type ItemPatch struct {
	Name        *string
	Description *string
	Location    *string
	Category    *string
	Quantity    *int
	Barcode     *string
	Status      *models.ItemStatus
	Notes       *string
}

func (p ItemPatch) updates() (map[string]any, error) {
	out := map[string]any{}
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return nil, apperr.Validation("name cannot be empty")
		}
		out["name"] = name
	}
	if p.Description != nil {
		out["description"] = *p.Description
	}
	if p.Location != nil {
		out["location"] = strings.TrimSpace(*p.Location)
	}
	if p.Category != nil {
		out["category"] = strings.TrimSpace(*p.Category)
	}
	if p.Quantity != nil {
		if *p.Quantity < 0 {
			return nil, apperr.Validation("quantity cannot be negative")
		}
		out["quantity"] = *p.Quantity
	}
	if p.Barcode != nil {
		out["barcode"] = normCode(p.Barcode)
	}
	if p.Status != nil {
		if !p.Status.IsValid() {
			return nil, apperr.Validation(fmt.Sprintf("invalid item status %q", *p.Status))
		}
		out["status"] = *p.Status
	}
	if p.Notes != nil {
		out["notes"] = *p.Notes
	}
	if len(out) == 0 {
		return nil, apperr.Validation("no fields to update")
	}
	return out, nil
}

func (r *Repo) UpdateItem(ctx context.Context, id string, patch ItemPatch) (*models.Item, error) {
	updates, err := patch.updates()
	if err != nil {
		return nil, err
	}
	if err := checkID(id, "item not found"); err != nil {
		return nil, err
	}
	var it models.Item
	err = r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).First(&it, "id = ?", id).Error; err != nil {
			return apperr.FromDB(err, "item not found")
		}
		if patch.Barcode != nil {
			taken, err := barcodeTaken(tx, normCode(patch.Barcode), id, "")
			if err != nil {
				return apperr.FromDB(err, "")
			}
			if taken {
				return apperr.Validation("duplicate barcode")
			}
		}
		if err := tx.Model(&it).Updates(updates).Error; err != nil {
			return apperr.FromDB(err, "")
		}
		return apperr.FromDB(tx.First(&it, "id = ?", id).Error, "item not found")
	})
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// DeleteItem removes an item that nobody holds, together with its loan history.
// Flags about the item stay in the inbox, detached from it.
func (r *Repo) DeleteItem(ctx context.Context, id string) error {
	if err := checkID(id, "item not found"); err != nil {
		return err
	}
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var it models.Item
		if err := lockForUpdate(tx).First(&it, "id = ?", id).Error; err != nil {
			return apperr.FromDB(err, "item not found")
		}
		active, err := countActiveLoans(tx, "item_id", id)
		if err != nil {
			return apperr.FromDB(err, "")
		}
		if active > 0 {
			return apperr.Conflict("cannot delete item with active loans")
		}
		history := tx.Model(&models.Loan{}).Select("id").Where("item_id = ?", id)
		if err := tx.Model(&models.Flag{}).Where("loan_id IN (?)", history).Update("loan_id", nil).Error; err != nil {
			return apperr.FromDB(err, "")
		}
		if err := tx.Model(&models.Flag{}).Where("item_id = ?", id).Update("item_id", nil).Error; err != nil {
			return apperr.FromDB(err, "")
		}
		if err := tx.Where("item_id = ?", id).Delete(&models.Loan{}).Error; err != nil {
			return apperr.FromDB(err, "")
		}
		return apperr.FromDB(tx.Delete(&it).Error, "")
	})
}
