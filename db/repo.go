package db

import (
	"context"
	"strings"
	"time"

	"lager_lending_tool/apperr"
	"lager_lending_tool/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repo struct {
	DB *gorm.DB
	// Now is the clock used for loan dates and overdue checks.
	Now func() time.Time
}

func NewRepo(db *gorm.DB) *Repo { return &Repo{DB: db, Now: time.Now} }

func (r *Repo) now() time.Time {
	if r.Now == nil {
		return time.Now().UTC()
	}
	return r.Now().UTC()
}

// today is the calendar day in the clock's own location.
func (r *Repo) today() models.Date {
	if r.Now == nil {
		return models.DateOf(time.Now())
	}
	return models.DateOf(r.Now())
}

// Ping is used by the health check.
func (r *Repo) Ping(ctx context.Context) error {
	sqlDB, err := r.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// normCode trims a barcode/username and maps blanks to NULL so unique indexes allow many empties.
func normCode(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// barcodeTaken reports whether a barcode already identifies another item or user.
// Barcodes share one namespace so the resolver never has to pick between the two.
func barcodeTaken(tx *gorm.DB, barcode *string, exceptItemID, exceptUserID string) (bool, error) {
	if barcode == nil {
		return false, nil
	}
	var n int64
	q := tx.Model(&models.Item{}).Where("barcode = ?", *barcode)
	if exceptItemID != "" {
		q = q.Where("id <> ?", exceptItemID)
	}
	if err := q.Count(&n).Error; err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}
	q = tx.Model(&models.User{}).Where("barcode = ?", *barcode)
	if exceptUserID != "" {
		q = q.Where("id <> ?", exceptUserID)
	}
	if err := q.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// lockForUpdate adds SELECT ... FOR UPDATE; the sqlite dialect drops the clause.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func newID() string { return uuid.NewString() }

// checkID turns an id that is not a uuid into NotFound before postgres sees it.
func checkID(id, notFoundMsg string) error {
	if uuid.Validate(id) != nil {
		return apperr.NotFound(notFoundMsg)
	}
	return nil
}

func likePattern(q string) string {
	return "%" + strings.ToLower(strings.TrimSpace(q)) + "%"
}
