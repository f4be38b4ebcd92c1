package db

import (
	"context"
	"strings"

	"lager_lending_tool/apperr"
	"lager_lending_tool/models"
)

type ScanType string

const (
	ScanItem    ScanType = "item"
	ScanUser    ScanType = "user"
	ScanUnknown ScanType = "unknown"
)

// ScanResult is the tagged answer for a scanned code.
type ScanResult struct {
	Type    ScanType `json:"type"`
	Barcode string   `json:"barcode"`

	// item scans
	Item     *models.Item       `json:"item,omitempty"`
	Loaned   *bool              `json:"loaned,omitempty"`
	Loan     *LoanView          `json:"loan,omitempty"`
	LoanedTo *models.PublicUser `json:"loaned_to,omitempty"`

	// user scans
	User *models.PublicUser `json:"user,omitempty"`

	// always a list for item and user scans, clients read its length directly
	ActiveLoans []LoanView `json:"active_loans"`

	// unknown scans; only admins may register the code as a new item
	CanQuickCreate bool `json:"can_quick_create,omitempty"`
}

// Resolve looks the code up as an item barcode first, then as a user barcode.
// Unknown codes are a normal result, not an error.
func (r *Repo) Resolve(ctx context.Context, barcode string) (*ScanResult, error) {
	code := strings.TrimSpace(barcode)
	if code == "" {
		return nil, apperr.Validation("barcode required")
	}
	res := &ScanResult{Barcode: code}

	it, err := r.FindItemByBarcode(ctx, code)
	switch {
	case err == nil:
		return r.resolveItem(ctx, res, it)
	case !apperr.IsKind(err, apperr.KindNotFound):
		return nil, err
	}

	u, err := r.FindUserByBarcode(ctx, code)
	switch {
	case err == nil:
		return r.resolveUser(ctx, res, u)
	case !apperr.IsKind(err, apperr.KindNotFound):
		return nil, err
	}

	res.Type = ScanUnknown
	return res, nil
}

func (r *Repo) resolveItem(ctx context.Context, res *ScanResult, it *models.Item) (*ScanResult, error) {
	res.Type = ScanItem
	res.Item = it
	loaned := false
	res.Loaned = &loaned
	res.ActiveLoans = []LoanView{}

	active, err := r.scanLoanViews(loanViews(r.DB.WithContext(ctx)).
		Where("l.item_id = ? AND l.return_date IS NULL", it.ID).
		Order("l.loan_date DESC"))
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return res, nil
	}

	// the most recent active loan is the one the person at the desk is holding
	current := active[0]
	loaned = true
	res.Loan = &current
	res.ActiveLoans = active
	if current.UserID != nil {
		if u, err := r.FindUserByID(ctx, *current.UserID); err == nil {
			pub := u.Public()
			res.LoanedTo = &pub
		}
	}
	return res, nil
}

func (r *Repo) resolveUser(ctx context.Context, res *ScanResult, u *models.User) (*ScanResult, error) {
	res.Type = ScanUser
	pub := u.Public()
	res.User = &pub

	loans, err := r.ListUserLoans(ctx, u.ID, true)
	if err != nil {
		return nil, err
	}
	if loans == nil {
		loans = []LoanView{}
	}
	res.ActiveLoans = loans
	return res, nil
}
