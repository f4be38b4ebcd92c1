package db

import (
	"context"
	"sync"
	"testing"

	"lager_lending_tool/apperr"
	"lager_lending_tool/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateLoanDecrementsAndReturnRestores(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	it := seedItem(t, r, "Camera", "C1", 2)
	u := seedUser(t, r, "Alice", "")

	lent, err := r.CreateLoan(ctx, CreateLoanInput{ItemID: it.ID, UserID: u.ID, DueDate: due("2025-01-10")})
	require.NoError(t, err)
	assert.Nil(t, lent.Flag)
	loan := lent.Loan
	assert.Equal(t, models.LoanActive, loan.Status)
	assert.False(t, loan.Overdue)

	after, err := r.FindItemByID(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, after.Quantity)

	res, err := r.ReturnLoan(ctx, ReturnLoanInput{LoanID: loan.ID, ActorID: u.ID})
	require.NoError(t, err)
	assert.Nil(t, res.Flag)
	require.NotNil(t, res.Loan.ReturnDate)
	assert.Equal(t, models.LoanReturned, res.Loan.Status)
	require.NotNil(t, res.Loan.ReturnedBy)
	assert.Equal(t, u.ID, *res.Loan.ReturnedBy)

	after, err = r.FindItemByID(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, after.Quantity)
}

func TestCreateLoanRejectsEmptyStock(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	it := seedItem(t, r, "Drill", "D1", 0)
	u := seedUser(t, r, "Alice", "")

	_, err := r.CreateLoan(ctx, CreateLoanInput{ItemID: it.ID, UserID: u.ID, DueDate: due("2025-01-10")})
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))

	after, err := r.FindItemByID(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, after.Quantity)
}

func TestCreateLoanValidation(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	it := seedItem(t, r, "Drill", "D1", 1)
	u := seedUser(t, r, "Alice", "")

	_, err := r.CreateLoan(ctx, CreateLoanInput{ItemID: it.ID, UserID: u.ID})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = r.CreateLoan(ctx, CreateLoanInput{ItemID: "missing", UserID: u.ID, DueDate: due("2025-01-10")})
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

	_, err = r.CreateLoan(ctx, CreateLoanInput{ItemID: it.ID, UserID: "missing", DueDate: due("2025-01-10")})
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

	status := models.ItemMaintenance
	_, err = r.UpdateItem(ctx, it.ID, ItemPatch{Status: &status})
	require.NoError(t, err)
	_, err = r.CreateLoan(ctx, CreateLoanInput{ItemID: it.ID, UserID: u.ID, DueDate: due("2025-01-10")})
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))
}

func TestReturnTwiceConflicts(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	it := seedItem(t, r, "Drill", "D1", 1)
	u := seedUser(t, r, "Alice", "")
	lent, err := r.CreateLoan(ctx, CreateLoanInput{ItemID: it.ID, UserID: u.ID, DueDate: due("2025-01-10")})
	require.NoError(t, err)
	loan := lent.Loan

	_, err = r.ReturnLoan(ctx, ReturnLoanInput{LoanID: loan.ID})
	require.NoError(t, err)
	_, err = r.ReturnLoan(ctx, ReturnLoanInput{LoanID: loan.ID})
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))

	after, err := r.FindItemByID(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, after.Quantity, "second return must not add stock")

	_, err = r.ReturnLoan(ctx, ReturnLoanInput{LoanID: "missing"})
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestReturnAndExtendEnforceOwnership(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	it := seedItem(t, r, "Drill", "D1", 1)
	alice := seedUser(t, r, "Alice", "")
	bob := seedUser(t, r, "Bob", "")
	lent, err := r.CreateLoan(ctx, CreateLoanInput{ItemID: it.ID, UserID: alice.ID, DueDate: due("2025-01-10")})
	require.NoError(t, err)
	loan := lent.Loan

	_, err = r.ReturnLoan(ctx, ReturnLoanInput{LoanID: loan.ID, OwnerID: bob.ID})
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden))

	_, err = r.ExtendLoan(ctx, ExtendLoanInput{LoanID: loan.ID, DueDate: due("2025-02-01"), OwnerID: bob.ID})
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden))

	extended, err := r.ExtendLoan(ctx, ExtendLoanInput{LoanID: loan.ID, DueDate: due("2025-02-01"), OwnerID: alice.ID})
	require.NoError(t, err)
	assert.Equal(t, "2025-02-01", extended.DueDate.String())

	_, err = r.ReturnLoan(ctx, ReturnLoanInput{LoanID: loan.ID, OwnerID: alice.ID})
	require.NoError(t, err)

	_, err = r.ExtendLoan(ctx, ExtendLoanInput{LoanID: loan.ID, DueDate: due("2025-03-01")})
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))
}

func TestReturnMessageOpensFlag(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	it := seedItem(t, r, "Drill", "D1", 1)
	u := seedUser(t, r, "Alice", "")
	lent, err := r.CreateLoan(ctx, CreateLoanInput{ItemID: it.ID, UserID: u.ID, DueDate: due("2025-01-10")})
	require.NoError(t, err)
	loan := lent.Loan

	res, err := r.ReturnLoan(ctx, ReturnLoanInput{LoanID: loan.ID, ActorID: u.ID, Message: "  battery is dead "})
	require.NoError(t, err)
	assert.Equal(t, "battery is dead", res.Loan.ReturnMessage)
	require.NotNil(t, res.Flag)
	assert.Equal(t, models.FlagReturnMessage, res.Flag.FlagType)
	assert.Equal(t, loan.ID, *res.Flag.LoanID)
	assert.Contains(t, res.Flag.Message, "Alice")
	assert.Contains(t, res.Flag.Message, "battery is dead")
}

func TestManualLoanOpensFlag(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	it := seedItem(t, r, "Drill", "D1", 1)
	u := seedUser(t, r, "Alice", "")

	lent, err := r.CreateLoan(ctx, CreateLoanInput{ItemID: it.ID, UserID: u.ID, DueDate: due("2025-01-10"), Manual: true})
	require.NoError(t, err)
	loan := lent.Loan
	require.NotNil(t, lent.Flag)
	assert.Equal(t, models.FlagManualLoan, lent.Flag.FlagType)
	require.NotNil(t, lent.Flag.LoanID)
	assert.Equal(t, loan.ID, *lent.Flag.LoanID)

	flags, err := r.ListFlags(ctx, FlagQuery{Type: models.FlagManualLoan})
	require.NoError(t, err)
	require.Len(t, flags, 1)
	assert.Equal(t, loan.ID, *flags[0].LoanID)
	assert.Equal(t, "Drill", *flags[0].ItemName)
}

func TestConcurrentLoansOnLastUnit(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	it := seedItem(t, r, "Drill", "D1", 1)
	alice := seedUser(t, r, "Alice", "")
	bob := seedUser(t, r, "Bob", "")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, u := range []*models.User{alice, bob} {
		wg.Add(1)
		go func(i int, userID string) {
			defer wg.Done()
			_, errs[i] = r.CreateLoan(ctx, CreateLoanInput{ItemID: it.ID, UserID: userID, DueDate: due("2025-01-10")})
		}(i, u.ID)
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case apperr.IsKind(err, apperr.KindConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflicts)

	after, err := r.FindItemByID(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, after.Quantity)

	active, err := r.ListActiveLoans(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestListLoansDerivesOverdue(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	it := seedItem(t, r, "Drill", "D1", 3)
	u := seedUser(t, r, "Alice", "")

	_, err := r.CreateLoan(ctx, CreateLoanInput{ItemID: it.ID, UserID: u.ID, DueDate: due("2025-01-20")})
	require.NoError(t, err)
	_, err = r.CreateLoan(ctx, CreateLoanInput{ItemID: it.ID, UserID: u.ID, DueDate: due("2025-01-02")})
	require.NoError(t, err)

	loans, err := r.ListUserLoans(ctx, u.ID, true)
	require.NoError(t, err)
	require.Len(t, loans, 2)
	assert.Equal(t, "2025-01-02", loans[0].DueDate.String())
	assert.True(t, loans[0].Overdue)
	assert.False(t, loans[1].Overdue)
	assert.Equal(t, "Drill", *loans[0].ItemName)
}

func TestUpdateDeliveryAndReport(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	it := seedItem(t, r, "Drill", "D1", 1)
	u := seedUser(t, r, "Alice", "")
	lent, err := r.CreateLoan(ctx, CreateLoanInput{ItemID: it.ID, UserID: u.ID, DueDate: due("2025-01-10")})
	require.NoError(t, err)
	loan := lent.Loan

	status := models.DeliveryInDelivery
	notes := "room 204"
	view, err := r.UpdateDelivery(ctx, loan.ID, &status, &notes)
	require.NoError(t, err)
	require.NotNil(t, view.DeliveryStatus)
	assert.Equal(t, models.DeliveryInDelivery, *view.DeliveryStatus)
	assert.Equal(t, "room 204", view.DeliveryNotes)

	bad := models.DeliveryStatus("lost")
	_, err = r.UpdateDelivery(ctx, loan.ID, &bad, nil)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = r.UpdateDelivery(ctx, loan.ID, nil, nil)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	view, err = r.UpdateReport(ctx, loan.ID, "scratched lens")
	require.NoError(t, err)
	assert.Equal(t, "scratched lens", view.Report)

	_, err = r.UpdateReport(ctx, "missing", "x")
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}
