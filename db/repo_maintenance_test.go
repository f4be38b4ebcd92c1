package db

import (
	"context"
	"testing"
	"time"

	"lager_lending_tool/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlagOverdueLoansIsIdempotent(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	it := seedItem(t, r, "Drill", "D1", 2)
	u := seedUser(t, r, "Alice", "")

	lent, err := r.CreateLoan(ctx, CreateLoanInput{ItemID: it.ID, UserID: u.ID, DueDate: due("2025-01-01")})
	require.NoError(t, err)
	late := lent.Loan
	_, err = r.CreateLoan(ctx, CreateLoanInput{ItemID: it.ID, UserID: u.ID, DueDate: due("2025-02-01")})
	require.NoError(t, err)

	report, err := r.FlagOverdueLoans(ctx)
	require.NoError(t, err)
	require.Len(t, report.Overdue, 1)
	assert.Equal(t, late.ID, report.Overdue[0].ID)
	assert.Equal(t, 1, report.Flagged)

	report, err = r.FlagOverdueLoans(ctx)
	require.NoError(t, err)
	assert.Len(t, report.Overdue, 1)
	assert.Equal(t, 0, report.Flagged, "open overdue flag is not duplicated")

	flags, err := r.ListFlags(ctx, FlagQuery{Type: models.FlagOverdue})
	require.NoError(t, err)
	assert.Len(t, flags, 1)
}

func TestCleanupInactiveUsers(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	it := seedItem(t, r, "Drill", "D1", 2)
	old := fixedNow.AddDate(-4, 0, 0)

	mk := func(name string, role models.Role, created time.Time) *models.User {
		u := &models.User{Name: name, Role: role, CreatedAt: created}
		require.NoError(t, r.CreateUser(ctx, u))
		return u
	}
	idle := mk("Idle", models.RoleUser, old)
	borrowing := mk("Borrowing", models.RoleUser, old)
	staff := mk("Staff", models.RoleStaff, old)
	fresh := mk("Fresh", models.RoleUser, fixedNow)

	lent, err := r.CreateLoan(ctx, CreateLoanInput{ItemID: it.ID, UserID: idle.ID, DueDate: due("2025-01-10")})
	require.NoError(t, err)
	past := lent.Loan
	_, err = r.ReturnLoan(ctx, ReturnLoanInput{LoanID: past.ID})
	require.NoError(t, err)
	_, err = r.CreateLoan(ctx, CreateLoanInput{ItemID: it.ID, UserID: borrowing.ID, DueDate: due("2025-01-10")})
	require.NoError(t, err)

	report, err := r.CleanupInactiveUsers(ctx, 3*365*24*time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, report.RemovedUsers)
	assert.EqualValues(t, 1, report.AnonymizedLoans)
	assert.Equal(t, []string{idle.ID}, report.RemovedIDs)

	for _, kept := range []*models.User{borrowing, staff, fresh} {
		_, err := r.FindUserByID(ctx, kept.ID)
		assert.NoError(t, err, kept.Name)
	}
}
