package db

import (
	"context"
	"testing"

	"lager_lending_tool/apperr"
	"lager_lending_tool/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateItemRules(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	it := seedItem(t, r, "Drill", "D1", 0)
	assert.Equal(t, 0, it.Quantity, "explicit zero stock is kept")
	assert.Equal(t, models.ItemAvailable, it.Status)

	err := r.CreateItem(ctx, &models.Item{Name: "Other", Barcode: it.Barcode, Quantity: 1})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	err = r.CreateItem(ctx, &models.Item{Name: "Neg", Quantity: -1})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	err = r.CreateItem(ctx, &models.Item{Name: "Odd", Status: "lost"})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestQuickCreateItem(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	it, err := r.QuickCreateItem(ctx, QuickItemInput{Barcode: " Q1 ", Name: "Tripod"})
	require.NoError(t, err)
	assert.Equal(t, "Q1", *it.Barcode)
	assert.Equal(t, 1, it.Quantity)

	res, err := r.Resolve(ctx, "Q1")
	require.NoError(t, err)
	assert.Equal(t, ScanItem, res.Type)

	_, err = r.QuickCreateItem(ctx, QuickItemInput{Barcode: "Q1", Name: "Again"})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = r.QuickCreateItem(ctx, QuickItemInput{Barcode: "Q2"})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation), "name is required")
}

func TestUpdateItem(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	it := seedItem(t, r, "Drill", "D1", 1)
	other := seedItem(t, r, "Saw", "S1", 1)

	qty := 4
	loc := "Shelf B"
	updated, err := r.UpdateItem(ctx, it.ID, ItemPatch{Quantity: &qty, Location: &loc})
	require.NoError(t, err)
	assert.Equal(t, 4, updated.Quantity)
	assert.Equal(t, "Shelf B", updated.Location)

	neg := -2
	_, err = r.UpdateItem(ctx, it.ID, ItemPatch{Quantity: &neg})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = r.UpdateItem(ctx, it.ID, ItemPatch{Barcode: other.Barcode})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	same := "D1"
	_, err = r.UpdateItem(ctx, it.ID, ItemPatch{Barcode: &same})
	require.NoError(t, err, "keeping its own barcode is fine")

	_, err = r.UpdateItem(ctx, "missing", ItemPatch{Quantity: &qty})
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestDeleteItem(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	it := seedItem(t, r, "Drill", "D1", 1)
	u := seedUser(t, r, "Alice", "")

	lent, err := r.CreateLoan(ctx, CreateLoanInput{ItemID: it.ID, UserID: u.ID, DueDate: due("2025-01-10")})
	require.NoError(t, err)
	loan := lent.Loan
	err = r.DeleteItem(ctx, it.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))

	_, err = r.ReturnLoan(ctx, ReturnLoanInput{LoanID: loan.ID, Message: "all good"})
	require.NoError(t, err)
	require.NoError(t, r.DeleteItem(ctx, it.ID))

	_, err = r.FindItemByID(ctx, it.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

	flags, err := r.ListFlags(ctx, FlagQuery{})
	require.NoError(t, err)
	require.Len(t, flags, 1)
	assert.Nil(t, flags[0].ItemID)
	assert.Nil(t, flags[0].LoanID)
}

func TestCatalogueAndDetail(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	drill := seedItem(t, r, "Drill", "D1", 2)
	seedItem(t, r, "Saw", "S1", 1)
	u := seedUser(t, r, "Alice", "")

	_, err := r.CreateLoan(ctx, CreateLoanInput{ItemID: drill.ID, UserID: u.ID, DueDate: due("2025-01-05")})
	require.NoError(t, err)

	rows, err := r.ListCatalogue(ctx, ItemQuery{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Drill", rows[0].Name)
	assert.Equal(t, 1, rows[0].ActiveLoans)
	require.NotNil(t, rows[0].LoanedTo)
	assert.Equal(t, "Alice", *rows[0].LoanedTo)
	assert.True(t, rows[0].Overdue)
	assert.Nil(t, rows[1].LoanedTo)

	detail, err := r.GetItemDetail(ctx, drill.ID)
	require.NoError(t, err)
	assert.Len(t, detail.ActiveLoans, 1)
	assert.Len(t, detail.History, 1)
}
