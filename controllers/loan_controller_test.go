package controllers_test

import (
	"net/http"
	"strings"
	"testing"

	"lager_lending_tool/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scanBody struct {
	Type     string       `json:"type"`
	Barcode  string       `json:"barcode"`
	Item     *models.Item `json:"item"`
	Loaned   bool         `json:"loaned"`
	Loan     *models.Loan `json:"loan"`
	LoanedTo *struct {
		ID string `json:"id"`
	} `json:"loaned_to"`
	User *struct {
		ID string `json:"id"`
	} `json:"user"`
	ActiveLoans    []models.Loan `json:"active_loans"`
	CanQuickCreate bool          `json:"can_quick_create"`
}

func TestBorrowScanReturnCycle(t *testing.T) {
	e := newTestEnv(t)
	admin := e.loginAdmin()
	drill := e.createItem(admin, "Drill", "ITM-DRILL", 1)
	user, userID := e.loginUser("Alice")

	scan := decode[scanBody](t, e.do(http.MethodPost, "/scan", map[string]string{"barcode": "ITM-DRILL"}, user))
	assert.Equal(t, "item", scan.Type)
	assert.False(t, scan.Loaned)
	assert.Nil(t, scan.Loan)

	rec := e.do(http.MethodPost, "/loans", map[string]any{"item_id": drill.ID, "due_date": "2025-01-15"}, user)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	loan := decode[models.Loan](t, rec)
	require.NotNil(t, loan.UserID)
	assert.Equal(t, userID, *loan.UserID)
	assert.Equal(t, "2025-01-15", loan.DueDate.String())
	assert.Equal(t, models.LoanActive, loan.Status)

	scan = decode[scanBody](t, e.do(http.MethodPost, "/scan", map[string]string{"barcode": "ITM-DRILL"}, admin))
	assert.True(t, scan.Loaned)
	require.NotNil(t, scan.Loan)
	assert.Equal(t, loan.ID, scan.Loan.ID)
	require.NotNil(t, scan.LoanedTo)
	assert.Equal(t, userID, scan.LoanedTo.ID)

	rec = e.do(http.MethodPost, "/loans", map[string]any{"item_id": drill.ID, "user_id": userID, "due_date": "2025-01-20"}, admin)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "item not available", errorOf(t, rec))

	rec = e.do(http.MethodGet, "/users/me/loans", nil, user)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Loan](t, rec), 1)

	rec = e.do(http.MethodPost, "/loans/"+loan.ID+"/return", nil, user)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	returned := decode[models.Loan](t, rec)
	assert.Equal(t, models.LoanReturned, returned.Status)
	assert.NotNil(t, returned.ReturnDate)

	rec = e.do(http.MethodPost, "/loans/"+loan.ID+"/return", nil, user)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = e.do(http.MethodGet, "/items/"+drill.ID, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"quantity":1`)
}

func TestLoanOwnership(t *testing.T) {
	e := newTestEnv(t)
	admin := e.loginAdmin()
	item := e.createItem(admin, "Camera", "ITM-CAM", 2)
	alice, _ := e.loginUser("Alice")

	rec := e.do(http.MethodPost, "/loans", map[string]any{"item_id": item.ID, "due_date": "2025-01-15"}, alice)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	loan := decode[models.Loan](t, rec)

	bob, _ := e.loginUser("Bob")
	rec = e.do(http.MethodPost, "/loans/"+loan.ID+"/return", nil, bob)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = e.do(http.MethodPut, "/loans/"+loan.ID+"/extend", map[string]string{"due_date": "2025-02-01"}, bob)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(http.MethodPost, "/loans/"+loan.ID+"/extend", map[string]string{"new_due_date": "2025-02-01"}, admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "2025-02-01", decode[models.Loan](t, rec).DueDate.String())

	rec = e.do(http.MethodPost, "/loans/"+loan.ID+"/return", nil, admin)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateLoanValidation(t *testing.T) {
	e := newTestEnv(t)
	admin := e.loginAdmin()
	item := e.createItem(admin, "Tripod", "ITM-TRI", 1)

	rec := e.do(http.MethodPost, "/loans", map[string]any{"item_id": item.ID, "due_date": "2025-01-15"}, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "user_id required", errorOf(t, rec))

	user, userID := e.loginUser("Alice")
	rec = e.do(http.MethodPost, "/loans", map[string]any{"item_id": item.ID, "due_date": "15.01.2025"}, user)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(http.MethodPost, "/loans", map[string]any{"item_id": "missing", "user_id": userID, "due_date": "2025-01-15"}, admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReturnMessageOpensFlag(t *testing.T) {
	e := newTestEnv(t)
	admin := e.loginAdmin()
	item := e.createItem(admin, "Laptop", "ITM-LAP", 1)
	user, _ := e.loginUser("Alice")

	rec := e.do(http.MethodPost, "/loans", map[string]any{"item_id": item.ID, "due_date": "2025-01-15"}, user)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	loan := decode[models.Loan](t, rec)

	rec = e.do(http.MethodPost, "/loans/"+loan.ID+"/return", map[string]string{"return_message": "charger missing"}, user)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = e.do(http.MethodGet, "/flags?type=return_message", nil, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	flags := decode[[]models.Flag](t, rec)
	require.Len(t, flags, 1)
	assert.Contains(t, flags[0].Message, "charger missing")
	require.NotNil(t, flags[0].LoanID)
	assert.Equal(t, loan.ID, *flags[0].LoanID)
}

func TestScanUnknownAndUser(t *testing.T) {
	e := newTestEnv(t)
	admin := e.loginAdmin()
	user, _ := e.loginUser("Alice")

	scan := decode[scanBody](t, e.do(http.MethodPost, "/scan", map[string]string{"barcode": "NEW-1"}, admin))
	assert.Equal(t, "unknown", scan.Type)
	assert.True(t, scan.CanQuickCreate)

	scan = decode[scanBody](t, e.do(http.MethodPost, "/scan", map[string]string{"barcode": "NEW-1"}, user))
	assert.Equal(t, "unknown", scan.Type)
	assert.False(t, scan.CanQuickCreate)

	rec := e.do(http.MethodPost, "/items/quick", map[string]any{"barcode": "NEW-1", "name": "Mixer", "quantity": 1}, user)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = e.do(http.MethodPost, "/items/quick", map[string]any{"barcode": "NEW-1", "name": "Mixer", "quantity": 1}, admin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	scan = decode[scanBody](t, e.do(http.MethodPost, "/scan", map[string]string{"barcode": "NEW-1"}, user))
	assert.Equal(t, "item", scan.Type)
	require.NotNil(t, scan.Item)
	assert.Equal(t, "Mixer", scan.Item.Name)

	rec = e.do(http.MethodPost, "/admin/users", map[string]any{"name": "Bea", "barcode": "U-BEA"}, admin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	scan = decode[scanBody](t, e.do(http.MethodPost, "/scan", map[string]string{"barcode": "U-BEA"}, admin))
	assert.Equal(t, "user", scan.Type)
	require.NotNil(t, scan.User)
}

func TestManualLoanNotifiesAdmins(t *testing.T) {
	e := newTestEnv(t)
	mail := newRecordingNotifier()
	e.srv.Notifier = mail
	admin := e.loginAdmin()
	item := e.createItem(admin, "Saw", "ITM-SAW", 1)
	_, userID := e.loginUser("Alice")

	rec := e.do(http.MethodPost, "/loans", map[string]any{
		"item_id": item.ID, "user_id": userID, "due_date": "2025-01-15", "is_manual": true,
	}, admin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	loan := decode[models.Loan](t, rec)

	m := mail.next(t)
	assert.Contains(t, m.subject, string(models.FlagManualLoan))
	assert.Contains(t, m.body, loan.ID)
}

func TestMalformedIDsAreNotFound(t *testing.T) {
	e := newTestEnv(t)
	admin := e.loginAdmin()

	for _, path := range []string{"/admin/items/abc", "/admin/users/abc", "/admin/loans/abc"} {
		rec := e.do(http.MethodGet, path, nil, admin)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
	rec := e.do(http.MethodPost, "/loans/abc/return", nil, admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestItemNameLongerThanColumnIsRejected(t *testing.T) {
	e := newTestEnv(t)
	admin := e.loginAdmin()

	rec := e.do(http.MethodPost, "/admin/items", map[string]any{"name": strings.Repeat("n", 201), "quantity": 1}, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(http.MethodPost, "/items/quick", map[string]any{"barcode": "NEW-2", "name": strings.Repeat("n", 201), "quantity": 1}, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(http.MethodPost, "/admin/items", map[string]any{"name": strings.Repeat("n", 200), "quantity": 1}, admin)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}
