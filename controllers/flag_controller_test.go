package controllers_test

import (
	"net/http"
	"testing"

	"lager_lending_tool/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlagInboxLifecycle(t *testing.T) {
	e := newTestEnv(t)
	admin := e.loginAdmin()
	item := e.createItem(admin, "Projector", "ITM-PROJ", 1)
	user, userID := e.loginUser("Alice")

	rec := e.do(http.MethodPost, "/flags", map[string]any{"flag_type": "defect", "item_id": item.ID, "message": "lens cracked"}, user)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	flag := decode[models.Flag](t, rec)
	assert.Equal(t, models.FlagDefect, flag.FlagType)
	assert.Equal(t, models.FlagUnderReview, flag.Status)
	require.NotNil(t, flag.CreatedBy)
	assert.Equal(t, userID, *flag.CreatedBy)
	require.NotNil(t, flag.UserID, "a borrower's flag defaults to themselves")
	assert.Equal(t, userID, *flag.UserID)

	assert.Equal(t, http.StatusForbidden, e.do(http.MethodGet, "/flags", nil, user).Code)

	rec = e.do(http.MethodGet, "/flags?status=under_review", nil, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Flag](t, rec), 1)

	rec = e.do(http.MethodPut, "/flags/"+flag.ID+"/resolve", map[string]string{"status": "under_review"}, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(http.MethodPut, "/flags/"+flag.ID+"/resolve", map[string]string{"status": "done", "resolution_notes": "replaced"}, admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resolved := decode[models.Flag](t, rec)
	assert.Equal(t, models.FlagDone, resolved.Status)
	assert.Equal(t, "replaced", resolved.ResolutionNotes)
	assert.NotNil(t, resolved.ResolvedAt)

	rec = e.do(http.MethodPut, "/flags/"+flag.ID+"/resolve", map[string]string{"status": "rejected"}, admin)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = e.do(http.MethodGet, "/flags?status=under_review", nil, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]models.Flag](t, rec))
}

func TestCreateFlagValidation(t *testing.T) {
	e := newTestEnv(t)
	admin := e.loginAdmin()

	rec := e.do(http.MethodPost, "/flags", map[string]any{"flag_type": "general"}, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "flag needs a message, an item or a user", errorOf(t, rec))

	rec = e.do(http.MethodPost, "/flags", map[string]any{"flag_type": "bogus", "message": "x"}, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	missing := "does-not-exist"
	rec = e.do(http.MethodPost, "/flags", map[string]any{"item_id": missing}, admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(http.MethodPost, "/flags", map[string]any{"message": "x"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
